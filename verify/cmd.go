// Copyright 2025 RetailNext, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package verify

import "github.com/alecthomas/kingpin/v2"

var (
	Cmd = kingpin.Command("verify", "Spot-check backup integrity against the manifest.")

	sampleSize = Cmd.Flag("sample", "Number of files to verify. 0 verifies everything.").Default("50").Int()
	seed       = Cmd.Flag("seed", "Sampling seed. 0 seeds from the current time.").Default("0").Int64()
)

func SampleSizeFromFlags() int {
	return *sampleSize
}

func SeedFromFlags() int64 {
	return *seed
}
