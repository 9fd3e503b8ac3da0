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

package unixtime

import "testing"

func TestStamp(t *testing.T) {
	s := Seconds(0)
	if s.Stamp() != "19700101T000000Z" {
		t.Fatalf("unexpected stamp: %s", s.Stamp())
	}
	if s.String() != "1970-01-01T00:00:00Z" {
		t.Fatalf("unexpected string: %s", s.String())
	}

	var parsed Seconds
	if err := parsed.ParseStamp(s.Stamp()); err != nil {
		t.Fatal(err)
	}
	if parsed != s {
		t.Fatalf("stamp did not round trip: %d", parsed)
	}

	if err := parsed.ParseString("2024-07-01T12:34:56Z"); err != nil {
		t.Fatal(err)
	}
	if parsed.Stamp() != "20240701T123456Z" {
		t.Fatalf("unexpected stamp: %s", parsed.Stamp())
	}
}

func TestStampOrdering(t *testing.T) {
	a := Seconds(1000000000)
	b := Seconds(1000000001)
	if !(a.Stamp() < b.Stamp()) {
		t.Fatalf("stamps do not sort chronologically: %s >= %s", a.Stamp(), b.Stamp())
	}
}
