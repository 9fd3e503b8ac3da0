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

package restore

import "github.com/alecthomas/kingpin/v2"

var (
	Cmd = kingpin.Command("restore", "")

	LibraryCmd  = Cmd.Command("library", "Restore library files from the manifest.")
	DatabaseCmd = Cmd.Command("database", "Restore the database from a dump.")

	libraryCmdTarget  = LibraryCmd.Flag("target", "Directory to restore files into.").Required().String()
	libraryCmdPrefix  = LibraryCmd.Flag("prefix", "Only restore paths under this prefix.").String()
	libraryCmdWorkers = LibraryCmd.Flag("workers", "Concurrent download count.").Default("4").Int()

	databaseCmdKey = DatabaseCmd.Flag("key", "Dump object key to restore. Defaults to the newest dump.").String()
)

func LibraryOptionsFromFlags() LibraryOptions {
	return LibraryOptions{
		Target:  *libraryCmdTarget,
		Prefix:  *libraryCmdPrefix,
		Workers: *libraryCmdWorkers,
	}
}

func DatabaseKeyFromFlags() string {
	return *databaseCmdKey
}
