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

package manifest

import (
	"path/filepath"
	"strings"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"librarybackup/digest"
)

// Entry is one manifest row. Its presence means a verified upload of
// content matching Digest and Size previously reached the derived remote
// location for Path.
type Entry struct {
	Path     string
	Digest   digest.Digest
	Size     int64
	Archived bool
}

// NormalizePath converts a path relative to the source root into the
// canonical manifest form: slash-separated with a leading slash.
func NormalizePath(relPath string) string {
	p := filepath.ToSlash(relPath)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// The path is the row key in the files bucket; the stored value carries
// only the remaining columns.

func (e Entry) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"digest":`)
	e.Digest.MarshalEasyJSON(w)
	w.RawString(`,"size":`)
	w.Int64(e.Size)
	w.RawString(`,"archived":`)
	w.Bool(e.Archived)
	w.RawByte('}')
}

func (e *Entry) UnmarshalEasyJSON(l *jlexer.Lexer) {
	isTopLevel := l.IsStart()
	if l.IsNull() {
		l.Skip()
		return
	}
	l.Delim('{')
	for !l.IsDelim('}') {
		key := l.UnsafeFieldName(false)
		l.WantColon()
		if l.IsNull() {
			l.Skip()
			l.WantComma()
			continue
		}
		switch key {
		case "digest":
			e.Digest.UnmarshalEasyJSON(l)
		case "size":
			e.Size = l.Int64()
		case "archived":
			e.Archived = l.Bool()
		default:
			l.SkipRecursive()
		}
		l.WantComma()
	}
	l.Delim('}')
	if isTopLevel {
		l.Consumed()
	}
}
