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

package backup

import (
	"fmt"
	"os"

	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"go.uber.org/zap/zapcore"

	"librarybackup/unixtime"
)

// FileError is one per-file failure. Per-file failures are data, not
// control flow: they never cross pipeline boundaries as errors.
type FileError struct {
	Path    string
	Stage   string
	Message string
	At      unixtime.Seconds
}

func (e FileError) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	w.RawString(`"path":`)
	w.String(e.Path)
	w.RawString(`,"stage":`)
	w.String(e.Stage)
	w.RawString(`,"message":`)
	w.String(e.Message)
	w.RawString(`,"at":`)
	e.At.MarshalEasyJSON(w)
	w.RawByte('}')
}

func (e *FileError) UnmarshalEasyJSON(l *jlexer.Lexer) {
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
		case "path":
			e.Path = l.String()
		case "stage":
			e.Stage = l.String()
		case "message":
			e.Message = l.String()
		case "at":
			e.At.UnmarshalEasyJSON(l)
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

func (e FileError) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("path", e.Path)
	enc.AddString("stage", e.Stage)
	enc.AddString("message", e.Message)
	return nil
}

type FileErrors []FileError

func (e FileErrors) Error() string {
	return fmt.Sprintf("%d files failed", len(e))
}

func (e FileErrors) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, fe := range e {
		if err := enc.AppendObject(fe); err != nil {
			return err
		}
	}
	return nil
}

// RunResult aggregates one backup run.
type RunResult struct {
	Discovered    int
	Uploaded      int
	Skipped       int
	UploadedBytes int64
	Errors        FileErrors
}

// Progressed reports whether at least one new file was durably backed up.
// It drives the process exit code for runs with per-file errors.
func (r RunResult) Progressed() bool {
	return r.Uploaded > 0
}

// WriteErrorReport writes one JSON object per failure to a durable report
// file and returns its path.
func (r RunResult) WriteErrorReport() (string, error) {
	file, err := os.CreateTemp("", "backup-errors-*.jsonl")
	if err != nil {
		return "", err
	}
	for _, fe := range r.Errors {
		if _, err := easyjson.MarshalToWriter(fe, file); err != nil {
			_ = file.Close()
			return "", err
		}
		if _, err := file.WriteString("\n"); err != nil {
			_ = file.Close()
			return "", err
		}
	}
	if err := file.Close(); err != nil {
		return "", err
	}
	return file.Name(), nil
}
