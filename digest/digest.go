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

package digest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
	"golang.org/x/crypto/blake2b"
)

type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	Blake2b Algorithm = "blake2b"
)

var UnknownAlgorithm = errors.New("unknown digest algorithm")

func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case SHA256:
		return SHA256, nil
	case Blake2b:
		return Blake2b, nil
	}
	return "", UnknownAlgorithm
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case Blake2b:
		h, err := blake2b.New512(nil)
		if err != nil {
			panic(err)
		}
		return h
	}
	panic(UnknownAlgorithm)
}

// Digest is an algorithm-tagged content digest. The zero value means
// "no digest".
type Digest struct {
	algorithm Algorithm
	sum       []byte
}

func (d Digest) IsZero() bool {
	return len(d.sum) == 0
}

func (d Digest) Algorithm() Algorithm {
	return d.algorithm
}

func (d Digest) String() string {
	return string(d.algorithm) + ":" + hex.EncodeToString(d.sum)
}

func (d Digest) Equal(other Digest) bool {
	return d.algorithm == other.algorithm && bytes.Equal(d.sum, other.sum)
}

var invalidDigest = errors.New("invalid digest")

func Parse(value string) (Digest, error) {
	name, encoded, found := strings.Cut(value, ":")
	if !found {
		return Digest{}, invalidDigest
	}
	algorithm, err := ParseAlgorithm(name)
	if err != nil {
		return Digest{}, err
	}
	sum, err := hex.DecodeString(encoded)
	if err != nil || len(sum) == 0 {
		return Digest{}, invalidDigest
	}
	return Digest{algorithm: algorithm, sum: sum}, nil
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Digest) MarshalEasyJSON(w *jwriter.Writer) {
	w.String(d.String())
}

func (d *Digest) UnmarshalEasyJSON(l *jlexer.Lexer) {
	parsed, err := Parse(l.String())
	if err != nil {
		l.AddNonFatalError(err)
		return
	}
	*d = parsed
}

type MismatchError struct {
	expected Digest
	actual   Digest
}

func (e MismatchError) Error() string {
	return fmt.Sprintf("digest mismatch: expected=%s actual=%s", e.expected, e.actual)
}
