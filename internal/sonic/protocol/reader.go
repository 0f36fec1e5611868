// Copyright 2026 The Sonic Authors.
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

package protocol

import (
	"bufio"
	"errors"
	"io"

	"sonic/internal/sonic/sonicerr"
)

// ErrBufferLineTooLong is returned by LineReader.ReadLine when a line
// exceeds the announced buffer size without a terminating \n.
var ErrBufferLineTooLong = sonicerr.Wire(sonicerr.CodeBufferLineTooLong, "")

// LineReader reads \n-terminated command lines off a connection,
// enforcing the buffer size announced in the STARTED banner (spec
// §4.I: "Maximum line length equals the announced buffer").
type LineReader struct {
	r      *bufio.Reader
	buffer int
}

// NewLineReader wraps r, rejecting any line longer than buffer bytes.
func NewLineReader(r io.Reader, buffer int) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, buffer+1), buffer: buffer}
}

// ReadLine returns the next line with its trailing \n stripped. EOF
// propagates unwrapped so callers can distinguish a clean disconnect
// from a protocol violation.
func (lr *LineReader) ReadLine() (string, error) {
	var line []byte
	for {
		frag, err := lr.r.ReadSlice('\n')
		line = append(line, frag...)
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			if len(line) > lr.buffer {
				lr.discardRestOfLine()
				return "", ErrBufferLineTooLong
			}
			continue
		}
		if errors.Is(err, io.EOF) && len(line) == 0 {
			return "", io.EOF
		}
		return "", err
	}

	line = line[:len(line)-1]
	if len(line) > 0 && line[len(line)-1] == '\r' {
		line = line[:len(line)-1]
	}
	if len(line) > lr.buffer {
		return "", ErrBufferLineTooLong
	}
	return string(line), nil
}

func (lr *LineReader) discardRestOfLine() {
	for {
		b, err := lr.r.ReadByte()
		if err != nil || b == '\n' {
			return
		}
	}
}
