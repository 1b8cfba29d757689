// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
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
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// putInt writes v as NUL-terminated decimal ASCII at the start of dst and
// returns the number of bytes written.
func putInt(dst []byte, v int) int {
	var tmp [24]byte
	digits := strconv.AppendInt(tmp[:0], int64(v), 10)
	n := copy(dst, digits)
	dst[n] = 0
	return n + 1
}

// parseDecimal reads a fixed-width numeric field. Leading spaces and zeros
// are skipped and parsing stops at the first non-digit, which accepts both
// right-aligned padded fields and left-aligned NUL-terminated ones.
func parseDecimal(field []byte) (int, error) {
	i := 0
	for i < len(field) && field[i] == ' ' {
		i++
	}
	start := i
	for i < len(field) && field[i] >= '0' && field[i] <= '9' {
		i++
	}
	if i == start {
		return 0, fmt.Errorf("no digits in field %q", field)
	}
	return strconv.Atoi(string(field[start:i]))
}

// formatDecimal renders v right-aligned in width bytes, padded with '0'.
func formatDecimal(dst []byte, v int) error {
	digits := strconv.Itoa(v)
	if v < 0 || len(digits) > len(dst) {
		return fmt.Errorf("value %d does not fit %d bytes", v, len(dst))
	}
	pad := len(dst) - len(digits)
	for i := 0; i < pad; i++ {
		dst[i] = '0'
	}
	copy(dst[pad:], digits)
	return nil
}

type byteReader struct {
	buf []byte
	pos int
}

func newByteReader(b []byte) *byteReader {
	return &byteReader{buf: b}
}

func (r *byteReader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *byteReader) read(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("insufficient bytes: need %d have %d", n, r.remaining())
	}
	start := r.pos
	r.pos += n
	return r.buf[start:r.pos], nil
}

// Int reads a NUL-terminated decimal value and skips the terminator.
func (r *byteReader) Int() (int, error) {
	end := bytes.IndexByte(r.buf[r.pos:], 0)
	if end < 0 {
		return 0, fmt.Errorf("unterminated integer at offset %d", r.pos)
	}
	raw := r.buf[r.pos : r.pos+end]
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("integer at offset %d: %w", r.pos, err)
	}
	r.pos += end + 1
	return v, nil
}

// Field reads a fixed-width numeric field.
func (r *byteReader) Field(width int) (int, error) {
	b, err := r.read(width)
	if err != nil {
		return 0, err
	}
	return parseDecimal(b)
}

// RecordWriter appends fields to a record payload. It is the encoding half
// of the record codec; the sequence of writes must match the sequence of
// reads performed by the peer's RecordReader.
type RecordWriter struct {
	buf []byte
}

// NewRecordWriter returns an empty writer.
func NewRecordWriter() *RecordWriter {
	return &RecordWriter{buf: make([]byte, 0, 64)}
}

// Text appends the bytes of s followed by a NUL terminator.
func (w *RecordWriter) Text(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// Int appends v as decimal ASCII followed by a NUL terminator.
func (w *RecordWriter) Int(v int) {
	w.buf = strconv.AppendInt(w.buf, int64(v), 10)
	w.buf = append(w.buf, 0)
}

// Byte appends one raw byte.
func (w *RecordWriter) Byte(b byte) {
	w.buf = append(w.buf, b)
}

// ByteArray appends p unterminated.
func (w *RecordWriter) ByteArray(p []byte) {
	w.buf = append(w.buf, p...)
}

// Bool appends a single 1 or 0 byte.
func (w *RecordWriter) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// Len returns the number of bytes written so far.
func (w *RecordWriter) Len() int {
	return len(w.buf)
}

// Bytes returns the encoded record.
func (w *RecordWriter) Bytes() []byte {
	return w.buf
}

// RecordReader consumes fields from a record payload with a forward cursor.
//
// Reads never fail: a malformed or truncated field yields the zero value
// and the cursor still advances past whatever was scanned.
type RecordReader struct {
	buf []byte
	pos int
}

// NewRecordReader returns a reader positioned at the start of b.
func NewRecordReader(b []byte) *RecordReader {
	return &RecordReader{buf: b}
}

// Text scans to the next NUL, returns the span and skips the terminator.
func (r *RecordReader) Text() string {
	if r.pos >= len(r.buf) {
		r.pos++
		return ""
	}
	rest := r.buf[r.pos:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		end = len(rest)
	}
	s := string(rest[:end])
	r.pos += end + 1
	return s
}

// Int reads a NUL-terminated decimal value. Unparsable text yields 0.
func (r *RecordReader) Int() int {
	v, err := strconv.Atoi(strings.TrimSpace(r.Text()))
	if err != nil {
		return 0
	}
	return v
}

// Byte reads exactly one byte, or 0 past the end of the record.
func (r *RecordReader) Byte() byte {
	if r.pos >= len(r.buf) {
		r.pos++
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

// Bool reads one byte and reports whether it is non-zero.
func (r *RecordReader) Bool() bool {
	return r.Byte() != 0
}

// Rest returns the unread bytes and moves the cursor to the end.
func (r *RecordReader) Rest() []byte {
	if r.pos >= len(r.buf) {
		return nil
	}
	out := r.buf[r.pos:]
	r.pos = len(r.buf)
	return out
}

// Remaining reports how many bytes are left to read.
func (r *RecordReader) Remaining() int {
	if r.pos >= len(r.buf) {
		return 0
	}
	return len(r.buf) - r.pos
}

// Len returns the full record length.
func (r *RecordReader) Len() int {
	return len(r.buf)
}
