// SPDX-License-Identifier: GPL-3.0-or-later

// Package nbuf implements a fixed-capacity byte buffer for non-blocking I/O.
//
// A [*Buffer] never grows beyond the capacity it was created with. It can be
// filled from a non-blocking source ([Buffer.Fill]), scanned for complete
// messages ([Buffer.GetMsg]), and drained to a non-blocking sink
// ([Buffer.Drain]). Sources and sinks signal that they cannot make progress
// by returning [ErrWouldBlock].
package nbuf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrWouldBlock is returned by non-blocking sources and sinks that cannot
// make progress without waiting.
var ErrWouldBlock = errors.New("nbuf: operation would block")

// ErrFull indicates that a write would exceed the buffer capacity.
var ErrFull = errors.New("nbuf: buffer full")

// Buffer is a fixed-capacity byte buffer.
//
// The zero value is not ready to use; construct using [New].
type Buffer struct {
	// data holds size bytes; data[r:w] is the unread region.
	data []byte
	r, w int
}

// New returns a new [*Buffer] with the given capacity.
func New(size int) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

// Len returns the number of unread bytes.
func (b *Buffer) Len() int {
	return b.w - b.r
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Full returns whether the unread bytes occupy the whole capacity.
func (b *Buffer) Full() bool {
	return b.Len() >= b.Cap()
}

// Bytes returns the unread bytes. The slice aliases the buffer storage and
// is only valid until the next mutating call.
func (b *Buffer) Bytes() []byte {
	return b.data[b.r:b.w]
}

// Clear discards all the buffered bytes.
func (b *Buffer) Clear() {
	b.r, b.w = 0, 0
}

// Release drops the underlying storage. The buffer has zero
// capacity afterwards and every write fails with [ErrFull].
func (b *Buffer) Release() {
	b.data = nil
	b.r, b.w = 0, 0
}

// compact moves the unread bytes to the start of the storage.
func (b *Buffer) compact() {
	if b.r > 0 {
		b.w = copy(b.data, b.data[b.r:b.w])
		b.r = 0
	}
}

// Write implements [io.Writer].
//
// Either all of p is appended or, when p does not fit, nothing is
// appended and the error is [ErrFull].
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.Cap()-b.Len() {
		return 0, ErrFull
	}
	if len(p) > len(b.data)-b.w {
		b.compact()
	}
	b.w += copy(b.data[b.w:], p)
	return len(p), nil
}

// WriteString is like [Buffer.Write] but takes a string.
func (b *Buffer) WriteString(s string) (int, error) {
	if len(s) > b.Cap()-b.Len() {
		return 0, ErrFull
	}
	if len(s) > len(b.data)-b.w {
		b.compact()
	}
	b.w += copy(b.data[b.w:], s)
	return len(s), nil
}

// Printf formats according to a format specifier and appends the result.
//
// The returned count is the length of the formatted text, which exceeds
// the available room when the error is [ErrFull].
func (b *Buffer) Printf(format string, args ...any) (int, error) {
	text := fmt.Sprintf(format, args...)
	if _, err := b.WriteString(text); err != nil {
		return len(text), err
	}
	return len(text), nil
}

// Fill reads from r until r would block, reports EOF, fails, or the
// buffer becomes full.
//
// It returns the number of bytes read, whether EOF was observed, and any
// error other than [ErrWouldBlock] and [io.EOF].
func (b *Buffer) Fill(r io.Reader) (n int, eof bool, err error) {
	b.compact()
	for b.w < len(b.data) {
		count, rerr := r.Read(b.data[b.w:])
		b.w += count
		n += count
		switch {
		case errors.Is(rerr, ErrWouldBlock):
			return n, false, nil
		case errors.Is(rerr, io.EOF):
			return n, true, nil
		case rerr != nil:
			return n, false, rerr
		case count == 0:
			return n, false, nil
		}
	}
	return n, false, nil
}

var (
	crlfTerminator = []byte("\r\n\r\n")
	lfTerminator   = []byte("\n\n")
)

// GetMsg extracts the first message terminated by an empty line.
//
// The returned message excludes the terminator and aliases the buffer
// storage until the next mutating call. When no complete message is
// buffered, it returns false and leaves the buffer untouched.
func (b *Buffer) GetMsg() ([]byte, bool) {
	unread := b.data[b.r:b.w]
	end, skip := -1, 0
	if idx := bytes.Index(unread, crlfTerminator); idx >= 0 {
		end, skip = idx, len(crlfTerminator)
	}
	if idx := bytes.Index(unread, lfTerminator); idx >= 0 && (end < 0 || idx < end) {
		end, skip = idx, len(lfTerminator)
	}
	if end < 0 {
		return nil, false
	}
	msg := unread[:end]
	b.r += end + skip
	return msg, true
}

// Drain writes the buffered bytes to w, resuming where a previous call
// stopped.
//
// It returns true once every byte has been written. When w would block,
// it returns false and a nil error; the remaining bytes are retained.
func (b *Buffer) Drain(w io.Writer) (bool, error) {
	for b.r < b.w {
		count, err := w.Write(b.data[b.r:b.w])
		b.r += count
		switch {
		case errors.Is(err, ErrWouldBlock):
			return false, nil
		case err != nil:
			return false, err
		case count == 0:
			return false, nil
		}
	}
	b.Clear()
	return true, nil
}
