package tabular

// text.go cleans delimited text before it reaches encoding/csv:
//
//   - a leading UTF-8 BOM, as written by Excel's "CSV UTF-8" export, is dropped
//   - invalid UTF-8 bytes become '?' so cells are always valid strings
//
// Both work on the stream so large exports are never held twice in memory.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// newTextReader wraps r with BOM removal and UTF-8 repair.
func newTextReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return &utf8Repairer{r: br}
}

// utf8Repairer replaces invalid UTF-8 bytes with '?'. A multi-byte sequence
// split across reads is carried over to the next call.
type utf8Repairer struct {
	r     io.Reader
	carry []byte // raw bytes of an incomplete trailing rune

	// Repaired output that did not fit a short caller buffer.
	pending []byte
	err     error
}

func (u *utf8Repairer) Read(p []byte) (int, error) {
	if len(u.pending) > 0 {
		n := copy(p, u.pending)
		u.pending = u.pending[n:]
		if len(u.pending) == 0 {
			return n, u.err
		}
		return n, nil
	}
	if u.err != nil {
		return 0, u.err
	}

	if len(p) < utf8.UTFMax {
		buf := make([]byte, utf8.UTFMax)
		n, err := u.fill(buf)
		if n == 0 {
			return 0, err
		}
		u.pending, u.err = buf[:n], err
		return u.Read(p)
	}
	return u.fill(p)
}

// fill reads into p, which must hold at least utf8.UTFMax bytes.
func (u *utf8Repairer) fill(p []byte) (int, error) {
	n := copy(p, u.carry)
	u.carry = u.carry[:0]

	m, err := u.r.Read(p[n:])
	n += m
	if n == 0 {
		return 0, err
	}
	return u.repair(p[:n], err == io.EOF), err
}

// repair rewrites data in place and returns the number of bytes ready for
// the caller. Replacing with a single byte keeps the output no longer than
// the input.
func (u *utf8Repairer) repair(data []byte, atEOF bool) int {
	w := 0
	for i := 0; i < len(data); {
		if data[i] < utf8.RuneSelf {
			data[w] = data[i]
			w++
			i++
			continue
		}
		if !atEOF && !utf8.FullRune(data[i:]) {
			u.carry = append(u.carry, data[i:]...)
			return w
		}
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			i++
			continue
		}
		copy(data[w:], data[i:i+size])
		w += size
		i += size
	}
	return w
}
