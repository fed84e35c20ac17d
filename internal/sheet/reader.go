package sheet

// reader.go cleans CSV input before encoding/csv sees it:
//
//   - bomSkippingReader drops a leading UTF-8 BOM written by Excel on Windows
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?' without buffering
//     the whole file
//
// Use cleanReader to apply both in the right order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type bomSkippingReader struct {
	r       *bufio.Reader
	checked bool
}

func newBOMSkippingReader(r io.Reader) *bomSkippingReader {
	return &bomSkippingReader{r: bufio.NewReader(r)}
}

func (b *bomSkippingReader) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		if head, _ := b.r.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
			_, _ = b.r.Discard(len(utf8BOM))
		}
	}
	return b.r.Read(p)
}

// utf8Sanitizer rewrites invalid bytes to '?'. A multi-byte rune split
// across two reads is carried over in pending.
type utf8Sanitizer struct {
	r       io.Reader
	pending []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{r: r, pending: make([]byte, 0, utf8.UTFMax)}
}

func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := copy(p, s.pending)
	s.pending = append(s.pending[:0], s.pending[offset:]...)

	var (
		n   int
		err error
	)
	if offset < len(p) {
		n, err = s.r.Read(p[offset:])
	}
	n += offset
	if n == 0 {
		return 0, err
	}

	if err != io.EOF && len(s.pending) == 0 {
		if tail := partialRuneLen(p[:n]); tail > 0 {
			s.pending = append(s.pending, p[n-tail:n]...)
			n -= tail
		}
	}

	return sanitize(p[:n]), err
}

// sanitize rewrites data in place and returns its new length. '?' is a
// single byte so the output never grows.
func sanitize(data []byte) int {
	if utf8.Valid(data) {
		return len(data)
	}

	w := 0
	for r := 0; r < len(data); {
		ru, size := utf8.DecodeRune(data[r:])
		if ru == utf8.RuneError && size == 1 {
			data[w] = '?'
			w++
			r++
			continue
		}
		copy(data[w:], data[r:r+size])
		w += size
		r += size
	}
	return w
}

// partialRuneLen reports how many trailing bytes start a multi-byte rune
// that is not complete yet.
func partialRuneLen(data []byte) int {
	for i := 1; i <= utf8.UTFMax-1 && i <= len(data); i++ {
		b := data[len(data)-i]
		if b < utf8.RuneSelf {
			return 0
		}
		if utf8.RuneStart(b) {
			if need := runeLen(b); need > i {
				return i
			}
			return 0
		}
	}
	return 0
}

func runeLen(b byte) int {
	switch {
	case b < 0xC0:
		return 1
	case b < 0xE0:
		return 2
	case b < 0xF0:
		return 3
	default:
		return 4
	}
}

func cleanReader(r io.Reader) io.Reader {
	return newUTF8Sanitizer(newBOMSkippingReader(r))
}
