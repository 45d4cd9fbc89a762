package core

// streaming.go provides the reader chain used for delimited-text uploads.
//
// Spreadsheet programs export CSV in several encodings: UTF-8 with or without
// a BOM, and UTF-16 ("Unicode Text") with a BOM. DecodeText detects the BOM,
// transcodes to UTF-8, and replaces any remaining invalid bytes so the CSV
// parser and the cleaner only ever see valid UTF-8.

import (
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText wraps r so it yields valid UTF-8 with any byte-order mark removed.
// Input without a BOM passes through untouched apart from sanitizing.
func DecodeText(r io.Reader) io.Reader {
	decoder := unicode.BOMOverride(transform.Nop)
	return NewUTF8Sanitizer(transform.NewReader(r, decoder))
}

// UTF8Sanitizer wraps an io.Reader and replaces invalid UTF-8 bytes with '?'
// on the fly. Multi-byte sequences split across reads are carried over.
type UTF8Sanitizer struct {
	reader io.Reader

	// bytes from the previous read that may start a multi-byte sequence
	pending []byte
}

// NewUTF8Sanitizer creates a new streaming UTF-8 sanitizer.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{
		reader:  r,
		pending: make([]byte, 0, utf8.UTFMax),
	}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	offset := 0
	if len(s.pending) > 0 {
		offset = copy(p, s.pending)
		s.pending = s.pending[:0]
	}

	n, err := s.reader.Read(p[offset:])
	n += offset

	if n == 0 {
		return 0, err
	}

	if isASCII(p[:n]) {
		return n, err
	}

	return s.sanitize(p[:n], err == io.EOF), err
}

func isASCII(data []byte) bool {
	for _, b := range data {
		if b >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// sanitize rewrites data in place and returns the number of bytes to hand
// to the caller. Unless atEOF, an incomplete trailing sequence is held back.
func (s *UTF8Sanitizer) sanitize(data []byte, atEOF bool) int {
	if utf8.Valid(data) {
		return len(data)
	}

	write := 0
	for read := 0; read < len(data); {
		if !atEOF && !utf8.FullRune(data[read:]) {
			s.pending = append(s.pending, data[read:]...)
			return write
		}

		r, size := utf8.DecodeRune(data[read:])
		if r == utf8.RuneError && size == 1 {
			data[write] = '?'
			write++
			read++
			continue
		}

		copy(data[write:], data[read:read+size])
		write += size
		read += size
	}

	return write
}
