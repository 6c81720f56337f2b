// Package stream turns the model server's raw response bytes into parsed
// protocol frames. The decoder and parser are pure and synchronous; the
// client drives them per chunk.
package stream

import (
	"strings"
	"unicode/utf8"
)

// LineBuffer reassembles raw byte chunks into complete, non-empty text lines.
// Chunks may arrive at arbitrary boundaries, including mid-rune; bytes of an
// incomplete trailing rune are held back until the next chunk so characters
// are never corrupted.
//
// The zero value is ready to use.
type LineBuffer struct {
	tail    []byte // bytes of a rune split across chunk boundaries
	pending string // decoded text after the last line terminator
}

// Append decodes chunk, appends it to the pending buffer, and returns all
// complete lines. The segment after the last terminator stays buffered.
// Lines are trimmed; lines that are empty after trimming are dropped.
func (b *LineBuffer) Append(chunk []byte) []string {
	data := chunk
	if len(b.tail) > 0 {
		data = append(b.tail, chunk...)
		b.tail = nil
	}
	if n := incompleteTail(data); n > 0 {
		b.tail = append([]byte(nil), data[len(data)-n:]...)
		data = data[:len(data)-n]
	}
	if len(data) == 0 {
		return nil
	}

	text := b.pending + string(data)
	segments := strings.Split(text, "\n")
	b.pending = segments[len(segments)-1]

	var lines []string
	for _, seg := range segments[:len(segments)-1] {
		if line := strings.TrimSpace(seg); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Flush returns whatever remains buffered and resets the decoder. Used at
// stream end to recover a final line lacking a trailing terminator.
func (b *LineBuffer) Flush() string {
	text := b.pending + string(b.tail)
	b.pending = ""
	b.tail = nil
	return strings.TrimSpace(text)
}

// incompleteTail reports how many trailing bytes of p form the start of a
// rune whose remaining bytes have not arrived yet. Returns 0 when p ends on
// a rune boundary (or is invalid UTF-8, which is passed through as-is).
func incompleteTail(p []byte) int {
	for i := 1; i <= utf8.UTFMax && i <= len(p); i++ {
		c := p[len(p)-i]
		if utf8.RuneStart(c) {
			if utf8.FullRune(p[len(p)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}
