package document

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// OffsetAt converts a protocol position to a byte offset in text.
// Characters are counted in UTF-16 code units. A line past the end of the
// text maps to len(text); a character past the end of its line maps to the
// line end (before any "\r\n").
func OffsetAt(text string, pos protocol.Position) int {
	start := 0
	for line := protocol.UInteger(0); line < pos.Line; line++ {
		i := strings.IndexByte(text[start:], '\n')
		if i < 0 {
			return len(text)
		}
		start += i + 1
	}

	end := lineEnd(text, start)
	units := protocol.UInteger(0)
	for offset := start; offset < end; {
		if units >= pos.Character {
			return offset
		}
		r, size := utf8.DecodeRuneInString(text[offset:])
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		if units+protocol.UInteger(n) > pos.Character {
			// position falls inside a surrogate pair
			return offset
		}
		units += protocol.UInteger(n)
		offset += size
	}
	return end
}

// PositionAt converts a byte offset to a protocol position. Offsets are
// clamped to the text and moved back to the start of a rune if needed.
func PositionAt(text string, offset int) protocol.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}
	for offset > 0 && offset < len(text) && !utf8.RuneStart(text[offset]) {
		offset--
	}

	line := strings.Count(text[:offset], "\n")
	lineStart := strings.LastIndexByte(text[:offset], '\n') + 1

	units := 0
	for _, r := range text[lineStart:offset] {
		n := utf16.RuneLen(r)
		if n < 0 {
			n = 1
		}
		units += n
	}
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(units)}
}

// lineEnd returns the offset of the terminator of the line starting at start.
func lineEnd(text string, start int) int {
	end := len(text)
	if i := strings.IndexByte(text[start:], '\n'); i >= 0 {
		end = start + i
	}
	if end > start && text[end-1] == '\r' {
		end--
	}
	return end
}
