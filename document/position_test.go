package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func pos(line, char uint32) protocol.Position {
	return protocol.Position{Line: line, Character: char}
}

func TestOffsetAt(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want int
	}{
		{"start", "hello", pos(0, 0), 0},
		{"middle of line", "hello", pos(0, 3), 3},
		{"end of line", "hello", pos(0, 5), 5},
		{"past end of line clamps", "hello\nworld", pos(0, 99), 5},
		{"second line", "hello\nworld", pos(1, 2), 8},
		{"line past end", "hello\nworld", pos(7, 0), 11},
		{"crlf excluded from line", "ab\r\ncd", pos(0, 10), 2},
		{"after crlf", "ab\r\ncd", pos(1, 1), 5},
		{"multibyte rune", "héllo", pos(0, 2), 3},
		{"astral rune counts two units", "a😀b", pos(0, 3), 5},
		{"inside surrogate pair", "a😀b", pos(0, 2), 1},
		{"empty text", "", pos(0, 4), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OffsetAt(tt.text, tt.pos))
		})
	}
}

func TestPositionAt(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		offset int
		want   protocol.Position
	}{
		{"start", "hello", 0, pos(0, 0)},
		{"end", "hello", 5, pos(0, 5)},
		{"next line", "hello\nworld", 8, pos(1, 2)},
		{"clamped negative", "hello", -4, pos(0, 0)},
		{"clamped past end", "hi\nyo", 40, pos(1, 2)},
		{"astral rune", "a😀b", 5, pos(0, 3)},
		{"mid rune backs up", "héllo", 2, pos(0, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PositionAt(tt.text, tt.offset))
		})
	}
}

func TestOffsetPositionRoundTrip(t *testing.T) {
	text := "# Notes\n\nping @alice 😀 about ~bug\r\nand %\"Release 1.0\""
	for offset := 0; offset <= len(text); offset++ {
		p := PositionAt(text, offset)
		back := OffsetAt(text, p)
		assert.LessOrEqual(t, back, offset, "offset %d", offset)
	}
}
