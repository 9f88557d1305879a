// Package trigger finds the GitLab reference being typed at a cursor.
//
// Detection is a backward walk over the cursor's line: it stops at
// whitespace or at the nearest unescaped trigger character (@ % ~ /).
package trigger

import (
	"strings"

	"github.com/teranos/gitlab-ls/resource"
)

// Context describes the reference under the cursor.
type Context struct {
	Kind resource.Kind
	// Offset is the byte offset of the trigger character.
	Offset int
	// Cursor is the byte offset the prefix ends at.
	Cursor int
	// Prefix is the text between the trigger character and the cursor.
	Prefix string
	// Quoted is set when the prefix opens a quoted name, e.g. ~"Needs.
	Quoted bool
}

// Filter is the prefix without quoting, used for matching.
func (c Context) Filter() string {
	return strings.Trim(c.Prefix, `"`)
}

// ReplaceStart is the byte offset where accepted text begins: just after the trigger.
func (c Context) ReplaceStart() int {
	return c.Offset + 1
}

// Detect returns the trigger context ending at cursor, a byte offset into text.
func Detect(text string, cursor int) (Context, bool) {
	if cursor <= 0 || cursor > len(text) {
		return Context{}, false
	}

	lineStart := strings.LastIndexByte(text[:cursor], '\n') + 1
	line := text[lineStart:cursor]

	for i := len(line) - 1; i >= 0; i-- {
		c := line[i]
		if isSpace(c) {
			return Context{}, false
		}
		kind, ok := resource.KindForTrigger(c)
		if !ok {
			continue
		}
		// an odd run of backslashes escapes the trigger, an even one is literal
		backslashes := backslashesBefore(line, i)
		if backslashes%2 == 1 {
			continue
		}
		if backslashes == 0 && i > 0 && !isBoundary(line[i-1]) {
			return Context{}, false
		}
		// quick actions are only recognised at the very start of a line
		if kind == resource.KindQuickAction && i != 0 {
			return Context{}, false
		}
		if inCodeSpan(line[:i]) || inFencedBlock(text[:lineStart]) {
			return Context{}, false
		}

		prefix := line[i+1:]
		return Context{
			Kind:   kind,
			Offset: lineStart + i,
			Cursor: cursor,
			Prefix: prefix,
			Quoted: strings.HasPrefix(prefix, `"`),
		}, true
	}
	return Context{}, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\v' || c == '\f'
}

// isBoundary reports whether c may directly precede a trigger character.
func isBoundary(c byte) bool {
	if isSpace(c) {
		return true
	}
	return strings.IndexByte("([{\"'`*_,;:!|>", c) >= 0
}

func backslashesBefore(line string, i int) int {
	n := 0
	for i > 0 && line[i-1] == '\\' {
		n++
		i--
	}
	return n
}

// inCodeSpan reports whether an inline code span is open at the end of before.
// Backslashes escape backticks outside a span only; inside one they are literal.
func inCodeSpan(before string) bool {
	open := 0
	for i := 0; i < len(before); {
		if before[i] == '\\' && open == 0 {
			i += 2
			continue
		}
		if before[i] != '`' {
			i++
			continue
		}
		j := i
		for j < len(before) && before[j] == '`' {
			j++
		}
		run := j - i
		switch {
		case open == 0:
			open = run
		case open == run:
			open = 0
		}
		i = j
	}
	return open > 0
}

// inFencedBlock reports whether the lines in before leave a ``` or ~~~ fence open.
func inFencedBlock(before string) bool {
	var fence byte
	fenceLen := 0
	for _, line := range strings.Split(before, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		if len(line)-len(trimmed) > 3 || len(trimmed) < 3 {
			continue
		}
		c := trimmed[0]
		if c != '`' && c != '~' {
			continue
		}
		n := 0
		for n < len(trimmed) && trimmed[n] == c {
			n++
		}
		if n < 3 {
			continue
		}
		switch {
		case fence == 0:
			fence, fenceLen = c, n
		case c == fence && n >= fenceLen && strings.TrimSpace(trimmed[n:]) == "":
			fence, fenceLen = 0, 0
		}
	}
	return fence != 0
}
