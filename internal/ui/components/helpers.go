// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// wrapText wraps content to width terminal cells, breaking at spaces where
// possible and measuring wide characters correctly. Existing newlines are
// kept.
func wrapText(content string, width int) string {
	if width <= 0 {
		return content
	}

	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if runewidth.StringWidth(line) <= width {
			out = append(out, line)
			continue
		}
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	var out []string
	var cur strings.Builder
	curWidth := 0

	flush := func() {
		out = append(out, strings.TrimRight(cur.String(), " "))
		cur.Reset()
		curWidth = 0
	}

	for _, word := range strings.SplitAfter(line, " ") {
		w := runewidth.StringWidth(word)
		if curWidth > 0 && curWidth+w-trailingSpaces(word) > width {
			flush()
		}
		// Hard-break words longer than a whole line.
		for w > width {
			head := runewidth.Truncate(word, width-curWidth, "")
			if head == "" {
				if curWidth > 0 {
					flush()
					continue
				}
				_, size := utf8.DecodeRuneInString(word)
				head = word[:size]
			}
			cur.WriteString(head)
			flush()
			word = word[len(head):]
			w = runewidth.StringWidth(word)
		}
		cur.WriteString(word)
		curWidth += w
	}
	if cur.Len() > 0 || len(out) == 0 {
		flush()
	}
	return out
}

func trailingSpaces(s string) int {
	return len(s) - len(strings.TrimRight(s, " "))
}
