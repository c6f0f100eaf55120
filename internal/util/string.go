// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package util

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// ContainsMarkup reports whether a line carries markup tags. Markup lines are
// rendered whole instead of being revealed character by character, otherwise
// the animation would display raw tags.
func ContainsMarkup(s string) bool {
	return tagPattern.MatchString(s)
}

// StripTags removes markup tags from a line, leaving the plain text that the
// character animation reveals.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// TruncateWidth shortens s to fit within width terminal cells, appending an
// ellipsis when it had to cut. Width-aware so emoji and CJK don't overflow
// the admin panel columns.
func TruncateWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// FirstLine returns s up to the first newline, for one-line previews.
func FirstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
