// Package extract turns raw document text into candidate ledger records.
//
// Every extractor is best-effort: it never fails, and any field it could not
// find is filled with a safe default and listed in the candidate's Defaults.
package extract

import (
	"regexp"
	"strings"
)

var hyphenBreak = regexp.MustCompile(`(\w)-\n(\w)`)

// Normalize cleans extracted text: full-width colons become ':', non-breaking
// spaces become ' ' and words hyphenated across a line break are merged.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "：", ":")
	text = strings.ReplaceAll(text, " ", " ")
	return hyphenBreak.ReplaceAllString(text, "$1$2")
}

// prefix returns at most n bytes from the start of s without splitting a rune.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// suffixWindow returns at most n bytes of s ending at end without splitting a rune.
func suffixWindow(s string, end, n int) string {
	start := end - n
	if start < 0 {
		start = 0
	}
	for start < end && !isRuneStart(s[start]) {
		start++
	}
	return s[start:end]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
