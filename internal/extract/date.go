package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	monthName   = `(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?`
	datePattern = `(?:\d{4}[./-]\d{1,2}[./-]\d{1,2}` +
		`|\d{1,2}[./-]\d{1,2}[./-]\d{2,4}` +
		`|\d{1,2}(?:st|nd|rd|th)?\s+` + monthName + `,?\s+\d{4}` +
		`|` + monthName + `\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})`
)

var (
	labeledDate = regexp.MustCompile(`(?i)\b(?:date|dated|on)\b\s*[:.]?\s*(` + datePattern + `)`)
	anyDate     = regexp.MustCompile(`(?i)\b` + datePattern)
	numericDate = regexp.MustCompile(`^\d{1,4}[./-]\d{1,2}[./-]\d{1,4}$`)
	ordinal     = regexp.MustCompile(`(?i)(\d)(?:st|nd|rd|th)\b`)
)

// FindDate returns the first labelled date in text, else the first unlabelled one.
// Ambiguous numeric dates are read day first.
func FindDate(text string) (time.Time, bool) {
	for _, m := range labeledDate.FindAllStringSubmatch(text, -1) {
		if t, ok := ParseDate(m[1]); ok {
			return t, true
		}
	}
	for _, m := range anyDate.FindAllString(text, -1) {
		if t, ok := ParseDate(m); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDate parses one date token into a calendar date at UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(ordinal.ReplaceAllString(s, "$1"))
	if s == "" {
		return time.Time{}, false
	}
	if numericDate.MatchString(s) {
		s = strings.NewReplacer(".", "/", "-", "/").Replace(s)
	}
	t, err := dateparse.ParseIn(s, time.UTC,
		dateparse.PreferMonthFirst(false),
		dateparse.RetryAmbiguousDateWithSwap(true),
	)
	if err != nil || t.Year() < 1900 {
		return time.Time{}, false
	}
	return truncateDay(t), true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
