package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	titleLookback   = 200
	documentDateLen = 1000
	generalSection  = "General Agreement"
)

var (
	sowMarker    = regexp.MustCompile(`(?i)\b(?:scope\s+of\s+work|sow)\b(?:\s*\(sow\))?\s*[:\n]`)
	titleNumbers = regexp.MustCompile(`^[\d.\-)]+\s*`)
)

// ExtractQuotes splits an agreement into scope-of-work sections.
func ExtractQuotes(text string) []QuoteCandidate {
	return New().Quotes(text)
}

// Quotes splits an agreement into scope-of-work sections. Each marker starts a
// section that runs to the next marker; without markers the whole document is
// one "General Agreement" section.
func (e *Extractor) Quotes(text string) []QuoteCandidate {
	text = Normalize(text)

	docDate, ok := FindDate(prefix(text, documentDateLen))
	docDateDefaulted := !ok
	if !ok {
		docDate = e.today()
	}
	idPrefix := "QT-" + e.today().Format("0601")

	markers := sowMarker.FindAllStringIndex(text, -1)
	if len(markers) == 0 {
		c := QuoteCandidate{
			ID:      idPrefix + "-1",
			Title:   generalSection,
			Amount:  AmountOrZero(text),
			Date:    docDate,
			Content: strings.TrimSpace(text),
		}
		c.Defaults = append(c.Defaults, FieldTitle)
		if c.Amount.IsZero() {
			c.Defaults = append(c.Defaults, FieldAmount)
		}
		if docDateDefaulted {
			c.Defaults = append(c.Defaults, FieldDate)
		}
		e.reportDefaults("quote", c.Defaults)
		return []QuoteCandidate{c}
	}

	candidates := make([]QuoteCandidate, 0, len(markers))
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1][0]
		}
		content := text[m[1]:end]

		c := QuoteCandidate{
			ID:      fmt.Sprintf("%s-%d", idPrefix, i+1),
			Content: strings.TrimSpace(content),
		}

		c.Title = sectionTitle(suffixWindow(text, m[0], titleLookback))
		if c.Title == "" {
			c.Title = fmt.Sprintf("Project Section %d", i+1)
			c.Defaults = append(c.Defaults, FieldTitle)
		}

		amount, ok := FindAmount(content)
		c.Amount = amount.Value
		if !ok {
			c.Defaults = append(c.Defaults, FieldAmount)
		}

		if d, ok := FindDate(content); ok {
			c.Date = d
		} else {
			c.Date = docDate
			if docDateDefaulted {
				c.Defaults = append(c.Defaults, FieldDate)
			}
		}

		e.reportDefaults("quote", c.Defaults)
		candidates = append(candidates, c)
	}
	return candidates
}

// sectionTitle picks the last non-empty line before a marker, without leading numbering.
func sectionTitle(window string) string {
	lines := strings.Split(window, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		line = titleNumbers.ReplaceAllString(line, "")
		return strings.TrimSpace(strings.TrimRight(line, " -:–"))
	}
	return ""
}
