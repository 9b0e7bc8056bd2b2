package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	currencySymbols = `[$£€¥৳]`
	currencyCodes   = `(?:USD|EUR|GBP|BDT|INR|JPY|CNY|AUD|CAD|SGD|AED|CHF|SAR|MYR|PKR)`
	amountToken     = `(\d[\d,]*(?:\.\d{1,2})?)`
)

// AmountRule is one step of the currency heuristic. Rules are tried in order
// and the first one that finds a positive amount wins.
type AmountRule struct {
	Name string
	Find func(text string) (decimal.Decimal, bool)
}

// AmountRules is the precedence order: label-anchored, then marker-anchored,
// then the largest amount anywhere in the text.
var AmountRules = []AmountRule{
	{Name: "label", Find: labelAnchoredAmount},
	{Name: "marker", Find: markerAnchoredAmount},
	{Name: "maximum", Find: maximumAmount},
}

// totalLabels in priority order. Each pattern stays on one line.
var totalLabels = []*regexp.Regexp{
	labelPattern(`grand\s+total`),
	labelPattern(`balance\s+due`),
	labelPattern(`amount\s+due`),
	labelPattern(`total\s+amount`),
	labelPattern(`total`),
}

var (
	markedAmount = regexp.MustCompile(`(?:\b` + currencyCodes + `|` + currencySymbols + `)\s?` + amountToken)
	anyAmount    = regexp.MustCompile(amountToken)
	lineAmount   = regexp.MustCompile(`(?i)((?:\b` + currencyCodes + `|` + currencySymbols + `)\s?)?` + amountToken)
)

// labelPattern captures the rest of the line after the label.
func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + label + `\b([^\n]*)`)
}

// AmountMatch is the outcome of the currency heuristic.
type AmountMatch struct {
	Value decimal.Decimal
	Rule  string
}

// FindAmount applies AmountRules in order and reports the first positive match.
func FindAmount(text string) (AmountMatch, bool) {
	for _, rule := range AmountRules {
		if v, ok := rule.Find(text); ok {
			return AmountMatch{Value: v, Rule: rule.Name}, true
		}
	}
	return AmountMatch{Value: decimal.Zero}, false
}

// AmountOrZero returns the heuristic amount or zero.
func AmountOrZero(text string) decimal.Decimal {
	m, _ := FindAmount(text)
	return m.Value
}

// labelAnchoredAmount reads the last line carrying the highest-priority total
// label present in the text and picks the amount on it.
func labelAnchoredAmount(text string) (decimal.Decimal, bool) {
	for _, re := range totalLabels {
		matches := re.FindAllStringSubmatch(text, -1)
		for i := len(matches) - 1; i >= 0; i-- {
			if v, ok := amountOnLine(matches[i][1]); ok {
				return v, true
			}
		}
	}
	return decimal.Zero, false
}

// amountOnLine picks the last currency-marked amount on the line, else the
// last one with decimals, else the last plain number. Percentages never count.
func amountOnLine(line string) (decimal.Decimal, bool) {
	var marked, decimals, plain []decimal.Decimal
	for _, idx := range lineAmount.FindAllStringSubmatchIndex(line, -1) {
		if strings.HasPrefix(strings.TrimLeft(line[idx[1]:], " "), "%") {
			continue
		}
		token := line[idx[4]:idx[5]]
		v, ok := ParseAmount(token)
		if !ok {
			continue
		}
		switch {
		case idx[2] >= 0:
			marked = append(marked, v)
		case strings.Contains(token, "."):
			decimals = append(decimals, v)
		default:
			plain = append(plain, v)
		}
	}
	for _, found := range [][]decimal.Decimal{marked, decimals, plain} {
		if len(found) > 0 {
			return found[len(found)-1], true
		}
	}
	return decimal.Zero, false
}

func markerAnchoredAmount(text string) (decimal.Decimal, bool) {
	return maxOf(markedAmount.FindAllStringSubmatch(text, -1))
}

func maximumAmount(text string) (decimal.Decimal, bool) {
	return maxOf(anyAmount.FindAllStringSubmatch(text, -1))
}

func maxOf(matches [][]string) (decimal.Decimal, bool) {
	best, found := decimal.Zero, false
	for _, m := range matches {
		v, ok := ParseAmount(m[1])
		if !ok {
			continue
		}
		if !found || v.GreaterThan(best) {
			best, found = v, true
		}
	}
	return best, found
}

// ParseAmount strips everything except digits and dots and parses the rest.
// Non-positive and unparseable values are rejected.
func ParseAmount(s string) (decimal.Decimal, bool) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := strings.Trim(b.String(), ".")
	if cleaned == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil || !v.IsPositive() {
		return decimal.Zero, false
	}
	return v, true
}
