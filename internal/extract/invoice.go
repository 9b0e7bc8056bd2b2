package extract

import (
	"regexp"
	"strings"
)

// invoiceNumberPatterns are tried in order; the first token containing a digit wins.
var invoiceNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)invoice\s*(?:no\.?|number|#)\s*[:.#]?\s*([A-Z0-9][A-Z0-9\-/]{4,})`),
	regexp.MustCompile(`(?i)\bno\b\.?\s*[:.#]?\s*([A-Z0-9][A-Z0-9\-/]{4,})`),
}

var (
	numericCell  = regexp.MustCompile(`^[\d,.\s]+$`)
	currencyCell = regexp.MustCompile(`^\s*(?:[A-Za-z]{2,3}\.?|` + currencySymbols + `)?\s*\d[\d,]*(?:\.\d+)?\s*(?:[A-Za-z]{3})?\s*$`)
	headerLabels = []string{"Description", "Item"}
)

const generalServices = "General Services"

// ExtractInvoice reads an invoice from its first-page text and every detected table.
func ExtractInvoice(text string, tables [][][]string) InvoiceCandidate {
	return New().Invoice(text, tables)
}

// Invoice reads the header from the first page and line items from tables.
// When no item qualifies, a single "General Services" item carries the total.
func (e *Extractor) Invoice(text string, tables [][][]string) InvoiceCandidate {
	text = Normalize(text)

	c := InvoiceCandidate{InvoiceNo: findInvoiceNumber(text)}
	if c.InvoiceNo == "" {
		c.InvoiceNo = DraftInvoiceNo
		c.Defaults = append(c.Defaults, FieldID)
	}

	total, ok := FindAmount(text)
	c.Total = total.Value
	if !ok {
		c.Defaults = append(c.Defaults, FieldAmount)
	}

	if d, ok := FindDate(text); ok {
		c.Date = d
	} else {
		c.Date = e.today()
		c.Defaults = append(c.Defaults, FieldDate)
	}

	for _, table := range tables {
		for _, row := range table {
			if item, ok := tableItem(row); ok {
				c.Items = append(c.Items, item)
			}
		}
	}
	if len(c.Items) == 0 {
		c.Items = []InvoiceItem{{Description: generalServices, Amount: c.Total}}
		c.Defaults = append(c.Defaults, FieldItems)
	}

	e.reportDefaults("invoice", c.Defaults)
	return c
}

func findInvoiceNumber(text string) string {
	for _, re := range invoiceNumberPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			token := strings.Trim(m[1], "-/")
			if len(token) >= 5 && strings.ContainsAny(token, "0123456789") {
				return strings.ToUpper(token)
			}
		}
	}
	return ""
}

// tableItem turns one table row into a line item. The description is the first
// textual cell and the amount comes from the last currency-shaped cell.
func tableItem(row []string) (InvoiceItem, bool) {
	var description, amountCell string
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		switch {
		case currencyCell.MatchString(cell):
			amountCell = cell
		case description == "" && isTextual(cell):
			description = strings.Join(strings.Fields(cell), " ")
		}
	}
	if description == "" || amountCell == "" {
		return InvoiceItem{}, false
	}
	for _, label := range headerLabels {
		if strings.Contains(description, label) {
			return InvoiceItem{}, false
		}
	}
	amount, ok := ParseAmount(amountCell)
	if !ok {
		return InvoiceItem{}, false
	}
	return InvoiceItem{Description: description, Amount: amount}, true
}

func isTextual(cell string) bool {
	return len(cell) > 5 && !numericCell.MatchString(cell)
}
