package ledgerview

import (
	"strings"

	"finledger/pkg/models"
	"github.com/shopspring/decimal"
)

// FormatWhole rounds to a whole number and groups thousands: -1234.5 -> "-1,235".
func FormatWhole(d decimal.Decimal) string {
	return groupThousands(d.Round(0).String())
}

// FormatMoney renders two decimals with grouped thousands.
func FormatMoney(d decimal.Decimal) string {
	return groupThousands(d.StringFixed(2))
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}

// Table renders rows as strings under Columns. Spacer rows stay blank.
func Table(rows []Row) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := r.Record()
		if r.Kind() == KindSpacer {
			out = append(out, make([]string, len(Columns)))
			continue
		}
		date := ""
		if !rec.Date.IsZero() {
			date = rec.Date.Format(models.DateLayout)
		}
		out = append(out, []string{
			rec.Type,
			rec.Ref,
			date,
			rec.Description,
			nullMoney(rec.Debit),
			nullMoney(rec.Credit),
			nullMoney(rec.Balance),
			rec.Status,
		})
	}
	return out
}

func nullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return FormatMoney(d.Decimal)
}
