package store

import (
	"time"

	"finledger/internal/ledger"
	"finledger/internal/ledgerview"
	"finledger/pkg/models"
	"github.com/shopspring/decimal"
)

// viewRow is one Master_Ledger_View row ready for a spreadsheet, with the
// row kind kept for styling.
type viewRow struct {
	kind   ledgerview.Kind
	status string
	values []interface{}
}

// buildView renders the unit's ledger view as spreadsheet values.
func buildView(unit string, set *models.RecordSet, asOf time.Time) []viewRow {
	rows := ledgerview.Generate(ledger.New(unit, set), asOf)
	out := make([]viewRow, 0, len(rows))
	for _, r := range rows {
		rec := r.Record()
		vr := viewRow{kind: r.Kind(), status: rec.Status}
		if r.Kind() != ledgerview.KindSpacer {
			vr.values = []interface{}{
				rec.Type,
				rec.Ref,
				formatStoredDate(rec.Date),
				rec.Description,
				numberOrBlank(rec.Debit),
				numberOrBlank(rec.Credit),
				numberOrBlank(rec.Balance),
				rec.Status,
			}
		} else {
			vr.values = make([]interface{}, len(ledgerview.Columns))
			for i := range vr.values {
				vr.values[i] = ""
			}
		}
		out = append(out, vr)
	}
	return out
}

func numberOrBlank(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return ""
	}
	return d.Decimal.InexactFloat64()
}

func viewHeader() []interface{} {
	out := make([]interface{}, len(ledgerview.Columns))
	for i, c := range ledgerview.Columns {
		out[i] = c
	}
	return out
}
