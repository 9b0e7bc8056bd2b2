package allocation

import (
	"fmt"
	"strings"
	"time"

	"finledger/internal/ledger"
	"finledger/pkg/models"
	"github.com/shopspring/decimal"
)

// QuoteInput is a reviewed agreement section or a manually entered quote.
type QuoteInput struct {
	ID            string
	ProjectName   string
	TotalValue    decimal.Decimal
	Date          time.Time
	AgreementFile string
	Manual        bool
}

// AddQuotes validates new quotes. Extracted sections get status Open and
// manual entries get status Manual.
func (e *Engine) AddQuotes(l *ledger.Ledger, inputs []QuoteInput) ([]models.Quote, error) {
	fields := map[string]interface{}{"business_unit": l.BusinessUnit()}

	if len(inputs) == 0 {
		return nil, e.reject(NewValidationError(ErrNothingToCommit, "", nil, "no quotes given"), fields)
	}

	seen := map[string]bool{}
	quotes := make([]models.Quote, 0, len(inputs))
	for i, in := range inputs {
		label := fmt.Sprintf("quote %d", i+1)
		id := strings.TrimSpace(in.ID)
		name := strings.TrimSpace(in.ProjectName)

		if id == "" || name == "" {
			return nil, e.reject(NewValidationError(ErrIncompleteQuote, label, id,
				"quote id and project name are required"), fields)
		}
		if _, exists := l.Quote(id); exists || seen[id] {
			return nil, e.reject(NewValidationError(ErrDuplicateQuote, label, id,
				"quote id already exists"), fields)
		}
		if in.TotalValue.IsNegative() {
			return nil, e.reject(NewValidationError(ErrNegativeAmount, label, in.TotalValue.String(),
				"quote value cannot be negative"), fields)
		}
		seen[id] = true

		status := models.QuoteOpen
		if in.Manual {
			status = models.QuoteManual
		}
		date := in.Date
		if date.IsZero() {
			date = e.today()
		}

		quotes = append(quotes, models.Quote{
			ID:            id,
			BusinessUnit:  l.BusinessUnit(),
			ProjectName:   name,
			TotalValue:    in.TotalValue,
			AgreementDate: date,
			Status:        status,
			AgreementFile: models.DocumentRef(in.AgreementFile),
		})
	}

	e.log.Info().
		Fields(fields).
		Int("quotes", len(quotes)).
		Msg("Quotes validated")
	return quotes, nil
}
