// Package allocation validates new ledger entries before they are committed.
//
// Every operation is atomic: it either returns the complete set of new records
// or a *ValidationError, and it never mutates the ledger it reads.
package allocation

import (
	"fmt"
	"time"

	"finledger/internal/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance used when comparing allocation sums.
var Epsilon = decimal.RequireFromString("0.0001")

// OverAllocationPolicy decides what happens when an invoice item is mapped for
// more than the amount detected on the invoice.
type OverAllocationPolicy string

const (
	OverAllocationBlock OverAllocationPolicy = "block"
	OverAllocationWarn  OverAllocationPolicy = "warn"
)

// Policy configures the optional constraints of the engine.
type Policy struct {
	// CapAtDue rejects payment allocations larger than the quote's due on the invoice.
	CapAtDue bool
	// OverAllocation applies to invoice mapping.
	OverAllocation OverAllocationPolicy
}

// DefaultPolicy accepts any split that sums to the amount received and blocks
// over-allocated invoice items.
func DefaultPolicy() Policy {
	return Policy{OverAllocation: OverAllocationBlock}
}

// Engine applies the allocation rules.
type Engine struct {
	policy Policy
	now    func() time.Time
	newID  func() string
	log    zerolog.Logger
}

// NewEngine creates an engine using the wall clock and random payment ids.
func NewEngine(policy Policy) *Engine {
	return NewEngineWithDeps(policy, time.Now, newParentPaymentID)
}

// NewEngineWithDeps creates an engine with an explicit clock and id generator (for testing).
func NewEngineWithDeps(policy Policy, now func() time.Time, newID func() string) *Engine {
	if policy.OverAllocation == "" {
		policy.OverAllocation = OverAllocationBlock
	}
	return &Engine{
		policy: policy,
		now:    now,
		newID:  newID,
		log:    logger.WithComponent("allocation"),
	}
}

// Policy returns the engine's policy.
func (e *Engine) Policy() Policy { return e.policy }

func (e *Engine) today() time.Time {
	t := e.now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// newParentPaymentID returns PAY-<unix seconds>-<8 hex chars>.
func newParentPaymentID() string {
	return fmt.Sprintf("PAY-%d-%s", time.Now().Unix(), uuid.NewString()[:8])
}

func (e *Engine) reject(err *ValidationError, fields map[string]interface{}) error {
	e.log.Warn().
		Fields(fields).
		Str("rule", err.Rule.Error()).
		Msg(err.Message)
	return err
}

func withinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Epsilon)
}
