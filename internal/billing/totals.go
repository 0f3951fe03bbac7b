// Package billing holds the invoice arithmetic, numbering and PDF layout.
package billing

import (
	"fmt"
	"regexp"
	"time"

	"devpulse/internal/models"

	"github.com/shopspring/decimal"
)

// Scales of the stored columns. MoneyPlaces is also the rounding scale
// (half away from zero) of every computed amount.
const (
	MoneyPlaces    = 2
	TaxPlaces      = 2
	QuantityPlaces = 4
)

var (
	hundred = decimal.NewFromInt(100)

	// MaxQuantity bounds quantities and unit prices (NUMERIC(14,4), exclusive).
	MaxQuantity = decimal.New(1, 10)
	// MaxMoney bounds every computed amount (NUMERIC(14,2), exclusive).
	MaxMoney = decimal.New(1, 12)
)

// HasScale reports whether d has no more than places decimal digits.
func HasScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// Fits reports whether every amount in t can be stored.
func (t Totals) Fits() bool {
	for _, it := range t.Items {
		if it.Total.Abs().GreaterThanOrEqual(MaxMoney) {
			return false
		}
	}
	return t.Amount.Abs().LessThan(MaxMoney) &&
		t.TaxAmount.Abs().LessThan(MaxMoney) &&
		t.Total.Abs().LessThan(MaxMoney)
}

// LineInput is the only part of an invoice taken from the caller.
type LineInput struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
}

type Totals struct {
	Items     []models.InvoiceItem
	Amount    decimal.Decimal
	Tax       decimal.Decimal
	TaxAmount decimal.Decimal
	Total     decimal.Decimal
}

// ComputeTotals derives item totals, the subtotal, the tax amount and the grand total.
// tax is a percentage.
func ComputeTotals(lines []LineInput, tax decimal.Decimal) Totals {
	t := Totals{
		Items:  make([]models.InvoiceItem, 0, len(lines)),
		Amount: decimal.Zero,
		Tax:    tax,
	}
	for _, l := range lines {
		lineTotal := l.Quantity.Mul(l.UnitPrice).Round(MoneyPlaces)
		t.Items = append(t.Items, models.InvoiceItem{
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			Total:       lineTotal,
		})
		t.Amount = t.Amount.Add(lineTotal)
	}
	t.TaxAmount = t.Amount.Mul(tax).Div(hundred).Round(MoneyPlaces)
	t.Total = t.Amount.Add(t.TaxAmount)
	return t
}

// NumberPattern matches every number produced by FormatNumber.
var NumberPattern = regexp.MustCompile(`^INV-\d{6}-\d{4,}$`)

// SequencePeriod is the key of the monthly counter an invoice created at t draws from.
func SequencePeriod(t time.Time) string {
	return t.UTC().Format("200601")
}

func FormatNumber(period string, seq int64) string {
	return fmt.Sprintf("INV-%s-%04d", period, seq)
}
