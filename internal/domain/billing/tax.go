package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/accumanager/backend/internal/domain/shared"
	"github.com/accumanager/backend/internal/domain/shared/valueobject"
)

// TaxRate is a percentage rate between 0 and 100 with at most two decimal
// places, e.g. 9 for CGST 9% or 0.25 for rough precious stones.
type TaxRate struct {
	value decimal.Decimal
}

// NewTaxRate creates a validated tax rate from a percentage value
func NewTaxRate(percent decimal.Decimal) (TaxRate, error) {
	if percent.IsNegative() {
		return TaxRate{}, shared.NewDomainError("INVALID_TAX_RATE", "Tax rate cannot be negative")
	}
	if percent.GreaterThan(decimal.NewFromInt(100)) {
		return TaxRate{}, shared.NewDomainError("INVALID_TAX_RATE", "Tax rate cannot exceed 100 percent")
	}
	if percent.Exponent() < -2 {
		return TaxRate{}, shared.NewDomainError("INVALID_TAX_RATE",
			"Tax rate supports at most two decimal places")
	}
	return TaxRate{value: percent}, nil
}

// NewTaxRateFromString parses a tax rate from its string form
func NewTaxRateFromString(s string) (TaxRate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return TaxRate{}, shared.NewDomainError("INVALID_TAX_RATE", fmt.Sprintf("Invalid tax rate: %s", s))
	}
	return NewTaxRate(d)
}

// MustTaxRate creates a tax rate and panics on invalid input, for constants and tests
func MustTaxRate(percent float64) TaxRate {
	r, err := NewTaxRate(decimal.NewFromFloat(percent))
	if err != nil {
		panic(err)
	}
	return r
}

// Percent returns the rate as a percentage value
func (r TaxRate) Percent() decimal.Decimal {
	return r.value
}

// IsZero checks whether the rate is zero
func (r TaxRate) IsZero() bool {
	return r.value.IsZero()
}

// String returns the percentage in human readable form
func (r TaxRate) String() string {
	return r.value.String() + "%"
}

// ApplyTo computes the tax amount on a taxable base, rounded to paise half-up
func (r TaxRate) ApplyTo(base valueobject.Money) valueobject.Money {
	return base.Multiply(r.value.Div(decimal.NewFromInt(100))).RoundPaise()
}

// LineTaxRates carries the tax rates applicable to a single invoice line.
// Exactly one regime applies per line: for intra-state supply the central
// and state components are levied together, for inter-state supply only the
// integrated component is levied.
type LineTaxRates struct {
	Central     *TaxRate `json:"central,omitempty"`
	State       *TaxRate `json:"state,omitempty"`
	CrossBorder *TaxRate `json:"cross_border,omitempty"`
}

// Validate enforces jurisdiction exclusivity for the supply type
func (t LineTaxRates) Validate(crossBorder bool) error {
	if crossBorder {
		if t.Central != nil || t.State != nil {
			return shared.NewDomainError("INVALID_TAX_RATE",
				"Inter-state supply must not carry central or state tax components")
		}
		if t.CrossBorder == nil {
			return shared.NewDomainError("INVALID_TAX_RATE",
				"Inter-state supply requires an integrated tax rate")
		}
		return nil
	}
	if t.CrossBorder != nil {
		return shared.NewDomainError("INVALID_TAX_RATE",
			"Intra-state supply must not carry an integrated tax component")
	}
	if t.Central == nil || t.State == nil {
		return shared.NewDomainError("INVALID_TAX_RATE",
			"Intra-state supply requires both central and state tax rates")
	}
	return nil
}

// LineTaxAmounts is the computed per-line tax split in money terms
type LineTaxAmounts struct {
	Central     valueobject.Money `json:"central"`
	State       valueobject.Money `json:"state"`
	CrossBorder valueobject.Money `json:"cross_border"`
}

// Total sums the three tax components
func (a LineTaxAmounts) Total() valueobject.Money {
	return a.Central.MustAdd(a.State).MustAdd(a.CrossBorder)
}

// ComputeLineTax applies the rates to a taxable base. Each component is
// rounded to paise independently before summing, matching how amounts are
// reported per component on the invoice.
func ComputeLineTax(base valueobject.Money, rates LineTaxRates) LineTaxAmounts {
	amounts := LineTaxAmounts{
		Central:     valueobject.ZeroINR(),
		State:       valueobject.ZeroINR(),
		CrossBorder: valueobject.ZeroINR(),
	}
	if rates.Central != nil {
		amounts.Central = rates.Central.ApplyTo(base)
	}
	if rates.State != nil {
		amounts.State = rates.State.ApplyTo(base)
	}
	if rates.CrossBorder != nil {
		amounts.CrossBorder = rates.CrossBorder.ApplyTo(base)
	}
	return amounts
}
