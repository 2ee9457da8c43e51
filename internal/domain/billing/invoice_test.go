package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accumanager/backend/internal/domain/shared/valueobject"
)

func testCustomer(stateCode string) CustomerSnapshot {
	return CustomerSnapshot{
		CustomerName:      "Sharma Traders",
		CustomerPhone:     "+919800000001",
		CustomerStateCode: stateCode,
		CustomerTaxID:     "27AAAPL1234C1ZV",
	}
}

func newDraftInvoice(t *testing.T, supplierState, customerState string) *Invoice {
	t.Helper()
	inv, err := NewInvoice(uuid.New(), "INV-2024-0001", uuid.New(), testCustomer(customerState), supplierState, time.Now())
	require.NoError(t, err)
	return inv
}

func intraStateRates() LineTaxRates {
	central := MustTaxRate(9)
	state := MustTaxRate(9)
	return LineTaxRates{Central: &central, State: &state}
}

func crossBorderRates() LineTaxRates {
	integrated := MustTaxRate(18)
	return LineTaxRates{CrossBorder: &integrated}
}

func TestNewInvoice(t *testing.T) {
	t.Run("same state is not cross border", func(t *testing.T) {
		inv := newDraftInvoice(t, "27", "27")
		assert.False(t, inv.CrossBorder)
		assert.Equal(t, InvoiceStatusDraft, inv.Status)
		assert.Equal(t, PaymentStatusPending, inv.PaymentStatus)
	})

	t.Run("different state is cross border", func(t *testing.T) {
		inv := newDraftInvoice(t, "27", "29")
		assert.True(t, inv.CrossBorder)
	})

	t.Run("rejects empty invoice number", func(t *testing.T) {
		_, err := NewInvoice(uuid.New(), "", uuid.New(), testCustomer("27"), "27", time.Now())
		assert.Error(t, err)
	})

	t.Run("rejects customer without name", func(t *testing.T) {
		c := testCustomer("27")
		c.CustomerName = ""
		_, err := NewInvoice(uuid.New(), "INV-1", uuid.New(), c, "27", time.Now())
		assert.Error(t, err)
	})
}

func TestInvoiceAddItem(t *testing.T) {
	t.Run("intra-state line computes split tax", func(t *testing.T) {
		inv := newDraftInvoice(t, "27", "27")
		item, err := inv.AddItem("Consulting hours", "9983", decimal.NewFromInt(10),
			valueobject.NewMoneyINRFromFloat(100), valueobject.ZeroINR(), intraStateRates())
		require.NoError(t, err)

		assert.Equal(t, "1000", item.TaxableAmount.String())
		assert.Equal(t, "90", item.CentralTax.String())
		assert.Equal(t, "90", item.StateTax.String())
		assert.True(t, item.CrossBorderTax.IsZero())
	})

	t.Run("rejects intra-state line with integrated rate", func(t *testing.T) {
		inv := newDraftInvoice(t, "27", "27")
		_, err := inv.AddItem("Consulting hours", "", decimal.NewFromInt(1),
			valueobject.NewMoneyINRFromFloat(100), valueobject.ZeroINR(), crossBorderRates())
		assert.Error(t, err)
	})

	t.Run("rejects cross-border line with split rates", func(t *testing.T) {
		inv := newDraftInvoice(t, "27", "29")
		_, err := inv.AddItem("Consulting hours", "", decimal.NewFromInt(1),
			valueobject.NewMoneyINRFromFloat(100), valueobject.ZeroINR(), intraStateRates())
		assert.Error(t, err)
	})

	t.Run("rejects discount exceeding line amount", func(t *testing.T) {
		inv := newDraftInvoice(t, "27", "27")
		_, err := inv.AddItem("Consulting hours", "", decimal.NewFromInt(1),
			valueobject.NewMoneyINRFromFloat(100), valueobject.NewMoneyINRFromFloat(150), intraStateRates())
		assert.Error(t, err)
	})

	t.Run("rejects items on confirmed invoice", func(t *testing.T) {
		inv := newDraftInvoice(t, "27", "27")
		_, err := inv.AddItem("Consulting hours", "", decimal.NewFromInt(1),
			valueobject.NewMoneyINRFromFloat(100), valueobject.ZeroINR(), intraStateRates())
		require.NoError(t, err)
		require.NoError(t, inv.Confirm())

		_, err = inv.AddItem("More hours", "", decimal.NewFromInt(1),
			valueobject.NewMoneyINRFromFloat(100), valueobject.ZeroINR(), intraStateRates())
		assert.Error(t, err)
	})
}

func TestInvoiceGrandTotalIdentity(t *testing.T) {
	// Odd unit prices force paise-level rounding on each component.
	inv := newDraftInvoice(t, "27", "27")
	prices := []string{"33.33", "107.49", "0.99", "1249.95"}
	for _, p := range prices {
		price, err := valueobject.NewMoneyINRFromString(p)
		require.NoError(t, err)
		_, err = inv.AddItem("Item "+p, "", decimal.NewFromInt(3), price,
			valueobject.NewMoneyINRFromFloat(0.50), intraStateRates())
		require.NoError(t, err)
	}

	sum := inv.TaxableTotal.
		Add(inv.CentralTaxTotal).
		Add(inv.StateTaxTotal).
		Add(inv.CrossBorderTotal).
		Add(inv.RoundOff)
	assert.True(t, sum.Equal(inv.GrandTotal),
		"identity broken: %s != %s", sum, inv.GrandTotal)

	// Grand total is a whole rupee amount
	assert.True(t, inv.GrandTotal.Equal(inv.GrandTotal.Round(0)))
	// Round off never exceeds half a rupee in either direction
	assert.True(t, inv.RoundOff.Abs().LessThanOrEqual(decimal.NewFromFloat(0.5)))
}

func TestInvoiceSubtotalAndDiscountTotals(t *testing.T) {
	inv := newDraftInvoice(t, "27", "27")

	// 10 x 100 less 50, then 2 x 250 less 30
	_, err := inv.AddItem("Consulting hours", "", decimal.NewFromInt(10),
		valueobject.NewMoneyINRFromFloat(100), valueobject.NewMoneyINRFromFloat(50), intraStateRates())
	require.NoError(t, err)
	item, err := inv.AddItem("Support retainer", "", decimal.NewFromInt(2),
		valueobject.NewMoneyINRFromFloat(250), valueobject.NewMoneyINRFromFloat(30), intraStateRates())
	require.NoError(t, err)

	assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(1500)), "subtotal %s", inv.Subtotal)
	assert.True(t, inv.DiscountTotal.Equal(decimal.NewFromInt(80)), "discount total %s", inv.DiscountTotal)
	assert.True(t, inv.TaxableTotal.Equal(inv.Subtotal.Sub(inv.DiscountTotal)))

	// Removing a line keeps both totals in step
	require.NoError(t, inv.RemoveItem(item.ID))
	assert.True(t, inv.Subtotal.Equal(decimal.NewFromInt(1000)))
	assert.True(t, inv.DiscountTotal.Equal(decimal.NewFromInt(50)))
}

func TestInvoiceRemoveItem(t *testing.T) {
	inv := newDraftInvoice(t, "27", "27")
	item, err := inv.AddItem("Consulting hours", "", decimal.NewFromInt(1),
		valueobject.NewMoneyINRFromFloat(100), valueobject.ZeroINR(), intraStateRates())
	require.NoError(t, err)

	require.NoError(t, inv.RemoveItem(item.ID))
	assert.Equal(t, 0, inv.ItemCount())
	assert.True(t, inv.GrandTotal.IsZero())

	assert.Error(t, inv.RemoveItem(uuid.New()))
}

func TestInvoiceConfirm(t *testing.T) {
	t.Run("requires at least one item", func(t *testing.T) {
		inv := newDraftInvoice(t, "27", "27")
		err := inv.Confirm()
		assert.ErrorIs(t, err, ErrEmptyInvoice)
	})

	t.Run("confirm then cancel", func(t *testing.T) {
		inv := newDraftInvoice(t, "27", "27")
		_, err := inv.AddItem("Consulting hours", "", decimal.NewFromInt(1),
			valueobject.NewMoneyINRFromFloat(100), valueobject.ZeroINR(), intraStateRates())
		require.NoError(t, err)

		require.NoError(t, inv.Confirm())
		assert.Equal(t, InvoiceStatusConfirmed, inv.Status)
		assert.NotNil(t, inv.ConfirmedAt)

		assert.Error(t, inv.Confirm())

		require.NoError(t, inv.Cancel("duplicate entry"))
		assert.Equal(t, InvoiceStatusCancelled, inv.Status)
		assert.Equal(t, PaymentStatusCancelled, inv.PaymentStatus)

		assert.Error(t, inv.Cancel("again"))
	})
}

func TestInvoiceRecordPayment(t *testing.T) {
	setup := func(t *testing.T) *Invoice {
		inv := newDraftInvoice(t, "27", "27")
		_, err := inv.AddItem("Consulting hours", "", decimal.NewFromInt(10),
			valueobject.NewMoneyINRFromFloat(100), valueobject.ZeroINR(), intraStateRates())
		require.NoError(t, err)
		require.NoError(t, inv.Confirm())
		return inv // grand total 1180
	}

	t.Run("partial then full payment", func(t *testing.T) {
		inv := setup(t)
		require.NoError(t, inv.RecordPayment(valueobject.NewMoneyINRFromFloat(500), PaymentMethodBankTransfer))
		assert.Equal(t, PaymentStatusPartiallyPaid, inv.PaymentStatus)
		assert.Equal(t, int64(68000), inv.Outstanding().Paise())
		require.NotNil(t, inv.PaymentMethod)
		assert.Equal(t, PaymentMethodBankTransfer, *inv.PaymentMethod)

		require.NoError(t, inv.RecordPayment(valueobject.NewMoneyINRFromFloat(680), PaymentMethodUPI))
		assert.Equal(t, PaymentStatusPaid, inv.PaymentStatus)
		assert.True(t, inv.Outstanding().IsZero())
		assert.Equal(t, PaymentMethodUPI, *inv.PaymentMethod)
	})

	t.Run("rejects overpayment", func(t *testing.T) {
		inv := setup(t)
		err := inv.RecordPayment(valueobject.NewMoneyINRFromFloat(2000), PaymentMethodCash)
		assert.Error(t, err)
	})

	t.Run("rejects unknown payment method", func(t *testing.T) {
		inv := setup(t)
		err := inv.RecordPayment(valueobject.NewMoneyINRFromFloat(100), PaymentMethod("BARTER"))
		assert.Error(t, err)
		assert.Nil(t, inv.PaymentMethod)
	})

	t.Run("rejects payment on draft invoice", func(t *testing.T) {
		inv := newDraftInvoice(t, "27", "27")
		err := inv.RecordPayment(valueobject.NewMoneyINRFromFloat(100), PaymentMethodCash)
		assert.Error(t, err)
	})

	t.Run("paid invoice cannot be cancelled", func(t *testing.T) {
		inv := setup(t)
		require.NoError(t, inv.RecordPayment(valueobject.NewMoneyINRFromFloat(1180), PaymentMethodCash))
		assert.Error(t, inv.Cancel("late void"))
	})
}

func TestInvoiceStatusTransitions(t *testing.T) {
	tests := []struct {
		from   InvoiceStatus
		to     InvoiceStatus
		expect bool
	}{
		{InvoiceStatusDraft, InvoiceStatusConfirmed, true},
		{InvoiceStatusDraft, InvoiceStatusCancelled, true},
		{InvoiceStatusConfirmed, InvoiceStatusCancelled, true},
		{InvoiceStatusConfirmed, InvoiceStatusDraft, false},
		{InvoiceStatusCancelled, InvoiceStatusConfirmed, false},
		{InvoiceStatusCancelled, InvoiceStatusDraft, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expect, tt.from.CanTransitionTo(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}
