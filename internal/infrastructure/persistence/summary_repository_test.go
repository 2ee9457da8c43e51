package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/accumanager/backend/internal/domain/billing"
)

// newMockSummaryRepository creates a GormSummaryRepository with a mocked SQL connection
func newMockSummaryRepository(t *testing.T) (*GormSummaryRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormSummaryRepository(gormDB), mock, mockDB
}

var summaryColumns = []string{
	"invoice_count", "confirmed_count", "cancelled_count", "paid_count",
	"subtotal", "discount_total",
	"taxable_total", "central_tax_total", "state_tax_total", "cross_border_tax_total",
	"round_off_total", "grand_total", "paid_total",
}

var paymentMethodColumns = []string{"payment_method", "invoice_count", "paid_total"}

func TestGormSummaryRepository_Summarize(t *testing.T) {
	periodStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("aggregates confirmed invoices", func(t *testing.T) {
		repo, mock, mockDB := newMockSummaryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		rows := sqlmock.NewRows(summaryColumns).AddRow(
			int64(5), int64(3), int64(2), int64(1),
			decimal.NewFromInt(3200), decimal.NewFromInt(200),
			decimal.NewFromInt(3000), decimal.NewFromInt(270), decimal.NewFromInt(270), decimal.Zero,
			decimal.RequireFromString("0.40"), decimal.NewFromInt(3540), decimal.NewFromInt(1180),
		)
		mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) AS invoice_count,.* FROM "invoices" WHERE tenant_id = \$1 AND issue_date >= \$2 AND issue_date < \$3`).
			WillReturnRows(rows)

		methodRows := sqlmock.NewRows(paymentMethodColumns).
			AddRow("UPI", int64(1), decimal.NewFromInt(1000)).
			AddRow("CASH", int64(1), decimal.NewFromInt(180))
		mock.ExpectQuery(`(?s)SELECT payment_method,.*GROUP BY "payment_method"`).
			WillReturnRows(methodRows)

		summary, err := repo.Summarize(context.Background(), tenantID, periodStart, periodEnd)

		require.NoError(t, err)
		assert.Equal(t, int64(5), summary.InvoiceCount)
		assert.Equal(t, int64(3), summary.ConfirmedCount)
		assert.Equal(t, int64(2), summary.CancelledCount)
		assert.True(t, summary.Subtotal.Equal(decimal.NewFromInt(3200)))
		assert.True(t, summary.DiscountTotal.Equal(decimal.NewFromInt(200)))
		assert.True(t, summary.GrandTotal.Equal(decimal.NewFromInt(3540)))
		assert.True(t, summary.OutstandingTotal.Equal(decimal.NewFromInt(2360)))

		require.Len(t, summary.ByPaymentMethod, 2)
		upi := summary.ByPaymentMethod[billing.PaymentMethodUPI]
		assert.Equal(t, int64(1), upi.InvoiceCount)
		assert.True(t, upi.PaidTotal.Equal(decimal.NewFromInt(1000)))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty period yields all-zero summary", func(t *testing.T) {
		repo, mock, mockDB := newMockSummaryRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		rows := sqlmock.NewRows(summaryColumns).AddRow(
			int64(0), int64(0), int64(0), int64(0),
			decimal.Zero, decimal.Zero,
			decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero,
			decimal.Zero, decimal.Zero, decimal.Zero,
		)
		mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) AS invoice_count,.* FROM "invoices"`).
			WillReturnRows(rows)

		summary, err := repo.Summarize(context.Background(), tenantID, periodStart, periodEnd)

		require.NoError(t, err)
		assert.Equal(t, tenantID, summary.TenantID)
		assert.Equal(t, int64(0), summary.InvoiceCount)
		assert.True(t, summary.GrandTotal.IsZero())
		assert.True(t, summary.OutstandingTotal.IsZero())
		assert.Empty(t, summary.ByPaymentMethod)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates query errors", func(t *testing.T) {
		repo, mock, mockDB := newMockSummaryRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) AS invoice_count,`).
			WillReturnError(gorm.ErrInvalidDB)

		summary, err := repo.Summarize(context.Background(), uuid.New(), periodStart, periodEnd)

		assert.Nil(t, summary)
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
