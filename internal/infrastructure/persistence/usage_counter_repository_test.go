package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/accumanager/backend/internal/domain/billing"
)

// newMockUsageCounterRepository creates a GormUsageCounterRepository with a mocked SQL connection
func newMockUsageCounterRepository(t *testing.T) (*GormUsageCounterRepository, sqlmock.Sqlmock, *sql.DB) {
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

	return NewGormUsageCounterRepository(gormDB), mock, mockDB
}

func counterRows(tenantID uuid.UUID, kind billing.ResourceKind, count int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tenant_id", "resource_kind", "count"}).
		AddRow(uuid.New(), tenantID, kind, count)
}

func TestGormUsageCounterRepository_TryIncrement(t *testing.T) {
	t.Run("reserves within limit", func(t *testing.T) {
		repo, mock, mockDB := newMockUsageCounterRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectExec(`(?s)INSERT INTO usage_counters .* ON CONFLICT \(tenant_id, resource_kind\) DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "usage_counters" SET "count"=count \+ \$1 WHERE tenant_id = \$2 AND resource_kind = \$3 AND \(count \+ \$4 <= \$5\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "usage_counters" WHERE tenant_id = \$1 AND resource_kind = \$2 ORDER BY .* LIMIT .*`).
			WillReturnRows(counterRows(tenantID, billing.ResourceInvoices, 5))

		ok, current, err := repo.TryIncrement(context.Background(), tenantID, billing.ResourceInvoices, 1, 10)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(5), current)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects when limit reached", func(t *testing.T) {
		repo, mock, mockDB := newMockUsageCounterRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectExec(`(?s)INSERT INTO usage_counters .* ON CONFLICT \(tenant_id, resource_kind\) DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(`UPDATE "usage_counters" SET "count"=count \+ \$1`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT \* FROM "usage_counters" WHERE tenant_id = \$1 AND resource_kind = \$2 ORDER BY .* LIMIT .*`).
			WillReturnRows(counterRows(tenantID, billing.ResourceInvoices, 10))

		ok, current, err := repo.TryIncrement(context.Background(), tenantID, billing.ResourceInvoices, 1, 10)

		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, int64(10), current)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unlimited resources skip the guard", func(t *testing.T) {
		repo, mock, mockDB := newMockUsageCounterRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectExec(`(?s)INSERT INTO usage_counters .* ON CONFLICT \(tenant_id, resource_kind\) DO NOTHING`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`UPDATE "usage_counters" SET "count"=count \+ \$1 WHERE tenant_id = \$2 AND resource_kind = \$3`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT \* FROM "usage_counters"`).
			WillReturnRows(counterRows(tenantID, billing.ResourceEvents, 100001))

		ok, current, err := repo.TryIncrement(context.Background(), tenantID, billing.ResourceEvents, 1, -1)

		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(100001), current)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormUsageCounterRepository_Release(t *testing.T) {
	t.Run("release floors at zero", func(t *testing.T) {
		repo, mock, mockDB := newMockUsageCounterRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectExec(`UPDATE "usage_counters" SET "count"=GREATEST\(count - \$1, 0\) WHERE tenant_id = \$2 AND resource_kind = \$3`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Release(context.Background(), tenantID, billing.ResourceInvoices, 1)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormUsageCounterRepository_Get(t *testing.T) {
	t.Run("returns zero counter for unused resource", func(t *testing.T) {
		repo, mock, mockDB := newMockUsageCounterRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "usage_counters" WHERE tenant_id = \$1 AND resource_kind = \$2 ORDER BY .* LIMIT .*`).
			WillReturnError(gorm.ErrRecordNotFound)

		counter, err := repo.Get(context.Background(), tenantID, billing.ResourceCustomers)

		require.NoError(t, err)
		assert.Equal(t, int64(0), counter.Count)
		assert.Equal(t, tenantID, counter.TenantID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns existing counter", func(t *testing.T) {
		repo, mock, mockDB := newMockUsageCounterRepository(t)
		defer mockDB.Close()

		tenantID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "usage_counters" WHERE tenant_id = \$1 AND resource_kind = \$2 ORDER BY .* LIMIT .*`).
			WillReturnRows(counterRows(tenantID, billing.ResourceCustomers, 42))

		counter, err := repo.Get(context.Background(), tenantID, billing.ResourceCustomers)

		require.NoError(t, err)
		assert.Equal(t, int64(42), counter.Count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
