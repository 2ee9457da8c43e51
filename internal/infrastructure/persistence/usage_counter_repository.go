package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/accumanager/backend/internal/domain/billing"
)

// GormUsageCounterRepository implements UsageCounterRepository using GORM.
// The check-and-consume step is a single conditional UPDATE so it stays
// atomic under concurrent requests without application-side locking.
type GormUsageCounterRepository struct {
	db *gorm.DB
}

// NewGormUsageCounterRepository creates a new GormUsageCounterRepository
func NewGormUsageCounterRepository(db *gorm.DB) *GormUsageCounterRepository {
	return &GormUsageCounterRepository{db: db}
}

// TryIncrement reserves amount units against the limit in one atomic step.
// The guarded UPDATE only matches when the new count stays within the
// limit; zero rows affected means the reservation lost, and the current
// count is re-read for the caller's error message.
func (r *GormUsageCounterRepository) TryIncrement(ctx context.Context, tenantID uuid.UUID, kind billing.ResourceKind, amount, limit int64) (bool, int64, error) {
	if err := r.ensureCounter(ctx, tenantID, kind); err != nil {
		return false, 0, err
	}

	query := r.db.WithContext(ctx).Model(&billing.UsageCounter{}).
		Where("tenant_id = ? AND resource_kind = ?", tenantID, kind)
	if limit >= 0 {
		query = query.Where("count + ? <= ?", amount, limit)
	}

	result := query.UpdateColumn("count", gorm.Expr("count + ?", amount))
	if result.Error != nil {
		return false, 0, result.Error
	}
	if result.RowsAffected == 0 {
		counter, err := r.Get(ctx, tenantID, kind)
		if err != nil {
			return false, 0, err
		}
		return false, counter.Count, nil
	}

	counter, err := r.Get(ctx, tenantID, kind)
	if err != nil {
		return false, 0, err
	}
	return true, counter.Count, nil
}

// Release returns previously reserved units, flooring at zero
func (r *GormUsageCounterRepository) Release(ctx context.Context, tenantID uuid.UUID, kind billing.ResourceKind, amount int64) error {
	return r.db.WithContext(ctx).Model(&billing.UsageCounter{}).
		Where("tenant_id = ? AND resource_kind = ?", tenantID, kind).
		UpdateColumn("count", gorm.Expr("GREATEST(count - ?, 0)", amount)).Error
}

// Get retrieves the counter, returning a zero counter when the tenant has
// never consumed the resource
func (r *GormUsageCounterRepository) Get(ctx context.Context, tenantID uuid.UUID, kind billing.ResourceKind) (*billing.UsageCounter, error) {
	var counter billing.UsageCounter
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND resource_kind = ?", tenantID, kind).
		First(&counter).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return billing.NewUsageCounter(tenantID, kind)
		}
		return nil, err
	}
	return &counter, nil
}

// GetAll retrieves all counters for a tenant
func (r *GormUsageCounterRepository) GetAll(ctx context.Context, tenantID uuid.UUID) ([]*billing.UsageCounter, error) {
	var counters []*billing.UsageCounter
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Find(&counters).Error; err != nil {
		return nil, err
	}
	return counters, nil
}

// ensureCounter creates the counter row on first use. The conflict target
// is the tenant+kind unique index, so racing first uses are harmless.
func (r *GormUsageCounterRepository) ensureCounter(ctx context.Context, tenantID uuid.UUID, kind billing.ResourceKind) error {
	counter, err := billing.NewUsageCounter(tenantID, kind)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO usage_counters (id, tenant_id, resource_kind, count, created_at, updated_at)
		 VALUES (?, ?, ?, 0, NOW(), NOW())
		 ON CONFLICT (tenant_id, resource_kind) DO NOTHING`,
		counter.ID, tenantID, kind,
	).Error
}
