package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/accumanager/backend/internal/domain/billing"
	"github.com/accumanager/backend/internal/domain/shared"
)

// GormRecurringScheduleRepository implements RecurringScheduleRepository using GORM
type GormRecurringScheduleRepository struct {
	db *gorm.DB
}

// NewGormRecurringScheduleRepository creates a new GormRecurringScheduleRepository
func NewGormRecurringScheduleRepository(db *gorm.DB) *GormRecurringScheduleRepository {
	return &GormRecurringScheduleRepository{db: db}
}

// Save persists a new schedule
func (r *GormRecurringScheduleRepository) Save(ctx context.Context, schedule *billing.RecurringSchedule) error {
	return r.db.WithContext(ctx).Create(schedule).Error
}

// Update persists changes with optimistic locking on the aggregate version
func (r *GormRecurringScheduleRepository) Update(ctx context.Context, schedule *billing.RecurringSchedule) error {
	return updateScheduleLocked(r.db.WithContext(ctx), schedule)
}

// updateScheduleLocked performs the version-checked schedule update inside tx
func updateScheduleLocked(tx *gorm.DB, schedule *billing.RecurringSchedule) error {
	currentVersion := schedule.Version
	schedule.Version++
	schedule.UpdatedAt = time.Now()

	result := tx.Model(&billing.RecurringSchedule{}).
		Where("id = ? AND tenant_id = ? AND version = ?", schedule.ID, schedule.TenantID, currentVersion).
		Updates(map[string]interface{}{
			"end_date":        schedule.EndDate,
			"max_occurrences": schedule.MaxOccurrences,
			"next_run_at":     schedule.NextRunAt,
			"fired_count":     schedule.FiredCount,
			"last_fired_at":   schedule.LastFiredAt,
			"status":          schedule.Status,
			"paused_at":       schedule.PausedAt,
			"cancelled_at":    schedule.CancelledAt,
			"cancel_reason":   schedule.CancelReason,
			"version":         schedule.Version,
			"updated_at":      schedule.UpdatedAt,
		})
	if result.Error != nil {
		schedule.Version = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		schedule.Version = currentVersion
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByID retrieves a schedule for a tenant
func (r *GormRecurringScheduleRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.RecurringSchedule, error) {
	var schedule billing.RecurringSchedule
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&schedule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &schedule, nil
}

// List retrieves schedules for a tenant with pagination
func (r *GormRecurringScheduleRepository) List(ctx context.Context, tenantID uuid.UUID, status *billing.ScheduleStatus, page, pageSize int) ([]*billing.RecurringSchedule, int64, error) {
	query := r.db.WithContext(ctx).Model(&billing.RecurringSchedule{}).Where("tenant_id = ?", tenantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var schedules []*billing.RecurringSchedule
	if err := query.
		Order("next_run_at asc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&schedules).Error; err != nil {
		return nil, 0, err
	}
	return schedules, total, nil
}

// FindDue retrieves active schedules across all tenants whose next
// occurrence is at or before now. Ordered oldest first so starved
// schedules win under the batch limit.
func (r *GormRecurringScheduleRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*billing.RecurringSchedule, error) {
	var schedules []*billing.RecurringSchedule
	if err := r.db.WithContext(ctx).
		Where("status = ? AND next_run_at <= ?", billing.ScheduleStatusActive, now).
		Order("next_run_at asc").
		Limit(limit).
		Find(&schedules).Error; err != nil {
		return nil, err
	}
	return schedules, nil
}

// CommitFire persists the advanced schedule and its generated invoice in
// one transaction. The version check on the schedule update makes the
// fire exactly-once: a competing worker that already advanced the same
// occurrence rolls this whole commit back, invoice included.
func (r *GormRecurringScheduleRepository) CommitFire(ctx context.Context, schedule *billing.RecurringSchedule, invoice *billing.Invoice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := updateScheduleLocked(tx, schedule); err != nil {
			return err
		}
		if err := tx.Omit("Items").Create(invoice).Error; err != nil {
			return err
		}
		for i := range invoice.Items {
			invoice.Items[i].InvoiceID = invoice.ID
			if err := tx.Create(&invoice.Items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a cancelled schedule
func (r *GormRecurringScheduleRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, billing.ScheduleStatusCancelled).
		Delete(&billing.RecurringSchedule{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}
