package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/accumanager/backend/internal/domain/billing"
	"github.com/accumanager/backend/internal/domain/shared"
)

// GormSubscriptionRepository implements SubscriptionRepository using GORM
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// FindByTenant retrieves the tenant's subscription with its plan and limits
func (r *GormSubscriptionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*billing.Subscription, error) {
	var sub billing.Subscription
	if err := r.db.WithContext(ctx).
		Preload("Plan.Limits").
		Where("tenant_id = ?", tenantID).
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// FindPlanByCode retrieves a plan by its code
func (r *GormSubscriptionRepository) FindPlanByCode(ctx context.Context, code string) (*billing.Plan, error) {
	var plan billing.Plan
	if err := r.db.WithContext(ctx).
		Preload("Limits").
		Where("code = ?", code).
		First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// Save persists a new subscription
func (r *GormSubscriptionRepository) Save(ctx context.Context, sub *billing.Subscription) error {
	return r.db.WithContext(ctx).Omit("Plan").Create(sub).Error
}

// Update persists changes to a subscription
func (r *GormSubscriptionRepository) Update(ctx context.Context, sub *billing.Subscription) error {
	return r.db.WithContext(ctx).Omit("Plan").Save(sub).Error
}
