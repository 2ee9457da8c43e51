package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/accumanager/backend/internal/domain/shared"
)

// Plan is a named tier carrying per-resource limits.
// Plans are reference data seeded by migration, not tenant-owned.
type Plan struct {
	shared.BaseEntity
	Code        string `gorm:"type:varchar(32);not null;uniqueIndex"`
	Name        string `gorm:"type:varchar(100);not null"`
	Description string `gorm:"type:text"`
	IsActive    bool   `gorm:"not null;default:true"`
	Limits      []PlanLimit
}

// TableName returns the table name for GORM
func (Plan) TableName() string {
	return "plans"
}

// Well-known plan codes
const (
	PlanCodeFree       = "free"
	PlanCodeStarter    = "starter"
	PlanCodePro        = "pro"
	PlanCodeEnterprise = "enterprise"
)

// PlanLimit caps one resource kind for a plan. A limit of -1 is unlimited.
type PlanLimit struct {
	shared.BaseEntity
	PlanID       uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_plan_limit_kind"`
	ResourceKind ResourceKind `gorm:"type:varchar(32);not null;uniqueIndex:idx_plan_limit_kind"`
	Limit        int64        `gorm:"column:limit_value;not null"`
}

// TableName returns the table name for GORM
func (PlanLimit) TableName() string {
	return "plan_limits"
}

// LimitFor returns the plan's limit for a resource kind.
// Resources the plan does not mention are unlimited.
func (p *Plan) LimitFor(kind ResourceKind) int64 {
	for _, l := range p.Limits {
		if l.ResourceKind == kind {
			return l.Limit
		}
	}
	return -1
}

// SubscriptionStatus represents the state of a tenant's subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionStatusExpired   SubscriptionStatus = "EXPIRED"
)

// IsValid checks if the status is a valid SubscriptionStatus
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusSuspended, SubscriptionStatusExpired:
		return true
	}
	return false
}

// String returns the string representation of SubscriptionStatus
func (s SubscriptionStatus) String() string {
	return string(s)
}

// Subscription binds a tenant to a plan for a validity window
type Subscription struct {
	shared.BaseAggregateRoot
	TenantID  uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex"`
	PlanID    uuid.UUID          `gorm:"type:uuid;not null"`
	Plan      *Plan              `gorm:"foreignKey:PlanID"`
	Status    SubscriptionStatus `gorm:"type:varchar(16);not null"`
	StartsAt  time.Time          `gorm:"not null"`
	ExpiresAt *time.Time
}

// TableName returns the table name for GORM
func (Subscription) TableName() string {
	return "subscriptions"
}

// NewSubscription creates an active subscription for a tenant
func NewSubscription(tenantID, planID uuid.UUID, startsAt time.Time) (*Subscription, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if planID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PLAN", "Plan ID cannot be empty")
	}
	if startsAt.IsZero() {
		startsAt = time.Now()
	}
	return &Subscription{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		TenantID:          tenantID,
		PlanID:            planID,
		Status:            SubscriptionStatusActive,
		StartsAt:          startsAt,
	}, nil
}

// IsActive reports whether the subscription authorizes usage at the given instant
func (s *Subscription) IsActive(now time.Time) bool {
	if s.Status != SubscriptionStatusActive {
		return false
	}
	if now.Before(s.StartsAt) {
		return false
	}
	if s.ExpiresAt != nil && now.After(*s.ExpiresAt) {
		return false
	}
	return true
}

// Suspend blocks usage without discarding the plan binding
func (s *Subscription) Suspend() error {
	if s.Status != SubscriptionStatusActive {
		return shared.NewDomainError("INVALID_STATE", "Only active subscriptions can be suspended")
	}
	s.Status = SubscriptionStatusSuspended
	s.UpdatedAt = time.Now()
	return nil
}

// Reactivate restores a suspended subscription
func (s *Subscription) Reactivate() error {
	if s.Status != SubscriptionStatusSuspended {
		return shared.NewDomainError("INVALID_STATE", "Only suspended subscriptions can be reactivated")
	}
	s.Status = SubscriptionStatusActive
	s.UpdatedAt = time.Now()
	return nil
}

// Expire marks the subscription as ended
func (s *Subscription) Expire(at time.Time) {
	s.Status = SubscriptionStatusExpired
	s.ExpiresAt = &at
	s.UpdatedAt = time.Now()
}
