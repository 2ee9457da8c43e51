package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/accumanager/backend/internal/domain/billing"
	"github.com/accumanager/backend/internal/domain/shared"
)

// UsageService enforces plan limits through atomic check-and-consume.
// Every resource-creating operation reserves quota here before doing any
// work, and releases it again if the work fails to commit.
type UsageService struct {
	counterRepo billing.UsageCounterRepository
	subRepo     billing.SubscriptionRepository
}

// NewUsageService creates a new UsageService
func NewUsageService(counterRepo billing.UsageCounterRepository, subRepo billing.SubscriptionRepository) *UsageService {
	return &UsageService{
		counterRepo: counterRepo,
		subRepo:     subRepo,
	}
}

// Reserve consumes amount units of the resource for the tenant.
// It fails with ErrSubscriptionInactive when the tenant has no active
// subscription and with LimitExceededError when the plan limit would be
// crossed; in both cases nothing is consumed.
func (s *UsageService) Reserve(ctx context.Context, tenantID uuid.UUID, kind billing.ResourceKind, amount int64) error {
	if amount <= 0 {
		return shared.NewDomainError("INVALID_AMOUNT", "Reservation amount must be positive")
	}
	if !kind.IsValid() {
		return shared.NewDomainError("INVALID_RESOURCE_KIND", "Unknown resource kind")
	}

	sub, err := s.activeSubscription(ctx, tenantID)
	if err != nil {
		return err
	}

	limit := sub.Plan.LimitFor(kind)
	ok, current, err := s.counterRepo.TryIncrement(ctx, tenantID, kind, amount, limit)
	if err != nil {
		// Counter I/O failing means nothing was consumed; callers can
		// safely retry the whole operation.
		return billing.NewTransientStoreError("usage reservation", err)
	}
	if !ok {
		return billing.NewLimitExceededError(kind, current, limit)
	}
	return nil
}

// Release gives back previously reserved units. It is used both as the
// compensating step when a reserved operation fails and as the reclaim
// step when a reclaimable resource is deleted.
func (s *UsageService) Release(ctx context.Context, tenantID uuid.UUID, kind billing.ResourceKind, amount int64) error {
	if amount <= 0 {
		return shared.NewDomainError("INVALID_AMOUNT", "Release amount must be positive")
	}
	return s.counterRepo.Release(ctx, tenantID, kind, amount)
}

// Reclaim frees quota after deleting a resource instance, but only for
// kinds whose policy allows it. Non-reclaimable kinds are a no-op.
func (s *UsageService) Reclaim(ctx context.Context, tenantID uuid.UUID, kind billing.ResourceKind, amount int64) error {
	if !kind.Reclaimable() {
		return nil
	}
	return s.Release(ctx, tenantID, kind, amount)
}

// GetUsage reports the tenant's consumption across every governed resource
func (s *UsageService) GetUsage(ctx context.Context, tenantID uuid.UUID) (*UsageResponse, error) {
	sub, err := s.subRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if sub.Plan == nil {
		return nil, billing.ErrSubscriptionInactive
	}

	counters, err := s.counterRepo.GetAll(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	counts := make(map[billing.ResourceKind]int64, len(counters))
	for _, c := range counters {
		counts[c.ResourceKind] = c.Count
	}

	resources := make([]billing.UsageSnapshot, 0, len(billing.AllResourceKinds))
	for _, kind := range billing.AllResourceKinds {
		resources = append(resources, billing.UsageSnapshot{
			ResourceKind: kind,
			Used:         counts[kind],
			Limit:        sub.Plan.LimitFor(kind),
		})
	}

	return &UsageResponse{
		TenantID:  tenantID,
		PlanCode:  sub.Plan.Code,
		Resources: resources,
	}, nil
}

// GetUsageForKind reports the tenant's consumption for one resource kind
func (s *UsageService) GetUsageForKind(ctx context.Context, tenantID uuid.UUID, kind billing.ResourceKind) (*billing.UsageSnapshot, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_RESOURCE_KIND", "Unknown resource kind")
	}

	usage, err := s.GetUsage(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, r := range usage.Resources {
		if r.ResourceKind == kind {
			snapshot := r
			return &snapshot, nil
		}
	}
	return nil, shared.ErrNotFound
}

// activeSubscription loads the tenant's subscription and verifies it
// authorizes usage right now. A missing subscription is treated the same
// as an inactive one.
func (s *UsageService) activeSubscription(ctx context.Context, tenantID uuid.UUID) (*billing.Subscription, error) {
	sub, err := s.subRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, billing.ErrSubscriptionInactive
		}
		return nil, billing.NewTransientStoreError("subscription lookup", err)
	}
	if !sub.IsActive(time.Now()) {
		return nil, billing.ErrSubscriptionInactive
	}
	if sub.Plan == nil {
		return nil, billing.ErrSubscriptionInactive
	}
	return sub, nil
}
