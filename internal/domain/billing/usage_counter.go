package billing

import (
	"github.com/google/uuid"

	"github.com/accumanager/backend/internal/domain/shared"
)

// ResourceKind identifies a countable resource governed by plan limits
type ResourceKind string

const (
	ResourceCustomers          ResourceKind = "customers"
	ResourceInvoices           ResourceKind = "invoices"
	ResourceEvents             ResourceKind = "events"
	ResourceRecurringSchedules ResourceKind = "recurring_schedules"
)

// AllResourceKinds lists every governed resource, in reporting order
var AllResourceKinds = []ResourceKind{
	ResourceCustomers,
	ResourceInvoices,
	ResourceEvents,
	ResourceRecurringSchedules,
}

// IsValid returns true if the resource kind is known
func (k ResourceKind) IsValid() bool {
	switch k {
	case ResourceCustomers, ResourceInvoices, ResourceEvents, ResourceRecurringSchedules:
		return true
	}
	return false
}

// String returns the string representation of ResourceKind
func (k ResourceKind) String() string {
	return string(k)
}

// Reclaimable reports whether deleting an instance of the resource frees
// quota. Customers and schedules are live counts, so removal gives the
// slot back. Invoices and events are audit records that are never uncounted
// even when cancelled.
func (k ResourceKind) Reclaimable() bool {
	switch k {
	case ResourceCustomers, ResourceRecurringSchedules:
		return true
	}
	return false
}

// UsageCounter is one tenant's consumption of one resource kind.
// The count only ever changes through the repository's conditional
// increment, so reading it here is a snapshot, not a reservation.
type UsageCounter struct {
	shared.BaseEntity
	TenantID     uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_usage_tenant_kind"`
	ResourceKind ResourceKind `gorm:"type:varchar(32);not null;uniqueIndex:idx_usage_tenant_kind"`
	Count        int64        `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (UsageCounter) TableName() string {
	return "usage_counters"
}

// NewUsageCounter creates a zeroed counter for a tenant and resource kind
func NewUsageCounter(tenantID uuid.UUID, kind ResourceKind) (*UsageCounter, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_RESOURCE_KIND", "Unknown resource kind")
	}
	return &UsageCounter{
		BaseEntity:   shared.NewBaseEntity(),
		TenantID:     tenantID,
		ResourceKind: kind,
		Count:        0,
	}, nil
}

// Headroom returns how many more units fit under the given limit.
// A negative limit means unlimited.
func (c *UsageCounter) Headroom(limit int64) int64 {
	if limit < 0 {
		return -1
	}
	if c.Count >= limit {
		return 0
	}
	return limit - c.Count
}

// UsageSnapshot is a read model pairing a counter with its plan limit
type UsageSnapshot struct {
	ResourceKind ResourceKind `json:"resource_kind"`
	Used         int64        `json:"used"`
	Limit        int64        `json:"limit"` // -1 means unlimited
}

// Remaining returns the headroom left, or -1 when unlimited
func (s UsageSnapshot) Remaining() int64 {
	if s.Limit < 0 {
		return -1
	}
	if s.Used >= s.Limit {
		return 0
	}
	return s.Limit - s.Used
}
