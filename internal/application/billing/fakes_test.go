package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/accumanager/backend/internal/domain/billing"
	"github.com/accumanager/backend/internal/domain/shared"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// counterKey identifies one tenant's counter for one resource kind
type counterKey struct {
	tenantID uuid.UUID
	kind     billing.ResourceKind
}

// fakeCounterRepo is an in-memory UsageCounterRepository whose TryIncrement
// has the same atomicity as the SQL conditional update
type fakeCounterRepo struct {
	mu      sync.Mutex
	counts  map[counterKey]int64
	incErr  error
	escapes int // number of TryIncrement calls before incErr kicks in
}

func newFakeCounterRepo() *fakeCounterRepo {
	return &fakeCounterRepo{counts: make(map[counterKey]int64)}
}

func (r *fakeCounterRepo) TryIncrement(_ context.Context, tenantID uuid.UUID, kind billing.ResourceKind, amount, limit int64) (bool, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.incErr != nil {
		if r.escapes == 0 {
			return false, 0, r.incErr
		}
		r.escapes--
	}
	key := counterKey{tenantID, kind}
	current := r.counts[key]
	if limit >= 0 && current+amount > limit {
		return false, current, nil
	}
	r.counts[key] = current + amount
	return true, current + amount, nil
}

func (r *fakeCounterRepo) Release(_ context.Context, tenantID uuid.UUID, kind billing.ResourceKind, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := counterKey{tenantID, kind}
	if r.counts[key] < amount {
		r.counts[key] = 0
	} else {
		r.counts[key] -= amount
	}
	return nil
}

func (r *fakeCounterRepo) Get(_ context.Context, tenantID uuid.UUID, kind billing.ResourceKind) (*billing.UsageCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counter, err := billing.NewUsageCounter(tenantID, kind)
	if err != nil {
		return nil, err
	}
	counter.Count = r.counts[counterKey{tenantID, kind}]
	return counter, nil
}

func (r *fakeCounterRepo) GetAll(_ context.Context, tenantID uuid.UUID) ([]*billing.UsageCounter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var counters []*billing.UsageCounter
	for key, count := range r.counts {
		if key.tenantID != tenantID {
			continue
		}
		counter, err := billing.NewUsageCounter(tenantID, key.kind)
		if err != nil {
			return nil, err
		}
		counter.Count = count
		counters = append(counters, counter)
	}
	return counters, nil
}

func (r *fakeCounterRepo) count(tenantID uuid.UUID, kind billing.ResourceKind) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[counterKey{tenantID, kind}]
}

// fakeSubRepo is an in-memory SubscriptionRepository
type fakeSubRepo struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*billing.Subscription
}

func newFakeSubRepo() *fakeSubRepo {
	return &fakeSubRepo{subs: make(map[uuid.UUID]*billing.Subscription)}
}

func (r *fakeSubRepo) FindByTenant(_ context.Context, tenantID uuid.UUID) (*billing.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[tenantID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return sub, nil
}

func (r *fakeSubRepo) FindPlanByCode(_ context.Context, code string) (*billing.Plan, error) {
	return nil, shared.ErrNotFound
}

func (r *fakeSubRepo) Save(_ context.Context, sub *billing.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.TenantID] = sub
	return nil
}

func (r *fakeSubRepo) Update(_ context.Context, sub *billing.Subscription) error {
	return r.Save(context.Background(), sub)
}

// subscribe provisions an active subscription with the given limits
func (r *fakeSubRepo) subscribe(tenantID uuid.UUID, limits map[billing.ResourceKind]int64) *billing.Subscription {
	plan := &billing.Plan{
		BaseEntity: shared.NewBaseEntity(),
		Code:       billing.PlanCodeStarter,
		Name:       "Starter",
		IsActive:   true,
	}
	for kind, limit := range limits {
		plan.Limits = append(plan.Limits, billing.PlanLimit{
			BaseEntity:   shared.NewBaseEntity(),
			PlanID:       plan.ID,
			ResourceKind: kind,
			Limit:        limit,
		})
	}
	sub, _ := billing.NewSubscription(tenantID, plan.ID, time.Now().Add(-time.Hour))
	sub.Plan = plan
	r.mu.Lock()
	r.subs[tenantID] = sub
	r.mu.Unlock()
	return sub
}

// invoiceKey identifies a schedule occurrence
type invoiceKey struct {
	scheduleID  uuid.UUID
	periodStart time.Time
}

// fakeInvoiceRepo is an in-memory InvoiceRepository
type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*billing.Invoice
	byPeriod map[invoiceKey]uuid.UUID
	seqs     map[uuid.UUID]int64
	saveErr  error
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{
		invoices: make(map[uuid.UUID]*billing.Invoice),
		byPeriod: make(map[invoiceKey]uuid.UUID),
		seqs:     make(map[uuid.UUID]int64),
	}
}

func (r *fakeInvoiceRepo) Save(_ context.Context, inv *billing.Invoice) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.store(inv)
	return nil
}

func (r *fakeInvoiceRepo) store(inv *billing.Invoice) {
	r.invoices[inv.ID] = inv
	if inv.ScheduleID != nil && inv.PeriodStart != nil {
		r.byPeriod[invoiceKey{*inv.ScheduleID, inv.PeriodStart.UTC()}] = inv.ID
	}
}

func (r *fakeInvoiceRepo) Update(_ context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[inv.ID]; !ok {
		return shared.ErrNotFound
	}
	r.invoices[inv.ID] = inv
	return nil
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok || inv.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

func (r *fakeInvoiceRepo) FindByNumber(_ context.Context, tenantID uuid.UUID, number string) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID && inv.InvoiceNumber == number {
			return inv, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeInvoiceRepo) FindBySchedulePeriod(_ context.Context, tenantID, scheduleID uuid.UUID, periodStart time.Time) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPeriod[invoiceKey{scheduleID, periodStart.UTC()}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	inv := r.invoices[id]
	if inv.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return inv, nil
}

func (r *fakeInvoiceRepo) List(_ context.Context, tenantID uuid.UUID, _ billing.InvoiceFilter) ([]*billing.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*billing.Invoice
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID {
			out = append(out, inv)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeInvoiceRepo) NextInvoiceNumber(_ context.Context, tenantID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs[tenantID]++
	return r.seqs[tenantID], nil
}

func (r *fakeInvoiceRepo) invoiceCount(tenantID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, inv := range r.invoices {
		if inv.TenantID == tenantID {
			n++
		}
	}
	return n
}

// fakeScheduleRepo is an in-memory RecurringScheduleRepository
type fakeScheduleRepo struct {
	mu          sync.Mutex
	schedules   map[uuid.UUID]*billing.RecurringSchedule
	invoiceRepo *fakeInvoiceRepo
	commitErr   error
}

func newFakeScheduleRepo(invoiceRepo *fakeInvoiceRepo) *fakeScheduleRepo {
	return &fakeScheduleRepo{
		schedules:   make(map[uuid.UUID]*billing.RecurringSchedule),
		invoiceRepo: invoiceRepo,
	}
}

func (r *fakeScheduleRepo) Save(_ context.Context, s *billing.RecurringSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[s.ID] = s
	return nil
}

func (r *fakeScheduleRepo) Update(_ context.Context, s *billing.RecurringSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.schedules[s.ID]; !ok {
		return shared.ErrNotFound
	}
	r.schedules[s.ID] = s
	return nil
}

func (r *fakeScheduleRepo) FindByID(_ context.Context, tenantID, id uuid.UUID) (*billing.RecurringSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return s, nil
}

func (r *fakeScheduleRepo) List(_ context.Context, tenantID uuid.UUID, status *billing.ScheduleStatus, _, _ int) ([]*billing.RecurringSchedule, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*billing.RecurringSchedule
	for _, s := range r.schedules {
		if s.TenantID != tenantID {
			continue
		}
		if status != nil && s.Status != *status {
			continue
		}
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

func (r *fakeScheduleRepo) FindDue(_ context.Context, now time.Time, limit int) ([]*billing.RecurringSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*billing.RecurringSchedule
	for _, s := range r.schedules {
		if s.IsDue(now) && len(due) < limit {
			due = append(due, s)
		}
	}
	return due, nil
}

func (r *fakeScheduleRepo) CommitFire(_ context.Context, s *billing.RecurringSchedule, inv *billing.Invoice) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.schedules[s.ID] = s
	r.invoiceRepo.mu.Lock()
	r.invoiceRepo.store(inv)
	r.invoiceRepo.mu.Unlock()
	return nil
}

func (r *fakeScheduleRepo) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.TenantID != tenantID {
		return shared.ErrNotFound
	}
	delete(r.schedules, id)
	return nil
}
