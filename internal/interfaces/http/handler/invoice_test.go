package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	billingapp "github.com/accumanager/backend/internal/application/billing"
	"github.com/accumanager/backend/internal/domain/billing"
	"github.com/accumanager/backend/internal/domain/shared"
	"github.com/accumanager/backend/internal/domain/shared/valueobject"
	"github.com/accumanager/backend/internal/interfaces/http/dto"
	"github.com/accumanager/backend/internal/interfaces/http/middleware"
)

// MockInvoiceRepository implements billing.InvoiceRepository for testing
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*billing.Invoice, error) {
	args := m.Called(ctx, tenantID, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindBySchedulePeriod(ctx context.Context, tenantID, scheduleID uuid.UUID, periodStart time.Time) (*billing.Invoice, error) {
	args := m.Called(ctx, tenantID, scheduleID, periodStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) List(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]*billing.Invoice, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*billing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).(int64), args.Error(1)
}

// MockUsageCounterRepository implements billing.UsageCounterRepository for testing
type MockUsageCounterRepository struct {
	mock.Mock
}

func (m *MockUsageCounterRepository) TryIncrement(ctx context.Context, tenantID uuid.UUID, kind billing.ResourceKind, amount, limit int64) (bool, int64, error) {
	args := m.Called(ctx, tenantID, kind, amount, limit)
	return args.Bool(0), args.Get(1).(int64), args.Error(2)
}

func (m *MockUsageCounterRepository) Release(ctx context.Context, tenantID uuid.UUID, kind billing.ResourceKind, amount int64) error {
	args := m.Called(ctx, tenantID, kind, amount)
	return args.Error(0)
}

func (m *MockUsageCounterRepository) Get(ctx context.Context, tenantID uuid.UUID, kind billing.ResourceKind) (*billing.UsageCounter, error) {
	args := m.Called(ctx, tenantID, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.UsageCounter), args.Error(1)
}

func (m *MockUsageCounterRepository) GetAll(ctx context.Context, tenantID uuid.UUID) ([]*billing.UsageCounter, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.UsageCounter), args.Error(1)
}

// MockSubscriptionRepository implements billing.SubscriptionRepository for testing
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*billing.Subscription, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) FindPlanByCode(ctx context.Context, code string) (*billing.Plan, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Plan), args.Error(1)
}

func (m *MockSubscriptionRepository) Save(ctx context.Context, sub *billing.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, sub *billing.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

// newTestContext builds a gin test context carrying the tenant ID the way
// the tenant middleware would have set it
func newTestContext(t *testing.T, tenantID uuid.UUID, method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	if tenantID != uuid.Nil {
		c.Set(middleware.TenantIDKey, tenantID.String())
	}
	return c, w
}

func activeSubscription(t *testing.T, tenantID uuid.UUID, invoiceLimit int64) *billing.Subscription {
	t.Helper()

	plan := &billing.Plan{
		Code: billing.PlanCodeStarter,
		Name: "Starter",
		Limits: []billing.PlanLimit{
			{ResourceKind: billing.ResourceInvoices, Limit: invoiceLimit},
		},
	}
	sub, err := billing.NewSubscription(tenantID, uuid.New(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	sub.Plan = plan
	return sub
}

func testInvoice(t *testing.T, tenantID uuid.UUID) *billing.Invoice {
	t.Helper()

	inv, err := billing.NewInvoice(tenantID, "INV-000042", uuid.New(), billing.CustomerSnapshot{
		CustomerName:      "Sharma Traders",
		CustomerStateCode: "27",
	}, "27", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return inv
}

func newInvoiceHandlerWithMocks() (*InvoiceHandler, *MockInvoiceRepository, *MockUsageCounterRepository, *MockSubscriptionRepository) {
	invoiceRepo := new(MockInvoiceRepository)
	counterRepo := new(MockUsageCounterRepository)
	subRepo := new(MockSubscriptionRepository)

	usageService := billingapp.NewUsageService(counterRepo, subRepo)
	invoiceService := billingapp.NewInvoiceService(invoiceRepo, usageService)
	return NewInvoiceHandler(invoiceService), invoiceRepo, counterRepo, subRepo
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func createInvoiceBody(customerID uuid.UUID) billingapp.CreateInvoiceRequest {
	nine := decimal.NewFromInt(9)
	return billingapp.CreateInvoiceRequest{
		CustomerID:        customerID,
		CustomerName:      "Sharma Traders",
		CustomerStateCode: "27",
		SupplierStateCode: "27",
		Items: []billingapp.CreateInvoiceLineInput{
			{
				Description: "Consulting hours",
				Quantity:    decimal.NewFromInt(10),
				UnitPrice:   decimal.NewFromInt(500),
				CentralRate: &nine,
				StateRate:   &nine,
			},
		},
	}
}

func TestInvoiceHandler_Create(t *testing.T) {
	tenantID := uuid.New()

	t.Run("creates draft invoice", func(t *testing.T) {
		h, invoiceRepo, counterRepo, subRepo := newInvoiceHandlerWithMocks()

		subRepo.On("FindByTenant", mock.Anything, tenantID).Return(activeSubscription(t, tenantID, 100), nil)
		counterRepo.On("TryIncrement", mock.Anything, tenantID, billing.ResourceInvoices, int64(1), int64(100)).
			Return(true, int64(1), nil)
		invoiceRepo.On("NextInvoiceNumber", mock.Anything, tenantID).Return(int64(42), nil)
		invoiceRepo.On("Save", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return(nil)

		c, w := newTestContext(t, tenantID, http.MethodPost, "/billing/invoices", createInvoiceBody(uuid.New()))
		h.Create(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		resp := decodeResponse(t, w)
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, billingapp.FormatInvoiceNumber(tenantID, 42), data["invoice_number"])
		assert.Equal(t, "DRAFT", data["status"])
		invoiceRepo.AssertExpectations(t)
	})

	t.Run("store outage maps to service unavailable", func(t *testing.T) {
		h, invoiceRepo, counterRepo, subRepo := newInvoiceHandlerWithMocks()

		subRepo.On("FindByTenant", mock.Anything, tenantID).Return(activeSubscription(t, tenantID, 100), nil)
		counterRepo.On("TryIncrement", mock.Anything, tenantID, billing.ResourceInvoices, int64(1), int64(100)).
			Return(false, int64(0), errors.New("connection refused"))

		c, w := newTestContext(t, tenantID, http.MethodPost, "/billing/invoices", createInvoiceBody(uuid.New()))
		h.Create(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeResponse(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeTransient, resp.Error.Code)
		invoiceRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("rejects when invoice quota exhausted", func(t *testing.T) {
		h, invoiceRepo, counterRepo, subRepo := newInvoiceHandlerWithMocks()

		subRepo.On("FindByTenant", mock.Anything, tenantID).Return(activeSubscription(t, tenantID, 10), nil)
		counterRepo.On("TryIncrement", mock.Anything, tenantID, billing.ResourceInvoices, int64(1), int64(10)).
			Return(false, int64(10), nil)

		c, w := newTestContext(t, tenantID, http.MethodPost, "/billing/invoices", createInvoiceBody(uuid.New()))
		h.Create(c)

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		resp := decodeResponse(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeLimitExceeded, resp.Error.Code)
		invoiceRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("rejects inactive subscription", func(t *testing.T) {
		h, _, _, subRepo := newInvoiceHandlerWithMocks()

		subRepo.On("FindByTenant", mock.Anything, tenantID).Return(nil, shared.ErrNotFound)

		c, w := newTestContext(t, tenantID, http.MethodPost, "/billing/invoices", createInvoiceBody(uuid.New()))
		h.Create(c)

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeSubscriptionInactive, resp.Error.Code)
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		h, _, _, _ := newInvoiceHandlerWithMocks()

		c, w := newTestContext(t, tenantID, http.MethodPost, "/billing/invoices", map[string]any{
			"customer_name": "Missing everything else",
		})
		h.Create(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects missing tenant", func(t *testing.T) {
		h, _, _, _ := newInvoiceHandlerWithMocks()

		c, w := newTestContext(t, uuid.Nil, http.MethodPost, "/billing/invoices", createInvoiceBody(uuid.New()))
		h.Create(c)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestInvoiceHandler_GetByID(t *testing.T) {
	tenantID := uuid.New()

	t.Run("returns invoice", func(t *testing.T) {
		h, invoiceRepo, _, _ := newInvoiceHandlerWithMocks()

		inv := testInvoice(t, tenantID)
		invoiceRepo.On("FindByID", mock.Anything, tenantID, inv.ID).Return(inv, nil)

		c, w := newTestContext(t, tenantID, http.MethodGet, "/billing/invoices/"+inv.ID.String(), nil)
		c.Params = gin.Params{{Key: "id", Value: inv.ID.String()}}
		h.GetByID(c)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, inv.ID.String(), data["id"])
	})

	t.Run("returns 404 when missing", func(t *testing.T) {
		h, invoiceRepo, _, _ := newInvoiceHandlerWithMocks()

		missingID := uuid.New()
		invoiceRepo.On("FindByID", mock.Anything, tenantID, missingID).Return(nil, shared.ErrNotFound)

		c, w := newTestContext(t, tenantID, http.MethodGet, "/billing/invoices/"+missingID.String(), nil)
		c.Params = gin.Params{{Key: "id", Value: missingID.String()}}
		h.GetByID(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("rejects malformed id", func(t *testing.T) {
		h, _, _, _ := newInvoiceHandlerWithMocks()

		c, w := newTestContext(t, tenantID, http.MethodGet, "/billing/invoices/not-a-uuid", nil)
		c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
		h.GetByID(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestInvoiceHandler_List(t *testing.T) {
	tenantID := uuid.New()

	h, invoiceRepo, _, _ := newInvoiceHandlerWithMocks()

	invoices := []*billing.Invoice{testInvoice(t, tenantID), testInvoice(t, tenantID)}
	invoiceRepo.On("List", mock.Anything, tenantID, mock.AnythingOfType("billing.InvoiceFilter")).
		Return(invoices, int64(2), nil)

	c, w := newTestContext(t, tenantID, http.MethodGet, "/billing/invoices?page=1&page_size=20", nil)
	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(2), resp.Meta.Total)
}

func TestInvoiceHandler_Confirm(t *testing.T) {
	tenantID := uuid.New()

	t.Run("confirms draft", func(t *testing.T) {
		h, invoiceRepo, _, _ := newInvoiceHandlerWithMocks()

		inv := testInvoice(t, tenantID)
		central, err := billing.NewTaxRate(decimal.NewFromInt(9))
		require.NoError(t, err)
		state, err := billing.NewTaxRate(decimal.NewFromInt(9))
		require.NoError(t, err)
		_, err = inv.AddItem("Consulting hours", "", decimal.NewFromInt(1),
			valueobject.NewMoneyINR(decimal.NewFromInt(500)),
			valueobject.NewMoneyINR(decimal.Zero),
			billing.LineTaxRates{Central: &central, State: &state})
		require.NoError(t, err)

		invoiceRepo.On("FindByID", mock.Anything, tenantID, inv.ID).Return(inv, nil)
		invoiceRepo.On("Update", mock.Anything, inv).Return(nil)

		c, w := newTestContext(t, tenantID, http.MethodPost, "/billing/invoices/"+inv.ID.String()+"/confirm", nil)
		c.Params = gin.Params{{Key: "id", Value: inv.ID.String()}}
		h.Confirm(c)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "CONFIRMED", data["status"])
	})

	t.Run("rejects empty invoice", func(t *testing.T) {
		h, invoiceRepo, _, _ := newInvoiceHandlerWithMocks()

		inv := testInvoice(t, tenantID)
		invoiceRepo.On("FindByID", mock.Anything, tenantID, inv.ID).Return(inv, nil)

		c, w := newTestContext(t, tenantID, http.MethodPost, "/billing/invoices/"+inv.ID.String()+"/confirm", nil)
		c.Params = gin.Params{{Key: "id", Value: inv.ID.String()}}
		h.Confirm(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestInvoiceHandler_RecordPayment(t *testing.T) {
	tenantID := uuid.New()

	confirmedInvoice := func(t *testing.T) *billing.Invoice {
		t.Helper()
		inv := testInvoice(t, tenantID)
		central, err := billing.NewTaxRate(decimal.NewFromInt(9))
		require.NoError(t, err)
		state, err := billing.NewTaxRate(decimal.NewFromInt(9))
		require.NoError(t, err)
		_, err = inv.AddItem("Consulting hours", "", decimal.NewFromInt(1),
			valueobject.NewMoneyINR(decimal.NewFromInt(500)),
			valueobject.NewMoneyINR(decimal.Zero),
			billing.LineTaxRates{Central: &central, State: &state})
		require.NoError(t, err)
		require.NoError(t, inv.Confirm())
		return inv // grand total 590
	}

	t.Run("records a payment with its method", func(t *testing.T) {
		h, invoiceRepo, _, _ := newInvoiceHandlerWithMocks()

		inv := confirmedInvoice(t)
		invoiceRepo.On("FindByID", mock.Anything, tenantID, inv.ID).Return(inv, nil)
		invoiceRepo.On("Update", mock.Anything, inv).Return(nil)

		body := billingapp.RecordPaymentRequest{
			Amount: decimal.NewFromInt(590),
			Method: billing.PaymentMethodUPI,
		}
		c, w := newTestContext(t, tenantID, http.MethodPost, "/billing/invoices/"+inv.ID.String()+"/payments", body)
		c.Params = gin.Params{{Key: "id", Value: inv.ID.String()}}
		h.RecordPayment(c)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "PAID", data["payment_status"])
		assert.Equal(t, "UPI", data["payment_method"])
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		h, invoiceRepo, _, _ := newInvoiceHandlerWithMocks()

		inv := confirmedInvoice(t)
		body := map[string]any{"amount": "100", "method": "BARTER"}
		c, w := newTestContext(t, tenantID, http.MethodPost, "/billing/invoices/"+inv.ID.String()+"/payments", body)
		c.Params = gin.Params{{Key: "id", Value: inv.ID.String()}}
		h.RecordPayment(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		invoiceRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}
