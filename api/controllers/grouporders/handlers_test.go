package grouporders

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalgrouporders "github.com/angelmondragon/groupbuy-backend/internal/grouporders"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

type stubService struct {
	open       func(ctx context.Context, input internalgrouporders.OpenInput) (*models.GroupOrder, error)
	get        func(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error)
	join       func(ctx context.Context, input internalgrouporders.JoinInput) (*internalgrouporders.JoinResult, error)
	transition func(ctx context.Context, id uuid.UUID, input internalgrouporders.TransitionInput) (*models.GroupOrder, error)
	cancel     func(ctx context.Context, id uuid.UUID, reason string) (*models.GroupOrder, error)
	cancelOrd  func(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
}

func (s *stubService) OpenGroupOrder(ctx context.Context, input internalgrouporders.OpenInput) (*models.GroupOrder, error) {
	return s.open(ctx, input)
}

func (s *stubService) GetGroupOrder(ctx context.Context, id uuid.UUID) (*models.GroupOrder, error) {
	return s.get(ctx, id)
}

func (s *stubService) JoinGroupOrder(ctx context.Context, input internalgrouporders.JoinInput) (*internalgrouporders.JoinResult, error) {
	return s.join(ctx, input)
}

func (s *stubService) TransitionGroupOrder(ctx context.Context, id uuid.UUID, input internalgrouporders.TransitionInput) (*models.GroupOrder, error) {
	return s.transition(ctx, id, input)
}

func (s *stubService) CancelGroupOrder(ctx context.Context, id uuid.UUID, reason string) (*models.GroupOrder, error) {
	return s.cancel(ctx, id, reason)
}

func (s *stubService) CancelOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	return s.cancelOrd(ctx, orderID, userID)
}

func (s *stubService) ConfirmPayment(context.Context, uuid.UUID, string) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubService) ExpireDue(context.Context, int) (internalgrouporders.ExpireResult, error) {
	panic("not implemented")
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func sampleGroupOrder(id uuid.UUID) *models.GroupOrder {
	return &models.GroupOrder{
		ID:              id,
		BatchNumber:     "GB-20261015-0001",
		ProductID:       uuid.New(),
		Status:          enums.GroupOrderStatusCollecting,
		MinThreshold:    decimal.NewFromInt(500),
		TargetQuantity:  100,
		PricePerUnit:    decimal.NewFromInt(50),
		CurrentAmount:   decimal.NewFromInt(150),
		CurrentQuantity: 3,
		ExpiresAt:       time.Now().Add(24 * time.Hour),
	}
}

func TestGetReturnsGroupOrderView(t *testing.T) {
	id := uuid.New()
	svc := &stubService{
		get: func(ctx context.Context, got uuid.UUID) (*models.GroupOrder, error) {
			if got != id {
				t.Fatalf("unexpected id %s", got)
			}
			return sampleGroupOrder(id), nil
		},
	}

	req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/group-orders/"+id.String(), nil), map[string]string{"groupOrderId": id.String()})
	resp := httptest.NewRecorder()
	Get(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			ID                uuid.UUID `json:"id"`
			Status            string    `json:"status"`
			RemainingCapacity *int      `json:"remaining_capacity"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.ID != id || envelope.Data.Status != "collecting" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
	if envelope.Data.RemainingCapacity == nil || *envelope.Data.RemainingCapacity != 97 {
		t.Fatalf("expected remaining capacity 97, got %v", envelope.Data.RemainingCapacity)
	}
}

func TestGetRejectsMalformedID(t *testing.T) {
	svc := &stubService{}
	req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/group-orders/nope", nil), map[string]string{"groupOrderId": "nope"})
	resp := httptest.NewRecorder()
	Get(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGetMapsNotFound(t *testing.T) {
	svc := &stubService{
		get: func(context.Context, uuid.UUID) (*models.GroupOrder, error) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "group order not found")
		},
	}
	id := uuid.NewString()
	req := withParams(httptest.NewRequest(http.MethodGet, "/api/v1/group-orders/"+id, nil), map[string]string{"groupOrderId": id})
	resp := httptest.NewRecorder()
	Get(svc, testLogger())(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestJoinPassesInputAndReturnsCreated(t *testing.T) {
	groupID := uuid.New()
	userID := uuid.New()
	svc := &stubService{
		join: func(ctx context.Context, input internalgrouporders.JoinInput) (*internalgrouporders.JoinResult, error) {
			if input.GroupOrderID != groupID || input.UserID != userID || input.Quantity != 4 {
				t.Fatalf("unexpected join input %+v", input)
			}
			group := sampleGroupOrder(groupID)
			return &internalgrouporders.JoinResult{
				Order: models.Order{
					ID:           uuid.New(),
					OrderNumber:  "ORD-20261015-ABCDEF",
					UserID:       userID,
					GroupOrderID: groupID,
					Quantity:     4,
					UnitPrice:    decimal.NewFromInt(50),
					TotalAmount:  decimal.NewFromInt(200),
					Status:       enums.OrderStatusPending,
				},
				GroupOrder:   *group,
				ThresholdMet: true,
			}, nil
		},
	}

	body := `{"user_id":"` + userID.String() + `","quantity":4}`
	req := withParams(httptest.NewRequest(http.MethodPost, "/api/v1/group-orders/"+groupID.String()+"/join", strings.NewReader(body)), map[string]string{"groupOrderId": groupID.String()})
	resp := httptest.NewRecorder()
	Join(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			ThresholdMet bool `json:"threshold_met"`
			Order        struct {
				TotalAmount string `json:"total_amount"`
			} `json:"order"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Data.ThresholdMet {
		t.Fatalf("expected threshold_met in response")
	}
	if envelope.Data.Order.TotalAmount != "200" {
		t.Fatalf("unexpected total %q", envelope.Data.Order.TotalAmount)
	}
}

func TestJoinRejectsNonPositiveQuantity(t *testing.T) {
	svc := &stubService{}
	groupID := uuid.NewString()
	body := `{"user_id":"` + uuid.NewString() + `","quantity":0}`
	req := withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), map[string]string{"groupOrderId": groupID})
	resp := httptest.NewRecorder()
	Join(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestJoinSurfacesQuantityViolation(t *testing.T) {
	svc := &stubService{
		join: func(context.Context, internalgrouporders.JoinInput) (*internalgrouporders.JoinResult, error) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity below minimum order quantity").
				WithDetails(internalgrouporders.QuantityViolationDetail{MinOrderQty: 10, RequestedQty: 5})
		},
	}
	groupID := uuid.NewString()
	body := `{"user_id":"` + uuid.NewString() + `","quantity":5}`
	req := withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), map[string]string{"groupOrderId": groupID})
	resp := httptest.NewRecorder()
	Join(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "below minimum") {
		t.Fatalf("expected violation message, got %s", resp.Body.String())
	}
}

func TestTransitionParsesStatus(t *testing.T) {
	id := uuid.New()
	svc := &stubService{
		transition: func(ctx context.Context, got uuid.UUID, input internalgrouporders.TransitionInput) (*models.GroupOrder, error) {
			if input.Status != enums.GroupOrderStatusShipped {
				t.Fatalf("unexpected status %s", input.Status)
			}
			group := sampleGroupOrder(got)
			group.Status = enums.GroupOrderStatusShipped
			return group, nil
		},
	}
	req := withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"shipped"}`)), map[string]string{"groupOrderId": id.String()})
	resp := httptest.NewRecorder()
	Transition(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	svc := &stubService{}
	req := withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"teleported"}`)), map[string]string{"groupOrderId": uuid.NewString()})
	resp := httptest.NewRecorder()
	Transition(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestTransitionSurfacesStateConflict(t *testing.T) {
	svc := &stubService{
		transition: func(context.Context, uuid.UUID, internalgrouporders.TransitionInput) (*models.GroupOrder, error) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "illegal transition")
		},
	}
	req := withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"delivered"}`)), map[string]string{"groupOrderId": uuid.NewString()})
	resp := httptest.NewRecorder()
	Transition(svc, testLogger())(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.Code)
	}
}

func TestCancelAcceptsEmptyBody(t *testing.T) {
	id := uuid.New()
	svc := &stubService{
		cancel: func(ctx context.Context, got uuid.UUID, reason string) (*models.GroupOrder, error) {
			if reason != "" {
				t.Fatalf("expected empty reason, got %q", reason)
			}
			group := sampleGroupOrder(got)
			group.Status = enums.GroupOrderStatusCancelled
			return group, nil
		},
	}
	req := withParams(httptest.NewRequest(http.MethodPost, "/", nil), map[string]string{"groupOrderId": id.String()})
	resp := httptest.NewRecorder()
	Cancel(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCancelOrderRequiresUser(t *testing.T) {
	svc := &stubService{}
	req := withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`)), map[string]string{"orderId": uuid.NewString()})
	resp := httptest.NewRecorder()
	CancelOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestCancelOrderReturnsOrder(t *testing.T) {
	orderID := uuid.New()
	userID := uuid.New()
	svc := &stubService{
		cancelOrd: func(ctx context.Context, gotOrder, gotUser uuid.UUID) (*models.Order, error) {
			if gotOrder != orderID || gotUser != userID {
				t.Fatalf("unexpected ids %s %s", gotOrder, gotUser)
			}
			return &models.Order{ID: orderID, UserID: userID, Status: enums.OrderStatusCancelled}, nil
		},
	}
	body := `{"user_id":"` + userID.String() + `"}`
	req := withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), map[string]string{"orderId": orderID.String()})
	resp := httptest.NewRecorder()
	CancelOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"status":"cancelled"`) {
		t.Fatalf("expected cancelled order, got %s", resp.Body.String())
	}
}

func TestOpenDefaultsToAutomaticPricing(t *testing.T) {
	productID := uuid.New()
	svc := &stubService{
		open: func(ctx context.Context, input internalgrouporders.OpenInput) (*models.GroupOrder, error) {
			if input.Pricing.Mode != enums.DiscountModeAutomatic {
				t.Fatalf("expected automatic pricing, got %s", input.Pricing.Mode)
			}
			if !input.MinThreshold.Equal(decimal.NewFromInt(1000)) {
				t.Fatalf("unexpected threshold %s", input.MinThreshold)
			}
			return sampleGroupOrder(uuid.New()), nil
		},
	}
	body := `{"product_id":"` + productID.String() + `","min_threshold":"1000","target_quantity":200,"expires_at":"2030-01-01T00:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/group-orders", strings.NewReader(body))
	resp := httptest.NewRecorder()
	Open(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}
