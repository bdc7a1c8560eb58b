package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/internal/emaildelivery"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
)

type stubTracker struct {
	emaildelivery.Tracker
	sweep         func(ctx context.Context) (emaildelivery.SweepResult, error)
	listExhausted func(ctx context.Context, limit int) ([]models.EmailDelivery, error)
}

func (s *stubTracker) SweepRetries(ctx context.Context) (emaildelivery.SweepResult, error) {
	return s.sweep(ctx)
}

func (s *stubTracker) ListExhausted(ctx context.Context, limit int) ([]models.EmailDelivery, error) {
	return s.listExhausted(ctx, limit)
}

func TestRetryEmailDeliveriesReturnsSweepResult(t *testing.T) {
	tracker := &stubTracker{
		sweep: func(context.Context) (emaildelivery.SweepResult, error) {
			return emaildelivery.SweepResult{Attempted: 3, Succeeded: 2, StillFailed: 1}, nil
		},
	}
	resp := httptest.NewRecorder()
	RetryEmailDeliveries(tracker, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/api/admin/v1/email-deliveries/retry", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data emaildelivery.SweepResult `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Attempted != 3 || envelope.Data.Succeeded != 2 {
		t.Fatalf("unexpected result %+v", envelope.Data)
	}
}

func TestRetryEmailDeliveriesSurfacesDependencyError(t *testing.T) {
	tracker := &stubTracker{
		sweep: func(context.Context) (emaildelivery.SweepResult, error) {
			return emaildelivery.SweepResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "list retryable deliveries")
		},
	}
	resp := httptest.NewRecorder()
	RetryEmailDeliveries(tracker, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestListExhaustedEmailDeliveriesOmitsContent(t *testing.T) {
	tracker := &stubTracker{
		listExhausted: func(ctx context.Context, limit int) ([]models.EmailDelivery, error) {
			if limit != 5 {
				t.Fatalf("unexpected limit %d", limit)
			}
			return []models.EmailDelivery{{
				ID:         uuid.New(),
				Recipient:  "buyer@example.com",
				Subject:    "Your group order shipped",
				Content:    "<p>secret body</p>",
				Status:     enums.EmailDeliveryStatusFailed,
				RetryCount: 3,
				MaxRetries: 3,
			}}, nil
		},
	}
	resp := httptest.NewRecorder()
	ListExhaustedEmailDeliveries(tracker, testLogger())(resp, httptest.NewRequest(http.MethodGet, "/api/admin/v1/email-deliveries/exhausted?limit=5", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Items []map[string]any `json:"items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data.Items) != 1 {
		t.Fatalf("expected one item, got %d", len(envelope.Data.Items))
	}
	if _, ok := envelope.Data.Items[0]["content"]; ok {
		t.Fatalf("content must not be exposed")
	}
}
