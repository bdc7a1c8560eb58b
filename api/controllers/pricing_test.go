package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/groupbuy-backend/internal/discounts"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

type pricerFunc func(ctx context.Context, productID uuid.UUID, quantity int, selection discounts.Selection) (discounts.Result, error)

func (f pricerFunc) ComputePrice(ctx context.Context, productID uuid.UUID, quantity int, selection discounts.Selection) (discounts.Result, error) {
	return f(ctx, productID, quantity, selection)
}

func TestPricingQuoteReturnsLineTotal(t *testing.T) {
	productID := uuid.New()
	svc := pricerFunc(func(ctx context.Context, id uuid.UUID, quantity int, selection discounts.Selection) (discounts.Result, error) {
		if id != productID || quantity != 200 {
			t.Fatalf("unexpected args %s %d", id, quantity)
		}
		if selection.Mode != enums.DiscountModeAutomatic {
			t.Fatalf("expected automatic mode, got %s", selection.Mode)
		}
		return discounts.Result{
			Mode:           enums.DiscountModeAutomatic,
			Quantity:       quantity,
			BasePrice:      decimal.NewFromInt(100),
			TotalDiscount:  decimal.NewFromInt(10),
			EffectivePrice: decimal.NewFromInt(90),
		}, nil
	})

	body := `{"product_id":"` + productID.String() + `","quantity":200}`
	resp := httptest.NewRecorder()
	PricingQuote(svc, testLogger())(resp, httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", strings.NewReader(body)))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			EffectivePrice string `json:"effective_price"`
			LineTotal      string `json:"line_total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.EffectivePrice != "90" || envelope.Data.LineTotal != "18000" {
		t.Fatalf("unexpected quote %+v", envelope.Data)
	}
}

func TestPricingQuoteRejectsUnknownMode(t *testing.T) {
	body := `{"product_id":"` + uuid.NewString() + `","quantity":1,"mode":"coupon"}`
	resp := httptest.NewRecorder()
	PricingQuote(pricerFunc(nil), testLogger())(resp, httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", strings.NewReader(body)))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
