package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/pricing"
	"github.com/shopmate/shopmate/internal/services"
)

func TestBestDiscountHandler(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	shopID := uuid.New()
	type call struct {
		Fee      float64
		Subtotal float64
		ShopID   *uuid.UUID
	}
	var got call
	env.handlers.discounts = stubDiscounts{
		best: func(_ context.Context, fee, subtotal float64, shop *uuid.UUID) (pricing.DiscountResult, error) {
			got = call{Fee: fee, Subtotal: subtotal, ShopID: shop}
			return pricing.DiscountResult{OriginalFee: fee, FinalFee: fee - 10, DiscountAmount: 10}, nil
		},
	}
	token := env.token(t, models.RoleCustomer, uuid.NewString())

	rec := env.do(t, http.MethodGet, "/v1/discounts/best?fee=40&subtotal=250&shop_id="+shopID.String(), token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if diff := cmp.Diff(call{Fee: 40, Subtotal: 250, ShopID: &shopID}, got); diff != "" {
		t.Fatalf("call mismatch (-want +got):\n%s", diff)
	}
	var result pricing.DiscountResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result.FinalFee != 30 {
		t.Fatalf("expected final fee 30, got %v", result.FinalFee)
	}

	rec = env.do(t, http.MethodGet, "/v1/discounts/best?fee=40&subtotal=250", token, "")
	if rec.Code != http.StatusOK || got.ShopID != nil {
		t.Fatalf("expected platform-wide lookup without shop_id, got status %d shop %v", rec.Code, got.ShopID)
	}

	tests := []struct {
		name  string
		query string
	}{
		{name: "missing fee", query: "subtotal=250"},
		{name: "bad subtotal", query: "fee=40&subtotal=lots"},
		{name: "bad shop", query: "fee=40&subtotal=250&shop_id=corner-store"},
	}
	for _, tc := range tests {
		if rec := env.do(t, http.MethodGet, "/v1/discounts/best?"+tc.query, token, ""); rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
	}
}

func TestQuoteHandler(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	shopID := uuid.New()
	var gotItems []pricing.PricedItem
	env.handlers.discounts = stubDiscounts{
		quote: func(_ context.Context, shop uuid.UUID, items []pricing.PricedItem, _ *models.LatLng) (pricing.Quote, pricing.DiscountResult, error) {
			if shop != shopID {
				return pricing.Quote{}, pricing.DiscountResult{}, services.ErrShopUnavailable
			}
			gotItems = items
			return pricing.Quote{
				ValueBreakdown: models.ValueBreakdown{Subtotal: 100, DeliveryFee: 30, Taxes: 5, Total: 135},
				DistanceMeters: 2500,
			}, pricing.DiscountResult{OriginalFee: 30, FinalFee: 0, DiscountAmount: 30}, nil
		},
	}
	token := env.token(t, models.RoleCustomer, uuid.NewString())

	rec := env.do(t, http.MethodPost, "/v1/quotes", token, `{"shop_id":"`+shopID.String()+`","items":[{"price":50,"quantity":2}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if diff := cmp.Diff([]pricing.PricedItem{{Price: 50, Quantity: 2}}, gotItems); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}
	var body quoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Total != 135 || body.DistanceMeters != 2500 || body.BestDiscount.FinalFee != 0 {
		t.Fatalf("unexpected quote %+v", body)
	}

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "no items", body: `{"shop_id":"` + shopID.String() + `","items":[]}`, wantStatus: http.StatusBadRequest},
		{name: "zero quantity", body: `{"shop_id":"` + shopID.String() + `","items":[{"price":50,"quantity":0}]}`, wantStatus: http.StatusBadRequest},
		{name: "unknown shop", body: `{"shop_id":"` + uuid.NewString() + `","items":[{"price":50,"quantity":1}]}`, wantStatus: http.StatusUnprocessableEntity},
	}
	for _, tc := range tests {
		if rec := env.do(t, http.MethodPost, "/v1/quotes", token, tc.body); rec.Code != tc.wantStatus {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.wantStatus, rec.Code)
		}
	}
}
