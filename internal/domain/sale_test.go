package domain_test

import (
	"testing"

	"github.com/relayhub/fanout-gateway/internal/domain"
)

func TestCreateChargeRequest_Validate(t *testing.T) {
	base := domain.CreateChargeRequest{
		BuyerName:  "Ana",
		BuyerPhone: "5511999990000",
		ProductID:  "prod-1",
	}

	tests := []struct {
		name        string
		mutate      func(*domain.CreateChargeRequest)
		expectedErr error
	}{
		{"valid product", func(r *domain.CreateChargeRequest) {}, nil},
		{"valid combo", func(r *domain.CreateChargeRequest) {
			r.ProductID = ""
			r.ComboID = "combo-1"
		}, nil},
		{"missing name", func(r *domain.CreateChargeRequest) { r.BuyerName = "" }, domain.ErrMissingBuyer},
		{"missing phone", func(r *domain.CreateChargeRequest) { r.BuyerPhone = "" }, domain.ErrMissingBuyer},
		{"neither item", func(r *domain.CreateChargeRequest) { r.ProductID = "" }, domain.ErrAmbiguousItem},
		{"both items", func(r *domain.CreateChargeRequest) { r.ComboID = "combo-1" }, domain.ErrAmbiguousItem},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := base
			tc.mutate(&req)
			if err := req.Validate(); err != tc.expectedErr {
				t.Fatalf("expected %v, got %v", tc.expectedErr, err)
			}
		})
	}
}

func TestEndpoint_Subscribed(t *testing.T) {
	e := domain.Endpoint{Events: []domain.EventType{domain.EventSaleCreated, domain.EventPaymentConfirmed}}
	if !e.Subscribed(domain.EventSaleCreated) {
		t.Fatal("expected subscription to sale.created")
	}
	if e.Subscribed(domain.EventPaymentExpired) {
		t.Fatal("did not expect subscription to payment.expired")
	}
}
