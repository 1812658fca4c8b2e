package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMovementInputSignedQuantity(t *testing.T) {
	qty := decimal.RequireFromString("4")

	in := MovementInput{Kind: MovementKindStockIn, Quantity: qty}
	if got := in.SignedQuantity(); !got.Equal(qty) {
		t.Fatalf("inbound must stay positive, got %s", got)
	}

	out := MovementInput{Kind: MovementKindSale, Quantity: qty}
	if got := out.SignedQuantity(); !got.Equal(qty.Neg()) {
		t.Fatalf("outbound must be negated, got %s", got)
	}

	// A caller passing an already-negative quantity for an outbound kind must
	// not double-negate back to positive.
	neg := MovementInput{Kind: MovementKindDamage, Quantity: qty.Neg()}
	if got := neg.SignedQuantity(); !got.Equal(qty.Neg()) {
		t.Fatalf("outbound with negative input must stay negative, got %s", got)
	}
}

func TestSaleStatusHoldsStock(t *testing.T) {
	holding := []SaleStatus{SaleStatusPending, SaleStatusCompleted}
	for _, s := range holding {
		if !s.HoldsStock() {
			t.Fatalf("status %s must hold stock", s)
		}
	}
	released := []SaleStatus{SaleStatusCancelled, SaleStatusRefunded}
	for _, s := range released {
		if s.HoldsStock() {
			t.Fatalf("status %s must not hold stock", s)
		}
	}
}
