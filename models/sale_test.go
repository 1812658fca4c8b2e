package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeLineTotalClampsAtZero(t *testing.T) {
	// Discount larger than the line can never make it negative.
	total := ComputeLineTotal(d("2"), d("100"), d("250"))
	if !total.IsZero() {
		t.Fatalf("expected 0, got %s", total)
	}
}

func TestComputeLineTotal(t *testing.T) {
	cases := []struct {
		qty, unit, discount, want string
	}{
		{"1", "100", "0", "100"},
		{"3", "19.99", "0", "59.97"},
		{"2", "100", "25", "175"},
		{"0.5", "99.99", "0", "50"},
	}
	for _, c := range cases {
		got := ComputeLineTotal(d(c.qty), d(c.unit), d(c.discount))
		if !got.Equal(d(c.want)) {
			t.Fatalf("qty=%s unit=%s discount=%s: expected %s, got %s", c.qty, c.unit, c.discount, c.want, got)
		}
	}
}

func TestSaleRecalcTotals(t *testing.T) {
	productId := "p-1"
	serviceId := "s-1"
	sale := Sale{
		Items: []SaleItem{
			{ItemType: SaleItemTypeProduct, ProductId: &productId, Quantity: d("4"), UnitPrice: d("2000"), Discount: d("0"), LineTotal: ComputeLineTotal(d("4"), d("2000"), d("0"))},
			{ItemType: SaleItemTypeService, ServiceId: &serviceId, Quantity: d("1"), UnitPrice: d("500"), Discount: d("100"), LineTotal: ComputeLineTotal(d("1"), d("500"), d("100"))},
		},
	}
	sale.recalcTotals()
	if !sale.Subtotal.Equal(d("8500")) {
		t.Fatalf("expected subtotal 8500, got %s", sale.Subtotal)
	}
	if !sale.DiscountTotal.Equal(d("100")) {
		t.Fatalf("expected discount total 100, got %s", sale.DiscountTotal)
	}
	if !sale.TotalAmount.Equal(d("8400")) {
		t.Fatalf("expected total 8400, got %s", sale.TotalAmount)
	}
}

func TestSaleItemUnionValidation(t *testing.T) {
	productId := "p-1"
	serviceId := "s-1"

	ok := SaleItem{ItemType: SaleItemTypeProduct, ProductId: &productId}
	if err := ok.validateUnion(); err != nil {
		t.Fatalf("valid product item rejected: %v", err)
	}

	both := SaleItem{ItemType: SaleItemTypeProduct, ProductId: &productId, ServiceId: &serviceId}
	if err := both.validateUnion(); err == nil {
		t.Fatalf("product item carrying service_id must be rejected")
	}

	missing := SaleItem{ItemType: SaleItemTypeService}
	if err := missing.validateUnion(); err == nil {
		t.Fatalf("service item without service_id must be rejected")
	}

	bad := SaleItem{ItemType: "gift"}
	if err := bad.validateUnion(); err == nil {
		t.Fatalf("unknown item type must be rejected")
	}
}

func TestSaleStatusIsRevenue(t *testing.T) {
	if !SaleStatusCompleted.IsRevenue() {
		t.Fatalf("completed sales must count as revenue")
	}
	for _, s := range []SaleStatus{SaleStatusPending, SaleStatusCancelled, SaleStatusRefunded} {
		if s.IsRevenue() {
			t.Fatalf("status %s must not count as revenue", s)
		}
	}
}
