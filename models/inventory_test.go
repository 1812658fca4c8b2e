package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestClassifyStockLevel(t *testing.T) {
	reorder := d("5")

	cases := []struct {
		qty     string
		reorder *decimal.Decimal
		want    StockStatus
	}{
		{"0", &reorder, StockStatusOutOfStock},
		{"-1", &reorder, StockStatusOutOfStock},
		{"3", &reorder, StockStatusLowStock},
		{"5", &reorder, StockStatusLowStock},
		{"6", &reorder, StockStatusInStock},
		{"1", nil, StockStatusInStock},
		{"0", nil, StockStatusOutOfStock},
	}
	for _, c := range cases {
		if got := ClassifyStockLevel(d(c.qty), c.reorder); got != c.want {
			t.Fatalf("qty=%s reorder=%v: expected %s, got %s", c.qty, c.reorder, c.want, got)
		}
	}
}

func TestMovementKindOutbound(t *testing.T) {
	outbound := []MovementKind{MovementKindStockOut, MovementKindSale, MovementKindDamage, MovementKindTheft}
	for _, k := range outbound {
		if !k.Outbound() {
			t.Fatalf("kind %s must be outbound", k)
		}
	}
	inbound := []MovementKind{MovementKindOpeningStock, MovementKindStockIn, MovementKindReturn, MovementKindAdjustment}
	for _, k := range inbound {
		if k.Outbound() {
			t.Fatalf("kind %s must not be outbound", k)
		}
	}
}
