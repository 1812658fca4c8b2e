package models

import (
	"testing"
)

func TestProductProfitMargin(t *testing.T) {
	cost := d("800")
	p := Product{SellingPrice: d("1000"), CostPrice: &cost}
	got := p.ProfitMargin()
	if got == nil || !got.Equal(d("25")) {
		t.Fatalf("expected 25%% margin, got %v", got)
	}

	noCost := Product{SellingPrice: d("1000")}
	if noCost.ProfitMargin() != nil {
		t.Fatalf("missing cost must yield nil margin")
	}

	zeroCost := d("0")
	free := Product{SellingPrice: d("1000"), CostPrice: &zeroCost}
	if free.ProfitMargin() != nil {
		t.Fatalf("zero cost must yield nil margin")
	}
}

func TestProductStockValue(t *testing.T) {
	cost := d("800")
	p := Product{SellingPrice: d("1000"), CostPrice: &cost}
	if got := p.StockValue(d("3")); !got.Equal(d("2400")) {
		t.Fatalf("expected stock valued at cost 2400, got %s", got)
	}

	noCost := Product{SellingPrice: d("1000")}
	if got := noCost.StockValue(d("3")); !got.Equal(d("3000")) {
		t.Fatalf("expected selling-price fallback 3000, got %s", got)
	}
}
