package models

import (
	"testing"
	"time"
)

func TestAssetEffectiveValue(t *testing.T) {
	asset := Asset{PurchasePrice: d("8000")}
	if got := asset.EffectiveValue(); !got.Equal(d("8000")) {
		t.Fatalf("expected purchase-price fallback 8000, got %s", got)
	}

	revalued := d("6500")
	asset.CurrentValue = &revalued
	if got := asset.EffectiveValue(); !got.Equal(d("6500")) {
		t.Fatalf("expected recorded value 6500, got %s", got)
	}
}

func TestAssetAnnualDepreciation(t *testing.T) {
	life := 5
	asset := Asset{PurchasePrice: d("10000"), SalvageValue: d("1000"), UsefulLifeYears: &life}
	if got := asset.AnnualDepreciation(); !got.Equal(d("1800")) {
		t.Fatalf("expected 1800 per year, got %s", got)
	}

	noLife := Asset{PurchasePrice: d("10000")}
	if got := noLife.AnnualDepreciation(); !got.IsZero() {
		t.Fatalf("no useful life must not depreciate, got %s", got)
	}

	salvageAbove := Asset{PurchasePrice: d("1000"), SalvageValue: d("1000"), UsefulLifeYears: &life}
	if got := salvageAbove.AnnualDepreciation(); !got.IsZero() {
		t.Fatalf("zero depreciable base must not depreciate, got %s", got)
	}
}

func TestAssetBookValueFloorsAtSalvage(t *testing.T) {
	life := 2
	purchase := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	asset := Asset{
		PurchasePrice:   d("10000"),
		SalvageValue:    d("1000"),
		UsefulLifeYears: &life,
		PurchaseDate:    purchase,
	}

	// Well past the useful life the value rests at salvage.
	if got := asset.BookValue(purchase.AddDate(10, 0, 0)); !got.Equal(d("1000")) {
		t.Fatalf("expected salvage floor 1000, got %s", got)
	}
	// Before purchase nothing has been written down.
	if got := asset.BookValue(purchase.AddDate(0, 0, -1)); !got.Equal(d("10000")) {
		t.Fatalf("expected full price before purchase, got %s", got)
	}
	// Mid-life sits strictly between the bounds.
	mid := asset.BookValue(purchase.AddDate(1, 0, 0))
	if mid.Cmp(d("1000")) <= 0 || mid.Cmp(d("10000")) >= 0 {
		t.Fatalf("mid-life value out of bounds: %s", mid)
	}
}

func TestAssetDepreciationPercentCaps(t *testing.T) {
	life := 2
	purchase := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	asset := Asset{
		PurchasePrice:   d("10000"),
		SalvageValue:    d("1000"),
		UsefulLifeYears: &life,
		PurchaseDate:    purchase,
	}

	if got := asset.DepreciationPercent(purchase.AddDate(0, 0, -1)); !got.IsZero() {
		t.Fatalf("expected 0%% before purchase, got %s", got)
	}
	if got := asset.DepreciationPercent(purchase.AddDate(10, 0, 0)); !got.Equal(d("100")) {
		t.Fatalf("expected 100%% past useful life, got %s", got)
	}
	mid := asset.DepreciationPercent(purchase.AddDate(1, 0, 0))
	if mid.Sign() <= 0 || mid.Cmp(d("100")) >= 0 {
		t.Fatalf("mid-life percent out of bounds: %s", mid)
	}
}
