package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateTax(t *testing.T) {
	cases := []struct {
		turnover string
		taxable  string
		taxDue   string
	}{
		{"0", "0", "0"},
		{"800", "0", "0"},
		{"1000", "0", "0"},
		{"1000.01", "0.01", "0"},
		{"1010.55", "10.55", "0.53"},
		{"8000", "7000", "350"},
		{"123456.78", "122456.78", "6122.84"},
	}
	for _, c := range cases {
		taxable, taxDue := CalculateTax(decimal.RequireFromString(c.turnover), DefaultTaxThreshold, DefaultTaxRate)
		if !taxable.Equal(decimal.RequireFromString(c.taxable)) {
			t.Fatalf("turnover=%s expected taxable %s, got %s", c.turnover, c.taxable, taxable)
		}
		if !taxDue.Equal(decimal.RequireFromString(c.taxDue)) {
			t.Fatalf("turnover=%s expected tax due %s, got %s", c.turnover, c.taxDue, taxDue)
		}
	}
}

func TestTaxPeriodRecalculateClampsNegativeTurnover(t *testing.T) {
	period := TaxPeriod{
		Turnover:         decimal.RequireFromString("-500"),
		TaxFreeThreshold: DefaultTaxThreshold,
		TaxRate:          DefaultTaxRate,
	}
	period.Recalculate()
	if !period.Turnover.IsZero() {
		t.Fatalf("expected turnover clamped to zero, got %s", period.Turnover)
	}
	if !period.TaxableAmount.IsZero() || !period.TaxDue.IsZero() {
		t.Fatalf("expected zero taxable/tax, got %s / %s", period.TaxableAmount, period.TaxDue)
	}
}

func TestTaxPeriodRecalculateIsIdempotent(t *testing.T) {
	period := TaxPeriod{
		Turnover:         decimal.RequireFromString("8000"),
		TaxFreeThreshold: DefaultTaxThreshold,
		TaxRate:          DefaultTaxRate,
	}
	period.Recalculate()
	first := period.TaxDue
	period.Recalculate()
	if !period.TaxDue.Equal(first) {
		t.Fatalf("recalculate changed tax due: %s -> %s", first, period.TaxDue)
	}
	if !period.TaxDue.Equal(decimal.RequireFromString("350")) {
		t.Fatalf("expected tax due 350, got %s", period.TaxDue)
	}
}

// A settled month must keep the parameters it was assessed under: changing
// the defaults only affects periods created afterwards.
func TestTaxPeriodRecalculateUsesStoredRate(t *testing.T) {
	march := TaxPeriod{
		Turnover:         decimal.RequireFromString("8000"),
		TaxFreeThreshold: decimal.NewFromInt(1000),
		TaxRate:          decimal.NewFromInt(5),
	}

	savedRate := DefaultTaxRate
	DefaultTaxRate = decimal.NewFromInt(10)
	defer func() { DefaultTaxRate = savedRate }()

	march.Recalculate()
	if !march.TaxDue.Equal(decimal.RequireFromString("350")) {
		t.Fatalf("stored 5%% rate must survive a default change, got tax due %s", march.TaxDue)
	}

	april := TaxPeriod{
		Turnover:         decimal.RequireFromString("8000"),
		TaxFreeThreshold: DefaultTaxThreshold,
		TaxRate:          DefaultTaxRate,
	}
	april.Recalculate()
	if !april.TaxDue.Equal(decimal.RequireFromString("700")) {
		t.Fatalf("new period must pick up the 10%% default, got tax due %s", april.TaxDue)
	}
}

func TestTaxPeriodRecalculateRespectsStoredThreshold(t *testing.T) {
	period := TaxPeriod{
		Turnover:         decimal.RequireFromString("8000"),
		TaxFreeThreshold: decimal.NewFromInt(2000),
		TaxRate:          decimal.NewFromInt(5),
	}
	period.Recalculate()
	if !period.TaxableAmount.Equal(decimal.RequireFromString("6000")) {
		t.Fatalf("expected taxable 6000 with a 2000 threshold, got %s", period.TaxableAmount)
	}
	if !period.TaxDue.Equal(decimal.RequireFromString("300")) {
		t.Fatalf("expected tax due 300, got %s", period.TaxDue)
	}
}
