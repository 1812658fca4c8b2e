package models

import "testing"

func TestFinancialSummaryDerive(t *testing.T) {
	// Income entries of 5000 + 3000, expenses 2000 + 500.
	s := FinancialSummary{
		SalesIncome:   d("5000"),
		ServiceIncome: d("3000"),
		TotalExpenses: d("2500"),
		TotalAssets:   d("8000"),
		TaxDue:        d("350"),
	}
	s.Derive()
	if !s.TotalIncome.Equal(d("8000")) {
		t.Fatalf("expected total income 8000, got %s", s.TotalIncome)
	}
	if !s.NetProfit.Equal(d("5500")) {
		t.Fatalf("expected net profit 5500, got %s", s.NetProfit)
	}

	// Deriving twice changes nothing.
	s.Derive()
	if !s.TotalIncome.Equal(d("8000")) || !s.NetProfit.Equal(d("5500")) {
		t.Fatalf("derive is not idempotent: income=%s profit=%s", s.TotalIncome, s.NetProfit)
	}
}

func TestFinancialSummaryDeriveNegativeProfit(t *testing.T) {
	s := FinancialSummary{SalesIncome: d("1000"), TotalExpenses: d("1500")}
	s.Derive()
	if !s.NetProfit.Equal(d("-500")) {
		t.Fatalf("expected net profit -500, got %s", s.NetProfit)
	}
}
