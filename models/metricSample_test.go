package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeTrendWithoutPrevious(t *testing.T) {
	trend, change := ComputeTrend(d("100"), nil)
	if trend != TrendDirectionStable || change != nil {
		t.Fatalf("expected stable/nil for missing previous, got %s/%v", trend, change)
	}

	zero := decimal.Zero
	trend, change = ComputeTrend(d("100"), &zero)
	if trend != TrendDirectionStable || change != nil {
		t.Fatalf("expected stable/nil for zero previous, got %s/%v", trend, change)
	}
}

func TestComputeTrendDirections(t *testing.T) {
	prev := d("100")

	trend, change := ComputeTrend(d("110"), &prev)
	if trend != TrendDirectionUp {
		t.Fatalf("expected up, got %s", trend)
	}
	if change == nil || !change.Equal(d("10")) {
		t.Fatalf("expected change 10, got %v", change)
	}

	trend, change = ComputeTrend(d("90"), &prev)
	if trend != TrendDirectionDown {
		t.Fatalf("expected down, got %s", trend)
	}
	if change == nil || !change.Equal(d("-10")) {
		t.Fatalf("expected change -10, got %v", change)
	}
}

func TestComputeTrendDeadBand(t *testing.T) {
	prev := d("1000")
	// +0.4% is inside the dead band and reads as stable.
	trend, change := ComputeTrend(d("1004"), &prev)
	if trend != TrendDirectionStable {
		t.Fatalf("expected stable inside dead band, got %s", trend)
	}
	if change == nil || !change.Equal(d("0.4")) {
		t.Fatalf("expected change 0.4, got %v", change)
	}
}

func TestImprovementPolarity(t *testing.T) {
	up := Improvement(MetricTypeRevenueGrowth, TrendDirectionUp)
	if up == nil || !*up {
		t.Fatalf("rising revenue must be an improvement")
	}

	// Expense ratio is the inverted metric: rising is bad, falling is good.
	worse := Improvement(MetricTypeExpenseRatio, TrendDirectionUp)
	if worse == nil || *worse {
		t.Fatalf("rising expense ratio must not be an improvement")
	}
	better := Improvement(MetricTypeExpenseRatio, TrendDirectionDown)
	if better == nil || !*better {
		t.Fatalf("falling expense ratio must be an improvement")
	}

	if Improvement(MetricTypeProfitMargin, TrendDirectionStable) != nil {
		t.Fatalf("stable trend has no improvement verdict")
	}
}
