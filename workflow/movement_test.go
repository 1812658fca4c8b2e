package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestIncomeDeltaMonthKeying(t *testing.T) {
	deltas := []IncomeDelta{
		{Year: 2026, Month: 7, Amount: decimal.RequireFromString("-8000")},
		{Year: 2026, Month: 8, Amount: decimal.RequireFromString("8000")},
	}
	// A month move carries a negative delta for the old month and a positive
	// one for the new; the pair must net to zero.
	net := decimal.Zero
	for _, d := range deltas {
		net = net.Add(d.Amount)
	}
	if !net.IsZero() {
		t.Fatalf("month-move deltas must net to zero, got %s", net)
	}
}
