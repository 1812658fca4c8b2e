package models

import (
	"testing"
	"time"
)

func TestExpenseEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -5)
	future := now.AddDate(0, 0, 5)

	unpaidDue := Expense{PaymentStatus: PaymentStatusUnpaid, DueDate: &past}
	if got := unpaidDue.EffectiveStatus(now); got != PaymentStatusOverdue {
		t.Fatalf("unpaid past due must read overdue, got %s", got)
	}

	unpaidNotDue := Expense{PaymentStatus: PaymentStatusUnpaid, DueDate: &future}
	if got := unpaidNotDue.EffectiveStatus(now); got != PaymentStatusUnpaid {
		t.Fatalf("unpaid before due must stay unpaid, got %s", got)
	}

	partialDue := Expense{PaymentStatus: PaymentStatusPartial, DueDate: &past, AmountPaid: d("100")}
	if got := partialDue.EffectiveStatus(now); got != PaymentStatusOverdue {
		t.Fatalf("partial past due must read overdue, got %s", got)
	}

	// Paid never flips back, even past the due date.
	paid := Expense{PaymentStatus: PaymentStatusPaid, DueDate: &past}
	if got := paid.EffectiveStatus(now); got != PaymentStatusPaid {
		t.Fatalf("paid must stay paid, got %s", got)
	}

	// Due date cleared after the row went overdue: fall back on payments.
	clearedPartial := Expense{PaymentStatus: PaymentStatusOverdue, AmountPaid: d("100")}
	if got := clearedPartial.EffectiveStatus(now); got != PaymentStatusPartial {
		t.Fatalf("overdue with payments and no due date must read partial, got %s", got)
	}
	clearedUnpaid := Expense{PaymentStatus: PaymentStatusOverdue}
	if got := clearedUnpaid.EffectiveStatus(now); got != PaymentStatusUnpaid {
		t.Fatalf("overdue without payments and no due date must read unpaid, got %s", got)
	}
}
