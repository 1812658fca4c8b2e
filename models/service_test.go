package models

import "testing"

func TestServicePaymentStatusValid(t *testing.T) {
	valid := []ServicePaymentStatus{
		ServicePaymentStatusPending,
		ServicePaymentStatusPaid,
		ServicePaymentStatusCancelled,
	}
	for _, s := range valid {
		if !s.Valid() {
			t.Fatalf("status %s must be valid", s)
		}
	}
	if ServicePaymentStatus("settled").Valid() {
		t.Fatal("unknown status must be invalid")
	}
}

func TestServicePaymentStatusCountsAsIncome(t *testing.T) {
	if !ServicePaymentStatusPaid.CountsAsIncome() {
		t.Fatal("paid records must count toward income")
	}
	if ServicePaymentStatusPending.CountsAsIncome() {
		t.Fatal("pending records must not count toward income")
	}
	if ServicePaymentStatusCancelled.CountsAsIncome() {
		t.Fatal("cancelled records must not count toward income")
	}
}
