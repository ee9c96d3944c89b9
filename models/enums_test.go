package models

import (
	"encoding/json"
	"testing"
)

func TestQuoteStatusTransitions(t *testing.T) {
	cases := []struct {
		from    QuoteStatus
		to      QuoteStatus
		allowed bool
	}{
		{QuoteStatusPending, QuoteStatusApproved, true},
		{QuoteStatusPending, QuoteStatusRejected, true},
		{QuoteStatusPending, QuoteStatusCompleted, false},
		{QuoteStatusApproved, QuoteStatusCompleted, true},
		{QuoteStatusApproved, QuoteStatusPending, false},
		{QuoteStatusRejected, QuoteStatusApproved, false},
		{QuoteStatusCompleted, QuoteStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("quote %s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestInvoiceStatusTransitions(t *testing.T) {
	cases := []struct {
		from    InvoiceStatus
		to      InvoiceStatus
		allowed bool
	}{
		{InvoiceStatusPending, InvoiceStatusPaid, true},
		{InvoiceStatusPending, InvoiceStatusOverdue, true},
		{InvoiceStatusPending, InvoiceStatusCancelled, true},
		{InvoiceStatusPaid, InvoiceStatusPending, false},
		{InvoiceStatusPaid, InvoiceStatusCancelled, false},
		{InvoiceStatusOverdue, InvoiceStatusPaid, false},
		{InvoiceStatusCancelled, InvoiceStatusPaid, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("invoice %s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestReservationStatusTransitions(t *testing.T) {
	cases := []struct {
		from    ReservationStatus
		to      ReservationStatus
		allowed bool
	}{
		{ReservationStatusPending, ReservationStatusConfirmed, true},
		{ReservationStatusPending, ReservationStatusCancelled, true},
		{ReservationStatusPending, ReservationStatusCompleted, false},
		{ReservationStatusConfirmed, ReservationStatusCompleted, true},
		{ReservationStatusConfirmed, ReservationStatusCancelled, true},
		{ReservationStatusCompleted, ReservationStatusCancelled, false},
		{ReservationStatusCancelled, ReservationStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.allowed {
			t.Fatalf("reservation %s -> %s: expected %v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

func TestPaymentTypeUnmarshalJSON(t *testing.T) {
	var pt PaymentType
	if err := json.Unmarshal([]byte(`"wire_transfer"`), &pt); err != nil {
		t.Fatalf("unmarshal wire_transfer: %v", err)
	}
	if pt != PaymentTypeWireTransfer {
		t.Fatalf("expected wire_transfer, got %s", pt)
	}
	if err := json.Unmarshal([]byte(`"bitcoin"`), &pt); err == nil {
		t.Fatal("unknown payment type should be rejected")
	}
}

func TestQuoteStatusUnmarshalJSON(t *testing.T) {
	var s QuoteStatus
	if err := json.Unmarshal([]byte(`"approved"`), &s); err != nil {
		t.Fatalf("unmarshal approved: %v", err)
	}
	if s != QuoteStatusApproved {
		t.Fatalf("expected approved, got %s", s)
	}
	if err := json.Unmarshal([]byte(`"archived"`), &s); err == nil {
		t.Fatal("unknown quote status should be rejected")
	}
}
