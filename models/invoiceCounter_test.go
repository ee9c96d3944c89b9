package models

import "testing"

func TestFormatInvoiceNumber(t *testing.T) {
	cases := []struct {
		paymentType PaymentType
		number      int64
		expected    string
	}{
		{PaymentTypeCash, 1, "MY-INV-ESP00000001"},
		{PaymentTypeCash, 2, "MY-INV-ESP00000002"},
		{PaymentTypeWireTransfer, 1, "MY-INV-VIR00000001"},
		{PaymentTypeCard, 42, "MY-INV-CBL00000042"},
		{PaymentType("check"), 1, "MY-INV-OTH00000001"},
		{PaymentType(""), 7, "MY-INV-OTH00000007"},
		{PaymentTypeCash, 12345678, "MY-INV-ESP12345678"},
	}
	for _, tc := range cases {
		if got := FormatInvoiceNumber(tc.paymentType, tc.number); got != tc.expected {
			t.Fatalf("FormatInvoiceNumber(%q, %d) expected %s, got %s",
				tc.paymentType, tc.number, tc.expected, got)
		}
	}
}

func TestPaymentTypeCounterCode(t *testing.T) {
	cases := []struct {
		paymentType PaymentType
		expected    string
	}{
		{PaymentTypeCash, "ESP"},
		{PaymentTypeWireTransfer, "VIR"},
		{PaymentTypeCard, "CBL"},
		{PaymentType("paypal"), "OTH"},
	}
	for _, tc := range cases {
		if got := tc.paymentType.CounterCode(); got != tc.expected {
			t.Fatalf("CounterCode(%q) expected %s, got %s", tc.paymentType, tc.expected, got)
		}
	}
}

func TestCounterLockName(t *testing.T) {
	if got := counterLockName(PaymentTypeCash); got != "invoice_counter:cash" {
		t.Fatalf("lock name expected invoice_counter:cash, got %s", got)
	}
}
