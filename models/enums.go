package models

import (
	"encoding/json"
	"errors"
)

type ParentType string

const (
	ParentTypeQuote   ParentType = "quotes"
	ParentTypeInvoice ParentType = "invoices"
)

func (t *ParentType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("parent type must be string")
	}
	switch str {
	case "quotes":
		*t = ParentTypeQuote
	case "invoices":
		*t = ParentTypeInvoice
	default:
		return errors.New("invalid parent type")
	}
	return nil
}

type QuoteStatus string

const (
	QuoteStatusPending   QuoteStatus = "pending"
	QuoteStatusApproved  QuoteStatus = "approved"
	QuoteStatusRejected  QuoteStatus = "rejected"
	QuoteStatusCompleted QuoteStatus = "completed"
)

func (s *QuoteStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("quote status must be string")
	}
	quoteStatuses := map[string]QuoteStatus{
		"pending":   QuoteStatusPending,
		"approved":  QuoteStatusApproved,
		"rejected":  QuoteStatusRejected,
		"completed": QuoteStatusCompleted,
	}
	var ok bool
	*s, ok = quoteStatuses[str]
	if !ok {
		return errors.New("invalid quote status")
	}
	return nil
}

// rejected and completed are terminal
var quoteTransitions = map[QuoteStatus][]QuoteStatus{
	QuoteStatusPending:  {QuoteStatusApproved, QuoteStatusRejected},
	QuoteStatusApproved: {QuoteStatusCompleted},
}

func (s QuoteStatus) CanTransitionTo(next QuoteStatus) bool {
	for _, allowed := range quoteTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

func (s *InvoiceStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("invoice status must be string")
	}
	invoiceStatuses := map[string]InvoiceStatus{
		"pending":   InvoiceStatusPending,
		"paid":      InvoiceStatusPaid,
		"overdue":   InvoiceStatusOverdue,
		"cancelled": InvoiceStatusCancelled,
	}
	var ok bool
	*s, ok = invoiceStatuses[str]
	if !ok {
		return errors.New("invalid invoice status")
	}
	return nil
}

var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusPending: {InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled},
}

func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	for _, allowed := range invoiceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConfirmed ReservationStatus = "confirmed"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

func (s *ReservationStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("reservation status must be string")
	}
	reservationStatuses := map[string]ReservationStatus{
		"pending":   ReservationStatusPending,
		"confirmed": ReservationStatusConfirmed,
		"completed": ReservationStatusCompleted,
		"cancelled": ReservationStatusCancelled,
	}
	var ok bool
	*s, ok = reservationStatuses[str]
	if !ok {
		return errors.New("invalid reservation status")
	}
	return nil
}

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusPending:   {ReservationStatusConfirmed, ReservationStatusCancelled},
	ReservationStatusConfirmed: {ReservationStatusCompleted, ReservationStatusCancelled},
}

func (s ReservationStatus) CanTransitionTo(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentType string

const (
	PaymentTypeCash         PaymentType = "cash"
	PaymentTypeWireTransfer PaymentType = "wire_transfer"
	PaymentTypeCard         PaymentType = "card"
)

func (t *PaymentType) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return errors.New("payment type must be string")
	}
	paymentTypes := map[string]PaymentType{
		"cash":          PaymentTypeCash,
		"wire_transfer": PaymentTypeWireTransfer,
		"card":          PaymentTypeCard,
	}
	var ok bool
	*t, ok = paymentTypes[str]
	if !ok {
		return errors.New("invalid payment type")
	}
	return nil
}

// CounterCode is the 3-letter method code embedded in invoice numbers.
// Unknown payment types still number under their own "OTH" sequence.
func (t PaymentType) CounterCode() string {
	switch t {
	case PaymentTypeCash:
		return "ESP"
	case PaymentTypeWireTransfer:
		return "VIR"
	case PaymentTypeCard:
		return "CBL"
	default:
		return "OTH"
	}
}

type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

type NotificationEventType string

const (
	NotificationEventQuoteUpdated         NotificationEventType = "quote_updated"
	NotificationEventInvoiceCreated       NotificationEventType = "invoice_created"
	NotificationEventReservationConfirmed NotificationEventType = "reservation_confirmed"
	NotificationEventReservationUpdated   NotificationEventType = "reservation_updated"
)

const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)
