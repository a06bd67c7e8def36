package event

import (
	"github.com/hausverwaltung/backend/internal/domain/banking"
	"github.com/hausverwaltung/backend/internal/domain/billing"
	"github.com/hausverwaltung/backend/internal/domain/ledger"
)

// RegisterAllEvents registers every domain event type with the serializer.
// Required before the OutboxProcessor can deserialize stored payloads.
func RegisterAllEvents(serializer *EventSerializer) {
	// Billing context
	serializer.Register(billing.EventTypeInvoiceCreated, &billing.InvoiceCreatedEvent{})
	serializer.Register(billing.EventTypeInvoicePartiallyPaid, &billing.InvoicePartiallyPaidEvent{})
	serializer.Register(billing.EventTypeInvoicePaid, &billing.InvoicePaidEvent{})
	serializer.Register(billing.EventTypeInvoiceCancelled, &billing.InvoiceCancelledEvent{})
	serializer.Register(billing.EventTypePaymentAllocated, &billing.PaymentAllocatedEvent{})

	// Banking context
	serializer.Register(banking.EventTypeTransactionImported, &banking.TransactionImportedEvent{})
	serializer.Register(banking.EventTypeTransactionMatched, &banking.TransactionMatchedEvent{})
	serializer.Register(banking.EventTypeTransactionUnlinked, &banking.TransactionUnlinkedEvent{})

	// Ledger context
	serializer.Register(ledger.EventTypePostingCreated, &ledger.PostingCreatedEvent{})
}
