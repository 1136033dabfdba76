package models

import "errors"

type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodCard  PaymentMethod = "card"
	PaymentMethodCheck PaymentMethod = "check"
	PaymentMethodMulti PaymentMethod = "multi"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodCheck, PaymentMethodMulti:
		return PaymentMethod(s), nil
	}
	return "", errors.New("invalid payment method")
}

type CartMode string

const (
	CartModeStandard CartMode = "standard"
	CartModeInvoiced CartMode = "invoiced"
)

type InvoiceStatus string

const (
	InvoiceStatusCompleted InvoiceStatus = "completed"
	InvoiceStatusCanceled  InvoiceStatus = "canceled"
	InvoiceStatusOther     InvoiceStatus = "other"
)

type SessionStatus string

const (
	SessionStatusOpen   SessionStatus = "open"
	SessionStatusClosed SessionStatus = "closed"
)

type QueueEntryKind string

const (
	QueueEntryKindSale       QueueEntryKind = "sale"
	QueueEntryKindVendorStat QueueEntryKind = "vendorStat"
)

// GuardMode controls the acknowledgment gate in front of the reset screen.
// In "always" mode the per-day ack key is never written, so the prompt
// reappears every time the screen opens.
type GuardMode string

const (
	GuardModeAlwaysPrompt GuardMode = "always-prompt"
	GuardModeOncePerDay   GuardMode = "once-per-day"
)
