// Package payment defines the contract with the external payment
// provider: payment-link issuance plus the asynchronous status callback
// the provider delivers once the buyer pays, abandons or times out.
package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LinkRequest describes the charge a payment link is requested for.
type LinkRequest struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	CallbackURL   string          `json:"callback_url"`
}

// Gateway issues payment links. Implementations must bound the request
// with a timeout; the caller marks the transaction failed when it elapses.
type Gateway interface {
	IssuePaymentLink(ctx context.Context, req LinkRequest) (string, error)
}

// Callback statuses as delivered by the provider. They may arrive more
// than once per transaction.
const (
	CallbackApproved = "approved"
	CallbackRejected = "rejected"
	CallbackExpired  = "expired"
)

// Callback is the provider's asynchronous status notification, keyed by
// the transaction it settles.
type Callback struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        string    `json:"status"`
}
