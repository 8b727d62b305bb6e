package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ebook is a catalog item. FileData holds the book content itself and is
// only shipped to clients through the visualize endpoint, base64-encoded.
type Ebook struct {
	ID        uuid.UUID       `json:"id"`
	Title     string          `json:"title"`
	Publisher string          `json:"publisher"`
	AuthorID  uuid.UUID       `json:"author"`
	Overview  string          `json:"overview"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	FileData  []byte          `json:"-"`
	Category  string          `json:"category"`
	Vote      decimal.Decimal `json:"vote"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Vote is a single reader's rating of an ebook. One row per (user, ebook);
// a repeated vote overwrites the previous value.
type Vote struct {
	UserID  uuid.UUID       `json:"user_id"`
	EbookID uuid.UUID       `json:"ebook_id"`
	Value   decimal.Decimal `json:"value"`
}

// Wish marks a reader's interest in an ebook, independent of ownership.
type Wish struct {
	ReaderID  uuid.UUID `json:"reader_id"`
	EbookID   uuid.UUID `json:"ebook_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Entitlement is a durable ownership grant: the reader may access the
// ebook's content. Created on payment success or by an explicit admin grant.
type Entitlement struct {
	ReaderID  uuid.UUID `json:"reader_id"`
	EbookID   uuid.UUID `json:"ebook_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CartItem is a pending purchase line in a reader's shopping cart.
type CartItem struct {
	ReaderID uuid.UUID `json:"reader_id"`
	EbookID  uuid.UUID `json:"ebook_id"`
	Quantity int       `json:"quantity"`
}

type Order struct {
	ID        uuid.UUID       `json:"id"`
	BuyerID   uuid.UUID       `json:"buyer_id"`
	EbookID   uuid.UUID       `json:"ebook_id"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction is the payment attempt bound 1:1 to an Order.
type Transaction struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	Status      string    `json:"status"`
	PaymentLink string    `json:"payment_link,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const (
	OrderStatusCreated   = "created"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
	OrderStatusExpired   = "expired"
)

// Transaction statuses. Created and LinkIssued are non-terminal;
// Paid, Failed and Expired are terminal and never transition further.
const (
	TxStatusCreated    = "created"
	TxStatusLinkIssued = "link_issued"
	TxStatusPaid       = "paid"
	TxStatusFailed     = "failed"
	TxStatusExpired    = "expired"
)

func IsTerminalTxStatus(status string) bool {
	switch status {
	case TxStatusPaid, TxStatusFailed, TxStatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether a transaction may move from one status to
// another. Terminal states accept no transitions; the forward path is
// created → link_issued → {paid, failed, expired}, with created allowed to
// fail or expire directly when link issuance never completes.
func CanTransition(from, to string) bool {
	if IsTerminalTxStatus(from) {
		return false
	}
	switch from {
	case TxStatusCreated:
		return to == TxStatusLinkIssued || to == TxStatusFailed || to == TxStatusExpired
	case TxStatusLinkIssued:
		return to == TxStatusPaid || to == TxStatusFailed || to == TxStatusExpired
	}
	return false
}
