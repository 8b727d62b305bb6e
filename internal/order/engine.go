// Package order owns the order → transaction lifecycle: purchase
// requests, payment-link issuance and gateway callback settlement.
package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/davidps79/backend-grupo-13/internal/cart"
	"github.com/davidps79/backend-grupo-13/internal/database"
	"github.com/davidps79/backend-grupo-13/internal/identity"
	"github.com/davidps79/backend-grupo-13/internal/models"
	"github.com/davidps79/backend-grupo-13/internal/ownership"
	"github.com/davidps79/backend-grupo-13/internal/payment"
)

type CreateOrderRequest struct {
	BuyerID  uuid.UUID
	EbookID  uuid.UUID
	Quantity int
}

// PaymentLink is what the buyer gets back from a purchase request.
type PaymentLink struct {
	OrderID       uuid.UUID       `json:"order_id"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Link          string          `json:"link"`
	Total         decimal.Decimal `json:"total"`
}

// Engine drives the purchase lifecycle. CreateOrder and the stock
// decrement are one atomic unit; GeneratePaymentLink is idempotent per
// order; HandleCallback settles a transaction exactly once.
type Engine interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error)
	GeneratePaymentLink(ctx context.Context, orderID uuid.UUID) (*PaymentLink, error)
	Buy(ctx context.Context, req CreateOrderRequest) (*PaymentLink, error)
	CheckoutCart(ctx context.Context, userID uuid.UUID) ([]PaymentLink, error)
	HandleCallback(ctx context.Context, cb payment.Callback) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}

type engine struct {
	db       *sql.DB
	identity identity.Lookup
	gateway  payment.Gateway
	cart     cart.Service
	log      zerolog.Logger
}

func NewEngine(db *sql.DB, lookup identity.Lookup, gateway payment.Gateway, cartSvc cart.Service, log zerolog.Logger) Engine {
	return &engine{
		db:       db,
		identity: lookup,
		gateway:  gateway,
		cart:     cartSvc,
		log:      log.With().Str("component", "order-engine").Logger(),
	}
}

// CreateOrder validates the buyer and the target ebook, then inserts the
// order and decrements stock in a single serializable transaction, so
// concurrent purchases of the same ebook cannot oversell.
func (e *engine) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if req.Quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be positive", database.ErrValidation)
	}

	if _, err := e.identity.GetUserByID(ctx, req.BuyerID); err != nil {
		return nil, err
	}

	var order *models.Order

	err := database.WithRetry(ctx, e.db, database.SerializableTxOptions(), func(tx *sql.Tx) error {
		var price decimal.Decimal
		var stock int
		err := tx.QueryRowContext(ctx,
			`SELECT price, stock
			 FROM ebooks
			 WHERE id = $1
			 FOR UPDATE NOWAIT`,
			req.EbookID).Scan(&price, &stock)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrEbookNotFound
			}
			return fmt.Errorf("lock ebook: %w", err)
		}

		if stock < req.Quantity {
			return database.ErrInsufficientStock
		}

		total := price.Mul(decimal.NewFromInt(int64(req.Quantity)))

		order = &models.Order{}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (id, buyer_id, ebook_id, quantity, total, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			 RETURNING id, buyer_id, ebook_id, quantity, total, status, created_at, updated_at`,
			uuid.New(), req.BuyerID, req.EbookID, req.Quantity, total, models.OrderStatusCreated).Scan(
			&order.ID,
			&order.BuyerID,
			&order.EbookID,
			&order.Quantity,
			&order.Total,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE ebooks
			 SET stock = stock - $1,
			     updated_at = NOW()
			 WHERE id = $2
			   AND stock >= $1`,
			req.Quantity, req.EbookID)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if affected == 0 {
			return database.ErrInsufficientStock
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("order_id", order.ID.String()).
		Str("ebook_id", req.EbookID.String()).
		Int("quantity", req.Quantity).
		Msg("order created")

	return order, nil
}

// GeneratePaymentLink binds a transaction to the order and requests a
// payment link from the gateway. The whole unit runs under the order's
// row lock: a concurrent call blocks until the first commits, then finds
// the issued transaction and returns the same link. A transaction left
// failed or expired does not block a fresh attempt.
func (e *engine) GeneratePaymentLink(ctx context.Context, orderID uuid.UUID) (*PaymentLink, error) {
	var link *PaymentLink
	var gatewayErr error

	err := database.WithRetry(ctx, e.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		link, gatewayErr = nil, nil

		var order models.Order
		err := tx.QueryRowContext(ctx,
			`SELECT id, buyer_id, ebook_id, quantity, total, status
			 FROM orders
			 WHERE id = $1
			 FOR UPDATE`,
			orderID).Scan(&order.ID, &order.BuyerID, &order.EbookID, &order.Quantity, &order.Total, &order.Status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if order.Status == models.OrderStatusCompleted {
			return fmt.Errorf("%w: order already paid", database.ErrValidation)
		}

		// A failed or expired transaction is terminal history; only a
		// live one (created, link_issued, paid) is a candidate for reuse.
		var txnID uuid.UUID
		var txnStatus, txnLink string
		err = tx.QueryRowContext(ctx,
			`SELECT id, status, payment_link
			 FROM transactions
			 WHERE order_id = $1
			   AND status NOT IN ($2, $3)`,
			orderID, models.TxStatusFailed, models.TxStatusExpired).Scan(&txnID, &txnStatus, &txnLink)
		switch {
		case err == nil && txnStatus == models.TxStatusLinkIssued:
			link = &PaymentLink{OrderID: order.ID, TransactionID: txnID, Link: txnLink, Total: order.Total}
			return nil
		case err == nil && txnStatus == models.TxStatusPaid:
			return fmt.Errorf("%w: order already paid", database.ErrValidation)
		case err == nil:
			// created: a prior attempt stalled before issuing; reuse the row.
		case errors.Is(err, sql.ErrNoRows):
			txnID = uuid.New()
			_, err = tx.ExecContext(ctx,
				`INSERT INTO transactions (id, order_id, status, payment_link, created_at, updated_at)
				 VALUES ($1, $2, $3, '', NOW(), NOW())`,
				txnID, orderID, models.TxStatusCreated)
			if err != nil {
				return fmt.Errorf("create transaction: %w", err)
			}
		default:
			return fmt.Errorf("get transaction: %w", err)
		}

		url, err := e.gateway.IssuePaymentLink(ctx, payment.LinkRequest{
			TransactionID: txnID,
			OrderID:       order.ID,
			Amount:        order.Total,
			Description:   fmt.Sprintf("ebook order %s", order.ID),
		})
		if err != nil {
			// Keep the failed attempt on record; the commit must survive
			// so a retry sees a terminal transaction, not a phantom.
			_, updErr := tx.ExecContext(ctx,
				`UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2`,
				models.TxStatusFailed, txnID)
			if updErr != nil {
				return fmt.Errorf("mark transaction failed: %w", updErr)
			}
			gatewayErr = err
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE transactions SET status = $1, payment_link = $2, updated_at = NOW() WHERE id = $3`,
			models.TxStatusLinkIssued, url, txnID)
		if err != nil {
			return fmt.Errorf("issue transaction: %w", err)
		}

		link = &PaymentLink{OrderID: order.ID, TransactionID: txnID, Link: url, Total: order.Total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if gatewayErr != nil {
		e.log.Error().Err(gatewayErr).Str("order_id", orderID.String()).Msg("payment link issuance failed")
		return nil, gatewayErr
	}

	return link, nil
}

// Buy is the purchase entry point: create the order, then immediately
// request its payment link.
func (e *engine) Buy(ctx context.Context, req CreateOrderRequest) (*PaymentLink, error) {
	order, err := e.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	return e.GeneratePaymentLink(ctx, order.ID)
}

// CheckoutCart converts every cart line into an order with its own
// payment link, then empties the cart.
func (e *engine) CheckoutCart(ctx context.Context, userID uuid.UUID) ([]PaymentLink, error) {
	reader, err := e.identity.GetReaderByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := e.cart.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", database.ErrValidation)
	}

	links := make([]PaymentLink, 0, len(items))
	for _, item := range items {
		link, err := e.Buy(ctx, CreateOrderRequest{
			BuyerID:  userID,
			EbookID:  item.EbookID,
			Quantity: item.Quantity,
		})
		if err != nil {
			return nil, fmt.Errorf("checkout ebook %s: %w", item.EbookID, err)
		}
		links = append(links, *link)
	}

	if err := e.cart.Clear(ctx, reader.ID); err != nil {
		return nil, err
	}

	return links, nil
}

// HandleCallback applies the gateway's status notification. Unknown
// transactions are rejected; callbacks for already-terminal transactions
// are absorbed as no-ops since the provider may deliver them repeatedly.
// On approval the transaction moves to paid and the buyer's entitlement
// is granted in the same database transaction.
func (e *engine) HandleCallback(ctx context.Context, cb payment.Callback) error {
	var target string
	switch cb.Status {
	case payment.CallbackApproved:
		target = models.TxStatusPaid
	case payment.CallbackRejected:
		target = models.TxStatusFailed
	case payment.CallbackExpired:
		target = models.TxStatusExpired
	default:
		return fmt.Errorf("%w: unknown callback status %q", database.ErrValidation, cb.Status)
	}

	return database.WithRetry(ctx, e.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var txnStatus string
		var orderID, buyerID, ebookID uuid.UUID
		err := tx.QueryRowContext(ctx,
			`SELECT t.status, o.id, o.buyer_id, o.ebook_id
			 FROM transactions t
			 JOIN orders o ON o.id = t.order_id
			 WHERE t.id = $1
			 FOR UPDATE OF t, o`,
			cb.TransactionID).Scan(&txnStatus, &orderID, &buyerID, &ebookID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return database.ErrTransactionNotFound
			}
			return fmt.Errorf("lock transaction: %w", err)
		}

		if !models.CanTransition(txnStatus, target) {
			// Repeated or out-of-order delivery; the first terminal
			// settlement already won.
			e.log.Debug().
				Str("transaction_id", cb.TransactionID.String()).
				Str("from", txnStatus).
				Str("to", target).
				Msg("callback absorbed")
			return nil
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2`,
			target, cb.TransactionID)
		if err != nil {
			return fmt.Errorf("settle transaction: %w", err)
		}

		orderStatus := map[string]string{
			models.TxStatusPaid:    models.OrderStatusCompleted,
			models.TxStatusFailed:  models.OrderStatusFailed,
			models.TxStatusExpired: models.OrderStatusExpired,
		}[target]
		_, err = tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2`,
			orderStatus, orderID)
		if err != nil {
			return fmt.Errorf("propagate order status: %w", err)
		}

		if target != models.TxStatusPaid {
			return nil
		}

		reader, err := e.identity.GetReaderByUser(ctx, buyerID)
		if err != nil {
			return fmt.Errorf("resolve buyer reader: %w", err)
		}

		if err := ownership.AssignTx(ctx, tx, reader.ID, ebookID); err != nil {
			return err
		}

		e.log.Info().
			Str("transaction_id", cb.TransactionID.String()).
			Str("order_id", orderID.String()).
			Msg("payment settled, entitlement granted")
		return nil
	})
}

func (e *engine) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order := &models.Order{}
	err := e.db.QueryRowContext(ctx,
		`SELECT id, buyer_id, ebook_id, quantity, total, status, created_at, updated_at
		 FROM orders
		 WHERE id = $1`,
		id).Scan(
		&order.ID,
		&order.BuyerID,
		&order.EbookID,
		&order.Quantity,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (e *engine) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	txn := &models.Transaction{}
	err := e.db.QueryRowContext(ctx,
		`SELECT id, order_id, status, payment_link, created_at, updated_at
		 FROM transactions
		 WHERE id = $1`,
		id).Scan(&txn.ID, &txn.OrderID, &txn.Status, &txn.PaymentLink, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return txn, nil
}
