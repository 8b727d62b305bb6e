// Package cart holds pending purchase lines per reader. Checkout drains
// the cart through the order engine so every line goes through the same
// stock-safe purchase path.
package cart

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/davidps79/backend-grupo-13/internal/database"
	"github.com/davidps79/backend-grupo-13/internal/identity"
	"github.com/davidps79/backend-grupo-13/internal/models"
)

type Service interface {
	AddItem(ctx context.Context, userID, ebookID uuid.UUID, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, userID, ebookID uuid.UUID) error
	Items(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	Clear(ctx context.Context, readerID uuid.UUID) error
}

type service struct {
	db       *sql.DB
	identity identity.Lookup
}

func NewService(db *sql.DB, lookup identity.Lookup) Service {
	return &service{db: db, identity: lookup}
}

// AddItem upserts the cart line; adding an ebook already in the cart
// replaces its quantity.
func (s *service) AddItem(ctx context.Context, userID, ebookID uuid.UUID, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be positive", database.ErrValidation)
	}

	reader, err := s.identity.GetReaderByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	item := &models.CartItem{}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO cart_items (reader_id, ebook_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (reader_id, ebook_id) DO UPDATE SET quantity = EXCLUDED.quantity
		 RETURNING reader_id, ebook_id, quantity`,
		reader.ID, ebookID, quantity).Scan(&item.ReaderID, &item.EbookID, &item.Quantity)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, database.ErrEbookNotFound
		}
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	return item, nil
}

func (s *service) RemoveItem(ctx context.Context, userID, ebookID uuid.UUID) error {
	reader, err := s.identity.GetReaderByUser(ctx, userID)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE reader_id = $1 AND ebook_id = $2`,
		reader.ID, ebookID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrCartItemNotFound
	}

	return nil
}

func (s *service) Items(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	reader, err := s.identity.GetReaderByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT reader_id, ebook_id, quantity FROM cart_items WHERE reader_id = $1`,
		reader.ID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ReaderID, &item.EbookID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func (s *service) Clear(ctx context.Context, readerID uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE reader_id = $1`, readerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
