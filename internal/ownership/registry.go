// Package ownership owns the reader↔ebook entitlement relation.
package ownership

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/davidps79/backend-grupo-13/internal/database"
	"github.com/davidps79/backend-grupo-13/internal/identity"
	"github.com/davidps79/backend-grupo-13/internal/models"
)

// Registry grants and queries entitlements. Grants are idempotent: a
// repeated (reader, ebook) grant leaves exactly one record, so a replayed
// payment callback can never hand out a second entitlement row.
type Registry interface {
	Assign(ctx context.Context, userID, ebookID uuid.UUID) (*models.Entitlement, error)
	FindAllEbooksByReader(ctx context.Context, readerID uuid.UUID, page, limit int) ([]models.Ebook, error)
}

type registry struct {
	db       *sql.DB
	identity identity.Lookup
}

func NewRegistry(db *sql.DB, lookup identity.Lookup) Registry {
	return &registry{db: db, identity: lookup}
}

// Assign resolves the user to a reader, checks the ebook exists and
// grants the entitlement. AssignTx is the variant used inside the payment
// settlement transaction.
func (r *registry) Assign(ctx context.Context, userID, ebookID uuid.UUID) (*models.Entitlement, error) {
	reader, err := r.identity.GetReaderByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var exists bool
	err = r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ebooks WHERE id = $1)`, ebookID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check ebook exists: %w", err)
	}
	if !exists {
		return nil, database.ErrEbookNotFound
	}

	entitlement := &models.Entitlement{}
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO ebooks_readers (reader_id, ebook_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (reader_id, ebook_id) DO UPDATE SET reader_id = EXCLUDED.reader_id
		 RETURNING reader_id, ebook_id, created_at`,
		reader.ID, ebookID).Scan(&entitlement.ReaderID, &entitlement.EbookID, &entitlement.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("grant entitlement: %w", err)
	}

	return entitlement, nil
}

// AssignTx grants an entitlement inside an existing transaction; an
// already-granted pair is a no-op.
func AssignTx(ctx context.Context, tx *sql.Tx, readerID, ebookID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ebooks_readers (reader_id, ebook_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (reader_id, ebook_id) DO NOTHING`,
		readerID, ebookID)
	if err != nil {
		return fmt.Errorf("grant entitlement: %w", err)
	}
	return nil
}

func (r *registry) FindAllEbooksByReader(ctx context.Context, readerID uuid.UUID, page, limit int) ([]models.Ebook, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 12
	}

	query := `
		SELECT e.id, e.title, e.publisher, e.author_id, e.overview, e.price, e.stock, e.file_data, e.category, e.vote, e.created_at, e.updated_at
		FROM ebooks e
		JOIN ebooks_readers er ON er.ebook_id = e.id
		WHERE er.reader_id = $1
		ORDER BY er.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, readerID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list owned ebooks: %w", err)
	}
	defer rows.Close()

	ebooks := []models.Ebook{}
	for rows.Next() {
		var ebook models.Ebook
		err := rows.Scan(
			&ebook.ID,
			&ebook.Title,
			&ebook.Publisher,
			&ebook.AuthorID,
			&ebook.Overview,
			&ebook.Price,
			&ebook.Stock,
			&ebook.FileData,
			&ebook.Category,
			&ebook.Vote,
			&ebook.CreatedAt,
			&ebook.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan ebook: %w", err)
		}
		ebooks = append(ebooks, ebook)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ebooks, nil
}
