// Package wishlist owns the reader↔ebook wish relation, independent of
// any entitlement.
package wishlist

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
	Add(ctx context.Context, userID, ebookID uuid.UUID) (*models.Wish, error)
	Remove(ctx context.Context, userID, ebookID uuid.UUID) error
	FindByReader(ctx context.Context, readerID uuid.UUID, page, limit int) ([]models.Ebook, error)
}

type service struct {
	db       *sql.DB
	identity identity.Lookup
}

func NewService(db *sql.DB, lookup identity.Lookup) Service {
	return &service{db: db, identity: lookup}
}

// Add creates the wish. Both the reader and the ebook must resolve; a
// duplicate pair is a conflict, surfaced through the unique constraint
// rather than a check-then-insert.
func (s *service) Add(ctx context.Context, userID, ebookID uuid.UUID) (*models.Wish, error) {
	if _, err := s.identity.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	reader, err := s.identity.GetReaderByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM ebooks WHERE id = $1)`, ebookID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check ebook exists: %w", err)
	}
	if !exists {
		return nil, database.ErrEbookNotFound
	}

	wish := &models.Wish{}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO wishes (reader_id, ebook_id, created_at)
		 VALUES ($1, $2, NOW())
		 RETURNING reader_id, ebook_id, created_at`,
		reader.ID, ebookID).Scan(&wish.ReaderID, &wish.EbookID, &wish.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, database.ErrDuplicateWish
		}
		return nil, fmt.Errorf("create wish: %w", err)
	}

	return wish, nil
}

// Remove deletes the wish; a missing pair or unresolved reader is not found.
func (s *service) Remove(ctx context.Context, userID, ebookID uuid.UUID) error {
	reader, err := s.identity.GetReaderByUser(ctx, userID)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM wishes WHERE reader_id = $1 AND ebook_id = $2`,
		reader.ID, ebookID)
	if err != nil {
		return fmt.Errorf("delete wish: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return database.ErrWishNotFound
	}

	return nil
}

func (s *service) FindByReader(ctx context.Context, readerID uuid.UUID, page, limit int) ([]models.Ebook, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 12
	}

	query := `
		SELECT e.id, e.title, e.publisher, e.author_id, e.overview, e.price, e.stock, e.file_data, e.category, e.vote, e.created_at, e.updated_at
		FROM ebooks e
		JOIN wishes w ON w.ebook_id = e.id
		WHERE w.reader_id = $1
		ORDER BY w.created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := s.db.QueryContext(ctx, query, readerID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
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
