package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidps79/backend-grupo-13/internal/database"
	"github.com/davidps79/backend-grupo-13/internal/identity"
	"github.com/davidps79/backend-grupo-13/internal/models"
)

const (
	DefaultPageLimit = 12
	SortedPageLimit  = 20
	maxPageLimit     = 100
)

type service struct {
	db       *sql.DB
	identity identity.Lookup
}

func NewService(db *sql.DB, lookup identity.Lookup) Service {
	return &service{db: db, identity: lookup}
}

const ebookColumns = `id, title, publisher, author_id, overview, price, stock, file_data, category, vote, created_at, updated_at`

func scanEbook(row interface{ Scan(...interface{}) error }) (*models.Ebook, error) {
	ebook := &models.Ebook{}
	err := row.Scan(
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
		return nil, err
	}
	return ebook, nil
}

func (s *service) Create(ctx context.Context, draft CreateEbook) (*models.Ebook, error) {
	authorID, err := uuid.Parse(draft.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("%w: author must be a valid reference", database.ErrValidation)
	}
	if draft.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must be non-negative", database.ErrValidation)
	}
	if draft.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must be non-negative", database.ErrValidation)
	}
	if draft.Title == "" {
		return nil, fmt.Errorf("%w: title is required", database.ErrValidation)
	}

	if _, err := s.identity.GetAuthorByUser(ctx, authorID); err != nil {
		if errors.Is(err, database.ErrAuthorNotFound) {
			return nil, fmt.Errorf("%w: author %s does not resolve", database.ErrValidation, authorID)
		}
		return nil, fmt.Errorf("resolve author: %w", err)
	}

	query := `
		INSERT INTO ebooks (id, title, publisher, author_id, overview, price, stock, file_data, category, vote, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, NOW(), NOW())
		RETURNING ` + ebookColumns

	ebook, err := scanEbook(s.db.QueryRowContext(ctx, query,
		uuid.New(), draft.Title, draft.Publisher, authorID, draft.Overview,
		draft.Price, draft.Stock, draft.FileData, draft.Category))
	if err != nil {
		return nil, fmt.Errorf("create ebook: %w", err)
	}

	return ebook, nil
}

func (s *service) FindByID(ctx context.Context, id uuid.UUID) (*models.Ebook, error) {
	query := `SELECT ` + ebookColumns + ` FROM ebooks WHERE id = $1`

	ebook, err := scanEbook(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrEbookNotFound
		}
		return nil, fmt.Errorf("get ebook: %w", err)
	}

	return ebook, nil
}

func (s *service) FindByTitle(ctx context.Context, title string) (*models.Ebook, error) {
	query := `SELECT ` + ebookColumns + ` FROM ebooks WHERE title = $1`

	ebook, err := scanEbook(s.db.QueryRowContext(ctx, query, title))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrEbookNotFound
		}
		return nil, fmt.Errorf("get ebook by title: %w", err)
	}

	return ebook, nil
}

func (s *service) FindAll(ctx context.Context, page, limit int) ([]models.Ebook, error) {
	page, limit = clampPage(page, limit, DefaultPageLimit)
	query := `
		SELECT ` + ebookColumns + `
		FROM ebooks
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	return s.queryEbooks(ctx, query, limit, (page-1)*limit)
}

func (s *service) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ebooks`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count ebooks: %w", err)
	}
	return total, nil
}

func (s *service) FindByCategory(ctx context.Context, category string, page, limit int) ([]models.Ebook, error) {
	page, limit = clampPage(page, limit, DefaultPageLimit)
	query := `
		SELECT ` + ebookColumns + `
		FROM ebooks
		WHERE category = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return s.queryEbooks(ctx, query, category, limit, (page-1)*limit)
}

func (s *service) FindByAuthor(ctx context.Context, authorID uuid.UUID, page, limit int) ([]models.Ebook, error) {
	page, limit = clampPage(page, limit, DefaultPageLimit)
	query := `
		SELECT ` + ebookColumns + `
		FROM ebooks
		WHERE author_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return s.queryEbooks(ctx, query, authorID, limit, (page-1)*limit)
}

func (s *service) SearchByTitle(ctx context.Context, keyword string, page, limit int) ([]models.Ebook, error) {
	page, limit = clampPage(page, limit, DefaultPageLimit)
	query := `
		SELECT ` + ebookColumns + `
		FROM ebooks
		WHERE title ILIKE '%' || $1 || '%'
		ORDER BY title
		LIMIT $2 OFFSET $3`

	return s.queryEbooks(ctx, query, keyword, limit, (page-1)*limit)
}

func (s *service) FindAllSorted(ctx context.Context, ascending bool, page, limit int) ([]models.Ebook, error) {
	page, limit = clampPage(page, limit, SortedPageLimit)
	direction := "DESC"
	if ascending {
		direction = "ASC"
	}
	query := `
		SELECT ` + ebookColumns + `
		FROM ebooks
		ORDER BY price ` + direction + `, id
		LIMIT $1 OFFSET $2`

	return s.queryEbooks(ctx, query, limit, (page-1)*limit)
}

func (s *service) Update(ctx context.Context, id uuid.UUID, fields UpdateEbook) (*models.Ebook, error) {
	if fields.Price != nil && fields.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must be non-negative", database.ErrValidation)
	}
	if fields.Stock != nil && *fields.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must be non-negative", database.ErrValidation)
	}

	set := []string{"updated_at = NOW()"}
	args := []interface{}{id}
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if fields.Title != nil {
		add("title", *fields.Title)
	}
	if fields.Publisher != nil {
		add("publisher", *fields.Publisher)
	}
	if fields.Overview != nil {
		add("overview", *fields.Overview)
	}
	if fields.Price != nil {
		add("price", *fields.Price)
	}
	if fields.Stock != nil {
		add("stock", *fields.Stock)
	}
	if fields.FileData != nil {
		add("file_data", fields.FileData)
	}
	if fields.Category != nil {
		add("category", *fields.Category)
	}

	query := `
		UPDATE ebooks
		SET ` + strings.Join(set, ", ") + `
		WHERE id = $1
		RETURNING ` + ebookColumns

	ebook, err := scanEbook(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrEbookNotFound
		}
		return nil, fmt.Errorf("update ebook: %w", err)
	}

	return ebook, nil
}

// Remove deletes the ebook and reports rows affected; callers treat zero
// as not found. Votes, wishes and cart rows cascade; granted entitlements
// block the delete instead.
func (s *service) Remove(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM ebooks WHERE id = $1`, id)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return 0, database.ErrEbookOwned
		}
		return 0, fmt.Errorf("delete ebook: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	return affected, nil
}

// AddVote upserts the caller's vote and recomputes the ebook's mean score
// in the same transaction. The (user, ebook) unique key makes the upsert
// safe under concurrent votes.
func (s *service) AddVote(ctx context.Context, userID, ebookID uuid.UUID, value decimal.Decimal) (decimal.Decimal, error) {
	var score decimal.Decimal

	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM ebooks WHERE id = $1)`, ebookID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check ebook exists: %w", err)
		}
		if !exists {
			return database.ErrEbookNotFound
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO votes (user_id, ebook_id, value)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (user_id, ebook_id) DO UPDATE SET value = EXCLUDED.value`,
			userID, ebookID, value)
		if err != nil {
			return fmt.Errorf("upsert vote: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			`UPDATE ebooks
			 SET vote = (SELECT AVG(value) FROM votes WHERE ebook_id = $1),
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING vote`,
			ebookID).Scan(&score)
		if err != nil {
			return fmt.Errorf("recompute score: %w", err)
		}

		return nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	return score, nil
}

func (s *service) queryEbooks(ctx context.Context, query string, args ...interface{}) ([]models.Ebook, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ebooks: %w", err)
	}
	defer rows.Close()

	ebooks := []models.Ebook{}
	for rows.Next() {
		ebook, err := scanEbook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ebook: %w", err)
		}
		ebooks = append(ebooks, *ebook)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ebooks, nil
}

// clampPage normalizes pagination: pages start at 1 and out-of-range
// limits fall back to def. Out-of-range pages simply yield empty results.
func clampPage(page, limit, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > maxPageLimit {
		limit = def
	}
	return page, limit
}
