package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidps79/backend-grupo-13/internal/models"
)

// CreateEbook is the publish request. AuthorID arrives as the raw string
// from the request body so the service can reject malformed references.
type CreateEbook struct {
	Title     string
	Publisher string
	AuthorID  string
	Overview  string
	Price     decimal.Decimal
	Stock     int
	FileData  []byte
	Category  string
}

// UpdateEbook carries a partial update; nil fields are left unchanged.
type UpdateEbook struct {
	Title     *string
	Publisher *string
	Overview  *string
	Price     *decimal.Decimal
	Stock     *int
	FileData  []byte
	Category  *string
}

// Service owns ebook records and their vote aggregation.
type Service interface {
	Create(ctx context.Context, draft CreateEbook) (*models.Ebook, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ebook, error)
	FindByTitle(ctx context.Context, title string) (*models.Ebook, error)
	FindAll(ctx context.Context, page, limit int) ([]models.Ebook, error)
	Count(ctx context.Context) (int64, error)
	FindByCategory(ctx context.Context, category string, page, limit int) ([]models.Ebook, error)
	FindByAuthor(ctx context.Context, authorID uuid.UUID, page, limit int) ([]models.Ebook, error)
	SearchByTitle(ctx context.Context, keyword string, page, limit int) ([]models.Ebook, error)
	FindAllSorted(ctx context.Context, ascending bool, page, limit int) ([]models.Ebook, error)
	Update(ctx context.Context, id uuid.UUID, fields UpdateEbook) (*models.Ebook, error)
	Remove(ctx context.Context, id uuid.UUID) (int64, error)
	AddVote(ctx context.Context, userID, ebookID uuid.UUID, value decimal.Decimal) (decimal.Decimal, error)
}
