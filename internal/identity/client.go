package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/davidps79/backend-grupo-13/internal/database"
)

// Client talks to the identity service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	var user User
	if err := c.get(ctx, fmt.Sprintf("/users/%s", id), &user, database.ErrUserNotFound); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) GetReaderByUser(ctx context.Context, userID uuid.UUID) (*Reader, error) {
	var reader Reader
	if err := c.get(ctx, fmt.Sprintf("/readers/by-user/%s", userID), &reader, database.ErrReaderNotFound); err != nil {
		return nil, err
	}
	return &reader, nil
}

func (c *Client) GetAuthorByUser(ctx context.Context, userID uuid.UUID) (*Author, error) {
	var author Author
	if err := c.get(ctx, fmt.Sprintf("/authors/by-user/%s", userID), &author, database.ErrAuthorNotFound); err != nil {
		return nil, err
	}
	return &author, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}, notFound error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return notFound
	default:
		return fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}
