package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/davidps79/backend-grupo-13/internal/database"
)

// Client requests payment links from the provider over HTTP.
type Client struct {
	baseURL     string
	callbackURL string
	http        *http.Client
}

func NewClient(baseURL, callbackURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:     baseURL,
		callbackURL: callbackURL,
		http:        &http.Client{Timeout: timeout},
	}
}

func (c *Client) IssuePaymentLink(ctx context.Context, req LinkRequest) (string, error) {
	req.CallbackURL = c.callbackURL

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal link request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/links", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", database.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("%w: provider returned status %d", database.ErrGateway, resp.StatusCode)
	}

	var out struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode link response: %v", database.ErrGateway, err)
	}
	if out.Link == "" {
		return "", fmt.Errorf("%w: provider returned empty link", database.ErrGateway)
	}

	return out.Link, nil
}
