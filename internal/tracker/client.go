// Package tracker is the REST client for the external issue tracker where
// support tickets are filed.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Agamista0/ava-support-backend/pkg/httpclient"

	"github.com/Agamista0/ava-support-backend/internal/domain"
)

// Client files tickets over the tracker's HTTP API. Calls go through a
// circuit breaker so a dead tracker fails fast instead of tying up request
// handlers.
type Client struct {
	baseURL string
	token   string
	project string
	http    *httpclient.CircuitBreakerClient
}

// New creates a tracker client with default HTTP and breaker settings.
func New(baseURL, token, project string, logger *slog.Logger) *Client {
	return NewWithConfig(baseURL, token, project,
		httpclient.DefaultConfig(),
		httpclient.DefaultCircuitBreakerConfig("issue-tracker"),
		logger,
	)
}

// NewWithConfig creates a tracker client with explicit HTTP and breaker
// settings.
func NewWithConfig(baseURL, token, project string, httpCfg httpclient.Config, cbCfg httpclient.CircuitBreakerConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		project: project,
		http:    httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), cbCfg, logger),
	}
}

type createTicketRequest struct {
	Project     string   `json:"project"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Labels      []string `json:"labels,omitempty"`
}

type createTicketResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
	URL string `json:"url"`
}

// CreateTicket files a ticket and returns its reference.
func (c *Client) CreateTicket(ctx context.Context, summary, description, category, priority string) (*domain.TicketRef, error) {
	payload, err := json.Marshal(createTicketRequest{
		Project:     c.project,
		Summary:     summary,
		Description: description,
		Priority:    priority,
		Labels:      []string{category},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ticket request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/tickets", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ticket request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "issue-tracker")
	}

	var created createTicketResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode ticket response: %w", err)
	}

	return &domain.TicketRef{
		ID:  created.ID,
		Key: created.Key,
		URL: created.URL,
	}, nil
}
