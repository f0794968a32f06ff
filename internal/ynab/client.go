package ynab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jask/splitsync/internal/ledger"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.ynab.com/v1"

// Client is a minimal client for the subset of the budget API used by a sync.
// One Client holds one access token and so talks to one party's ledger.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying http client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d, Transport: c.http.Transport}
		}
	}
}

// WithRequestsPerHour limits request rate. The server allows 200 per hour per token.
func WithRequestsPerHour(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(n)), n)
		}
	}
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{token: token, baseURL: DefaultBaseURL, http: &http.Client{Timeout: 30 * time.Second}}
	WithRequestsPerHour(200)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type budgetEnvelope struct {
	Data struct {
		Budget ledger.Budget `json:"budget"`
	} `json:"data"`
}

type transactionsEnvelope struct {
	Data struct {
		Transactions []ledger.Transaction `json:"transactions"`
	} `json:"data"`
}

type createResponse struct {
	Data struct {
		TransactionIDs []string `json:"transaction_ids"`
		Duplicates     []string `json:"duplicate_import_ids"`
	} `json:"data"`
}

// GetBudget reads a budget's accounts, payees and categories.
func (c *Client) GetBudget(ctx context.Context, budgetID string) (ledger.Budget, error) {
	var env budgetEnvelope
	if err := c.do(ctx, http.MethodGet, "/budgets/"+url.PathEscape(budgetID), nil, nil, http.StatusOK, &env); err != nil {
		return ledger.Budget{}, fmt.Errorf("get budget %s: %w", budgetID, err)
	}
	return env.Data.Budget, nil
}

// GetTransactions reads every transaction dated on or after since.
func (c *Client) GetTransactions(ctx context.Context, budgetID string, since ledger.Date) ([]ledger.Transaction, error) {
	q := url.Values{}
	if !since.IsZero() {
		q.Set("since_date", since.String())
	}
	var env transactionsEnvelope
	if err := c.do(ctx, http.MethodGet, "/budgets/"+url.PathEscape(budgetID)+"/transactions", q, nil, http.StatusOK, &env); err != nil {
		return nil, fmt.Errorf("get transactions %s: %w", budgetID, err)
	}
	return env.Data.Transactions, nil
}

// CreateTransactions submits payloads in one request and returns the created ids.
func (c *Client) CreateTransactions(ctx context.Context, budgetID string, payloads []ledger.MirrorPayload) ([]string, error) {
	if len(payloads) == 0 {
		return nil, nil
	}
	body := struct {
		Transactions []ledger.MirrorPayload `json:"transactions"`
	}{payloads}
	var out createResponse
	if err := c.do(ctx, http.MethodPost, "/budgets/"+url.PathEscape(budgetID)+"/transactions", nil, body, http.StatusCreated, &out); err != nil {
		return nil, fmt.Errorf("create transactions %s: %w", budgetID, err)
	}
	return out.Data.TransactionIDs, nil
}

// UpdateTransactions applies patches in one request.
func (c *Client) UpdateTransactions(ctx context.Context, budgetID string, patches []ledger.TransactionPatch) error {
	if len(patches) == 0 {
		return nil
	}
	body := struct {
		Transactions []ledger.TransactionPatch `json:"transactions"`
	}{patches}
	if err := c.do(ctx, http.MethodPatch, "/budgets/"+url.PathEscape(budgetID)+"/transactions", nil, body, http.StatusOK, nil); err != nil {
		return fmt.Errorf("update transactions %s: %w", budgetID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any, want int, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
