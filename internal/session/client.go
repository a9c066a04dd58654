package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"budget/internal/core"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)

// APIError is a non-2xx reply decoded from the server's error body.
type APIError struct {
	StatusCode int
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.Errors) > 0 {
		msg += ": " + strings.Join(e.Errors, "; ")
	}
	return fmt.Sprintf("api %d: %s", e.StatusCode, msg)
}

// Is lets callers match API errors against the core and session sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case core.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

type (
	// ExpenseFields is the body of expense create and update calls. Nil
	// fields are left out, so updates only touch what is set.
	ExpenseFields struct {
		Activity   *string     `json:"activity,omitempty"`
		Amount     *core.Money `json:"amount,omitempty"`
		Category   *string     `json:"category,omitempty"`
		CategoryID *string     `json:"categoryId,omitempty"`
		CreatedAt  *time.Time  `json:"createdAt,omitempty"`
	}

	BudgetFields struct {
		Category  *string     `json:"category,omitempty"`
		Budget    *core.Money `json:"budget,omitempty"`
		CreatedAt *time.Time  `json:"createdAt,omitempty"`
	}

	IncomeFields struct {
		Amount    *core.Money `json:"amount,omitempty"`
		CreatedAt *time.Time  `json:"createdAt,omitempty"`
	}

	// Credentials is what the server hands out on login.
	Credentials struct {
		User      core.User `json:"user"`
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
)

// Client talks to the budget REST API. A Client is safe for concurrent use;
// WithToken returns an authenticated copy.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

func NewClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: u, http: hc}, nil
}

func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

func (c *Client) Register(ctx context.Context, name, email, secret string) (core.User, error) {
	var u core.User
	body := map[string]string{"name": name, "email": email, "secret": secret}
	err := c.do(ctx, http.MethodPost, "/api/users", nil, body, &u)
	return u, err
}

func (c *Client) Login(ctx context.Context, email, secret string) (Credentials, error) {
	var cred Credentials
	body := map[string]string{"email": email, "secret": secret}
	err := c.do(ctx, http.MethodPost, "/api/sessions", nil, body, &cred)
	return cred, err
}

func (c *Client) ListExpenses(ctx context.Context, m core.Month) ([]core.Expense, error) {
	var out []core.Expense
	err := c.do(ctx, http.MethodGet, "/api/expenses", monthQuery(m), nil, &out)
	return out, err
}

func (c *Client) CreateExpense(ctx context.Context, f ExpenseFields) (core.Expense, error) {
	var out core.Expense
	err := c.do(ctx, http.MethodPost, "/api/expenses", nil, f, &out)
	return out, err
}

func (c *Client) UpdateExpense(ctx context.Context, id string, f ExpenseFields) (core.Expense, error) {
	var out core.Expense
	err := c.do(ctx, http.MethodPut, "/api/expenses/"+url.PathEscape(id), nil, f, &out)
	return out, err
}

func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/expenses/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListBudgets(ctx context.Context, m core.Month) ([]core.CategoryBudget, error) {
	var out []core.CategoryBudget
	err := c.do(ctx, http.MethodGet, "/api/categoryBudgets", monthQuery(m), nil, &out)
	return out, err
}

func (c *Client) CreateBudget(ctx context.Context, f BudgetFields) (core.CategoryBudget, error) {
	var out core.CategoryBudget
	err := c.do(ctx, http.MethodPost, "/api/categoryBudgets", nil, f, &out)
	return out, err
}

func (c *Client) UpdateBudget(ctx context.Context, id string, f BudgetFields) (core.CategoryBudget, error) {
	var out core.CategoryBudget
	err := c.do(ctx, http.MethodPut, "/api/categoryBudgets/"+url.PathEscape(id), nil, f, &out)
	return out, err
}

func (c *Client) DeleteBudget(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/categoryBudgets/"+url.PathEscape(id), nil, nil, nil)
}

func (c *Client) ListIncomes(ctx context.Context, m core.Month) ([]core.Income, error) {
	var out []core.Income
	err := c.do(ctx, http.MethodGet, "/api/income", monthQuery(m), nil, &out)
	return out, err
}

func (c *Client) CreateIncome(ctx context.Context, f IncomeFields) (core.Income, error) {
	var out core.Income
	err := c.do(ctx, http.MethodPost, "/api/income", nil, f, &out)
	return out, err
}

func (c *Client) UpdateIncome(ctx context.Context, id string, f IncomeFields) (core.Income, error) {
	var out core.Income
	err := c.do(ctx, http.MethodPut, "/api/income/"+url.PathEscape(id), nil, f, &out)
	return out, err
}

func (c *Client) DeleteIncome(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/income/"+url.PathEscape(id), nil, nil, nil)
}

// Summary asks the server for its cached month summary.
func (c *Client) Summary(ctx context.Context, m core.Month) (core.Summary, error) {
	var out core.Summary
	err := c.do(ctx, http.MethodGet, "/api/summary", monthQuery(m), nil, &out)
	return out, err
}

func monthQuery(m core.Month) url.Values {
	return url.Values{"month": {m.String()}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr)
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
