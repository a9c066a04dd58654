// Package google writes month snapshots to a Google spreadsheet, one tab per
// user and month.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"budget/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client owns one spreadsheet. Tab ids are remembered after the first lookup.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu   sync.Mutex
	tabs map[string]int64
}

var _ sheets.SnapshotWriter = (*Client)(nil)

// New authenticates with service account credentials.
func New(ctx context.Context, spreadsheetID string, credentialsJSON []byte, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if len(credentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}
	opts = append([]goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, opts...)
	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets client ready", "spreadsheet_id", spreadsheetID)
	return NewWithService(svc, spreadsheetID), nil
}

// NewWithService wraps an already configured service.
func NewWithService(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, tabs: make(map[string]int64)}
}

// WriteMonth replaces the contents of the snapshot's tab, creating the tab
// when it does not exist yet. It returns the A1 range that was written.
func (c *Client) WriteMonth(ctx context.Context, s sheets.Snapshot) (string, error) {
	title := s.Title()
	if err := c.ensureTab(ctx, title); err != nil {
		return "", err
	}

	rng := quoteTitle(title)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", title, err)
	}

	rows := s.Rows()
	vr := &gsheet.ValueRange{Range: rng + "!A1", MajorDimension: "ROWS", Values: rows}
	resp, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, vr.Range, vr).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", title, err)
	}

	slog.DebugContext(ctx, "Snapshot written",
		"sheet_title", title,
		"rows", len(rows),
		"updated_range", resp.UpdatedRange)
	if resp.UpdatedRange != "" {
		return resp.UpdatedRange, nil
	}
	return vr.Range, nil
}

func (c *Client) ensureTab(ctx context.Context, title string) error {
	c.mu.Lock()
	_, known := c.tabs[title]
	c.mu.Unlock()
	if known {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets(properties(sheetId,title))").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}

	c.mu.Lock()
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			c.tabs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	_, known = c.tabs[title]
	c.mu.Unlock()
	if known {
		return nil
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: title},
			},
		}},
	}
	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}

	var id int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		id = resp.Replies[0].AddSheet.Properties.SheetId
	}
	c.mu.Lock()
	c.tabs[title] = id
	c.mu.Unlock()

	slog.InfoContext(ctx, "Sheet created", "sheet_title", title, "sheet_id", id)
	return nil
}

// Forget drops the cached tab ids, e.g. after tabs were deleted by hand.
func (c *Client) Forget() {
	c.mu.Lock()
	c.tabs = make(map[string]int64)
	c.mu.Unlock()
}

// quoteTitle wraps a tab title for A1 notation, doubling embedded quotes.
func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// IsRetryable reports whether a Sheets error is worth another attempt:
// quota errors, server errors and anything that never reached the API.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}
