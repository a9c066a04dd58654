package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// fakeSheets is a minimal stand-in for the Sheets REST API.
type fakeSheets struct {
	mu      sync.Mutex
	tabs    []string
	calls   []string
	written map[string][][]any
	failPut int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/"):
		f.calls = append(f.calls, "get")
		var sheetsJSON []map[string]any
		for i, t := range f.tabs {
			sheetsJSON = append(sheetsJSON, map[string]any{"properties": map[string]any{"sheetId": i, "title": t}})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"sheets": sheetsJSON})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		f.calls = append(f.calls, "batchUpdate")
		var req gsheet.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		title := req.Requests[0].AddSheet.Properties.Title
		f.tabs = append(f.tabs, title)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"replies": []any{map[string]any{"addSheet": map[string]any{
				"properties": map[string]any{"sheetId": len(f.tabs) + 100, "title": title},
			}}},
		})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.calls = append(f.calls, "clear")
		_, _ = io.WriteString(w, `{}`)

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		f.calls = append(f.calls, "update:"+r.URL.Query().Get("valueInputOption"))
		if f.failPut > 0 {
			w.WriteHeader(f.failPut)
			_, _ = io.WriteString(w, `{"error":{"code":503,"message":"unavailable"}}`)
			return
		}
		var vr gsheet.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		f.written[vr.Range] = vr.Values
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": vr.Range})

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprintf(w, `{"error":{"code":404,"message":"no route %s %s"}}`, r.Method, path)
	}
}

func newFakeClient(t *testing.T, f *fakeSheets) *Client {
	t.Helper()
	if f.written == nil {
		f.written = make(map[string][][]any)
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewWithService(svc, "sheet-123")
}

func snapshot() sheets.Snapshot {
	month, _ := core.ParseMonth("2024-03")
	return sheets.Snapshot{
		OwnerID:   "user-1",
		OwnerName: "Ann",
		Month:     month,
		Expenses: []core.Expense{
			{ID: "e1", Activity: "Groceries", Category: "Food", Amount: core.Units(40), CreatedAt: time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)},
		},
		Summary: core.Summary{
			Income:          core.Units(100),
			TotalExpenses:   core.Units(40),
			RemainingAmount: core.Units(60),
		},
		GeneratedAt: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}
}

func TestWriteMonthCreatesTabOnce(t *testing.T) {
	f := &fakeSheets{tabs: []string{"Sheet1"}}
	c := newFakeClient(t, f)
	ctx := context.Background()

	ref, err := c.WriteMonth(ctx, snapshot())
	require.NoError(t, err)
	assert.Equal(t, "'2024-03 Ann (user-1)'!A1", ref)

	_, err = c.WriteMonth(ctx, snapshot())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"get", "batchUpdate", "clear", "update:USER_ENTERED",
		"clear", "update:USER_ENTERED",
	}, f.calls)
	assert.Equal(t, []string{"Sheet1", "2024-03 Ann (user-1)"}, f.tabs)

	rows := f.written["'2024-03 Ann (user-1)'!A1"]
	require.NotEmpty(t, rows)
	assert.Equal(t, []any{"Month", "2024-03"}, rows[0])
}

func TestWriteMonthReusesExistingTab(t *testing.T) {
	f := &fakeSheets{tabs: []string{"2024-03 Ann (user-1)"}}
	c := newFakeClient(t, f)

	_, err := c.WriteMonth(context.Background(), snapshot())
	require.NoError(t, err)
	assert.Equal(t, []string{"get", "clear", "update:USER_ENTERED"}, f.calls)

	c.Forget()
	_, err = c.WriteMonth(context.Background(), snapshot())
	require.NoError(t, err)
	assert.Equal(t, "get", f.calls[3])
}

func TestWriteMonthReportsAPIErrors(t *testing.T) {
	f := &fakeSheets{tabs: []string{"2024-03 Ann (user-1)"}, failPut: http.StatusServiceUnavailable}
	c := newFakeClient(t, f)

	_, err := c.WriteMonth(context.Background(), snapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update 2024-03 Ann (user-1)")
	assert.True(t, IsRetryable(err))
}

func TestNewRequiresConfiguration(t *testing.T) {
	_, err := New(context.Background(), "", []byte(`{}`))
	assert.Error(t, err)
	_, err = New(context.Background(), "sheet", nil)
	assert.Error(t, err)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", fmt.Errorf("wrap: %w", context.Canceled), false},
		{"rate limited", &googleapi.Error{Code: http.StatusTooManyRequests}, true},
		{"server error", &googleapi.Error{Code: http.StatusBadGateway}, true},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, false},
		{"forbidden", fmt.Errorf("update: %w", &googleapi.Error{Code: http.StatusForbidden}), false},
		{"network", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestQuoteTitle(t *testing.T) {
	assert.Equal(t, "'2024-03 O''Brien'", quoteTitle("2024-03 O'Brien"))
}
