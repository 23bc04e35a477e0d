package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/core"
	"expensetracker/internal/ports"
)

type fakeSheets struct {
	mu       sync.Mutex
	appended [][]interface{}
	header   [][]interface{}
	fail     bool
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		http.Error(w, `{"error":{"code":500,"message":"backend error"}}`, http.StatusInternalServerError)
		return
	}

	var vr gsheet.ValueRange
	if r.Body != nil {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &vr)
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":append"):
		f.appended = append(f.appended, vr.Values...)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"updates": map[string]any{"updatedRange": "Ledger!A2:H2"},
		})
	case r.Method == http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Ledger!A1:H1", "values": f.header})
	case r.Method == http.MethodPut:
		f.header = vr.Values
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRows": 1})
	default:
		http.NotFound(w, r)
	}
}

func newTestLedger(t *testing.T, fake *fakeSheets) *Ledger {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return NewWithService(svc, "sheet-1", "", nil)
}

func sampleEvent() ports.ExpenseEvent {
	return ports.ExpenseEvent{
		Event:  ports.EventCreated,
		UserID: 3,
		Expense: core.Expense{
			ID:          42,
			Description: "Bread",
			Amount:      core.FromCents(280),
			Category:    core.Groceries,
			Date:        core.NewDate(2025, 3, 1),
		},
		OccurredAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestLedger_AppendEvent(t *testing.T) {
	fake := &fakeSheets{}
	ledger := newTestLedger(t, fake)

	ref, err := ledger.AppendEvent(context.Background(), sampleEvent())
	if err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}
	if ref != "Ledger!A2:H2" {
		t.Errorf("AppendEvent() ref = %q", ref)
	}
	if len(fake.appended) != 1 {
		t.Fatalf("appended %d rows, want 1", len(fake.appended))
	}
	row := fake.appended[0]
	if row[1] != "expense.created" || row[5] != "2.80" {
		t.Errorf("unexpected row %v", row)
	}
}

func TestLedger_AppendEventError(t *testing.T) {
	ledger := newTestLedger(t, &fakeSheets{fail: true})

	if _, err := ledger.AppendEvent(context.Background(), sampleEvent()); err == nil {
		t.Fatal("AppendEvent() should fail when the API errors")
	}
}

func TestLedger_EnsureHeader(t *testing.T) {
	fake := &fakeSheets{}
	ledger := newTestLedger(t, fake)

	if err := ledger.EnsureHeader(context.Background()); err != nil {
		t.Fatalf("EnsureHeader() error = %v", err)
	}
	if len(fake.header) != 1 || fake.header[0][0] != "Timestamp" {
		t.Fatalf("header not written: %v", fake.header)
	}

	// Existing header is left alone.
	fake.header = [][]interface{}{{"Custom"}}
	if err := ledger.EnsureHeader(context.Background()); err != nil {
		t.Fatalf("EnsureHeader() error = %v", err)
	}
	if fake.header[0][0] != "Custom" {
		t.Errorf("existing header overwritten: %v", fake.header)
	}
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"missing spreadsheet", Options{}, "missing GOOGLE_SPREADSHEET_ID"},
		{"missing client", Options{SpreadsheetID: "x"}, "oauth client"},
		{"invalid client json", Options{SpreadsheetID: "x", ClientJSON: "invalid-json"}, "oauth config"},
		{"missing client file", Options{SpreadsheetID: "x", ClientFile: "/nonexistent/client.json"}, "oauth client"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(ctx, tt.opts, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLedger_Columns(t *testing.T) {
	l := NewWithService(nil, "id", "Events", nil)
	if got := l.columns(); got != "Events!A:H" {
		t.Errorf("columns() = %q, want Events!A:H", got)
	}
}
