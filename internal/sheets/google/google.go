// Package google appends expense events to a Google Sheets ledger.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensetracker/internal/log"
	"expensetracker/internal/ports"
	"expensetracker/internal/sheets"
)

// Options locates the spreadsheet and the OAuth credentials. Each credential
// may come inline (JSON) or from a file; inline wins.
type Options struct {
	SpreadsheetID string
	SheetName     string
	ClientFile    string
	ClientJSON    string
	TokenFile     string
	TokenJSON     string
}

type Ledger struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

var _ ports.LedgerWriter = (*Ledger)(nil)

// New builds a ledger authorized with a stored OAuth token (see
// cmd/sheets-oauth-init).
func New(ctx context.Context, opts Options, logger *log.Logger) (*Ledger, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	clientJSON, err := inlineOrFile(opts.ClientJSON, opts.ClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client: %w", err)
	}
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tokenJSON, err := inlineOrFile(opts.TokenJSON, opts.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	// The token source refreshes over the pooled transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, opts.SpreadsheetID, opts.SheetName, logger), nil
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Ledger {
	if logger == nil {
		logger = log.Discard()
	}
	if sheetName == "" {
		sheetName = "Ledger"
	}
	return &Ledger{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func inlineOrFile(inline, path string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return b, nil
	default:
		return nil, errors.New("neither inline JSON nor file provided")
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

func (l *Ledger) columns() string {
	last := rune('A' + len(sheets.Header) - 1)
	return fmt.Sprintf("%s!A:%c", l.sheetName, last)
}

// EnsureHeader writes the header row when the sheet's first row is empty.
func (l *Ledger) EnsureHeader(ctx context.Context) error {
	first := fmt.Sprintf("%s!A1:%c1", l.sheetName, rune('A'+len(sheets.Header)-1))
	resp, err := l.svc.Spreadsheets.Values.Get(l.spreadsheetID, first).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	vr := &gsheet.ValueRange{Values: [][]interface{}{toInterfaces(sheets.Header)}}
	_, err = l.svc.Spreadsheets.Values.Update(l.spreadsheetID, first, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	l.logger.InfoContext(ctx, "Wrote ledger header", "sheet", l.sheetName)
	return nil
}

// AppendEvent adds one row and returns the range the API reports as written.
func (l *Ledger) AppendEvent(ctx context.Context, ev ports.ExpenseEvent) (string, error) {
	if l.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	vr := &gsheet.ValueRange{Values: [][]interface{}{toInterfaces(sheets.Row(ev))}}
	resp, err := l.svc.Spreadsheets.Values.Append(l.spreadsheetID, l.columns(), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append ledger row: %w", err)
	}

	ref := ""
	if resp.Updates != nil {
		ref = resp.Updates.UpdatedRange
	}
	l.logger.DebugContext(ctx, "Appended ledger row",
		log.FieldEvent, ev.Event,
		log.FieldExpenseID, ev.Expense.ID,
		"range", ref)
	return ref, nil
}

func toInterfaces(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
