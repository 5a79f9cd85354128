package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spesevoce/internal/core"
	"spesevoce/internal/log"
	ports "spesevoce/internal/sheets"
)

const defaultRowCacheTTL = 2 * time.Minute

type Config struct {
	SpreadsheetID string
	// SheetName is the base name; the expense's year is prefixed ("2025 Expenses").
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	// Location renders the Date and Time columns. Defaults to time.Local.
	Location *time.Location
}

// valuesAPI is the slice of the Sheets values API the client uses.
type valuesAPI interface {
	get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
}

type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s serviceValues) update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

type Client struct {
	values        valuesAPI
	spreadsheetID string
	sheetBase     string
	loc           *time.Location

	// Row count cache per sheet avoids a read before every append.
	mu                 sync.Mutex
	cachedSheet        string
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

var _ ports.Sink = (*Client)(nil)

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(serviceValues{svc: svc}, cfg), nil
}

func newClient(values valuesAPI, cfg Config) *Client {
	base := strings.TrimSpace(cfg.SheetName)
	if base == "" {
		base = "Expenses"
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		values:             values,
		spreadsheetID:      strings.TrimSpace(cfg.SpreadsheetID),
		sheetBase:          base,
		loc:                loc,
		cacheValidDuration: defaultRowCacheTTL,
	}
}

// newSheetsService uses inline JSON, then a key file, then GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		log.FieldComponent, log.ComponentSheets,
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Append writes e into the next free row of its year's sheet.
func (c *Client) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	if c.values == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheet := c.sheetFor(e.Timestamp)

	c.mu.Lock()
	defer c.mu.Unlock()

	rowCount, err := c.rowCountLocked(ctx, sheet)
	if err != nil {
		return "", err
	}
	nextRow := rowCount + 1

	rng := fmt.Sprintf("%s!A%d:H%d", sheet, nextRow, nextRow)
	if err := c.values.update(ctx, c.spreadsheetID, rng, [][]any{c.row(e)}); err != nil {
		c.invalidateLocked()
		return "", fmt.Errorf("failed to update %s: %w", rng, err)
	}
	c.cachedRowCount = nextRow

	return rng, nil
}

// Contains scans the ID column of the sheet for e's year.
func (c *Client) Contains(ctx context.Context, e core.Expense) (bool, error) {
	if c.values == nil {
		return false, errors.New("sheets service not initialized")
	}
	want := strconv.FormatInt(e.ID, 10)
	rng := fmt.Sprintf("%s!H:H", c.sheetFor(e.Timestamp))
	rows, err := c.values.get(ctx, c.spreadsheetID, rng)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", rng, err)
	}
	for _, v := range firstColumn(rows) {
		if v == want {
			return true, nil
		}
	}
	return false, nil
}

// InvalidateRowCache forces the next Append to re-read the row count.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked()
}

func (c *Client) invalidateLocked() {
	c.cacheExpiresAt = time.Time{}
}

func (c *Client) rowCountLocked(ctx context.Context, sheet string) (int, error) {
	if c.cachedSheet == sheet && time.Now().Before(c.cacheExpiresAt) {
		return c.cachedRowCount, nil
	}
	rng := fmt.Sprintf("%s!A:A", sheet)
	rows, err := c.values.get(ctx, c.spreadsheetID, rng)
	if err != nil {
		return 0, fmt.Errorf("failed to get sheet dimensions for %s: %w", sheet, err)
	}
	c.cachedSheet = sheet
	c.cachedRowCount = len(rows)
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	return len(rows), nil
}

func (c *Client) sheetFor(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return yearPrefixedName(c.sheetBase, t.In(c.loc).Year())
}

func (c *Client) row(e core.Expense) []any {
	at := e.Timestamp.In(c.loc)
	return []any{
		at.Format("2006-01-02"),
		at.Format("15:04"),
		strings.ReplaceAll(e.Amount, ",", ""),
		string(e.Currency),
		e.Category,
		e.Transcript,
		string(e.Confidence),
		strconv.FormatInt(e.ID, 10),
	}
}

func firstColumn(rows [][]any) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		out = append(out, strings.TrimSpace(fmt.Sprint(row[0])))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
