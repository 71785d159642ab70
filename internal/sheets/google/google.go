package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"dietledger/internal/log"
	ports "dietledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client writes daily progress rows into "<year> <base>" sheets of one
// spreadsheet. Column A holds the date and identifies the row.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
	logger        *log.Logger

	// Serializes the find-row then write cycle.
	mu sync.Mutex
}

var _ ports.ProgressExporter = (*Client)(nil)

// New creates a client for spreadsheetID. opts are passed to the Sheets
// service; production callers get them from CredentialOptions.
func New(ctx context.Context, spreadsheetID, sheetBase string, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetBase = strings.TrimSpace(sheetBase)
	if sheetBase == "" {
		sheetBase = "Progress"
	}
	if logger == nil {
		logger = log.Discard()
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetBase:     sheetBase,
		logger:        logger.WithComponent(log.ComponentSheets),
	}, nil
}

// CredentialOptions resolves service account credentials from inline JSON,
// a key file, or GOOGLE_APPLICATION_CREDENTIALS, in that order.
func CredentialOptions(inlineJSON, file string) ([]goption.ClientOption, error) {
	inlineJSON = strings.TrimSpace(inlineJSON)
	file = strings.TrimSpace(file)
	if inlineJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inlineJSON != "":
		credentialsJSON = []byte(inlineJSON)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	return []goption.ClientOption{
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
	}, nil
}

// ExportDay writes r into the sheet for its year, overwriting the row that
// already carries the date or appending a new one. An empty sheet gets a
// header row first.
func (c *Client) ExportDay(ctx context.Context, r ports.DayReport) (string, error) {
	if err := r.Date.Validate(); err != nil {
		return "", err
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sheet := yearPrefixedName(c.sheetBase, r.Date.Year())
	rng := fmt.Sprintf("%s!A:A", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rng, err)
	}

	existing := resp.Values
	if len(existing) == 0 {
		if err := c.writeRow(ctx, sheet, 1, toCells(r.Header())); err != nil {
			return "", fmt.Errorf("write header: %w", err)
		}
		existing = [][]interface{}{{"Date"}}
	}

	row := findRow(existing, r.Date.String())
	if row == 0 {
		row = len(existing) + 1
	}
	if err := c.writeRow(ctx, sheet, row, r.Values()); err != nil {
		return "", err
	}

	ref := fmt.Sprintf("%s!A%d", sheet, row)
	c.logger.InfoContext(ctx, "Exported day",
		log.FieldDate, r.Date.String(),
		"row_ref", ref)
	return ref, nil
}

func (c *Client) writeRow(ctx context.Context, sheet string, row int, cells []any) error {
	rng := fmt.Sprintf("%s!A%d", sheet, row)
	vr := &gsheet.ValueRange{Values: [][]interface{}{cells}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// findRow returns the 1-based row whose first cell equals date, or 0.
func findRow(values [][]interface{}, date string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == date {
			return i + 1
		}
	}
	return 0
}

func toCells(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
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
