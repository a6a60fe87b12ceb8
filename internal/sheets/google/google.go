package google

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"financas/internal/core"
	"financas/internal/log"
	ports "financas/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Ensure interface conformance
var (
	_ ports.TransactionWriter = (*Client)(nil)
	_ ports.TransactionLister = (*Client)(nil)
)

// idColumn holds the transaction ID, the last column of sheets.Header.
const idColumn = "J"

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string
	Logger          *log.Logger
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	logger := sheetsLogger(cfg.Logger)
	var opt goption.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		logger.InfoContext(ctx, "Using inline service account credentials")
		opt = goption.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	case cfg.CredentialsFile != "":
		logger.InfoContext(ctx, "Reading service account credentials from file", "path", cfg.CredentialsFile)
		opt = goption.WithCredentialsFile(cfg.CredentialsFile)
	default:
		return nil, errors.New("missing service account credentials")
	}

	svc, err := gsheet.NewService(ctx, opt, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName, cfg.Logger)
}

func sheetsLogger(logger *log.Logger) *log.Logger {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return logger.WithComponent(log.ComponentSheets)
}

// NewWithService wraps an existing Sheets service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) (*Client, error) {
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetName == "" {
		return nil, errors.New("missing sheet name")
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        sheetsLogger(logger),
	}, nil
}

// Append writes the row after the last used row of the sheet, unless the
// transaction ID is already present.
func (c *Client) Append(ctx context.Context, row ports.Row) (string, error) {
	if row.TransactionID == "" {
		return "", errors.New("row without transaction id")
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	ids, err := c.readCol(ctx, idColumn+":"+idColumn)
	if err != nil {
		return "", fmt.Errorf("read transaction ids: %w", err)
	}
	if i := slices.Index(ids, row.TransactionID); i >= 0 {
		ref := fmt.Sprintf("%s!A%d:%s%d", c.sheetName, i+1, idColumn, i+1)
		c.logger.InfoContext(ctx, "Transaction already in sheet",
			log.FieldTransactionID, row.TransactionID,
			log.FieldSheetsRef, ref)
		return ref, nil
	}

	rng := fmt.Sprintf("%s!A:%s", c.sheetName, idColumn)
	vr := &gsheet.ValueRange{Values: [][]any{row.Values()}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// ListRows reads every data row of the sheet. Rows that do not parse are skipped.
func (c *Client) ListRows(ctx context.Context) ([]ports.Row, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:%s", c.sheetName, idColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	var out []ports.Row
	for i, cells := range resp.Values {
		row, err := parseRow(toStrings(cells))
		if err != nil {
			if i > 0 {
				c.logger.WarnContext(ctx, "Skipping unreadable sheet row", "row", i+1, log.FieldError, err)
			}
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (c *Client) readCol(ctx context.Context, col string) ([]string, error) {
	rng := fmt.Sprintf("%s!%s", c.sheetName, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			out[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return out, nil
}

func parseRow(cells []string) (ports.Row, error) {
	if len(cells) < len(ports.Header) {
		return ports.Row{}, fmt.Errorf("expected %d cells, got %d", len(ports.Header), len(cells))
	}
	date, err := core.ParseDate(cells[0])
	if err != nil {
		return ports.Row{}, err
	}
	amount, err := core.ParseMoney(cells[2])
	if err != nil {
		return ports.Row{}, err
	}
	n, err := strconv.Atoi(cells[8])
	if err != nil {
		return ports.Row{}, fmt.Errorf("installments %q: %w", cells[8], err)
	}
	return ports.Row{
		Date:          date,
		Description:   cells[1],
		Amount:        amount,
		Type:          cells[3],
		Kind:          core.PaymentKind(cells[4]),
		Category:      cells[5],
		Account:       cells[6],
		Card:          cells[7],
		Installments:  n,
		TransactionID: cells[9],
	}, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
