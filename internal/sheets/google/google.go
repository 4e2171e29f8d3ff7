package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendbook/internal/core"
	ports "spendbook/internal/sheets"
)

// Client writes month statements to a Google spreadsheet. Each month
// gets its own tab named after the month token (e.g. "2024-05"),
// rewritten in full on every export.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

// Ensure interface conformance
var _ ports.StatementWriter = (*Client)(nil)

// Options configures the Sheets client.
type Options struct {
	SpreadsheetID string
	// SheetBase prefixes every month tab name (e.g. "Statements" gives
	// "Statements 2024-05"). Empty means the bare month token.
	SheetBase string
	// Service account credentials, inline JSON or a file path. Inline
	// wins when both are set.
	CredentialsJSON string
	CredentialsFile string
}

// New creates a Sheets client using service account credentials.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	credentialsJSON, err := resolveCredentials(opts)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		sheetBase:     strings.TrimSpace(opts.SheetBase),
	}, nil
}

func resolveCredentials(opts Options) ([]byte, error) {
	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)

	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials")
	}
}

// WriteMonthStatement replaces the month's tab with a fresh statement:
// a header row, one row per expense, and a trailing total.
func (c *Client) WriteMonthStatement(ctx context.Context, token core.MonthToken, expenses []core.Expense) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	sheetName := c.sheetName(token)
	if err := c.ensureSheet(ctx, sheetName); err != nil {
		return err
	}

	clearRange := fmt.Sprintf("%s!A:C", sheetName)
	_, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet %s: %w", sheetName, err)
	}

	values := [][]any{{"Date", "Description", "Amount"}}
	total := core.FormatAmount(core.SumAmounts(expenses))
	for _, e := range expenses {
		values = append(values, []any{e.Date.String(), e.Description, core.FormatAmount(e.Amount)})
	}
	values = append(values, []any{"", "Total", total})

	writeRange := fmt.Sprintf("%s!A1", sheetName)
	vr := &gsheet.ValueRange{Values: values}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write statement to sheet %s: %w", sheetName, err)
	}

	return nil
}

func (c *Client) sheetName(token core.MonthToken) string {
	name := token.Year + "-" + token.Month
	if c.sheetBase != "" {
		return c.sheetBase + " " + name
	}
	return name
}

// ensureSheet creates the month's tab when it does not exist yet.
func (c *Client) ensureSheet(ctx context.Context, sheetName string) error {
	meta, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet metadata: %w", err)
	}
	for _, sh := range meta.Sheets {
		if sh.Properties != nil && sh.Properties.Title == sheetName {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: sheetName},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", sheetName, err)
	}
	return nil
}
