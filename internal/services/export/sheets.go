package export

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/evn/shiftbot/internal/models"
)

// SheetsPublisher overwrites a range of a Google spreadsheet with the
// leaderboard.
type SheetsPublisher struct {
	srv           *sheets.Service
	spreadsheetID string
}

func NewSheetsPublisher(ctx context.Context, credentialsFile, spreadsheetID string) (*SheetsPublisher, error) {
	srv, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets client: %w", err)
	}
	return &SheetsPublisher{srv: srv, spreadsheetID: spreadsheetID}, nil
}

// Publish clears the scope's sheet columns and writes the rows from A1. The
// sheet tab must already exist.
func (p *SheetsPublisher) Publish(ctx context.Context, scope string, entries []models.LeaderboardEntry) (int64, error) {
	sheet := sheetName(scope)
	clearRange := fmt.Sprintf("'%s'!A:D", sheet)
	if _, err := p.srv.Spreadsheets.Values.Clear(p.spreadsheetID, clearRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("clear %s: %w", clearRange, err)
	}

	vr := &sheets.ValueRange{Values: Rows(entries)}
	resp, err := p.srv.Spreadsheets.Values.Update(p.spreadsheetID, fmt.Sprintf("'%s'!A1", sheet), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return 0, fmt.Errorf("update sheet %s: %w", sheet, err)
	}
	return resp.UpdatedRows, nil
}
