// Package export renders leaderboards for spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/evn/shiftbot/internal/models"
)

var header = []interface{}{"Rank", "Discord ID", "Username", "Total Minutes"}

// Rows flattens entries into spreadsheet rows, header first.
func Rows(entries []models.LeaderboardEntry) [][]interface{} {
	rows := make([][]interface{}, 0, len(entries)+1)
	rows = append(rows, header)
	for _, e := range entries {
		rows = append(rows, []interface{}{e.Rank, e.ExternalID, e.DisplayName, e.TotalMinutes})
	}
	return rows
}

// WriteXLSX writes a single-sheet workbook named after scope.
func WriteXLSX(w io.Writer, scope string, entries []models.LeaderboardEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(scope)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, row := range Rows(entries) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// sheetName trims scope to Excel's 31 character limit and drops forbidden
// characters.
func sheetName(scope string) string {
	out := make([]rune, 0, len(scope))
	for _, r := range scope {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			continue
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	if len(out) == 0 {
		return models.GlobalScope
	}
	return string(out)
}
