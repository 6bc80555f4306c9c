// Package export writes crawl results as spreadsheets.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ibeckermayer/commentcrawl/internal/types"
)

// Sheet names
const (
	CommentsSheet = "Comments"
	SummarySheet  = "Summary"
)

// Columns of the comments sheet, in order
var Columns = []string{
	"ID", "Author", "Text", "IsReply", "ParentID",
	"ReplyTo", "Likes", "PostedAt", "ArticleTitle", "ArticleURL",
}

// WriteXLSX writes one row per comment plus a summary sheet to path
func WriteXLSX(path string, c *types.Crawl) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", CommentsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]any, len(Columns))
	for i, col := range Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(CommentsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(CommentsSheet, "A1", last, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range c.Rows() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := rowValues(row)
		if err := f.SetSheetRow(CommentsSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row.ID, err)
		}
	}

	if err := writeSummary(f, c); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save spreadsheet: %w", err)
	}
	return nil
}

func rowValues(r types.ArticleComment) []any {
	var parent, replyTo any = "", ""
	if r.ParentID != nil {
		parent = *r.ParentID
	}
	if r.ReplyToAuthor != nil {
		replyTo = *r.ReplyToAuthor
	}
	return []any{
		r.ID, r.Author, r.Text, r.IsReply, parent,
		replyTo, r.LikeCount, r.PostedAt, r.ArticleTitle, r.ArticleURL,
	}
}

func writeSummary(f *excelize.File, c *types.Crawl) error {
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("failed to add summary sheet: %w", err)
	}

	rows := [][]any{
		{"Run", c.RunID},
		{"Title", c.Article.Title},
		{"URL", c.Article.URL},
		{"Comments", len(c.Comments)},
		{"Roots", c.Roots()},
		{"Replies", c.Replies()},
		{"Visited", c.Visited},
		{"ExpansionAttempts", c.Expansion.Attempts},
		{"ExpansionClicks", c.Expansion.Clicks},
		{"StartedAt", c.StartedAt.Format("2006-01-02 15:04:05")},
		{"Error", c.Error},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return nil
}
