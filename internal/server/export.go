package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-courses/internal/catalog"
	"github.com/p-n-ai/pai-courses/internal/view"
)

const (
	summarySheet = "Summary"
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.currentSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	f, err := buildWorkbook(s.catalog, sess.Reconciler())
	if err != nil {
		writeError(w, fmt.Errorf("building workbook: %w", err))
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("closing workbook", "error", err)
		}
	}()

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", `attachment; filename="progress.xlsx"`)
	if err := f.Write(w); err != nil {
		slog.Error("failed to write workbook", "user_id", sess.UserID(), "error", err)
	}
}

// buildWorkbook writes a summary sheet plus one sheet per course listing
// every lesson and whether it is completed.
func buildWorkbook(cat *catalog.Catalog, progress view.ProgressReader) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		_ = f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if err := writeRows(f, summarySheet, bold,
		[]any{"Course", "Title", "Completed", "Total", "Progress %"},
		summaryRows(cat, progress),
	); err != nil {
		_ = f.Close()
		return nil, err
	}

	for _, c := range cat.ListCourses() {
		if _, err := f.NewSheet(c.ID); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("adding sheet %s: %w", c.ID, err)
		}
		if err := writeRows(f, c.ID, bold,
			[]any{"Lesson", "Module", "Topic", "Completed"},
			lessonRows(cat, progress, c.ID),
		); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	f.SetActiveSheet(0)
	return f, nil
}

func summaryRows(cat *catalog.Catalog, progress view.ProgressReader) [][]any {
	var rows [][]any
	for _, c := range cat.ListCourses() {
		rows = append(rows, []any{
			c.ID,
			c.Title,
			progress.CompletedCount(c.ID),
			c.TotalLessons(),
			progress.Progress(c.ID),
		})
	}
	return rows
}

func lessonRows(cat *catalog.Catalog, progress view.ProgressReader, courseID string) [][]any {
	var rows [][]any
	for _, l := range cat.Lessons(courseID) {
		done := "no"
		if progress.IsCompleted(courseID, l.ID()) {
			done = "yes"
		}
		rows = append(rows, []any{l.ID(), l.Module, l.Topic, done})
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}
