package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nutrilog/nutrilog/internal/common"
	"github.com/nutrilog/nutrilog/internal/nutrition"
)

var mealHeaders = []string{"Timestamp", "Items", "Calories", "Protein (g)", "Carbs (g)", "Fat (g)"}
var summaryHeaders = []string{"Date", "Calories", "Protein (g)", "Carbs (g)", "Fat (g)"}

// ExcelStore keeps meal history in a local XLSX workbook with one sheet for
// meals and one for daily reports. Writes are serialized; the workbook is
// reopened per operation so external edits between runs are picked up.
type ExcelStore struct {
	path         string
	mealsSheet   string
	reportsSheet string
	logger       *slog.Logger
	mu           sync.Mutex
}

func NewExcelStore(cfg common.SheetsConfig, logger *slog.Logger) (*ExcelStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ExcelStore{
		path:         cfg.WorkbookPath,
		mealsSheet:   cfg.MealsSheetName,
		reportsSheet: cfg.ReportsSheetName,
		logger:       logger,
	}
	if err := s.ensureWorkbook(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ExcelStore) ensureWorkbook() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat workbook: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("sheets.workbook_close_error", "error", err)
		}
	}()

	for sheet, headers := range map[string][]string{
		s.mealsSheet:   mealHeaders,
		s.reportsSheet: summaryHeaders,
	} {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.SetCellValue(sheet, cell, h); err != nil {
				return fmt.Errorf("write header: %w", err)
			}
		}
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("drop default sheet: %w", err)
	}

	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	s.logger.Info("sheets.workbook_created", "path", s.path)
	return nil
}

// AppendMeal writes one meal row: localized timestamp, comma-joined items,
// and the four totals rounded to two decimals.
func (s *ExcelStore) AppendMeal(_ context.Context, rec MealRecord) error {
	values := []any{
		rec.Timestamp.Format(TimestampLayout),
		rec.Items,
		nutrition.Round2(rec.Totals.Calories),
		nutrition.Round2(rec.Totals.ProteinG),
		nutrition.Round2(rec.Totals.CarbsG),
		nutrition.Round2(rec.Totals.FatG),
	}
	return s.appendRow(s.mealsSheet, values)
}

// AppendSummary writes one daily rollup row.
func (s *ExcelStore) AppendSummary(_ context.Context, sum DailySummary) error {
	values := []any{
		sum.Date,
		nutrition.Round2(sum.Totals.Calories),
		nutrition.Round2(sum.Totals.ProteinG),
		nutrition.Round2(sum.Totals.CarbsG),
		nutrition.Round2(sum.Totals.FatG),
	}
	return s.appendRow(s.reportsSheet, values)
}

// MealRows returns all persisted meal rows, header excluded.
func (s *ExcelStore) MealRows(_ context.Context) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("sheets.workbook_close_error", "error", err)
		}
	}()

	rows, err := f.GetRows(s.mealsSheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", s.mealsSheet, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

func (s *ExcelStore) appendRow(sheet string, values []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("sheets.workbook_close_error", "error", err)
		}
	}()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	row := len(rows) + 1

	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("write cell %s: %w", cell, err)
		}
	}

	if err := f.Save(); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	s.logger.Info("sheets.append.ok",
		"sheet", sheet,
		"row", row,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
