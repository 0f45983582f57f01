package sheets

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nutrilog/nutrilog/internal/common"
	"github.com/nutrilog/nutrilog/internal/nutrition"
)

func newTestStore(t *testing.T) *ExcelStore {
	t.Helper()
	cfg := common.SheetsConfig{
		WorkbookPath:     filepath.Join(t.TempDir(), "meals.xlsx"),
		MealsSheetName:   "Meals",
		ReportsSheetName: "Daily_Reports",
	}
	s, err := NewExcelStore(cfg, nil)
	if err != nil {
		t.Fatalf("NewExcelStore: %v", err)
	}
	return s
}

func TestNewExcelStoreCreatesWorkbook(t *testing.T) {
	s := newTestStore(t)

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		t.Fatalf("open created workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Meals")
	if err != nil {
		t.Fatalf("GetRows(Meals): %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != 6 || rows[0][0] != "Timestamp" || rows[0][5] != "Fat (g)" {
		t.Fatalf("meals header = %v", rows)
	}

	rows, err = f.GetRows("Daily_Reports")
	if err != nil {
		t.Fatalf("GetRows(Daily_Reports): %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != 5 || rows[0][0] != "Date" {
		t.Fatalf("reports header = %v", rows)
	}

	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		t.Fatal("default Sheet1 should have been removed")
	}
}

func TestAppendMealAndReadBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 8, 31, 13, 45, 0, 0, time.UTC)
	rec := MealRecord{
		Timestamp: ts,
		Items:     "Apple (180g), 2 fried eggs (120g)",
		Totals:    nutrition.Totals{Calories: 93.600000000001, ProteinG: 0.5, CarbsG: 25.2, FatG: 0.3},
	}
	if err := s.AppendMeal(ctx, rec); err != nil {
		t.Fatalf("AppendMeal: %v", err)
	}
	if err := s.AppendMeal(ctx, MealRecord{Timestamp: ts.Add(time.Hour), Items: "Banana (120g)"}); err != nil {
		t.Fatalf("AppendMeal: %v", err)
	}

	rows, err := s.MealRows(ctx)
	if err != nil {
		t.Fatalf("MealRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][0] != "2026-08-31 13:45:00" {
		t.Errorf("timestamp cell = %q", rows[0][0])
	}
	if rows[0][1] != "Apple (180g), 2 fried eggs (120g)" {
		t.Errorf("items cell = %q", rows[0][1])
	}
	// Rounded at the row boundary.
	if rows[0][2] != "93.6" {
		t.Errorf("calories cell = %q, want 93.6", rows[0][2])
	}
	if rows[1][1] != "Banana (120g)" {
		t.Errorf("second row items = %q", rows[1][1])
	}
}

func TestMealRowsEmptyWorkbook(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.MealRows(context.Background())
	if err != nil {
		t.Fatalf("MealRows: %v", err)
	}
	if rows != nil {
		t.Fatalf("rows = %v, want nil for header-only sheet", rows)
	}
}

func TestAppendSummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sum := DailySummary{
		Date:   "2026-08-31",
		Totals: nutrition.Totals{Calories: 1850.255, ProteinG: 120, CarbsG: 200, FatG: 60},
	}
	if err := s.AppendSummary(ctx, sum); err != nil {
		t.Fatalf("AppendSummary: %v", err)
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Daily_Reports")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header plus one", len(rows))
	}
	if rows[1][0] != "2026-08-31" {
		t.Errorf("date cell = %q", rows[1][0])
	}
	if rows[1][2] != "120" {
		t.Errorf("protein cell = %q, want 120", rows[1][2])
	}
}

func TestAppendSurvivesReopen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendMeal(ctx, MealRecord{Timestamp: time.Now(), Items: "Toast (40g)"}); err != nil {
		t.Fatalf("AppendMeal: %v", err)
	}

	// A second store over the same path sees existing data and appends below it.
	s2, err := NewExcelStore(common.SheetsConfig{
		WorkbookPath:     s.path,
		MealsSheetName:   "Meals",
		ReportsSheetName: "Daily_Reports",
	}, nil)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	if err := s2.AppendMeal(ctx, MealRecord{Timestamp: time.Now(), Items: "Butter (10g)"}); err != nil {
		t.Fatalf("AppendMeal: %v", err)
	}

	rows, err := s2.MealRows(ctx)
	if err != nil {
		t.Fatalf("MealRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
}
