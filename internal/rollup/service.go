// Package rollup aggregates one day's persisted meal rows into a single
// summary row and a chat notification.
package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nutrilog/nutrilog/internal/nutrition"
	"github.com/nutrilog/nutrilog/internal/sheets"
)

const msgNothingLogged = "No meals were logged today. No report generated."

// Notifier sends the summary to the report chat.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Service struct {
	store        sheets.Store
	notifier     Notifier
	reportChatID int64
	location     *time.Location
	logger       *slog.Logger

	now func() time.Time
}

func NewService(store sheets.Store, notifier Notifier, reportChatID int64, location *time.Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{
		store:        store,
		notifier:     notifier,
		reportChatID: reportChatID,
		location:     location,
		logger:       logger,
		now:          time.Now,
	}
}

// Run filters meal rows to today's date in the target zone, sums their totals
// with the same accumulation rule the pipeline uses, appends one summary row,
// and notifies the report chat. An empty (or header-only) meal sheet produces
// a distinct "nothing logged" notification and no summary row.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("rollup.start")

	rows, err := s.store.MealRows(ctx)
	if err != nil {
		return fmt.Errorf("read meal rows: %w", err)
	}
	if len(rows) == 0 {
		s.logger.Info("rollup.nothing_logged")
		s.notifyBestEffort(ctx, msgNothingLogged)
		return nil
	}

	today := s.now().In(s.location).Format("2006-01-02")
	var totals nutrition.Totals
	matched := 0
	for _, row := range rows {
		rowTotals, date, ok := parseMealRow(row)
		if !ok {
			s.logger.Warn("rollup.row_skipped", "row", strings.Join(row, "|"))
			continue
		}
		if date != today {
			continue
		}
		totals.Add(rowTotals)
		matched++
	}
	s.logger.Info("rollup.computed",
		"date", today,
		"meals", matched,
		"calories", nutrition.Round2(totals.Calories),
		"protein_g", nutrition.Round2(totals.ProteinG),
		"carbs_g", nutrition.Round2(totals.CarbsG),
		"fat_g", nutrition.Round2(totals.FatG),
	)

	sum := sheets.DailySummary{Date: today, Totals: totals}
	if err := s.store.AppendSummary(ctx, sum); err != nil {
		return fmt.Errorf("append summary row: %w", err)
	}

	s.notifyBestEffort(ctx, formatSummaryMessage(today, totals))
	s.logger.Info("rollup.done", "date", today)
	return nil
}

// parseMealRow reads the date component and the four totals out of one
// persisted row. Malformed rows report !ok and are skipped by the caller.
func parseMealRow(row []string) (nutrition.Totals, string, bool) {
	if len(row) < 6 {
		return nutrition.Totals{}, "", false
	}
	date, _, _ := strings.Cut(row[0], " ")
	if date == "" {
		return nutrition.Totals{}, "", false
	}

	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[2+i]), 64)
		if err != nil {
			return nutrition.Totals{}, "", false
		}
		vals[i] = v
	}
	return nutrition.Totals{
		Calories: vals[0],
		ProteinG: vals[1],
		CarbsG:   vals[2],
		FatG:     vals[3],
	}, date, true
}

func (s *Service) notifyBestEffort(ctx context.Context, text string) {
	if s.reportChatID == 0 {
		return
	}
	if err := s.notifier.SendMessage(ctx, s.reportChatID, text); err != nil {
		s.logger.Warn("rollup.notify_failed", "error", err)
	}
}

func formatSummaryMessage(date string, totals nutrition.Totals) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily Nutrition Summary for %s:\n\n", date)
	fmt.Fprintf(&b, "🔥 Total Calories: %s\n", formatNumber(totals.Calories))
	fmt.Fprintf(&b, "💪 Total Protein: %sg\n", formatNumber(totals.ProteinG))
	fmt.Fprintf(&b, "🍞 Total Carbs: %sg\n", formatNumber(totals.CarbsG))
	fmt.Fprintf(&b, "🥑 Total Fat: %sg", formatNumber(totals.FatG))
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(nutrition.Round2(v), 'f', -1, 64)
}
