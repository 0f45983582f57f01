package nutrition

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/nutrilog/nutrilog/constants"
)

// Searcher is one partitioned food search call.
type Searcher interface {
	Search(ctx context.Context, query, dataType string) ([]Food, error)
}

// Picker is the secondary text-generation call used to rank candidates.
type Picker interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Resolver merges candidates from all partitions and picks the best match for
// a food name. A failed partition or a failed pick never aborts resolution;
// only a fully empty candidate set yields a nil result.
type Resolver struct {
	searcher Searcher
	picker   Picker
	log      *slog.Logger
}

func NewResolver(searcher Searcher, picker Picker, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{searcher: searcher, picker: picker, log: logger}
}

// Resolve returns the best-matching candidate's full record, or nil when no
// partition produced a candidate (the caller skips that food entirely).
func (r *Resolver) Resolve(ctx context.Context, foodName string) (*Food, error) {
	var all []Food
	seen := make(map[int64]bool)

	for _, dataType := range constants.FDCDataTypes {
		foods, err := r.searcher.Search(ctx, foodName, dataType)
		if err != nil {
			r.log.Warn("nutrition.partition.failed",
				"food", foodName, "data_type", dataType, "error", err)
			continue
		}
		for _, f := range foods {
			if seen[f.FdcID] {
				continue
			}
			seen[f.FdcID] = true
			all = append(all, f)
		}
	}

	if len(all) == 0 {
		r.log.Info("nutrition.resolve.no_candidates", "food", foodName)
		return nil, nil
	}

	idx := r.pickBest(ctx, foodName, all)
	selected := all[idx]
	r.log.Info("nutrition.resolve.ok",
		"food", foodName,
		"picked", idx+1,
		"description", selected.Description,
		"fdc_id", selected.FdcID,
	)
	return &selected, nil
}

// pickBest asks the picker for a 1-based option number. Any failure, parse
// error or out-of-range answer falls back to the first de-duplicated match.
func (r *Resolver) pickBest(ctx context.Context, foodName string, candidates []Food) int {
	var options strings.Builder
	for i, f := range candidates {
		fmt.Fprintf(&options, "%d. %s\n", i+1, f.Description)
	}

	prompt := fmt.Sprintf("You are a nutrition expert. The user ate '%s'. I found the following items "+
		"in the USDA database. Which one is the best and most accurate match? Please respond with only "+
		"the number of the best option.\n\n%s", foodName, strings.TrimRight(options.String(), "\n"))

	resp, err := r.picker.GenerateText(ctx, prompt)
	if err != nil {
		r.log.Warn("nutrition.pick.failed", "food", foodName, "error", err)
		return 0
	}

	n, err := strconv.Atoi(strings.TrimSpace(resp))
	if err != nil || n < 1 || n > len(candidates) {
		r.log.Warn("nutrition.pick.fallback", "food", foodName, "raw", resp)
		return 0
	}
	return n - 1
}
