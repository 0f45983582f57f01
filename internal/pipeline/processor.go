// Package pipeline orchestrates one meal submission end to end: ledger check,
// image fetch, vision extraction, per-item nutrition resolution, aggregation,
// persistence, and user notification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/nutrilog/nutrilog/constants"
	"github.com/nutrilog/nutrilog/internal/async"
	"github.com/nutrilog/nutrilog/internal/common"
	"github.com/nutrilog/nutrilog/internal/ledger"
	"github.com/nutrilog/nutrilog/internal/nutrition"
	"github.com/nutrilog/nutrilog/internal/sheets"
	"github.com/nutrilog/nutrilog/internal/vision"
)

// Fixed user-facing texts.
const (
	msgNoFood          = "Sorry, I couldn't identify any food in the image. Please try another one."
	msgCannotAnalyze   = "Sorry, I couldn't analyze the image. Please try another one."
	msgProcessingError = "Sorry, there was an error processing your meal details."
)

// ImageFetcher resolves a chat file reference to image bytes.
type ImageFetcher interface {
	GetImage(ctx context.Context, fileID string) ([]byte, error)
}

// Notifier sends a text reply to a chat. Failures are logged, never escalated.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Extractor turns image bytes into food mentions.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]vision.Mention, error)
}

// Resolver finds the best nutrient record for a food name, nil when unknown.
type Resolver interface {
	Resolve(ctx context.Context, foodName string) (*nutrition.Food, error)
}

// Processor coordinates the external calls for one work item. All steps are
// strictly sequential; the only shared mutable state is the ledger record.
type Processor struct {
	logger    *slog.Logger
	ledger    ledger.Ledger
	images    ImageFetcher
	extractor Extractor
	resolver  Resolver
	store     sheets.Store
	notifier  Notifier
	location  *time.Location

	// strictInProgress skips instead of proceeding when a live PROCESSING
	// record exists. Off by default: a stuck record is treated as a crashed
	// prior attempt, accepting an at-least-once window.
	strictInProgress bool

	now func() time.Time
}

func NewProcessor(
	logger *slog.Logger,
	led ledger.Ledger,
	images ImageFetcher,
	extractor Extractor,
	resolver Resolver,
	store sheets.Store,
	notifier Notifier,
	location *time.Location,
	strictInProgress bool,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if location == nil {
		location = time.UTC
	}
	return &Processor{
		logger:           logger,
		ledger:           led,
		images:           images,
		extractor:        extractor,
		resolver:         resolver,
		store:            store,
		notifier:         notifier,
		location:         location,
		strictInProgress: strictInProgress,
		now:              time.Now,
	}
}

// Process handles one delivered work item. A returned error leaves the ledger
// key in PROCESSING so queue redelivery can retry; duplicate and no-food
// outcomes return nil.
func (p *Processor) Process(ctx context.Context, item async.WorkItem) error {
	log := p.logger.With("key", item.IdempotencyKey, "chat_id", item.ChatID)
	log.Info("pipeline.received", "state", constants.StateReceived, "file_id", item.FileID)

	outcome, err := p.ledger.Begin(ctx, item.IdempotencyKey)
	if err != nil {
		p.notifyBestEffort(ctx, item.ChatID, msgProcessingError)
		return fmt.Errorf("ledger begin: %w", err)
	}
	switch outcome {
	case ledger.AlreadyCompleted:
		log.Info("pipeline.skipped_duplicate", "state", constants.StateSkippedDuplicate)
		return nil
	case ledger.AlreadyInProgress:
		if p.strictInProgress {
			log.Warn("pipeline.skipped_in_progress", "state", constants.StateSkippedDuplicate)
			return nil
		}
		// A live PROCESSING record is assumed to be a crashed prior run.
		log.Warn("pipeline.in_progress_takeover")
	}
	log.Debug("pipeline.ledger_checked",
		"state", constants.StateLedgerChecked, "outcome", outcome.String())

	if err := p.run(ctx, item, log); err != nil {
		log.Error("pipeline.failed", "state", constants.StateFailed, "error", err)
		p.notifyBestEffort(ctx, item.ChatID, msgProcessingError)
		return err
	}
	return nil
}

func (p *Processor) run(ctx context.Context, item async.WorkItem, log *slog.Logger) error {
	image, err := p.images.GetImage(ctx, item.FileID)
	if err != nil {
		return fmt.Errorf("fetch image: %w", err)
	}
	log.Debug("pipeline.image_fetched", "state", constants.StateImageFetched, "bytes", len(image))

	mentions, err := p.extractor.Extract(ctx, image)
	switch {
	case errors.Is(err, common.ErrNoFoodDetected):
		p.notifyBestEffort(ctx, item.ChatID, msgNoFood)
		if err := p.ledger.Complete(ctx, item.IdempotencyKey); err != nil {
			return fmt.Errorf("ledger complete: %w", err)
		}
		log.Info("pipeline.no_food", "state", constants.StateNoFoodCompleted)
		return nil
	case errors.Is(err, common.ErrExtractionFailed):
		// Handled outcome: retrying the same bytes would fail the same way.
		p.notifyBestEffort(ctx, item.ChatID, msgCannotAnalyze)
		if err := p.ledger.Complete(ctx, item.IdempotencyKey); err != nil {
			return fmt.Errorf("ledger complete: %w", err)
		}
		log.Warn("pipeline.extraction_failed_handled")
		return nil
	case err != nil:
		return fmt.Errorf("extract: %w", err)
	}
	log.Info("pipeline.extracted", "state", constants.StateExtracted, "mentions", len(mentions))

	resolved := make([]nutrition.ResolvedMention, 0, len(mentions))
	for _, m := range mentions {
		rm := nutrition.ResolvedMention{Mention: m}
		if m.WeightGrams == 0 || m.CleanedName == "" {
			log.Warn("pipeline.mention_skipped", "raw", m.RawText, "weight_g", m.WeightGrams)
		} else if food, err := p.resolver.Resolve(ctx, m.CleanedName); err != nil {
			// Per-item tolerance: an unresolvable food contributes nothing.
			log.Warn("pipeline.resolve_failed", "food", m.CleanedName, "error", err)
		} else {
			rm.Food = food
		}
		resolved = append(resolved, rm)
	}

	totals := nutrition.Aggregate(resolved)
	log.Info("pipeline.resolved",
		"state", constants.StateResolved,
		"calories", nutrition.Round2(totals.Calories),
		"protein_g", nutrition.Round2(totals.ProteinG),
		"carbs_g", nutrition.Round2(totals.CarbsG),
		"fat_g", nutrition.Round2(totals.FatG),
	)

	rec := sheets.MealRecord{
		Timestamp: p.now().In(p.location),
		Items:     joinItems(mentions),
		Totals:    totals,
	}
	if err := p.store.AppendMeal(ctx, rec); err != nil {
		return fmt.Errorf("append meal row: %w", err)
	}
	log.Info("pipeline.persisted", "state", constants.StatePersisted)

	p.notifyBestEffort(ctx, item.ChatID, formatMealMessage(mentions, totals))
	log.Debug("pipeline.notified", "state", constants.StateNotified)

	if err := p.ledger.Complete(ctx, item.IdempotencyKey); err != nil {
		return fmt.Errorf("ledger complete: %w", err)
	}
	log.Info("pipeline.completed", "state", constants.StateCompleted)
	return nil
}

// notifyBestEffort sends a chat message and only logs a failure; a broken
// notification must never mask the outcome it reports on.
func (p *Processor) notifyBestEffort(ctx context.Context, chatID int64, text string) {
	if chatID == 0 {
		return
	}
	// Detached from the pipeline context so an apology still goes out after
	// a timeout or cancellation.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.notifier.SendMessage(sendCtx, chatID, text); err != nil {
		p.logger.Warn("pipeline.notify_failed", "chat_id", chatID, "error", err)
	}
}

func joinItems(mentions []vision.Mention) string {
	parts := make([]string, 0, len(mentions))
	for _, m := range mentions {
		parts = append(parts, m.RawText)
	}
	return strings.Join(parts, ", ")
}

func formatMealMessage(mentions []vision.Mention, totals nutrition.Totals) string {
	var b strings.Builder
	b.WriteString("Nutrition for your meal:\n")
	for _, m := range mentions {
		b.WriteString("- ")
		b.WriteString(m.RawText)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString("- Calories: " + formatNumber(totals.Calories) + "\n")
	b.WriteString("- Protein: " + formatNumber(totals.ProteinG) + "g\n")
	b.WriteString("- Carbs: " + formatNumber(totals.CarbsG) + "g\n")
	b.WriteString("- Fat: " + formatNumber(totals.FatG) + "g")
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(nutrition.Round2(v), 'f', -1, 64)
}
