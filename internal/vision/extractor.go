// Package vision wraps the image-understanding call and turns its delimited
// text response into food mentions.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nutrilog/nutrilog/constants"
	"github.com/nutrilog/nutrilog/internal/common"
)

// instructionPrompt fixes the response contract: semicolon-delimited
// "name (Ng)" entries, or the bare NO_FOOD sentinel.
const instructionPrompt = "Identify the food items in the image. For each food item, provide an estimated " +
	"weight in grams in parentheses. It is very important that the weight in parentheses comes directly " +
	"after the food item it refers to. For example: '1 cooked chicken breast (170g)'; 'Broccoli florets " +
	"(160g)'. Separate items with a semicolon (;). Do not include any introductory text in your response, " +
	"only the list of items. If no food is identifiable in the image, respond with the single word: NO_FOOD."

// Model is the image-understanding call.
type Model interface {
	GenerateFromImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

type Extractor struct {
	model Model
	log   *slog.Logger
}

func NewExtractor(model Model, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{model: model, log: logger}
}

// Extract classifies the image and parses the response into mentions.
// Returns common.ErrNoFoodDetected for the sentinel and
// common.ErrExtractionFailed when the model produced nothing usable; transport
// and API errors propagate as-is.
func (e *Extractor) Extract(ctx context.Context, image []byte) ([]Mention, error) {
	text, err := e.model.GenerateFromImage(ctx, instructionPrompt, image, "image/jpeg")
	if err != nil {
		if errors.Is(err, common.ErrEmptyModelResponse) {
			e.log.Error("vision.extract.empty_response", "error", err)
			return nil, common.ErrExtractionFailed
		}
		return nil, fmt.Errorf("vision call: %w", err)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, common.ErrExtractionFailed
	}
	if strings.EqualFold(trimmed, constants.NoFoodSentinel) {
		return nil, common.ErrNoFoodDetected
	}

	var mentions []Mention
	for _, item := range strings.Split(trimmed, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		m := ParseMention(item)
		e.log.Debug("vision.extract.mention",
			"raw", m.RawText, "cleaned_name", m.CleanedName, "weight_g", m.WeightGrams)
		mentions = append(mentions, m)
	}
	if len(mentions) == 0 {
		return nil, common.ErrExtractionFailed
	}
	return mentions, nil
}
