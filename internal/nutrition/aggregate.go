package nutrition

import (
	"math"
	"strings"

	"github.com/nutrilog/nutrilog/constants"
	"github.com/nutrilog/nutrilog/internal/vision"
)

// Totals holds the four tracked macro totals. Accumulation is unrounded;
// rounding happens only at presentation so it never compounds across items.
type Totals struct {
	Calories float64
	ProteinG float64
	CarbsG   float64
	FatG     float64
}

// Add accumulates another set of totals in place. The daily rollup sums
// per-meal rows through this same rule.
func (t *Totals) Add(o Totals) {
	t.Calories += o.Calories
	t.ProteinG += o.ProteinG
	t.CarbsG += o.CarbsG
	t.FatG += o.FatG
}

// Round2 rounds a value to two decimal places for presentation.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ResolvedMention pairs a parsed mention with its lookup result; Food is nil
// when resolution found no candidates.
type ResolvedMention struct {
	Mention vision.Mention
	Food    *Food
}

// Aggregate computes meal totals over (mention, resolution) pairs. Mentions
// with zero weight or unresolved nutrition contribute nothing. Each nutrient
// sample is value-per-100-units, scaled by the mention's weight in grams;
// Energy counts only when reported in kilocalories.
func Aggregate(items []ResolvedMention) Totals {
	var t Totals
	for _, it := range items {
		if it.Mention.WeightGrams == 0 || it.Food == nil {
			continue
		}
		weight := float64(it.Mention.WeightGrams)
		for _, n := range it.Food.Nutrients {
			perGram := n.Value / 100
			switch {
			case n.Name == constants.NutrientEnergy && strings.ToUpper(n.Unit) == constants.UnitKcal:
				t.Calories += perGram * weight
			case n.Name == constants.NutrientProtein:
				t.ProteinG += perGram * weight
			case n.Name == constants.NutrientCarbs:
				t.CarbsG += perGram * weight
			case n.Name == constants.NutrientFat:
				t.FatG += perGram * weight
			}
		}
	}
	return t
}
