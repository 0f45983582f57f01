package constants

// FDCDataTypes are the FoodData Central partitions queried for every food
// lookup, in this exact order. First appearance wins during de-duplication.
var FDCDataTypes = []string{"SR Legacy", "Foundation", "Survey (FNDDS)"}

// Tracked nutrient names as FoodData Central reports them. Everything else in
// a food's nutrient list is ignored.
const (
	NutrientEnergy  = "Energy"
	NutrientProtein = "Protein"
	NutrientCarbs   = "Carbohydrate, by difference"
	NutrientFat     = "Total lipid (fat)"
)

// UnitKcal gates the Energy nutrient: FDC reports Energy in both KCAL and kJ,
// only the kilocalorie rows count toward totals.
const UnitKcal = "KCAL"

// NoFoodSentinel is the exact token the vision model returns when no food is
// identifiable in the image.
const NoFoodSentinel = "NO_FOOD"
