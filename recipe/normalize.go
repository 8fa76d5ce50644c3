package recipe

import (
	"strings"
	"unicode"
)

// unitSynonyms maps every recognized spelling of a measurement unit to
// its canonical token. Keys are pre-cleaned (lowercase, collapsed
// whitespace); canonical tokens map to themselves so normalization is
// idempotent.
var unitSynonyms = map[string]string{
	// Volume
	"tbsp": "tbsp", "tablespoon": "tbsp", "tablespoons": "tbsp", "tbs": "tbsp", "tbl": "tbsp",
	"tsp": "tsp", "teaspoon": "tsp", "teaspoons": "tsp", "ts": "tsp",
	"cup": "cup", "cups": "cup", "c": "cup",
	"pint": "pint", "pints": "pint", "pt": "pint",
	"quart": "quart", "quarts": "quart", "qt": "quart",
	"gallon": "gallon", "gallons": "gallon", "gal": "gallon",
	"liter": "liter", "liters": "liter", "litre": "liter", "litres": "liter", "l": "liter",
	"ml": "ml", "milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml",
	"fl oz": "fl oz", "fluid ounce": "fl oz", "fluid ounces": "fl oz", "fl. oz.": "fl oz", "floz": "fl oz",
	// Weight
	"lb": "lb", "lbs": "lb", "pound": "lb", "pounds": "lb",
	"oz": "oz", "ounce": "oz", "ounces": "oz",
	"g": "g", "gram": "g", "grams": "g", "gr": "g",
	"kg": "kg", "kilogram": "kg", "kilograms": "kg", "kilo": "kg", "kilos": "kg",
	// Count and descriptive
	"clove": "clove", "cloves": "clove",
	"piece": "piece", "pieces": "piece", "pc": "piece", "pcs": "piece",
	"slice": "slice", "slices": "slice",
	"can": "can", "cans": "can",
	"package": "package", "packages": "package", "pkg": "package", "pkgs": "package",
	"packet": "package", "packets": "package",
	"bunch": "bunch", "bunches": "bunch",
	"head": "head", "heads": "head",
	"sprig": "sprig", "sprigs": "sprig",
	"stalk": "stalk", "stalks": "stalk",
	"stick": "stick", "sticks": "stick",
	"dash": "dash", "dashes": "dash",
	"pinch": "pinch", "pinches": "pinch",
	"handful": "handful", "handfuls": "handful",
	"small": "small", "sm": "small",
	"medium": "medium", "med": "medium",
	"large": "large", "lg": "large",
}

// CollapseWhitespace trims s and collapses any run of whitespace to a
// single space.
func CollapseWhitespace(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeUnit cleans a unit string (lowercase, collapsed whitespace)
// and maps it to its canonical token. Unrecognized units pass through as
// the cleaned string rather than being rejected.
func NormalizeUnit(unit string) string {
	cleaned := strings.ToLower(CollapseWhitespace(unit))
	if canonical, ok := unitSynonyms[cleaned]; ok {
		return canonical
	}
	return cleaned
}

// normalizeNullable collapses whitespace in a nullable string. An empty
// result becomes nil, never the empty string.
func normalizeNullable(s *string) *string {
	if s == nil {
		return nil
	}
	cleaned := CollapseWhitespace(*s)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// NormalizeIngredient canonicalizes one ingredient: name lowercased and
// whitespace-collapsed, unit mapped through the synonym table, notes
// whitespace-collapsed with case preserved. Quantity passes through
// unchanged; zero is a valid quantity, not null.
func NormalizeIngredient(in Ingredient) Ingredient {
	out := Ingredient{
		Name:     strings.ToLower(CollapseWhitespace(in.Name)),
		Quantity: in.Quantity,
		Notes:    normalizeNullable(in.Notes),
		Category: in.Category,
	}
	if in.Unit != nil {
		if unit := NormalizeUnit(*in.Unit); unit != "" {
			out.Unit = &unit
		}
	}
	return out
}

// Normalize produces the final Result from a validated extraction. It is
// a pure function of its inputs.
func Normalize(ex *Extraction, sourceURL string) *Result {
	res := &Result{
		SourceURL:   sourceURL,
		RecipeName:  normalizeNullable(ex.RecipeName),
		Servings:    normalizeNullable(ex.Servings),
		Ingredients: make([]Ingredient, len(ex.Ingredients)),
	}
	for i, ing := range ex.Ingredients {
		res.Ingredients[i] = NormalizeIngredient(ing)
	}
	return res
}
