// Package recipe defines the shared data model for extracted recipes:
// ingredient categories, the raw extraction shape returned by the
// extraction model, and the normalized result handed back to callers.
// It also implements strict validation of untrusted extraction responses
// and canonicalization of names, units, and whitespace.
package recipe

// Category classifies an ingredient into a fixed grocery taxonomy.
type Category string

// The eleven ingredient categories. Extraction responses must use one of
// these values; anything else is a schema violation.
const (
	CategoryProduce    Category = "produce"
	CategoryMeat       Category = "meat"
	CategorySeafood    Category = "seafood"
	CategoryDairy      Category = "dairy"
	CategoryGrains     Category = "grains"
	CategorySpices     Category = "spices"
	CategoryCondiments Category = "condiments"
	CategoryBaking     Category = "baking"
	CategoryCanned     Category = "canned"
	CategoryFrozen     Category = "frozen"
	CategoryOther      Category = "other"
)

// Categories lists every valid category in declaration order.
var Categories = []Category{
	CategoryProduce, CategoryMeat, CategorySeafood, CategoryDairy,
	CategoryGrains, CategorySpices, CategoryCondiments, CategoryBaking,
	CategoryCanned, CategoryFrozen, CategoryOther,
}

// Valid reports whether c is one of the fixed categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Ingredient is a single extracted ingredient. Quantity, Unit, and Notes
// are nullable; a nil pointer serializes as JSON null, never as "".
type Ingredient struct {
	Name     string   `json:"name"`
	Quantity *float64 `json:"quantity"`
	Unit     *string  `json:"unit"`
	Notes    *string  `json:"notes"`
	Category Category `json:"category"`
}

// Extraction is the validated (but not yet normalized) shape of an
// extraction-model response.
type Extraction struct {
	RecipeName  *string      `json:"recipeName"`
	Servings    *string      `json:"servings"`
	Ingredients []Ingredient `json:"ingredients"`
}

// Result is the normalized terminal output of the ingestion pipeline.
// Ingredient order is preserved from the extraction.
type Result struct {
	SourceURL   string       `json:"sourceUrl"`
	RecipeName  *string      `json:"recipeName"`
	Servings    *string      `json:"servings"`
	Ingredients []Ingredient `json:"ingredients"`
}
