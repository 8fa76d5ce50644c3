package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxGraphDepth bounds the recursive search through JSON-LD arrays and
// @graph wrappers. Adversarial pages can nest these arbitrarily deep;
// anything past the bound is treated as "no structured recipe".
const maxGraphDepth = 10

// jsonldRecipe is a schema.org Recipe pulled out of an embedded
// structured-data block.
type jsonldRecipe struct {
	Name        string
	Yield       string
	Ingredients []string
}

// recipeFromJSONLD scans every <script type="application/ld+json"> block
// for a Recipe object with a non-empty ingredient list. Blocks are
// scanned in document order; the first valid candidate wins.
func recipeFromJSONLD(doc *goquery.Document) *jsonldRecipe {
	var found *jsonldRecipe
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var payload any
		if err := json.Unmarshal([]byte(s.Text()), &payload); err != nil {
			return true // skip malformed blocks, keep scanning
		}
		if r := findRecipe(payload, 0); r != nil {
			found = r
			return false
		}
		return true
	})
	return found
}

// findRecipe recursively searches arrays and @graph wrappers for an
// object typed as Recipe.
func findRecipe(v any, depth int) *jsonldRecipe {
	if depth > maxGraphDepth {
		return nil
	}

	switch node := v.(type) {
	case []any:
		for _, item := range node {
			if r := findRecipe(item, depth+1); r != nil {
				return r
			}
		}
	case map[string]any:
		if isRecipeType(node["@type"]) {
			if r := recipeFromObject(node); r != nil {
				return r
			}
		}
		if graph, ok := node["@graph"]; ok {
			return findRecipe(graph, depth+1)
		}
	}
	return nil
}

// isRecipeType matches @type "Recipe" directly or within a type array.
func isRecipeType(t any) bool {
	switch typed := t.(type) {
	case string:
		return typed == "Recipe"
	case []any:
		for _, entry := range typed {
			if s, ok := entry.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

// recipeFromObject extracts the fields we care about. A candidate is
// valid only if it has at least one non-empty ingredient string.
func recipeFromObject(obj map[string]any) *jsonldRecipe {
	rawIngredients, ok := obj["recipeIngredient"].([]any)
	if !ok {
		return nil
	}

	var ingredients []string
	for _, entry := range rawIngredients {
		if s, ok := entry.(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				ingredients = append(ingredients, trimmed)
			}
		}
	}
	if len(ingredients) == 0 {
		return nil
	}

	r := &jsonldRecipe{Ingredients: ingredients}
	if name, ok := obj["name"].(string); ok {
		r.Name = strings.TrimSpace(name)
	}
	r.Yield = yieldString(obj["recipeYield"])
	return r
}

// yieldString renders recipeYield, which sites publish as a string, a
// number, or an array of either (first element wins).
func yieldString(v any) string {
	switch yield := v.(type) {
	case string:
		return strings.TrimSpace(yield)
	case float64:
		return strconv.FormatFloat(yield, 'f', -1, 64)
	case []any:
		if len(yield) > 0 {
			return yieldString(yield[0])
		}
	}
	return ""
}

// formatRecipeBlock renders the structured recipe as the compact
// plain-text block handed to the extraction model.
func formatRecipeBlock(r *jsonldRecipe) string {
	var b strings.Builder
	if r.Name != "" {
		b.WriteString("Recipe Name: " + r.Name + "\n")
	}
	if r.Yield != "" {
		b.WriteString("Servings: " + r.Yield + "\n")
	}
	b.WriteString("\nIngredients:\n")
	for _, ing := range r.Ingredients {
		b.WriteString("- " + ing + "\n")
	}
	return b.String()
}
