package llm

import "fmt"

// extractionSystemPrompt is the system prompt for ingredient extraction.
const extractionSystemPrompt = `You are a recipe ingredient extractor. Given the text of a recipe page, extract the recipe's ingredients as structured data.

Always respond with valid JSON. Do not include any text outside the JSON object.`

// extractionUserPrompt is the user prompt template. The %s placeholder
// is replaced with the extracted page text.
const extractionUserPrompt = `Extract the ingredients from this recipe page text.

Rules:
1. **recipeName**: The recipe's name, or null if the page does not state one.
2. **servings**: The stated yield or serving count as a string (e.g. "4", "8 pieces"), or null.
3. **ingredients**: One entry per ingredient line, in the order they appear:
   - "name": the ingredient itself, without quantity or unit (e.g. "flour", not "2 cups flour")
   - "quantity": the amount as a number, or null if none is given. Convert fractions (1/2 becomes 0.5).
   - "unit": the measurement unit as written (e.g. "cups", "tbsp"), or null
   - "notes": preparation notes like "finely chopped" or "divided", or null
   - "category": exactly one of "produce", "meat", "seafood", "dairy", "grains", "spices", "condiments", "baking", "canned", "frozen", "other"
4. Skip section headings, equipment, and instructions. Only ingredients.

Page text:
---
%s
---

Respond with JSON only:
{"recipeName":"...","servings":"...","ingredients":[{"name":"...","quantity":0,"unit":"...","notes":"...","category":"..."}]}`

// ExtractionMessages builds the chat messages for one extraction call.
func ExtractionMessages(pageText string) []Message {
	return []Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: fmt.Sprintf(extractionUserPrompt, pageText)},
	}
}
