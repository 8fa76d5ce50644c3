package recipe

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// ParseErrorKind distinguishes why an extraction response was rejected.
type ParseErrorKind int

// Parse failure kinds, in the order the checks run.
const (
	// ParseErrorEmpty means the response was empty or whitespace-only.
	ParseErrorEmpty ParseErrorKind = iota
	// ParseErrorBadJSON means the payload was not valid JSON.
	ParseErrorBadJSON
	// ParseErrorSchema means the JSON did not match the expected shape.
	ParseErrorSchema
)

// ParseError describes a rejected extraction response. For schema
// violations the message lists every violated field path.
type ParseError struct {
	Kind    ParseErrorKind
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

// codeFencePattern matches a single markdown code fence wrapping the
// entire payload, with or without a "json" language tag. Pre-compiled
// because it runs on every response.
var codeFencePattern = regexp.MustCompile("(?s)\\A\\s*```(?:json)?\\s*\\n?(.*?)\\n?\\s*```\\s*\\z")

// stripCodeFence removes one optional wrapping markdown fence. Payloads
// without a fence pass through unchanged.
func stripCodeFence(raw string) string {
	if m := codeFencePattern.FindStringSubmatch(raw); len(m) > 1 {
		return m[1]
	}
	return raw
}

// ParseResponse validates the untrusted text returned by the extraction
// model and produces a structurally valid Extraction. A response with
// zero ingredients is accepted here; whether that is usable is the
// pipeline's decision, not a shape question.
func ParseResponse(raw string) (*Extraction, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ParseError{Kind: ParseErrorEmpty, Message: "extraction response is empty"}
	}

	payload := stripCodeFence(raw)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &top); err != nil {
		if !json.Valid([]byte(payload)) {
			return nil, &ParseError{Kind: ParseErrorBadJSON, Message: "extraction response is not valid JSON: " + err.Error()}
		}
		return nil, &ParseError{Kind: ParseErrorSchema, Message: "top-level value must be an object"}
	}

	var violations []string
	ex := &Extraction{}

	ex.RecipeName = nullableString(top["recipeName"], "recipeName", &violations)
	ex.Servings = nullableString(top["servings"], "servings", &violations)

	rawIngredients, ok := top["ingredients"]
	if !ok || string(rawIngredients) == "null" {
		violations = append(violations, "ingredients: required array is missing")
	} else {
		var items []json.RawMessage
		if err := json.Unmarshal(rawIngredients, &items); err != nil {
			violations = append(violations, "ingredients: must be an array")
		} else {
			ex.Ingredients = make([]Ingredient, 0, len(items))
			for i, item := range items {
				ing, ok := validateIngredient(item, fmt.Sprintf("ingredients[%d]", i), &violations)
				if ok {
					ex.Ingredients = append(ex.Ingredients, ing)
				}
			}
		}
	}

	if len(violations) > 0 {
		return nil, &ParseError{
			Kind:    ParseErrorSchema,
			Message: "extraction response failed validation: " + strings.Join(violations, "; "),
		}
	}
	return ex, nil
}

// validateIngredient checks a single ingredient object against the
// schema, recording every violation under the given path.
func validateIngredient(raw json.RawMessage, path string, violations *[]string) (Ingredient, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		*violations = append(*violations, path+": must be an object")
		return Ingredient{}, false
	}

	before := len(*violations)
	var ing Ingredient

	if name := nullableString(obj["name"], path+".name", violations); name == nil || *name == "" {
		*violations = append(*violations, path+".name: must be a non-empty string")
	} else {
		ing.Name = *name
	}

	ing.Quantity = nullableNumber(obj["quantity"], path+".quantity", violations)
	ing.Unit = nullableString(obj["unit"], path+".unit", violations)
	ing.Notes = nullableString(obj["notes"], path+".notes", violations)

	if cat := nullableString(obj["category"], path+".category", violations); cat == nil {
		*violations = append(*violations, path+".category: required value is missing")
	} else if !Category(*cat).Valid() {
		*violations = append(*violations, path+".category: must be one of the known categories")
	} else {
		ing.Category = Category(*cat)
	}

	return ing, len(*violations) == before
}

// nullableString accepts a JSON string or null (or an absent field,
// which reads as null). Any other type is recorded as a violation.
func nullableString(raw json.RawMessage, path string, violations *[]string) *string {
	if raw == nil || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		*violations = append(*violations, path+": must be a string or null")
		return nil
	}
	return &s
}

// nullableNumber accepts a non-negative finite JSON number or null.
func nullableNumber(raw json.RawMessage, path string, violations *[]string) *float64 {
	if raw == nil || string(raw) == "null" {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		*violations = append(*violations, path+": must be a number or null")
		return nil
	}
	if n < 0 || math.IsInf(n, 0) || math.IsNaN(n) {
		*violations = append(*violations, path+": must be a non-negative finite number")
		return nil
	}
	return &n
}
