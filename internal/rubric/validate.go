package rubric

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	// ErrShapeMismatch is returned when a document matches neither rubric shape.
	ErrShapeMismatch = errors.New("rubric matches neither the flat nor the hierarchical shape")
	// ErrMalformed is returned when rubric bytes are not a JSON object.
	ErrMalformed = errors.New("rubric is not a JSON object")
)

var (
	flatKeys         = []string{"criteria", "overall_method", "scale", "thresholds"}
	hierarchicalKeys = []string{"categories", "name", "rubric_id", "scale", "thresholds", "version"}
)

// ValidationError names the offending category or criterion and the violated rule.
type ValidationError struct {
	CategoryID  string
	CriterionID string
	Reason      string
	wrapped     error
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return e.wrapped }

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// DetectFormat reports which shape a raw document has. The hierarchical key
// set wins when both are present.
func DetectFormat(doc map[string]any) (Format, error) {
	switch {
	case hasAll(doc, hierarchicalKeys):
		return FormatHierarchical, nil
	case hasAll(doc, flatKeys):
		return FormatFlat, nil
	}
	return "", &ValidationError{
		Reason: fmt.Sprintf("rubric must have either flat keys {%s} or hierarchical keys {%s}",
			strings.Join(flatKeys, ", "), strings.Join(hierarchicalKeys, ", ")),
		wrapped: ErrShapeMismatch,
	}
}

// ValidateDocument checks a decoded JSON rubric. The first failure is returned.
func ValidateDocument(doc map[string]any) error {
	format, err := DetectFormat(doc)
	if err != nil {
		return err
	}
	if format == FormatHierarchical {
		return validateHierarchical(doc)
	}
	return validateFlat(doc)
}

func validateHierarchical(doc map[string]any) error {
	cats, ok := asList(doc["categories"])
	if !ok || len(cats) == 0 {
		return invalid("categories must be a non-empty list")
	}

	seenCats := map[string]bool{}
	totalWeight := 0.0
	totalPoints := 0

	for i, raw := range cats {
		cat, ok := asMap(raw)
		if !ok {
			return invalid("Category %d must be an object", i)
		}
		if missing := missingKeys(cat, "category_id", "label", "weight", "max_points", "criteria"); len(missing) > 0 {
			return invalid("Category %d missing required fields: %s", i, strings.Join(missing, ", "))
		}
		catID, ok := cat["category_id"].(string)
		if !ok || catID == "" {
			return invalid("Category %d category_id must be a non-empty string", i)
		}
		if seenCats[catID] {
			return &ValidationError{CategoryID: catID, Reason: "Duplicate category ID: " + catID}
		}
		seenCats[catID] = true

		weight, ok := asNumber(cat["weight"])
		if !ok {
			return &ValidationError{CategoryID: catID, Reason: fmt.Sprintf("Category '%s' weight must be a number", catID)}
		}
		if weight < 0 || weight > 1 {
			return &ValidationError{CategoryID: catID, Reason: fmt.Sprintf("Category '%s' weight must be between 0 and 1", catID)}
		}
		totalWeight += weight

		catMax, ok := asInt(cat["max_points"])
		if !ok {
			return &ValidationError{CategoryID: catID, Reason: fmt.Sprintf("Category '%s' max_points must be a positive integer", catID)}
		}
		if catMax <= 0 {
			return &ValidationError{CategoryID: catID, Reason: fmt.Sprintf("Category '%s' max_points must be positive", catID)}
		}
		totalPoints += catMax

		crits, ok := asList(cat["criteria"])
		if !ok || len(crits) == 0 {
			return &ValidationError{CategoryID: catID, Reason: fmt.Sprintf("Category '%s' criteria must be a non-empty list", catID)}
		}

		seenCrit := map[string]bool{}
		sum := 0
		for j, rawCrit := range crits {
			crit, ok := asMap(rawCrit)
			if !ok {
				return &ValidationError{CategoryID: catID, Reason: fmt.Sprintf("Category '%s' criterion %d must be an object", catID, j)}
			}
			if missing := missingKeys(crit, "criterion_id", "label", "max_points"); len(missing) > 0 {
				return &ValidationError{CategoryID: catID, Reason: fmt.Sprintf("Category '%s' criterion %d missing required fields: %s", catID, j, strings.Join(missing, ", "))}
			}
			critID, ok := crit["criterion_id"].(string)
			if !ok || critID == "" {
				return &ValidationError{CategoryID: catID, Reason: fmt.Sprintf("Category '%s' criterion %d criterion_id must be a non-empty string", catID, j)}
			}
			if seenCrit[critID] {
				return &ValidationError{CategoryID: catID, CriterionID: critID,
					Reason: fmt.Sprintf("Duplicate criterion ID in category '%s': %s", catID, critID)}
			}
			seenCrit[critID] = true

			critMax, ok := asInt(crit["max_points"])
			if !ok {
				return &ValidationError{CategoryID: catID, CriterionID: critID,
					Reason: fmt.Sprintf("Criterion '%s' max_points must be a positive integer", critID)}
			}
			if critMax <= 0 {
				return &ValidationError{CategoryID: catID, CriterionID: critID,
					Reason: fmt.Sprintf("Criterion '%s' max_points must be positive", critID)}
			}
			sum += critMax
		}

		if sum != catMax {
			return &ValidationError{CategoryID: catID,
				Reason: fmt.Sprintf("Category '%s' max_points (%d) must equal sum of criterion max_points (%d)", catID, catMax, sum)}
		}
	}

	if totalWeight < 0.99 || totalWeight > 1.01 {
		return invalid("Category weights must sum to 1.0 (current sum: %.4f)", totalWeight)
	}
	scale, err := validateScale(doc["scale"])
	if err != nil {
		return err
	}
	if scale.Max != float64(totalPoints) {
		return invalid("scale max (%g) must equal total max_points (%d)", scale.Max, totalPoints)
	}
	return validateThresholds(doc["thresholds"])
}

func validateFlat(doc map[string]any) error {
	crits, ok := asList(doc["criteria"])
	if !ok || len(crits) == 0 {
		return invalid("criteria must be a non-empty list")
	}

	seen := map[string]bool{}
	total := 0.0
	for i, raw := range crits {
		crit, ok := asMap(raw)
		if !ok {
			return invalid("Criterion %d must be an object", i)
		}
		if missing := missingKeys(crit, "id", "label", "desc", "weight"); len(missing) > 0 {
			return invalid("Criterion %d missing required fields: %s", i, strings.Join(missing, ", "))
		}
		id, ok := crit["id"].(string)
		if !ok || id == "" {
			return invalid("Criterion %d id must be a non-empty string", i)
		}
		if seen[id] {
			return &ValidationError{CriterionID: id, Reason: "Duplicate criterion ID: " + id}
		}
		seen[id] = true

		w, ok := asNumber(crit["weight"])
		if !ok {
			return &ValidationError{CriterionID: id, Reason: fmt.Sprintf("Criterion '%s' weight must be a number", id)}
		}
		if w < 0 || w > 1 {
			return &ValidationError{CriterionID: id, Reason: fmt.Sprintf("Criterion '%s' weight must be between 0 and 1", id)}
		}
		total += w
	}
	if total < 0.99 || total > 1.01 {
		return invalid("Criterion weights must sum to 1.0 (current sum: %.4f)", total)
	}
	if _, err := validateScale(doc["scale"]); err != nil {
		return err
	}
	return validateThresholds(doc["thresholds"])
}

func validateScale(v any) (Scale, error) {
	m, ok := asMap(v)
	if !ok {
		return Scale{}, invalid("scale must be an object")
	}
	if len(missingKeys(m, "min", "max")) > 0 {
		return Scale{}, invalid("scale must have 'min' and 'max' keys")
	}
	lo, ok1 := asNumber(m["min"])
	hi, ok2 := asNumber(m["max"])
	if !ok1 || !ok2 {
		return Scale{}, invalid("scale min and max must be numbers")
	}
	if lo >= hi {
		return Scale{}, invalid("scale min must be less than max")
	}
	return Scale{Min: lo, Max: hi}, nil
}

func validateThresholds(v any) error {
	m, ok := asMap(v)
	if !ok {
		return invalid("thresholds must be an object")
	}
	if len(missingKeys(m, "pass", "revise")) > 0 {
		return invalid("thresholds must have 'pass' and 'revise' keys")
	}
	pass, ok1 := asNumber(m["pass"])
	revise, ok2 := asNumber(m["revise"])
	if !ok1 || !ok2 {
		return invalid("thresholds must be numbers")
	}
	if revise >= pass {
		return invalid("revise threshold must be less than pass threshold")
	}
	return nil
}

// --- helpers ---

func hasAll(doc map[string]any, keys []string) bool {
	return len(missingKeys(doc, keys...)) == 0
}

func missingKeys(m map[string]any, keys ...string) []string {
	var missing []string
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}

func asList(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// asNumber accepts JSON numbers only. Strings are rejected even when they
// hold a number such as "0.5".
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	f, ok := asNumber(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
