package rubric

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Parse decodes and validates rubric JSON.
func Parse(data []byte) (*Rubric, error) {
	var doc map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc == nil {
		return nil, ErrMalformed
	}
	return FromDocument(doc)
}

// FromDocument validates a decoded document and converts it to a Rubric.
func FromDocument(doc map[string]any) (*Rubric, error) {
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}
	format, _ := DetectFormat(doc)

	r := &Rubric{
		Description: str(doc["description"]),
		Status:      str(doc["status"]),
		Name:        str(doc["name"]),
	}
	scale, _ := asMap(doc["scale"])
	r.Scale.Min, _ = asNumber(scale["min"])
	r.Scale.Max, _ = asNumber(scale["max"])
	th, _ := asMap(doc["thresholds"])
	r.Thresholds.Pass, _ = asNumber(th["pass"])
	r.Thresholds.Revise, _ = asNumber(th["revise"])

	if format == FormatFlat {
		r.OverallMethod = str(doc["overall_method"])
		crits, _ := asList(doc["criteria"])
		r.Criteria = make([]FlatCriterion, 0, len(crits))
		for _, raw := range crits {
			c, _ := asMap(raw)
			w, _ := asNumber(c["weight"])
			r.Criteria = append(r.Criteria, FlatCriterion{
				ID:     str(c["id"]),
				Label:  str(c["label"]),
				Desc:   str(c["desc"]),
				Weight: w,
			})
		}
		return r, nil
	}

	r.RubricID = str(doc["rubric_id"])
	r.Version = str(doc["version"])
	if m, ok := doc["overall_method"]; ok {
		r.OverallMethod = str(m)
	}
	cats, _ := asList(doc["categories"])
	r.Categories = make([]Category, 0, len(cats))
	for _, raw := range cats {
		c, _ := asMap(raw)
		w, _ := asNumber(c["weight"])
		mp, _ := asInt(c["max_points"])
		cat := Category{
			ID:        str(c["category_id"]),
			Label:     str(c["label"]),
			Desc:      str(c["desc"]),
			Weight:    w,
			MaxPoints: mp,
		}
		crits, _ := asList(c["criteria"])
		for _, rawCrit := range crits {
			cr, _ := asMap(rawCrit)
			cmp, _ := asInt(cr["max_points"])
			cat.Criteria = append(cat.Criteria, Criterion{
				ID:        str(cr["criterion_id"]),
				Label:     str(cr["label"]),
				Desc:      str(cr["desc"]),
				MaxPoints: cmp,
			})
		}
		r.Categories = append(r.Categories, cat)
	}
	return r, nil
}

// str renders scalars as strings; versions are often written as numbers.
func str(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return fmt.Sprintf("%g", s)
	}
	return fmt.Sprint(v)
}
