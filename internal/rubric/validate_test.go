package rubric

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hierarchicalJSON = `{
  "rubric_id": "demo-v2",
  "name": "Demo Rubric",
  "version": "2.0",
  "status": "current",
  "categories": [
    {"category_id": "content", "label": "Content", "weight": 0.6, "max_points": 30, "criteria": [
      {"criterion_id": "accuracy", "label": "Accuracy", "desc": "Claims are correct", "max_points": 20},
      {"criterion_id": "coverage", "label": "Coverage", "max_points": 10}
    ]},
    {"category_id": "delivery", "label": "Delivery", "weight": 0.4, "max_points": 20, "criteria": [
      {"criterion_id": "clarity", "label": "Clarity", "max_points": 10},
      {"criterion_id": "pacing", "label": "Pacing", "max_points": 10}
    ]}
  ],
  "scale": {"min": 0, "max": 50},
  "thresholds": {"pass": 35, "revise": 25}
}`

const flatJSON = `{
  "criteria": [
    {"id": "clarity", "label": "Clarity", "desc": "Easy to follow", "weight": 0.5},
    {"id": "accuracy", "label": "Accuracy", "desc": "Correct", "weight": 0.5}
  ],
  "scale": {"min": 1, "max": 10},
  "overall_method": "weighted_mean",
  "thresholds": {"pass": 6.5, "revise": 5.0}
}`

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func category(doc map[string]any, i int) map[string]any {
	return doc["categories"].([]any)[i].(map[string]any)
}

func criterion(doc map[string]any, cat, i int) map[string]any {
	return category(doc, cat)["criteria"].([]any)[i].(map[string]any)
}

func TestParseHierarchical(t *testing.T) {
	r, err := Parse([]byte(hierarchicalJSON))
	require.NoError(t, err)

	assert.Equal(t, FormatHierarchical, r.Format())
	assert.Equal(t, "demo-v2", r.RubricID)
	assert.Equal(t, 4, r.CriterionCount())
	assert.Equal(t, 50.0, r.TotalPoints())
	assert.Equal(t, "Claims are correct", r.Categories[0].Criteria[0].Desc)
	assert.NoError(t, r.Validate())
}

func TestParseFlat(t *testing.T) {
	r, err := Parse([]byte(flatJSON))
	require.NoError(t, err)

	assert.Equal(t, FormatFlat, r.Format())
	assert.Len(t, r.AllCriteria(), 2)
	assert.Equal(t, 10, r.AllCriteria()[0].Max)
	assert.NoError(t, r.Validate())
}

func TestDefaultRubricIsValid(t *testing.T) {
	r := Default()
	require.NoError(t, r.Validate())
	assert.Equal(t, FormatFlat, r.Format())
	assert.Equal(t, 6, r.CriterionCount())
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Parse([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestShapeMismatch(t *testing.T) {
	err := ValidateDocument(map[string]any{"name": "x", "scale": map[string]any{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.Contains(t, err.Error(), "overall_method")
	assert.Contains(t, err.Error(), "rubric_id")
}

func TestHierarchicalKeysWinOverFlat(t *testing.T) {
	doc := decode(t, hierarchicalJSON)
	doc["criteria"] = []any{}
	doc["overall_method"] = "weighted_mean"
	f, err := DetectFormat(doc)
	require.NoError(t, err)
	assert.Equal(t, FormatHierarchical, f)
}

func TestValidateHierarchicalErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(doc map[string]any)
		want   string
		catID  string
		critID string
	}{
		{
			name:   "empty categories",
			mutate: func(d map[string]any) { d["categories"] = []any{} },
			want:   "categories must be a non-empty list",
		},
		{
			name:   "missing category field",
			mutate: func(d map[string]any) { delete(category(d, 1), "weight") },
			want:   "Category 1 missing required fields: weight",
		},
		{
			name:   "duplicate category",
			mutate: func(d map[string]any) { category(d, 1)["category_id"] = "content" },
			want:   "Duplicate category ID: content",
			catID:  "content",
		},
		{
			name:   "weight out of range",
			mutate: func(d map[string]any) { category(d, 0)["weight"] = 1.5 },
			want:   "Category 'content' weight must be between 0 and 1",
			catID:  "content",
		},
		{
			name:   "weight as string",
			mutate: func(d map[string]any) { category(d, 0)["weight"] = "0.6" },
			want:   "Category 'content' weight must be a number",
			catID:  "content",
		},
		{
			name:   "category max points zero",
			mutate: func(d map[string]any) { category(d, 0)["max_points"] = 0.0 },
			want:   "Category 'content' max_points must be positive",
			catID:  "content",
		},
		{
			name:   "category max points fractional",
			mutate: func(d map[string]any) { category(d, 0)["max_points"] = 2.5 },
			want:   "Category 'content' max_points must be a positive integer",
			catID:  "content",
		},
		{
			name:   "criteria not a list",
			mutate: func(d map[string]any) { category(d, 1)["criteria"] = map[string]any{} },
			want:   "Category 'delivery' criteria must be a non-empty list",
			catID:  "delivery",
		},
		{
			name:   "missing criterion field",
			mutate: func(d map[string]any) { delete(criterion(d, 0, 1), "label") },
			want:   "Category 'content' criterion 1 missing required fields: label",
			catID:  "content",
		},
		{
			name:   "duplicate criterion",
			mutate: func(d map[string]any) { criterion(d, 1, 1)["criterion_id"] = "clarity" },
			want:   "Duplicate criterion ID in category 'delivery': clarity",
			catID:  "delivery",
			critID: "clarity",
		},
		{
			name:   "criterion max points negative",
			mutate: func(d map[string]any) { criterion(d, 1, 0)["max_points"] = -1.0 },
			want:   "Criterion 'clarity' max_points must be positive",
			catID:  "delivery",
			critID: "clarity",
		},
		{
			name:   "criterion max points bool",
			mutate: func(d map[string]any) { criterion(d, 1, 0)["max_points"] = true },
			want:   "Criterion 'clarity' max_points must be a positive integer",
			catID:  "delivery",
			critID: "clarity",
		},
		{
			name:   "category sum mismatch",
			mutate: func(d map[string]any) { criterion(d, 0, 1)["max_points"] = 5.0 },
			want:   "Category 'content' max_points (30) must equal sum of criterion max_points (25)",
			catID:  "content",
		},
		{
			name: "weight sum",
			mutate: func(d map[string]any) {
				category(d, 0)["weight"] = 0.5
			},
			want: "Category weights must sum to 1.0 (current sum: 0.9000)",
		},
		{
			name:   "scale inverted",
			mutate: func(d map[string]any) { d["scale"] = map[string]any{"min": 60.0, "max": 50.0} },
			want:   "scale min must be less than max",
		},
		{
			name:   "scale max differs from total",
			mutate: func(d map[string]any) { d["scale"] = map[string]any{"min": 0.0, "max": 100.0} },
			want:   "scale max (100) must equal total max_points (50)",
		},
		{
			name:   "thresholds inverted",
			mutate: func(d map[string]any) { d["thresholds"] = map[string]any{"pass": 20.0, "revise": 25.0} },
			want:   "revise threshold must be less than pass threshold",
		},
		{
			name:   "thresholds not numbers",
			mutate: func(d map[string]any) { d["thresholds"] = map[string]any{"pass": "high", "revise": 25.0} },
			want:   "thresholds must be numbers",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := decode(t, hierarchicalJSON)
			tc.mutate(doc)

			err := ValidateDocument(doc)
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.want, verr.Reason)
			assert.Equal(t, tc.catID, verr.CategoryID)
			assert.Equal(t, tc.critID, verr.CriterionID)
		})
	}
}

func TestValidateFlatErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(doc map[string]any)
		want   string
	}{
		{"empty criteria", func(d map[string]any) { d["criteria"] = []any{} }, "criteria must be a non-empty list"},
		{"missing desc", func(d map[string]any) {
			delete(d["criteria"].([]any)[0].(map[string]any), "desc")
		}, "Criterion 0 missing required fields: desc"},
		{"duplicate id", func(d map[string]any) {
			d["criteria"].([]any)[1].(map[string]any)["id"] = "clarity"
		}, "Duplicate criterion ID: clarity"},
		{"weight string", func(d map[string]any) {
			d["criteria"].([]any)[0].(map[string]any)["weight"] = "half"
		}, "Criterion 'clarity' weight must be a number"},
		{"weight numeric string", func(d map[string]any) {
			d["criteria"].([]any)[0].(map[string]any)["weight"] = "0.5"
		}, "Criterion 'clarity' weight must be a number"},
		{"weight sum", func(d map[string]any) {
			d["criteria"].([]any)[0].(map[string]any)["weight"] = 0.4
		}, "Criterion weights must sum to 1.0 (current sum: 0.9000)"},
		{"scale missing max", func(d map[string]any) { d["scale"] = map[string]any{"min": 1.0} }, "scale must have 'min' and 'max' keys"},
		{"scale not object", func(d map[string]any) { d["scale"] = "1-10" }, "scale must be an object"},
		{"thresholds missing", func(d map[string]any) { d["thresholds"] = map[string]any{"pass": 6.5} }, "thresholds must have 'pass' and 'revise' keys"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := decode(t, flatJSON)
			tc.mutate(doc)
			err := ValidateDocument(doc)
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())
		})
	}
}

func TestWeightSumTolerance(t *testing.T) {
	doc := decode(t, flatJSON)
	crits := doc["criteria"].([]any)
	crits[0].(map[string]any)["weight"] = 0.505
	assert.NoError(t, ValidateDocument(doc))

	crits[0].(map[string]any)["weight"] = 0.52
	assert.Error(t, ValidateDocument(doc))
}

func TestLabelFallsBackToTitleCase(t *testing.T) {
	r := Default()
	assert.Equal(t, "Clarity", r.Label("clarity"))
	assert.Equal(t, "Unknown Thing", r.Label("unknown_thing"))
}

func TestValidateKeepsEmptyMetadataKeys(t *testing.T) {
	flat := decode(t, flatJSON)
	flat["overall_method"] = ""
	hier := decode(t, hierarchicalJSON)
	hier["name"] = ""
	hier["rubric_id"] = ""
	hier["version"] = ""

	for name, doc := range map[string]map[string]any{"flat": flat, "hierarchical": hier} {
		t.Run(name, func(t *testing.T) {
			data, err := json.Marshal(doc)
			require.NoError(t, err)
			r, err := Parse(data)
			require.NoError(t, err)
			assert.NoError(t, r.Validate())
		})
	}
}
