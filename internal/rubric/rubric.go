// Package rubric holds the scoring rubric model in its two supported shapes:
// the flat weighted-criteria shape and the hierarchical category shape.
package rubric

type Format string

const (
	FormatFlat         Format = "flat"
	FormatHierarchical Format = "hierarchical"
)

// Status values recognised in rubric metadata.
const (
	StatusCurrent  = "current"
	StatusArchived = "archived"
	StatusDraft    = "draft"
)

type Scale struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type Thresholds struct {
	Pass   float64 `json:"pass"`
	Revise float64 `json:"revise"`
}

// FlatCriterion is a criterion of the flat shape, scored on the rubric scale.
type FlatCriterion struct {
	ID     string  `json:"id"`
	Label  string  `json:"label"`
	Desc   string  `json:"desc"`
	Weight float64 `json:"weight"`
}

// Criterion is a criterion nested inside a Category, scored 0..MaxPoints.
type Criterion struct {
	ID        string `json:"criterion_id"`
	Label     string `json:"label"`
	Desc      string `json:"desc,omitempty"`
	MaxPoints int    `json:"max_points"`
}

type Category struct {
	ID        string      `json:"category_id"`
	Label     string      `json:"label"`
	Desc      string      `json:"desc,omitempty"`
	Weight    float64     `json:"weight"`
	MaxPoints int         `json:"max_points"`
	Criteria  []Criterion `json:"criteria"`
}

// Rubric is immutable once handed to an evaluation run. Exactly one of
// Criteria (flat) or Categories (hierarchical) is populated.
type Rubric struct {
	RubricID      string          `json:"rubric_id,omitempty"`
	Name          string          `json:"name,omitempty"`
	Version       string          `json:"version,omitempty"`
	Description   string          `json:"description,omitempty"`
	Status        string          `json:"status,omitempty"`
	Criteria      []FlatCriterion `json:"criteria,omitempty"`
	Categories    []Category      `json:"categories,omitempty"`
	Scale         Scale           `json:"scale"`
	OverallMethod string          `json:"overall_method,omitempty"`
	Thresholds    Thresholds      `json:"thresholds"`
}

func (r *Rubric) Format() Format {
	if r.Categories != nil {
		return FormatHierarchical
	}
	return FormatFlat
}

// CriterionInfo is a shape-independent view of one scorable criterion.
type CriterionInfo struct {
	ID         string
	Label      string
	Desc       string
	CategoryID string
	Weight     float64
	Min        int
	Max        int
}

// AllCriteria lists every criterion in rubric order.
func (r *Rubric) AllCriteria() []CriterionInfo {
	if r.Format() == FormatHierarchical {
		var out []CriterionInfo
		for _, c := range r.Categories {
			out = append(out, c.Info()...)
		}
		return out
	}
	out := make([]CriterionInfo, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		out = append(out, CriterionInfo{
			ID:     c.ID,
			Label:  c.Label,
			Desc:   c.Desc,
			Weight: c.Weight,
			Min:    int(r.Scale.Min),
			Max:    int(r.Scale.Max),
		})
	}
	return out
}

// Info lists the criteria of a single category.
func (c Category) Info() []CriterionInfo {
	out := make([]CriterionInfo, 0, len(c.Criteria))
	for _, cr := range c.Criteria {
		out = append(out, CriterionInfo{
			ID:         cr.ID,
			Label:      cr.Label,
			Desc:       cr.Desc,
			CategoryID: c.ID,
			Min:        0,
			Max:        cr.MaxPoints,
		})
	}
	return out
}

func (r *Rubric) CriterionCount() int {
	if r.Format() == FormatHierarchical {
		n := 0
		for _, c := range r.Categories {
			n += len(c.Criteria)
		}
		return n
	}
	return len(r.Criteria)
}

// TotalPoints is the sum of category max points, or the scale max for flat rubrics.
func (r *Rubric) TotalPoints() float64 {
	if r.Format() == FormatHierarchical {
		total := 0
		for _, c := range r.Categories {
			total += c.MaxPoints
		}
		return float64(total)
	}
	return r.Scale.Max
}

// Label returns the human label for a criterion id, or a title-cased id.
func (r *Rubric) Label(criterionID string) string {
	for _, c := range r.AllCriteria() {
		if c.ID == criterionID {
			return c.Label
		}
	}
	return titleize(criterionID)
}

// DisplayName prefers the rubric name, then the rubric id.
func (r *Rubric) DisplayName() string {
	switch {
	case r.Name != "":
		return r.Name
	case r.RubricID != "":
		return r.RubricID
	}
	return "Default Rubric"
}

// Validate re-runs document validation over the typed value. Every key of
// the rubric's shape is present in the rebuilt document, empty or not.
func (r *Rubric) Validate() error {
	if r == nil {
		return &ValidationError{Reason: "rubric is nil"}
	}
	return ValidateDocument(r.document())
}

func (r *Rubric) document() map[string]any {
	doc := map[string]any{
		"scale":      map[string]any{"min": r.Scale.Min, "max": r.Scale.Max},
		"thresholds": map[string]any{"pass": r.Thresholds.Pass, "revise": r.Thresholds.Revise},
	}
	if r.Format() == FormatHierarchical {
		doc["rubric_id"] = r.RubricID
		doc["name"] = r.Name
		doc["version"] = r.Version
		cats := make([]any, 0, len(r.Categories))
		for _, c := range r.Categories {
			crits := make([]any, 0, len(c.Criteria))
			for _, cr := range c.Criteria {
				crits = append(crits, map[string]any{
					"criterion_id": cr.ID,
					"label":        cr.Label,
					"desc":         cr.Desc,
					"max_points":   float64(cr.MaxPoints),
				})
			}
			cats = append(cats, map[string]any{
				"category_id": c.ID,
				"label":       c.Label,
				"weight":      c.Weight,
				"max_points":  float64(c.MaxPoints),
				"criteria":    crits,
			})
		}
		doc["categories"] = cats
		return doc
	}
	crits := make([]any, 0, len(r.Criteria))
	for _, c := range r.Criteria {
		crits = append(crits, map[string]any{
			"id":     c.ID,
			"label":  c.Label,
			"desc":   c.Desc,
			"weight": c.Weight,
		})
	}
	doc["criteria"] = crits
	doc["overall_method"] = r.OverallMethod
	return doc
}

func titleize(id string) string {
	b := []byte(id)
	up := true
	for i, ch := range b {
		if ch == '_' || ch == '-' {
			b[i] = ' '
			up = true
			continue
		}
		if up && ch >= 'a' && ch <= 'z' {
			b[i] = ch - 'a' + 'A'
		}
		up = false
	}
	return string(b)
}
