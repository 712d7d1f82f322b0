package rubric

// Default returns the built-in flat rubric used when no rubric file can be
// loaded. Each call returns a fresh value.
func Default() *Rubric {
	return &Rubric{
		Name:        "Default Rubric",
		Description: "Built-in weighted rubric for product demo videos",
		Status:      StatusCurrent,
		Criteria: []FlatCriterion{
			{ID: "technical_accuracy", Label: "Technical Accuracy", Desc: "Correctness of technical claims and explanations", Weight: 0.30},
			{ID: "clarity", Label: "Clarity", Desc: "How easy the explanation is to follow", Weight: 0.25},
			{ID: "completeness", Label: "Completeness", Desc: "Coverage of key features and flows", Weight: 0.20},
			{ID: "production_quality", Label: "Production Quality", Desc: "Audio clarity and pacing", Weight: 0.05},
			{ID: "value_demonstration", Label: "Value Demonstration", Desc: "Articulation of business/customer value", Weight: 0.15},
			{ID: "multimodal_alignment", Label: "Multimodal Alignment", Desc: "Transcript and visuals are consistent (non-feature-specific)", Weight: 0.05},
		},
		Scale:         Scale{Min: 1, Max: 10},
		OverallMethod: "weighted_mean",
		Thresholds:    Thresholds{Pass: 6.5, Revise: 5.0},
	}
}
