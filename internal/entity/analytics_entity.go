package entity

// StepCount is the number of sessions whose furthest step equals Step.
type StepCount struct {
	Step  int   `json:"step"`
	Total int64 `json:"total"`
}

// SourceCount groups sessions by utm_source. Empty source means direct traffic.
type SourceCount struct {
	Source string `json:"source"`
	Total  int64  `json:"total"`
}
