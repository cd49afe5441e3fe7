// Package grading apportions final-inspection rejects back to the AOI
// operators who passed the affected boards, discounted by the time gap
// between the two inspection stages and an optional scope weighting.
package grading

import "time"

// Row is one AOI inspection event pre-joined with its job's FI aggregate.
// FI quantities are job-level totals; the upstream join duplicates them
// onto every AOI row of the same job.
type Row struct {
	Job          string
	Operator     string
	AOIDate      *time.Time
	AOIInspected float64
	AOIRejected  float64
	FIDate       *time.Time
	FIInspected  float64
	FIRejected   float64

	// Extra carries the remaining source columns (program, shift, ...) so
	// scope policies can inspect fields the engine itself ignores.
	Extra map[string]string
}

// BreakdownRow is the per-row attribution detail: one output row per
// input row, with the job-level aggregates broadcast onto it.
type BreakdownRow struct {
	Job              string     `json:"job"`
	Operator         string     `json:"aoi_operator"`
	AOIDate          *time.Time `json:"aoi_date"`
	AOIPassed        float64    `json:"aoi_passed"`
	ScopeBeta        float64    `json:"scope_beta"`
	SharePassed      float64    `json:"share_passed"`
	FIRejectsJob     float64    `json:"fi_rejects_job"`
	FIInspectedJob   float64    `json:"fi_inspected_job"`
	GapDaysMedian    *float64   `json:"gap_days_median"`
	AlphaJob         float64    `json:"alpha_job"`
	AttributedMisses float64    `json:"attributed_misses"`
}

// OperatorGrade is one row of the ranked operator scorecard.
type OperatorGrade struct {
	Operator          string  `json:"aoi_operator"`
	Jobs              int     `json:"jobs"`
	TotalAOIPassed    float64 `json:"total_aoi_passed"`
	TotalAttrMisses   float64 `json:"total_attr_misses"`
	MissesPer1kPasses float64 `json:"misses_per_1k_passes"`
	Grade             float64 `json:"grade"`
}
