// Package store persists grading-run history so past scorecards can be
// listed and compared.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fairview-ems/aoi-grader/internal/grading"
)

// GradingRun is one saved invocation of the grading engine: where the
// rows came from, the severity used, and the resulting scorecard.
type GradingRun struct {
	ID        string                  `json:"id"`
	Source    string                  `json:"source"`
	KSeverity float64                 `json:"k_severity"`
	RowCount  int                     `json:"row_count"`
	Operators int                     `json:"operators"`
	Grades    []grading.OperatorGrade `json:"grades"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewRun builds a GradingRun with a fresh id and timestamp.
func NewRun(source string, kSeverity float64, rowCount int, grades []grading.OperatorGrade) *GradingRun {
	return &GradingRun{
		ID:        uuid.New().String(),
		Source:    source,
		KSeverity: kSeverity,
		RowCount:  rowCount,
		Operators: len(grades),
		Grades:    grades,
		CreatedAt: time.Now().UTC(),
	}
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Source string `json:"source,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for grading runs.
type Store interface {
	SaveRun(ctx context.Context, run *GradingRun) error
	GetRun(ctx context.Context, id string) (*GradingRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]GradingRun, error)

	Migrate(ctx context.Context) error
	Close() error
}
