package grading

import (
	"math"
	"sort"
	"time"
)

// DefaultSeverity is the default grade penalty per attributed miss per
// thousand passed boards.
const DefaultSeverity = 40.0

// Grader computes the operator scorecard and the per-row attribution
// breakdown. It holds no state between calls; a single Grader is safe
// for concurrent use as long as its policies are.
type Grader struct {
	severity float64
	alpha    GapDiscountPolicy
	beta     ScopePolicy
}

// Option customizes a Grader.
type Option func(*Grader)

// WithSeverity sets the grade penalty per miss per 1000 passes.
func WithSeverity(k float64) Option {
	return func(g *Grader) { g.severity = k }
}

// WithGapDiscount replaces the default gap-discount policy.
func WithGapDiscount(p GapDiscountPolicy) Option {
	return func(g *Grader) {
		if p != nil {
			g.alpha = p
		}
	}
}

// WithScope replaces the default all-in-scope policy.
func WithScope(p ScopePolicy) Option {
	return func(g *Grader) {
		if p != nil {
			g.beta = p
		}
	}
}

// New creates a Grader with the default severity and policies.
func New(opts ...Option) *Grader {
	g := &Grader{
		severity: DefaultSeverity,
		alpha:    DefaultGapDiscount(),
		beta:     FullScope{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// jobAgg holds the per-job aggregates broadcast back onto each of the
// job's rows in the second pass.
type jobAgg struct {
	fiRejects   float64
	fiInspected float64
	gaps        []float64
	totalScope  float64
	gapMedian   float64 // NaN when no row of the job has both dates
	alpha       float64
}

// Compute grades operators from combined AOI+FI rows. It returns the
// ranked operator summary (grade descending, ties stable) and the
// per-row breakdown. Malformed business data never fails the call: bad
// counts and dates were already reduced to neutral values at ingestion,
// and every division here is guarded. Empty input yields two empty,
// non-nil tables.
func (g *Grader) Compute(rows []Row) ([]OperatorGrade, []BreakdownRow) {
	summary := make([]OperatorGrade, 0, 8)
	breakdown := make([]BreakdownRow, 0, len(rows))
	if len(rows) == 0 {
		return summary, breakdown
	}

	passed := make([]float64, len(rows))
	betas := make([]float64, len(rows))

	// First pass: per-row quantities and per-job aggregates. FI totals
	// take the max observed across the job's rows, tolerating the
	// upstream habit of copying the job-level total onto every row.
	jobs := make(map[string]*jobAgg, len(rows))
	jobOrder := make([]string, 0, len(rows))
	for i, r := range rows {
		p := r.AOIInspected - r.AOIRejected
		if p < 0 {
			p = 0
		}
		passed[i] = p
		betas[i] = g.scopeWeight(r)

		j, ok := jobs[r.Job]
		if !ok {
			j = &jobAgg{fiRejects: r.FIRejected, fiInspected: r.FIInspected}
			jobs[r.Job] = j
			jobOrder = append(jobOrder, r.Job)
		} else {
			if r.FIRejected > j.fiRejects {
				j.fiRejects = r.FIRejected
			}
			if r.FIInspected > j.fiInspected {
				j.fiInspected = r.FIInspected
			}
		}
		j.totalScope += p * betas[i]
		if gap := gapDays(r.AOIDate, r.FIDate); !math.IsNaN(gap) {
			j.gaps = append(j.gaps, gap)
		}
	}

	// Alpha is computed once per job and broadcast, so an expensive or
	// side-effecting policy runs once per job rather than once per row.
	for _, name := range jobOrder {
		j := jobs[name]
		j.gapMedian = median(j.gaps)
		a := g.alpha.Discount(j.gapMedian)
		if math.IsNaN(a) {
			a = DefaultGapDiscount().Discount(math.NaN())
		}
		j.alpha = a
	}

	// Second pass: per-row shares and attribution, accumulated per
	// operator. A job whose total scope-passed is zero attributes
	// nothing to anyone.
	type opAgg struct {
		passed float64
		misses float64
		jobs   map[string]struct{}
	}
	ops := make(map[string]*opAgg, len(rows))
	opOrder := make([]string, 0, len(rows))
	for i, r := range rows {
		j := jobs[r.Job]

		share := 0.0
		if j.totalScope > 0 {
			share = passed[i] * betas[i] / j.totalScope
		}
		attributed := j.alpha * share * j.fiRejects

		var gapMedian *float64
		if !math.IsNaN(j.gapMedian) {
			m := j.gapMedian
			gapMedian = &m
		}
		breakdown = append(breakdown, BreakdownRow{
			Job:              r.Job,
			Operator:         r.Operator,
			AOIDate:          r.AOIDate,
			AOIPassed:        passed[i],
			ScopeBeta:        betas[i],
			SharePassed:      share,
			FIRejectsJob:     j.fiRejects,
			FIInspectedJob:   j.fiInspected,
			GapDaysMedian:    gapMedian,
			AlphaJob:         j.alpha,
			AttributedMisses: attributed,
		})

		o, ok := ops[r.Operator]
		if !ok {
			o = &opAgg{jobs: make(map[string]struct{}, 4)}
			ops[r.Operator] = o
			opOrder = append(opOrder, r.Operator)
		}
		// Grading credits operators on their raw workload; only the
		// attribution shares are scope-adjusted.
		o.passed += passed[i]
		o.misses += attributed
		o.jobs[r.Job] = struct{}{}
	}

	for _, name := range opOrder {
		o := ops[name]
		per1k := 0.0
		if o.passed > 0 {
			per1k = 1000 * o.misses / o.passed
		}
		grade := 100 - g.severity*per1k
		if grade < 0 {
			grade = 0
		} else if grade > 100 {
			grade = 100
		}
		summary = append(summary, OperatorGrade{
			Operator:          name,
			Jobs:              len(o.jobs),
			TotalAOIPassed:    o.passed,
			TotalAttrMisses:   o.misses,
			MissesPer1kPasses: per1k,
			Grade:             grade,
		})
	}
	sort.SliceStable(summary, func(a, b int) bool {
		return summary[a].Grade > summary[b].Grade
	})

	return summary, breakdown
}

// scopeWeight applies the scope policy to one row. A policy error or
// panic counts the row fully in scope rather than aborting the batch.
func (g *Grader) scopeWeight(r Row) (w float64) {
	defer func() {
		if recover() != nil {
			w = 1.0
		}
	}()
	v, err := g.beta.Weight(r.Operator, r)
	if err != nil {
		return 1.0
	}
	return v
}

// gapDays returns the whole days elapsed between the AOI and FI dates,
// or NaN when either date is missing.
func gapDays(aoi, fi *time.Time) float64 {
	if aoi == nil || fi == nil {
		return math.NaN()
	}
	return math.Floor(fi.Sub(*aoi).Hours() / 24)
}

// median returns the median of vals, or NaN when vals is empty.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
