package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fairview-ems/aoi-grader/internal/grading"
)

// writeSummaryTable renders the operator scorecard for terminals.
func writeSummaryTable(w io.Writer, grades []grading.OperatorGrade) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATOR\tJOBS\tPASSED\tATTR MISSES\tMISSES/1K\tGRADE")
	for _, g := range grades {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n",
			g.Operator, g.Jobs,
			fmtFloat(g.TotalAOIPassed), fmtFloat(g.TotalAttrMisses),
			fmtFloat(g.MissesPer1kPasses), fmtFloat(g.Grade),
		)
	}
	return eris.Wrap(tw.Flush(), "flush table")
}

// writeSummaryCSV writes the scorecard as CSV.
func writeSummaryCSV(w io.Writer, grades []grading.OperatorGrade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"aoi_operator", "jobs", "total_aoi_passed", "total_attr_misses", "misses_per_1k_passes", "grade"}); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, g := range grades {
		rec := []string{
			g.Operator,
			strconv.Itoa(g.Jobs),
			fmtFloat(g.TotalAOIPassed),
			fmtFloat(g.TotalAttrMisses),
			fmtFloat(g.MissesPer1kPasses),
			fmtFloat(g.Grade),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "flush csv")
}

// writeBreakdownCSV writes the per-row attribution detail as CSV.
func writeBreakdownCSV(w io.Writer, rows []grading.BreakdownRow) error {
	cw := csv.NewWriter(w)
	header := []string{
		"job", "aoi_operator", "aoi_date", "aoi_passed", "scope_beta", "share_passed",
		"fi_rejects_job", "fi_inspected_job", "gap_days_median", "alpha_job", "attributed_misses",
	}
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, r := range rows {
		gap := ""
		if r.GapDaysMedian != nil {
			gap = fmtFloat(*r.GapDaysMedian)
		}
		rec := []string{
			r.Job, r.Operator, fmtDate(r.AOIDate),
			fmtFloat(r.AOIPassed), fmtFloat(r.ScopeBeta), fmtFloat(r.SharePassed),
			fmtFloat(r.FIRejectsJob), fmtFloat(r.FIInspectedJob),
			gap, fmtFloat(r.AlphaJob), fmtFloat(r.AttributedMisses),
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "flush csv")
}

// writeJSONOutput writes any result as indented JSON.
func writeJSONOutput(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "write json")
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
