package report

import (
	"github.com/fairview-ems/aoi-grader/internal/grading"
)

// Columns maps the engine's abstract field set onto the aoi_/fi_
// prefixed column names the report join produces. The names are
// configurable aliases, not semantic requirements.
type Columns struct {
	Job          string `yaml:"job" mapstructure:"job"`
	Operator     string `yaml:"operator" mapstructure:"operator"`
	AOIDate      string `yaml:"aoi_date" mapstructure:"aoi_date"`
	AOIInspected string `yaml:"aoi_inspected" mapstructure:"aoi_inspected"`
	AOIRejected  string `yaml:"aoi_rejected" mapstructure:"aoi_rejected"`
	FIDate       string `yaml:"fi_date" mapstructure:"fi_date"`
	FIInspected  string `yaml:"fi_inspected" mapstructure:"fi_inspected"`
	FIRejected   string `yaml:"fi_rejected" mapstructure:"fi_rejected"`
	FIInfo       string `yaml:"fi_info" mapstructure:"fi_info"`
}

// DefaultColumns returns the column names used by the standard
// combined-report export.
func DefaultColumns() Columns {
	return Columns{
		Job:          "aoi_Job Number",
		Operator:     "aoi_Operator",
		AOIDate:      "aoi_Date",
		AOIInspected: "aoi_Quantity Inspected",
		AOIRejected:  "aoi_Quantity Rejected",
		FIDate:       "fi_Date",
		FIInspected:  "fi_Quantity Inspected",
		FIRejected:   "fi_Quantity Rejected",
		FIInfo:       "fi_Additional Information",
	}
}

// withDefaults fills any unset alias from DefaultColumns, so a config
// file only needs to name the columns that differ.
func (c Columns) withDefaults() Columns {
	def := DefaultColumns()
	if c.Job == "" {
		c.Job = def.Job
	}
	if c.Operator == "" {
		c.Operator = def.Operator
	}
	if c.AOIDate == "" {
		c.AOIDate = def.AOIDate
	}
	if c.AOIInspected == "" {
		c.AOIInspected = def.AOIInspected
	}
	if c.AOIRejected == "" {
		c.AOIRejected = def.AOIRejected
	}
	if c.FIDate == "" {
		c.FIDate = def.FIDate
	}
	if c.FIInspected == "" {
		c.FIInspected = def.FIInspected
	}
	if c.FIRejected == "" {
		c.FIRejected = def.FIRejected
	}
	if c.FIInfo == "" {
		c.FIInfo = def.FIInfo
	}
	return c
}

// DecodeOptions configures record decoding.
type DecodeOptions struct {
	Columns Columns

	// IgnorePhrases, when set, recomputes each row's FI rejected count
	// from the FI reason field, dropping entries whose stated reason is
	// known to be unrelated to AOI-detectable defects.
	IgnorePhrases []string
}

// Decode converts raw combined-report records into engine rows. Missing
// columns decode to empty identifiers or zero counts; a record is never
// rejected for bad data.
func Decode(records []map[string]any, opts DecodeOptions) []grading.Row {
	cols := opts.Columns.withDefaults()

	rows := make([]grading.Row, 0, len(records))
	for _, rec := range records {
		row := grading.Row{
			Job:          String(rec[cols.Job]),
			Operator:     String(rec[cols.Operator]),
			AOIDate:      Date(rec[cols.AOIDate]),
			AOIInspected: Count(rec[cols.AOIInspected]),
			AOIRejected:  Count(rec[cols.AOIRejected]),
			FIDate:       Date(rec[cols.FIDate]),
			FIInspected:  Count(rec[cols.FIInspected]),
			FIRejected:   Count(rec[cols.FIRejected]),
		}

		if len(opts.IgnorePhrases) > 0 {
			if info := String(rec[cols.FIInfo]); info != "" {
				row.FIRejected = float64(CountRejections(info, opts.IgnorePhrases))
			}
		}

		if extra := extraFields(rec, cols); len(extra) > 0 {
			row.Extra = extra
		}
		rows = append(rows, row)
	}
	return rows
}

// extraFields collects the source columns the engine does not consume,
// so scope policies can key off program, shift, assembly, etc.
func extraFields(rec map[string]any, cols Columns) map[string]string {
	known := map[string]struct{}{
		cols.Job: {}, cols.Operator: {},
		cols.AOIDate: {}, cols.AOIInspected: {}, cols.AOIRejected: {},
		cols.FIDate: {}, cols.FIInspected: {}, cols.FIRejected: {},
	}
	extra := make(map[string]string, len(rec))
	for k, v := range rec {
		if _, ok := known[k]; ok {
			continue
		}
		if s := String(v); s != "" {
			extra[k] = s
		}
	}
	return extra
}
