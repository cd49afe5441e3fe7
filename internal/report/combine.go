package report

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Raw report files carry unprefixed column names; the join prefixes them.
const (
	aoiPrefix = "aoi_"
	fiPrefix  = "fi_"

	defaultJobColumn  = "Job Number"
	defaultDateColumn = "Date"
	defaultInfoColumn = "Additional Information"

	quantityInspectedColumn = "Quantity Inspected"
	quantityRejectedColumn  = "Quantity Rejected"
)

// fiAggregate is one job's FI outcome, rolled up from however many FI
// rows the job produced.
type fiAggregate struct {
	inspected float64
	rejected  float64
	date      string
	dateTime  *time.Time
	reasons   []string
}

// Combine joins AOI rows with their job's FI aggregate, producing one
// combined record per AOI row with aoi_/fi_ prefixed columns. FI
// quantities are summed per job, the FI date is the latest parseable
// one, and reason texts are concatenated. AOI rows whose job has no FI
// record keep their AOI columns and get no fi_ fields, which the engine
// degrades to zero FI totals and an undefined gap.
func Combine(aoiRecords, fiRecords []map[string]any, jobColumn string) []map[string]any {
	if jobColumn == "" {
		jobColumn = defaultJobColumn
	}

	fiByJob := make(map[string]*fiAggregate, len(fiRecords))
	for _, rec := range fiRecords {
		job := strings.TrimSpace(String(rec[jobColumn]))
		agg, ok := fiByJob[job]
		if !ok {
			agg = &fiAggregate{}
			fiByJob[job] = agg
		}
		agg.inspected += Count(rec[quantityInspectedColumn])
		agg.rejected += Count(rec[quantityRejectedColumn])
		if t := Date(rec[defaultDateColumn]); t != nil {
			if agg.dateTime == nil || t.After(*agg.dateTime) {
				agg.dateTime = t
				agg.date = String(rec[defaultDateColumn])
			}
		} else if agg.date == "" {
			agg.date = String(rec[defaultDateColumn])
		}
		if info := strings.TrimSpace(String(rec[defaultInfoColumn])); info != "" {
			agg.reasons = append(agg.reasons, info)
		}
	}

	combined := make([]map[string]any, 0, len(aoiRecords))
	matched := 0
	for _, rec := range aoiRecords {
		out := make(map[string]any, 2*len(rec))
		for k, v := range rec {
			out[aoiPrefix+k] = v
		}

		job := strings.TrimSpace(String(rec[jobColumn]))
		if agg, ok := fiByJob[job]; ok {
			matched++
			out[fiPrefix+defaultDateColumn] = agg.date
			out[fiPrefix+quantityInspectedColumn] = agg.inspected
			out[fiPrefix+quantityRejectedColumn] = agg.rejected
			if len(agg.reasons) > 0 {
				out[fiPrefix+defaultInfoColumn] = strings.Join(agg.reasons, ", ")
			}
		}
		combined = append(combined, out)
	}

	zap.L().Debug("report: combined AOI and FI records",
		zap.Int("aoi_rows", len(aoiRecords)),
		zap.Int("fi_rows", len(fiRecords)),
		zap.Int("matched", matched),
	)

	return combined
}

// LoadCombined reads an AOI and an FI report file (parsed concurrently)
// and joins them by job number.
func LoadCombined(ctx context.Context, aoiPath, fiPath string, opts TableOptions, jobColumn string) ([]map[string]any, error) {
	var aoiRecords, fiRecords []map[string]any

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, cleanup, err := Fetch(ctx, aoiPath)
		if err != nil {
			return err
		}
		defer cleanup()
		aoiRecords, err = ReadTable(path, opts)
		return eris.Wrap(err, "report: aoi file")
	})
	g.Go(func() error {
		path, cleanup, err := Fetch(ctx, fiPath)
		if err != nil {
			return err
		}
		defer cleanup()
		fiRecords, err = ReadTable(path, opts)
		return eris.Wrap(err, "report: fi file")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Combine(aoiRecords, fiRecords, jobColumn), nil
}

// ColumnsOf lists every column name present across the records, sorted,
// for writing combined output files with a stable header.
func ColumnsOf(records []map[string]any) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
