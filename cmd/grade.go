package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fairview-ems/aoi-grader/internal/grading"
	"github.com/fairview-ems/aoi-grader/internal/report"
	"github.com/fairview-ems/aoi-grader/internal/store"
)

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Grade operators from inspection reports",
	Long: `Compute the operator reliability scorecard from a combined AOI+FI
report, or join separate AOI and FI report files in-process.

Report files may be .csv or .xlsx, local paths or ftp:// URLs.

Examples:
  # Grade a combined report export
  aoi-grader grade --input combined.csv

  # Join raw AOI and FI exports, then grade
  aoi-grader grade --aoi aoi_report.xlsx --fi fi_report.xlsx

  # Harsher severity, CSV output, persist the run
  aoi-grader grade --input combined.csv --k 80 --format csv --save

  # Per-row attribution detail instead of the scorecard
  aoi-grader grade --input combined.csv --breakdown --format csv --output breakdown.csv`,
	RunE: runGrade,
}

func init() {
	f := gradeCmd.Flags()
	f.String("input", "", "combined report file (csv/xlsx path or ftp:// URL)")
	f.String("aoi", "", "raw AOI report file (requires --fi)")
	f.String("fi", "", "raw FI report file (requires --aoi)")
	f.Float64("k", 0, "severity: grade penalty per miss per 1000 passes (default from config)")
	f.String("format", "table", "output format: table, csv, or json")
	f.String("output", "", "output file path (default: stdout)")
	f.Bool("breakdown", false, "emit the per-row attribution breakdown instead of the scorecard")
	f.Bool("save", false, "save the run to the grading-run history")
	f.String("sheet", "", "XLSX sheet name (default: first sheet)")
	f.String("encoding", "", "CSV charset when not UTF-8 (e.g. windows-1252)")

	rootCmd.AddCommand(gradeCmd)
}

func runGrade(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	input, _ := cmd.Flags().GetString("input")
	aoiPath, _ := cmd.Flags().GetString("aoi")
	fiPath, _ := cmd.Flags().GetString("fi")
	k, _ := cmd.Flags().GetFloat64("k")
	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")
	breakdownOut, _ := cmd.Flags().GetBool("breakdown")
	save, _ := cmd.Flags().GetBool("save")
	sheet, _ := cmd.Flags().GetString("sheet")
	encoding, _ := cmd.Flags().GetString("encoding")

	if format != "table" && format != "csv" && format != "json" {
		return eris.Errorf("grade: --format must be table, csv, or json (got %q)", format)
	}
	if (input == "") == (aoiPath == "" || fiPath == "") {
		return eris.New("grade: provide either --input, or both --aoi and --fi")
	}
	if k == 0 {
		k = cfg.Grading.KSeverity
	}

	opts := report.TableOptions{SheetName: sheet, Encoding: encoding}
	if opts.SheetName == "" {
		opts.SheetName = cfg.Report.Sheet
	}
	if opts.Encoding == "" {
		opts.Encoding = cfg.Report.Encoding
	}

	var (
		records []map[string]any
		source  string
		err     error
	)
	if input != "" {
		source = input
		var path string
		var cleanup func()
		path, cleanup, err = report.Fetch(ctx, input)
		if err != nil {
			return err
		}
		defer cleanup()
		records, err = report.ReadTable(path, opts)
	} else {
		source = aoiPath + "+" + fiPath
		records, err = report.LoadCombined(ctx, aoiPath, fiPath, opts, cfg.Report.JobColumn)
	}
	if err != nil {
		return err
	}

	rows := report.Decode(records, report.DecodeOptions{
		Columns:       cfg.Report.Columns,
		IgnorePhrases: cfg.Grading.IgnorePhrases,
	})

	alpha, err := cfg.Grading.GapDiscount()
	if err != nil {
		return err
	}
	grader := grading.New(
		grading.WithSeverity(k),
		grading.WithGapDiscount(alpha),
	)
	summary, breakdown := grader.Compute(rows)

	zap.L().Info("graded report",
		zap.String("source", source),
		zap.Int("rows", len(rows)),
		zap.Int("operators", len(summary)),
		zap.Float64("k_severity", k),
	)

	out := io.Writer(os.Stdout)
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrap(err, "grade: create output file")
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	switch {
	case breakdownOut && format == "csv":
		err = writeBreakdownCSV(out, breakdown)
	case breakdownOut && format == "json":
		err = writeJSONOutput(out, breakdown)
	case breakdownOut:
		return eris.New("grade: --breakdown supports csv or json format only")
	case format == "csv":
		err = writeSummaryCSV(out, summary)
	case format == "json":
		err = writeJSONOutput(out, summary)
	default:
		err = writeSummaryTable(out, summary)
	}
	if err != nil {
		return err
	}

	if save {
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run := store.NewRun(source, k, len(rows), summary)
		if err := st.SaveRun(ctx, run); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Run %s saved\n", run.ID)
	}

	return nil
}
