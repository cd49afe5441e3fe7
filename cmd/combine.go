package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fairview-ems/aoi-grader/internal/report"
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Join AOI and FI report files into a combined CSV",
	Long: `Join a raw AOI report with its FI counterpart by job number and write
the combined rows (aoi_/fi_ prefixed columns) as CSV, the layout the
grade command and the /grades endpoint consume.`,
	RunE: runCombine,
}

func init() {
	f := combineCmd.Flags()
	f.String("aoi", "", "raw AOI report file (csv/xlsx path or ftp:// URL)")
	f.String("fi", "", "raw FI report file (csv/xlsx path or ftp:// URL)")
	f.String("output", "", "combined CSV output path (default: stdout)")
	f.String("sheet", "", "XLSX sheet name (default: first sheet)")
	f.String("encoding", "", "CSV charset when not UTF-8")
	combineCmd.MarkFlagRequired("aoi") //nolint:errcheck
	combineCmd.MarkFlagRequired("fi")  //nolint:errcheck

	rootCmd.AddCommand(combineCmd)
}

func runCombine(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aoiPath, _ := cmd.Flags().GetString("aoi")
	fiPath, _ := cmd.Flags().GetString("fi")
	outputPath, _ := cmd.Flags().GetString("output")
	sheet, _ := cmd.Flags().GetString("sheet")
	encoding, _ := cmd.Flags().GetString("encoding")

	opts := report.TableOptions{SheetName: sheet, Encoding: encoding}
	combined, err := report.LoadCombined(ctx, aoiPath, fiPath, opts, cfg.Report.JobColumn)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return eris.Wrap(err, "combine: create output file")
		}
		defer f.Close() //nolint:errcheck
		out = f
	}

	header := report.ColumnsOf(combined)
	cw := csv.NewWriter(out)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "combine: write header")
	}
	for _, rec := range combined {
		row := make([]string, len(header))
		for i, col := range header {
			row[i] = report.String(rec[col])
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "combine: write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "combine: flush csv")
	}

	if outputPath != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d combined rows to %s\n", len(combined), outputPath)
	}
	return nil
}
