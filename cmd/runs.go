package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/fairview-ems/aoi-grader/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs [id]",
	Short: "List saved grading runs, or show one run's scorecard",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	f := runsCmd.Flags()
	f.Int("limit", 20, "maximum number of runs to list")
	f.String("source", "", "filter runs by source")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if len(args) == 1 {
		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Run %s\n  source: %s\n  k_severity: %s\n  rows: %d\n  created: %s\n\n",
			run.ID, run.Source, fmtFloat(run.KSeverity), run.RowCount,
			run.CreatedAt.Format("2006-01-02 15:04:05"),
		)
		return writeSummaryTable(os.Stdout, run.Grades)
	}

	limit, _ := cmd.Flags().GetInt("limit")
	source, _ := cmd.Flags().GetString("source")

	runs, err := st.ListRuns(ctx, store.RunFilter{Source: source, Limit: limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No saved runs.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSOURCE\tROWS\tOPERATORS\tK")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Source,
			r.RowCount, r.Operators, fmtFloat(r.KSeverity),
		)
	}
	return eris.Wrap(tw.Flush(), "runs: flush table")
}
