package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored crawl runs",
	Args:  cobra.NoArgs,
	RunE:  listRuns,
}

var reportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Rebuild the hierarchy report of a stored run",
	Long:  `Rebuilds the text and HTML reports from the run store. Without a run id the latest run is used.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  rebuildReport,
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to show")
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	runs, err := a.Runs(runsLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs stored yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tCOMMENTS\tROOTS\tTITLE\tERROR")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.RunID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Comments, r.Roots, r.Title, r.Error)
	}
	return w.Flush()
}

func rebuildReport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	var runID string
	if len(args) > 0 {
		runID = args[0]
	}
	rep, files, err := a.Report(runID)
	if err != nil {
		return err
	}

	fmt.Println(rep.Subject)
	for _, f := range files {
		fmt.Printf("  wrote: %s\n", f)
	}
	return nil
}
