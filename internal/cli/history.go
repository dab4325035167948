package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/indexer"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent tokenize and construct runs",
	Long:  `Prints the most recent pipeline runs recorded in PostgreSQL. Requires postgres.enabled.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum number of runs")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output the runs as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if !cfg.Postgres.Enabled {
		return errors.New("build history requires postgres.enabled")
	}
	if historyLimit < 1 {
		return fmt.Errorf("--limit must be positive, got %d", historyLimit)
	}
	store, closeDB, err := openHistory(cmd.Context())
	if err != nil {
		return err
	}
	defer closeDB()

	runs, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	if historyJSON {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	printHistory(cmd, runs)
	return nil
}

func printHistory(cmd *cobra.Command, runs []indexer.BuildRun) {
	if len(runs) == 0 {
		cmd.Println("No builds recorded.")
		return
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTAGE\tDOCS\tSKIPPED\tTERMS\tPOSTINGS\tCHECKSUM\tDURATION\tID")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%08x\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Stage,
			r.Documents, r.Skipped, r.Terms, r.Postings, r.Checksum,
			r.Duration.Round(time.Millisecond), r.ID)
	}
	tw.Flush()
}
