package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect analysis run history",
	Long:  "Commands for listing and viewing coverage analysis runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List analysis runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		county, _ := cmd.Flags().GetString("county")
		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		if county != "" {
			county, err = countyKey(county)
			if err != nil {
				return err
			}
		}

		filter := store.AnalysisFilter{
			County: county,
			Status: model.AnalysisStatus(status),
			Limit:  limit,
		}

		analyses, err := st.ListAnalyses(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(analyses) == 0 {
			fmt.Fprintln(os.Stderr, "No analyses found.")
			return nil
		}

		formatAnalysesList(os.Stdout, analyses)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <analysis-id>",
	Short: "Show full details of an analysis run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		a, err := st.GetAnalysis(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		if a == nil {
			return eris.Errorf("runs show: analysis %s not found", args[0])
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(a)
	},
}

func init() {
	runsListCmd.Flags().String("county", "", "filter by county reference")
	runsListCmd.Flags().String("status", "", "filter by status (queued, running, complete, failed)")
	runsListCmd.Flags().Int("limit", 50, "max number of analyses to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatAnalysesList writes a tabular list of analyses to w.
func formatAnalysesList(out io.Writer, analyses []model.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCOUNTY\tTRAVEL\tSTATUS\tWITHIN\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t------\t------\t-------")

	for _, a := range analyses {
		within := ""
		if a.Result != nil {
			within = fmt.Sprintf("%.1f%%", a.Result.WithinShare*100)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d min %s\t%s\t%s\t%s\n",
			truncateID(a.ID),
			a.County,
			a.TravelMinutes,
			a.TravelType,
			a.Status,
			within,
			a.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
