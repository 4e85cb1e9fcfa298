package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/config"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/isochrone"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/spatial"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run ballot-box coverage analysis for a county",
	Long: `Joins a county's geocoded voter buildings against its ballot-box
isochrones and reports how many voters live within travel range of any box.
Isochrones are generated on demand when not already cached; run the
isochrone command first to warm the cache separately.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		countyFlag, _ := cmd.Flags().GetString("county")
		format, _ := cmd.Flags().GetString("format")

		county, err := countyKey(countyFlag)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		voters, err := st.ListVoters(ctx, county)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}
		if len(voters) == 0 {
			return eris.Errorf("analyze: no voters imported for county %q", county)
		}

		boxes, err := st.ListBallotBoxes(ctx, county)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}
		if len(boxes) == 0 {
			return eris.Errorf("analyze: no ballot boxes imported for county %q", county)
		}

		tt := travelTimeConfig(cmd)
		if !model.TravelType(tt.TravelType).Valid() {
			return eris.Errorf("analyze: invalid travel type %q", tt.TravelType)
		}

		client, err := newIsochroneClient(st)
		if err != nil {
			return err
		}

		analysis, err := st.CreateAnalysis(ctx, county, model.TravelType(tt.TravelType), tt.TravelMinutes)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}
		if err := st.UpdateAnalysisStatus(ctx, analysis.ID, model.AnalysisStatusRunning); err != nil {
			return eris.Wrap(err, "analyze")
		}

		log := zap.L().With(
			zap.String("command", "analyze"),
			zap.String("county", county),
			zap.String("analysis_id", analysis.ID),
		)

		summary, err := runAnalysis(ctx, client, voters, boxes, tt)
		if err != nil {
			if stErr := st.UpdateAnalysisStatus(ctx, analysis.ID, model.AnalysisStatusFailed); stErr != nil {
				log.Warn("failed to mark analysis failed", zap.Error(stErr))
			}
			return eris.Wrap(err, "analyze")
		}

		if err := st.UpdateAnalysisResult(ctx, analysis.ID, summary); err != nil {
			return eris.Wrap(err, "analyze")
		}

		log.Info("analysis complete",
			zap.Int("total_voters", summary.TotalVoters),
			zap.Int("within_voters", summary.WithinVoters),
			zap.Float64("within_share", summary.WithinShare),
		)

		return writeSummary(os.Stdout, format, analysis.ID, summary)
	},
}

func init() {
	analyzeCmd.Flags().String("county", "", `county reference, e.g. "King, WA" (required)`)
	analyzeCmd.Flags().String("travel-type", "", "driving, public_transport, or walking (default: from config)")
	analyzeCmd.Flags().Int("minutes", 0, "travel time in minutes (default: from config or 15)")
	analyzeCmd.Flags().String("format", "table", "output format: table, json, or yaml")
	_ = analyzeCmd.MarkFlagRequired("county")
	rootCmd.AddCommand(analyzeCmd)
}

// runAnalysis generates (or loads cached) isochrones for the boxes and joins
// the voter buildings against them.
func runAnalysis(ctx context.Context, client *isochrone.Client, voters []model.VoterAddress, boxes []model.BallotBox, tt config.TravelTimeConfig) (*model.CoverageSummary, error) {
	isochrones, err := client.ForBallotBoxes(ctx, boxes, tt, cfg.Analyze.Concurrency)
	if err != nil {
		return nil, err
	}
	if len(isochrones) == 0 {
		return nil, eris.New("no isochrones could be generated")
	}

	return spatial.Join(ctx, voters, boxes, isochrones, spatial.JoinOptions{
		Concurrency: cfg.Analyze.Concurrency,
	})
}

// writeSummary renders a coverage summary in the requested format.
func writeSummary(out io.Writer, format, analysisID string, s *model.CoverageSummary) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "yaml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return eris.Wrap(err, "analyze: marshal yaml")
		}
		_, err = out.Write(data)
		return err
	case "table":
		formatSummaryTable(out, analysisID, s)
		return nil
	default:
		return eris.Errorf("analyze: unknown format %q", format)
	}
}

// formatSummaryTable writes a tabular coverage summary to w.
func formatSummaryTable(out io.Writer, analysisID string, s *model.CoverageSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Analysis:\t%s\n", analysisID)
	_, _ = fmt.Fprintf(w, "Total voters:\t%d\n", s.TotalVoters)
	_, _ = fmt.Fprintf(w, "Total buildings:\t%d\n", s.TotalBuildings)
	_, _ = fmt.Fprintf(w, "Within range:\t%d (%.1f%%)\n", s.WithinVoters, s.WithinShare*100)
	_, _ = fmt.Fprintf(w, "Outside range:\t%d (%.1f%%)\n", s.OutsideVoters, s.OutsideShare*100)
	if s.UngeocodedVoters > 0 {
		_, _ = fmt.Fprintf(w, "Ungeocoded:\t%d (counted as outside)\n", s.UngeocodedVoters)
	}
	_ = w.Flush()

	if len(s.Boxes) == 0 {
		return
	}

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BALLOT BOX\tVOTERS\tBUILDINGS\tMEAN KM")
	_, _ = fmt.Fprintln(w, "----------\t------\t---------\t-------")
	for _, b := range s.Boxes {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\n", b.Name, b.Voters, b.Buildings, b.MeanDistanceKM)
	}
	_ = w.Flush()
}
