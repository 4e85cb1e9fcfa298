package main

import (
	"fmt"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/boundary"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/kepler"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Export an interactive county coverage map",
	Long: `Renders a county's voter addresses, ballot boxes, and travel-time
isochrones as a self-contained Kepler.gl HTML map. Requires imported data,
a loaded county boundary, and TravelTime credentials (cached isochrones
are reused).`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		countyFlag, _ := cmd.Flags().GetString("county")
		out, _ := cmd.Flags().GetString("out")
		county, err := countyKey(countyFlag)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		bound, ref, err := boundary.NewLoader(st).FindCounty(ctx, county)
		if err != nil {
			return err
		}

		voters, err := st.ListVoters(ctx, county)
		if err != nil {
			return eris.Wrap(err, "map")
		}
		boxes, err := st.ListBallotBoxes(ctx, county)
		if err != nil {
			return eris.Wrap(err, "map")
		}
		if len(boxes) == 0 {
			return eris.Errorf("map: no ballot boxes imported for county %q", county)
		}

		client, err := newIsochroneClient(st)
		if err != nil {
			return err
		}
		tt := travelTimeConfig(cmd)
		isochrones, err := client.ForBallotBoxes(ctx, boxes, tt, cfg.Analyze.Concurrency)
		if err != nil {
			return eris.Wrap(err, "map")
		}

		m, err := kepler.NewCountyMap(bound, cfg.Map.Style, cfg.Map.Zoom)
		if err != nil {
			return eris.Wrap(err, "map")
		}
		m.AddVoterAddresses(voters)
		m.AddTravelTimeRadius(isochrones, tt.TravelMinutes, model.TravelType(tt.TravelType), []kepler.MapFilter{
			{ColName: "ballot_box", DefaultValue: isochroneNames(isochrones)},
		})
		m.AddBallotBoxes(boxes)

		if out == "" {
			out = fmt.Sprintf("%s_%s.html",
				strings.ReplaceAll(strings.ToLower(ref.Name), " ", "_"), strings.ToLower(ref.StateAbbr))
		}
		title := fmt.Sprintf("Ballot Box Coverage: %s, %s", ref.Name, ref.StateAbbr)
		if err := m.ExportHTML(out, title); err != nil {
			return err
		}

		zap.L().Info("map exported",
			zap.String("county", county),
			zap.String("path", out),
			zap.Int("voters", len(voters)),
			zap.Int("boxes", len(boxes)),
			zap.Int("isochrones", len(isochrones)),
		)
		fmt.Printf("Map written to %s\n", out)
		return nil
	},
}

func init() {
	mapCmd.Flags().String("county", "", `county reference, e.g. "King, WA" (required)`)
	mapCmd.Flags().String("out", "", "output HTML path (default: derived from county)")
	mapCmd.Flags().String("travel-type", "", "driving, public_transport, or walking (default: from config)")
	mapCmd.Flags().Int("minutes", 0, "travel time in minutes (default: from config or 15)")
	_ = mapCmd.MarkFlagRequired("county")
	rootCmd.AddCommand(mapCmd)
}

// isochroneNames returns the sorted ballot-box names present in the
// isochrone set, used to pre-select every box in the map filter.
func isochroneNames(isochrones map[string]*geom.MultiPolygon) []string {
	names := make([]string, 0, len(isochrones))
	for name := range isochrones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
