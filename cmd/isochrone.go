package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/config"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/isochrone"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/store"
)

var isochroneCmd = &cobra.Command{
	Use:   "isochrone",
	Short: "Generate travel-time isochrones for ballot boxes",
	Long: `Generates a travel-time polygon around each of a county's ballot boxes
via the TravelTime API. Polygons are cached in the store keyed by location
and travel parameters, so re-runs with the same settings make no API calls.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		countyFlag, _ := cmd.Flags().GetString("county")
		county, err := countyKey(countyFlag)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		boxes, err := st.ListBallotBoxes(ctx, county)
		if err != nil {
			return eris.Wrap(err, "isochrone")
		}
		if len(boxes) == 0 {
			return eris.Errorf("isochrone: no ballot boxes imported for county %q", county)
		}

		client, err := newIsochroneClient(st)
		if err != nil {
			return err
		}

		tt := travelTimeConfig(cmd)
		isochrones, err := client.ForBallotBoxes(ctx, boxes, tt, cfg.Analyze.Concurrency)
		if err != nil {
			return eris.Wrap(err, "isochrone")
		}

		zap.L().Info("isochrone generation complete",
			zap.String("county", county),
			zap.Int("boxes", len(boxes)),
			zap.Int("isochrones", len(isochrones)),
		)
		fmt.Printf("Generated %d of %d isochrones (%d min %s, arriving %s %s)\n",
			len(isochrones), len(boxes),
			tt.TravelMinutes, tt.TravelType, tt.ArrivalWeekday, tt.ArrivalTime)
		return nil
	},
}

func init() {
	isochroneCmd.Flags().String("county", "", `county reference, e.g. "King, WA" (required)`)
	isochroneCmd.Flags().String("travel-type", "", "driving, public_transport, or walking (default: from config)")
	isochroneCmd.Flags().Int("minutes", 0, "travel time in minutes (default: from config or 15)")
	_ = isochroneCmd.MarkFlagRequired("county")
	rootCmd.AddCommand(isochroneCmd)
}

// travelTimeConfig applies travel flag overrides to the configured defaults.
func travelTimeConfig(cmd *cobra.Command) config.TravelTimeConfig {
	tt := cfg.TravelTime
	if v, _ := cmd.Flags().GetString("travel-type"); v != "" {
		tt.TravelType = v
	}
	if v, _ := cmd.Flags().GetInt("minutes"); v > 0 {
		tt.TravelMinutes = v
	}
	return tt
}

// newIsochroneClient builds a TravelTime client backed by the store's
// isochrone cache. TravelTime credentials are required.
func newIsochroneClient(st store.Store) (*isochrone.Client, error) {
	if cfg.TravelTime.AppID == "" || cfg.TravelTime.APIKey == "" {
		return nil, eris.New("traveltime credentials are required (BALLOTBOX_TRAVELTIME_APP_ID, BALLOTBOX_TRAVELTIME_API_KEY)")
	}
	return isochrone.NewClient(cfg.TravelTime.AppID, cfg.TravelTime.APIKey,
		isochrone.WithCache(st),
		isochrone.WithMaxRetries(cfg.TravelTime.MaxRetries),
	), nil
}
