package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/store"
	"github.com/usdigitalresponse/ballot-box-analysis/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode pending voter addresses",
	Long: `Geocodes voter buildings that have no coordinates yet, in batches.
The Census batch geocoder is primary; Google is the fallback for unmatched
addresses when an API key is configured. Results are cached so re-runs only
touch addresses no provider has seen.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		countyFlag, _ := cmd.Flags().GetString("county")
		county, err := countyKey(countyFlag)
		if err != nil {
			return err
		}
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		if batchSize <= 0 {
			batchSize = cfg.Geocode.BatchSize
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		client := newGeocodeClient(st)
		log := zap.L().With(zap.String("command", "geocode"), zap.String("county", county))

		var total, matched int
		for {
			pending, err := st.ListPendingGeocodes(ctx, county, batchSize)
			if err != nil {
				return eris.Wrap(err, "geocode: list pending")
			}
			if len(pending) == 0 {
				break
			}

			addrs := make([]geocode.AddressInput, len(pending))
			for i, p := range pending {
				addrs[i] = geocode.AddressInput{
					ID:      p.BuildingID,
					Street:  p.Street,
					City:    p.City,
					State:   p.State,
					ZipCode: p.ZipCode,
				}
			}

			results, err := client.BatchGeocode(ctx, addrs)
			if err != nil {
				return eris.Wrap(err, "geocode: batch")
			}

			var updated int
			for i, r := range results {
				total++
				if !r.Matched {
					continue
				}
				if err := st.UpdateGeocode(ctx, addrs[i].ID, r.Latitude, r.Longitude, r.Source, r.Quality); err != nil {
					return eris.Wrap(err, "geocode: update")
				}
				matched++
				updated++
			}

			log.Info("batch geocoded",
				zap.Int("batch", len(pending)),
				zap.Int("matched", updated),
			)

			// Unmatched buildings stay pending. A pass with zero updates
			// means every remaining building has already been attempted.
			if updated == 0 {
				break
			}
		}

		stats, err := st.VoterStats(ctx, county)
		if err != nil {
			return eris.Wrap(err, "geocode: stats")
		}

		fmt.Printf("Geocoded %d of %d attempted buildings\n", matched, total)
		fmt.Printf("County %s: %d voters, %d buildings, %d geocoded\n",
			county, stats.Voters, stats.Buildings, stats.Geocoded)
		return nil
	},
}

var geocodePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete expired geocode cache entries",
	Long: `Removes cached geocode results past their TTL, including negative
entries for addresses no provider could match. Pruned addresses will be
retried by the next geocode run.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		deleted, err := st.DeleteExpiredGeocodes(ctx)
		if err != nil {
			return eris.Wrap(err, "geocode: prune cache")
		}
		fmt.Printf("Pruned %d expired geocode cache entries\n", deleted)
		return nil
	},
}

func init() {
	geocodeCmd.Flags().String("county", "", `county reference, e.g. "King, WA" (required)`)
	geocodeCmd.Flags().Int("batch-size", 0, "addresses per Census batch (default: from config or 500)")
	_ = geocodeCmd.MarkFlagRequired("county")
	geocodeCmd.AddCommand(geocodePruneCmd)
	rootCmd.AddCommand(geocodeCmd)
}

// newGeocodeClient builds the geocoding cascade from config, backed by the
// store's result cache unless caching is disabled.
func newGeocodeClient(st store.Store) geocode.Client {
	opts := []geocode.Option{
		geocode.WithRateLimit(cfg.Geocode.RateLimit),
		geocode.WithConcurrency(cfg.Geocode.Concurrency),
	}
	if cfg.Geocode.GoogleAPIKey != "" {
		opts = append(opts, geocode.WithGoogleAPIKey(cfg.Geocode.GoogleAPIKey))
	}
	if !cfg.Geocode.DisableCache {
		ttl := time.Duration(cfg.Geocode.CacheTTLDays) * 24 * time.Hour
		opts = append(opts, geocode.WithCache(store.NewGeocodeCache(st), ttl))
	}
	return geocode.NewClient(opts...)
}
