package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/boundary"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/store"
)

var boundaryCmd = &cobra.Command{
	Use:   "boundary",
	Short: "Load TIGER/Line boundary shapefiles",
	Long: `Downloads Census TIGER/Line shapefiles and loads their geometries into
the store. County boundaries are required before analyze and map can run.

By default loads the national county product. Use --products for place or
tract, --states to restrict per-state products.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		showStatus, _ := cmd.Flags().GetBool("status")
		if showStatus {
			return printBoundaryStatus(ctx, st)
		}

		statesStr, _ := cmd.Flags().GetString("states")
		productsStr, _ := cmd.Flags().GetString("products")
		year, _ := cmd.Flags().GetInt("year")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		incremental, _ := cmd.Flags().GetBool("incremental")

		opts := boundary.LoadOptions{
			Year:        year,
			TempDir:     cfg.Boundary.TempDir,
			Concurrency: concurrency,
			Incremental: incremental,
		}
		if statesStr != "" {
			opts.States = toUpper(splitAndTrim(statesStr))
		}
		if productsStr != "" {
			opts.Products = splitAndTrim(productsStr)
		}
		if opts.Year == 0 {
			opts.Year = cfg.Boundary.Year
		}

		zap.L().Info("starting boundary load",
			zap.Int("year", opts.Year),
			zap.Strings("states", opts.States),
			zap.Strings("products", opts.Products),
			zap.Bool("incremental", opts.Incremental),
		)

		if err := boundary.NewLoader(st).Load(ctx, opts); err != nil {
			return eris.Wrap(err, "boundary")
		}

		fmt.Println("Boundary load complete")
		return nil
	},
}

func init() {
	boundaryCmd.Flags().String("products", "", "comma-separated product names: county, place, tract (default: county)")
	boundaryCmd.Flags().String("states", "", "comma-separated state abbreviations for per-state products (default: all 50 + DC)")
	boundaryCmd.Flags().Int("year", 0, "TIGER/Line year (default: from config or 2024)")
	boundaryCmd.Flags().Bool("incremental", true, "skip products already loaded for this year")
	boundaryCmd.Flags().Int("concurrency", 3, "parallel state downloads")
	boundaryCmd.Flags().Bool("status", false, "show current boundary load status")
	rootCmd.AddCommand(boundaryCmd)
}

// printBoundaryStatus displays recorded boundary loads.
func printBoundaryStatus(ctx context.Context, st store.Store) error {
	loads, err := st.ListBoundaryLoads(ctx)
	if err != nil {
		return eris.Wrap(err, "boundary: get status")
	}

	if len(loads) == 0 {
		fmt.Println("No boundaries loaded yet")
		return nil
	}

	fmt.Printf("%-10s %-6s %10s %s\n", "Product", "Year", "Records", "Loaded At")
	fmt.Println(strings.Repeat("-", 50))
	for _, l := range loads {
		fmt.Printf("%-10s %-6d %10d %s\n",
			l.Product, l.Year, l.RecordCount, l.LoadedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
