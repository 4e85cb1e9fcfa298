package main

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/fetcher"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import ballot boxes and voter rolls",
	Long:  "Loads drop-box locations and voter-roll addresses from CSV or XLSX files into the store.",
}

var importBoxesCmd = &cobra.Command{
	Use:   "boxes",
	Short: "Import ballot drop-box locations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("file")
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

		header, rows, err := readTabular(ctx, path)
		if err != nil {
			return eris.Wrap(err, "import boxes")
		}

		idx := fetcher.HeaderIndex(header)
		var boxes []model.BallotBox
		var skipped int
		for _, row := range rows {
			name := fieldAny(row, idx, "name", "location", "boxname")
			lat, latErr := strconv.ParseFloat(fieldAny(row, idx, "lat", "latitude"), 64)
			lng, lngErr := strconv.ParseFloat(fieldAny(row, idx, "lng", "lon", "longitude"), 64)
			if name == "" || latErr != nil || lngErr != nil {
				skipped++
				continue
			}
			boxes = append(boxes, model.BallotBox{
				Name:    name,
				Street:  fieldAny(row, idx, "street", "address"),
				City:    fetcher.Field(row, idx, "city"),
				State:   fetcher.Field(row, idx, "state"),
				ZipCode: fieldAny(row, idx, "zipcode", "zip"),
				Lat:     lat,
				Lng:     lng,
			})
		}
		if skipped > 0 {
			zap.L().Warn("skipped rows without name or coordinates", zap.Int("skipped", skipped))
		}

		n, err := st.UpsertBallotBoxes(ctx, county, boxes)
		if err != nil {
			return eris.Wrap(err, "import boxes")
		}

		zap.L().Info("ballot box import complete",
			zap.String("county", county),
			zap.Int("imported", n),
			zap.String("file", path),
		)
		return nil
	},
}

var importVotersCmd = &cobra.Command{
	Use:   "voters",
	Short: "Import voter-roll addresses",
	Long: `Imports a voter roll from CSV or XLSX. Rows are collapsed to unit-level
addresses: identical street/city/state/zip/unit rows are summed into one
address with its voter count.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("file")
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

		header, rows, err := readTabular(ctx, path)
		if err != nil {
			return eris.Wrap(err, "import voters")
		}

		idx := fetcher.HeaderIndex(header)
		byAddress := make(map[string]*model.VoterAddress)
		var order []string
		var skipped int
		for _, row := range rows {
			street := fieldAny(row, idx, "street", "address", "residenceaddress")
			city := fetcher.Field(row, idx, "city")
			state := fetcher.Field(row, idx, "state")
			zip := fieldAny(row, idx, "zipcode", "zip")
			unit := fieldAny(row, idx, "unit", "apt", "apartment")
			if street == "" || city == "" {
				skipped++
				continue
			}

			voters := 1
			if raw := fieldAny(row, idx, "voters", "votercount", "count"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil || n < 0 {
					skipped++
					continue
				}
				voters = n
			}

			id := model.AddressID(street, city, state, zip, unit)
			if existing, ok := byAddress[id]; ok {
				existing.Voters += voters
				continue
			}
			byAddress[id] = &model.VoterAddress{
				AddressID:  id,
				BuildingID: model.BuildingID(street, city, state, zip),
				Street:     street,
				City:       city,
				State:      state,
				ZipCode:    zip,
				Unit:       unit,
				Voters:     voters,
			}
			order = append(order, id)
		}
		if skipped > 0 {
			zap.L().Warn("skipped malformed voter rows", zap.Int("skipped", skipped))
		}

		addrs := make([]model.VoterAddress, 0, len(order))
		for _, id := range order {
			addrs = append(addrs, *byAddress[id])
		}

		n, err := st.UpsertVoters(ctx, county, addrs)
		if err != nil {
			return eris.Wrap(err, "import voters")
		}

		zap.L().Info("voter import complete",
			zap.String("county", county),
			zap.Int("addresses", n),
			zap.Int("rows", len(rows)),
			zap.String("file", path),
		)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{importBoxesCmd, importVotersCmd} {
		c.Flags().String("file", "", "path to CSV or XLSX file (required)")
		c.Flags().String("county", "", `county reference, e.g. "King, WA" (required)`)
		_ = c.MarkFlagRequired("file")
		_ = c.MarkFlagRequired("county")
	}
	importCmd.AddCommand(importBoxesCmd)
	importCmd.AddCommand(importVotersCmd)
	rootCmd.AddCommand(importCmd)
}

// readTabular reads a CSV or XLSX file into a header row and data rows.
// The format is picked by file extension. A file without a header row is an
// error, never a hang: the fetchers close HeaderCh when processing ends.
func readTabular(ctx context.Context, path string) ([]string, [][]string, error) {
	headerCh := make(chan []string, 1)
	var recordCh <-chan []string
	var errCh <-chan error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		recordCh, errCh = fetcher.StreamXLSX(ctx, path, fetcher.XLSXOptions{
			SkipRows: 1,
			HeaderCh: headerCh,
		})
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, eris.Wrap(err, "open file")
		}
		defer f.Close() //nolint:errcheck

		recordCh, errCh = fetcher.StreamCSV(ctx, f, fetcher.CSVOptions{
			HasHeader: true,
			HeaderCh:  headerCh,
			TrimSpace: true,
		})
	}

	var rows [][]string
	for rec := range recordCh {
		rows = append(rows, rec)
	}
	if err := <-errCh; err != nil {
		return nil, nil, err
	}
	header, ok := <-headerCh
	if !ok {
		return nil, nil, eris.Errorf("%s is empty: no header row", path)
	}
	return header, rows, nil
}

// fieldAny returns the first non-empty value among the named columns.
func fieldAny(row []string, idx map[string]int, names ...string) string {
	for _, name := range names {
		if v := fetcher.Field(row, idx, name); v != "" {
			return v
		}
	}
	return ""
}
