package boundary

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/fetcher"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/store"
)

// LoadOptions configures a TIGER boundary load.
type LoadOptions struct {
	Year        int      // TIGER/Line data year (default 2024)
	States      []string // State abbreviations for per-state products
	Products    []string // Product names; empty = county only
	TempDir     string   // Download directory
	Concurrency int      // Parallel state downloads (default 3)
	Incremental bool     // Skip products already recorded for this year
}

// Loader downloads TIGER archives and loads boundary geometries.
type Loader struct {
	store store.Store
	http  *fetcher.HTTPFetcher
	ftp   *fetcher.FTPFetcher
}

// NewLoader creates a Loader with default HTTP and FTP fetchers.
func NewLoader(s store.Store) *Loader {
	return &Loader{
		store: s,
		http:  fetcher.NewHTTPFetcher(fetcher.HTTPOptions{RateLimiters: fetcher.DefaultRateLimiters()}),
		ftp:   fetcher.NewFTPFetcher(fetcher.FTPOptions{}),
	}
}

// Load downloads and loads the requested TIGER products.
func (l *Loader) Load(ctx context.Context, opts LoadOptions) error {
	if opts.Year == 0 {
		opts.Year = 2024
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.TempDir == "" {
		opts.TempDir = filepath.Join(os.TempDir(), "tiger")
	}

	log := zap.L().With(
		zap.String("component", "boundary.loader"),
		zap.Int("year", opts.Year),
	)

	names := opts.Products
	if len(names) == 0 {
		names = []string{"county"}
	}
	var products []Product
	for _, name := range names {
		p, ok := ProductByName(name)
		if !ok {
			return eris.Errorf("boundary: unknown product %q", name)
		}
		products = append(products, p)
	}

	states := opts.States
	if len(states) == 0 {
		states = AllStateAbbrs()
	}
	for _, abbr := range states {
		if _, ok := FIPSCodes[abbr]; !ok {
			return eris.Errorf("boundary: unknown state %q", abbr)
		}
	}

	for _, p := range products {
		if opts.Incremental {
			loaded, err := l.store.GetBoundaryLoad(ctx, p.Name, opts.Year)
			if err != nil {
				return err
			}
			if loaded != nil {
				log.Debug("product already loaded, skipping", zap.String("product", p.Name))
				continue
			}
		}
		if err := l.loadProduct(ctx, p, states, opts); err != nil {
			return eris.Wrapf(err, "boundary: load product %s", p.Name)
		}
	}

	log.Info("boundary load complete", zap.Int("products", len(products)))
	return nil
}

// loadProduct downloads, parses, and stores one product. Per-state archives
// are fetched in parallel; the product's rows replace prior rows in one pass
// so a partial reload never leaves a mixed year behind.
func (l *Loader) loadProduct(ctx context.Context, p Product, states []string, opts LoadOptions) error {
	log := zap.L().With(
		zap.String("component", "boundary.loader"),
		zap.String("product", p.Name),
	)
	start := time.Now()

	var areas []string
	if p.National {
		areas = []string{""}
	} else {
		for _, abbr := range states {
			areas = append(areas, FIPSCodes[abbr])
		}
	}

	var mu sync.Mutex
	var rows []store.Boundary

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, fips := range areas {
		g.Go(func() error {
			shpPath, err := l.download(gCtx, p, opts.Year, fips, opts.TempDir)
			if err != nil {
				return err
			}
			parsed, err := ParseShapefile(shpPath, p, opts.Year)
			if err != nil {
				return err
			}
			mu.Lock()
			rows = append(rows, parsed...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	n, err := l.store.ReplaceBoundaries(ctx, p.Name, opts.Year, rows)
	if err != nil {
		return err
	}

	if err := l.store.RecordBoundaryLoad(ctx, store.BoundaryLoad{
		Product:     p.Name,
		Year:        opts.Year,
		RecordCount: n,
	}); err != nil {
		log.Warn("failed to record boundary load", zap.Error(err))
	}

	log.Info("product loaded",
		zap.Int("rows", n),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// download fetches a product archive and returns the extracted .shp path.
// The HTTPS host is tried first; the Census FTP mirror is the fallback.
func (l *Loader) download(ctx context.Context, p Product, year int, stateFIPS, tempDir string) (string, error) {
	log := zap.L().With(
		zap.String("component", "boundary.download"),
		zap.String("product", p.Name),
		zap.String("state_fips", stateFIPS),
	)

	destDir := filepath.Join(tempDir, fmt.Sprintf("%d", year), p.Name, stateFIPS)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eris.Wrap(err, "boundary: create dest dir")
	}

	httpURL := DownloadURL(p, year, stateFIPS)
	zipName := httpURL[strings.LastIndex(httpURL, "/")+1:]
	zipPath := filepath.Join(destDir, zipName)

	if info, err := os.Stat(zipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", zipPath))
	} else {
		log.Info("downloading TIGER archive", zap.String("url", httpURL))
		if _, err := l.http.DownloadToFile(ctx, httpURL, zipPath); err != nil {
			mirror := MirrorURL(p, year, stateFIPS)
			log.Warn("https download failed, trying ftp mirror",
				zap.String("mirror", mirror), zap.Error(err))
			if _, ftpErr := l.ftp.DownloadToFile(ctx, mirror, zipPath); ftpErr != nil {
				return "", eris.Wrapf(ftpErr, "boundary: download %s", zipName)
			}
		}
	}

	extractDir := filepath.Join(destDir, strings.TrimSuffix(zipName, ".zip"))
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return "", eris.Wrap(err, "boundary: create extract dir")
	}
	extracted, err := fetcher.ExtractZIP(zipPath, extractDir)
	if err != nil {
		return "", eris.Wrapf(err, "boundary: extract %s", zipName)
	}

	return fetcher.FindByExt(extracted, ".shp")
}

// FindCounty resolves a "County Name, ST" reference against loaded county
// boundaries. Returns the boundary record and the parsed reference.
func (l *Loader) FindCounty(ctx context.Context, ref string) (*store.Boundary, *CountyRef, error) {
	parsed, err := ParseCountyRef(ref)
	if err != nil {
		return nil, nil, err
	}

	b, err := l.store.GetBoundaryByName(ctx, "county", parsed.StateFIPS, parsed.Name)
	if err != nil {
		return nil, nil, err
	}
	if b == nil {
		return nil, nil, &InvalidCountyError{
			Ref:    ref,
			Reason: "no matching county boundary loaded (run the boundary command first)",
		}
	}
	return b, parsed, nil
}
