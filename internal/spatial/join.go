package spatial

import (
	"context"
	"sort"
	"sync"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
)

// building is a deduplicated geocoded building with its voter total.
type building struct {
	id     string
	lng    float64
	lat    float64
	voters int
}

// JoinOptions configures the spatial join.
type JoinOptions struct {
	Concurrency int
}

// Join tests every geocoded building against every isochrone and rolls the
// result up into a coverage summary. Addresses sharing a building are joined
// once. Voters at ungeocoded addresses count as outside, so shares are always
// over the full roll.
func Join(ctx context.Context, voters []model.VoterAddress, boxes []model.BallotBox, isochrones map[string]*geom.MultiPolygon, opts JoinOptions) (*model.CoverageSummary, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}

	buildings := dedupeBuildings(voters)

	type boxHit struct {
		voters     int
		buildings  int
		distanceKM float64
	}

	var mu sync.Mutex
	summary := &model.CoverageSummary{
		TotalBuildings: len(buildings),
	}
	for _, v := range voters {
		summary.TotalVoters += v.Voters
	}
	perBox := make(map[string]*boxHit, len(boxes))
	for _, b := range boxes {
		perBox[b.Name] = &boxHit{}
	}
	boxByName := make(map[string]model.BallotBox, len(boxes))
	for _, b := range boxes {
		boxByName[b.Name] = b
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, bld := range buildings {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			withinAny := false
			for name, mp := range isochrones {
				if !Contains(mp, bld.lng, bld.lat) {
					continue
				}
				withinAny = true
				box := boxByName[name]
				dist := HaversineKM(bld.lat, bld.lng, box.Lat, box.Lng)
				mu.Lock()
				hit := perBox[name]
				hit.voters += bld.voters
				hit.buildings++
				hit.distanceKM += dist
				mu.Unlock()
			}
			if withinAny {
				mu.Lock()
				summary.WithinVoters += bld.voters
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	geocodedVoters := 0
	for _, bld := range buildings {
		geocodedVoters += bld.voters
	}
	// Shares are over the full roll. A voter whose address never geocoded
	// cannot be shown to be near a box, so they count as outside.
	summary.UngeocodedVoters = summary.TotalVoters - geocodedVoters
	summary.OutsideVoters = summary.TotalVoters - summary.WithinVoters
	if summary.TotalVoters > 0 {
		summary.WithinShare = float64(summary.WithinVoters) / float64(summary.TotalVoters)
		summary.OutsideShare = float64(summary.OutsideVoters) / float64(summary.TotalVoters)
	}

	for name, hit := range perBox {
		bc := model.BoxCoverage{
			Name:      name,
			Voters:    hit.voters,
			Buildings: hit.buildings,
		}
		if hit.buildings > 0 {
			bc.MeanDistanceKM = hit.distanceKM / float64(hit.buildings)
		}
		summary.Boxes = append(summary.Boxes, bc)
	}
	sort.Slice(summary.Boxes, func(i, j int) bool {
		return summary.Boxes[i].Name < summary.Boxes[j].Name
	})

	zap.L().Info("spatial join complete",
		zap.Int("buildings", summary.TotalBuildings),
		zap.Int("within_voters", summary.WithinVoters),
		zap.Int("outside_voters", summary.OutsideVoters),
	)
	return summary, nil
}

// dedupeBuildings collapses unit-level addresses into geocoded buildings,
// summing voter counts across units.
func dedupeBuildings(voters []model.VoterAddress) []building {
	byID := make(map[string]*building)
	var order []string
	for _, v := range voters {
		if !v.Geocoded() {
			continue
		}
		b, ok := byID[v.BuildingID]
		if !ok {
			b = &building{id: v.BuildingID, lng: *v.Lng, lat: *v.Lat}
			byID[v.BuildingID] = b
			order = append(order, v.BuildingID)
		}
		b.voters += v.Voters
	}

	out := make([]building, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}
