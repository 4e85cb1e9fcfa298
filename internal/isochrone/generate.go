package isochrone

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/usdigitalresponse/ballot-box-analysis/internal/config"
	"github.com/usdigitalresponse/ballot-box-analysis/internal/model"
)

// ForBallotBoxes generates one isochrone per ballot box and returns them
// keyed by box name. Boxes share a single arrival time so the polygons are
// comparable across the county.
func (c *Client) ForBallotBoxes(ctx context.Context, boxes []model.BallotBox, cfg config.TravelTimeConfig, concurrency int) (map[string]*geom.MultiPolygon, error) {
	arrival, err := NextArrival(time.Now(), cfg)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 2
	}

	var mu sync.Mutex
	out := make(map[string]*geom.MultiPolygon, len(boxes))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, box := range boxes {
		g.Go(func() error {
			mp, err := c.TimeMap(gCtx, Request{
				Location:      model.NewLocation(box.Name, box.Lat, box.Lng),
				TravelType:    model.TravelType(cfg.TravelType),
				TravelMinutes: cfg.TravelMinutes,
				Arrival:       arrival,
			})
			if err != nil {
				if errors.Is(err, ErrEmptyResult) {
					zap.L().Warn("no isochrone for ballot box, skipping",
						zap.String("box", box.Name), zap.Error(err))
					return nil
				}
				return err
			}
			mu.Lock()
			out[box.Name] = mp
			mu.Unlock()
			zap.L().Debug("isochrone generated", zap.String("box", box.Name))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
