package disasterboard

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/disasterboard/internal/api"
	"github.com/jpalmerr/disasterboard/internal/feed"
	"github.com/jpalmerr/disasterboard/internal/poller"
)

// mapMarkerLimit caps the disaster markers shown on the map.
const mapMarkerLimit = 10

func toItems[T poller.Item](xs []T) []poller.Item {
	items := make([]poller.Item, len(xs))
	for i, x := range xs {
		items[i] = x
	}
	return items
}

// alertsSource fetches every known disaster, falling back to the GDACS and
// ReliefWeb feeds when the aggregate endpoint fails.
func alertsSource(client *api.Client) poller.Source {
	return poller.SourceFunc(func(ctx context.Context) ([]poller.Item, error) {
		events, err := client.AllDisasters(ctx)
		if err != nil {
			return nil, err
		}
		return toItems(events), nil
	})
}

func statusSource(client *api.Client) poller.Source {
	return poller.SourceFunc(func(ctx context.Context) ([]poller.Item, error) {
		status, err := client.Status(ctx)
		if err != nil {
			return nil, err
		}
		return []poller.Item{status}, nil
	})
}

// mapSource loads the top disasters and the weather at the selected
// location together. Weather is best-effort: a failed lookup is logged and
// the markers are shown without it. An unhealthy backend is only logged,
// the fetches are attempted regardless.
func mapSource(client *api.Client, loc func() Location, logger *slog.Logger) poller.Source {
	return poller.SourceFunc(func(ctx context.Context) ([]poller.Item, error) {
		if !client.ProbeHealth(ctx) {
			logger.Warn("backend API is not responding, loading map data anyway", "view", ViewMap)
		}

		pos := loc()
		var (
			events  []api.DisasterEvent
			weather *api.Weather
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			events, err = client.AllDisasters(gctx)
			return err
		})
		g.Go(func() error {
			w, err := client.Weather(gctx, &pos.Latitude, &pos.Longitude)
			if err != nil {
				if gctx.Err() == nil {
					logger.Warn("weather unavailable, showing disasters only",
						"view", ViewMap, "address", pos.Address, "error", err.Error())
				}
				return nil
			}
			weather = &w
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if len(events) > mapMarkerLimit {
			events = events[:mapMarkerLimit]
		}
		items := toItems(events)
		if weather != nil {
			items = append(items, *weather)
		}
		return items, nil
	})
}

func newsSource(news *feed.NewsSource, loc func() Location) poller.Source {
	return poller.SourceFunc(func(ctx context.Context) ([]poller.Item, error) {
		articles, err := news.Fetch(ctx, loc().Address)
		if err != nil {
			return nil, err
		}
		return toItems(articles), nil
	})
}

func socialSource(social *feed.SocialSource, loc func() Location) poller.Source {
	return poller.SourceFunc(func(ctx context.Context) ([]poller.Item, error) {
		posts, err := social.Fetch(ctx, loc().Address)
		if err != nil {
			return nil, err
		}
		return toItems(posts), nil
	})
}
