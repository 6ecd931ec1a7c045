package config

import (
	"log/slog"

	"github.com/jpalmerr/disasterboard"
	"github.com/jpalmerr/disasterboard/internal/location"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The logger, when non-nil, is passed through with [disasterboard.WithLogger].
// View overrides keep the order of the file.
func BuildOptions(cfg *Config, logger *slog.Logger) []disasterboard.Option {
	var opts []disasterboard.Option

	if logger != nil {
		opts = append(opts, disasterboard.WithLogger(logger))
	}
	if cfg.APIURL != "" {
		opts = append(opts, disasterboard.WithAPIURL(cfg.APIURL))
	}
	if cfg.Title != "" {
		opts = append(opts, disasterboard.WithTitle(cfg.Title))
	}
	if cfg.Port != 0 {
		opts = append(opts, disasterboard.WithPort(cfg.Port))
	}
	if cfg.RequestTimeout != 0 {
		opts = append(opts, disasterboard.WithRequestTimeout(cfg.RequestTimeout.Duration()))
	}
	if cfg.Retry.BaseDelay != 0 {
		opts = append(opts, disasterboard.WithRetryDelay(cfg.Retry.BaseDelay.Duration()))
	}

	if cfg.Location != nil {
		opts = append(opts, disasterboard.WithLocation(buildLocation(*cfg.Location)))
	}

	for _, vc := range cfg.Views {
		if vc.Disabled {
			opts = append(opts, disasterboard.WithoutView(vc.Name))
			continue
		}
		if vc.Interval != nil {
			opts = append(opts, disasterboard.WithViewInterval(vc.Name, vc.Interval.Duration()))
		}
		if vc.MaxRetries != nil {
			opts = append(opts, disasterboard.WithViewRetries(vc.Name, *vc.MaxRetries))
		}
	}

	if cfg.Geocoder != nil {
		opts = append(opts, disasterboard.WithNominatim(cfg.Geocoder.URL, cfg.Geocoder.CacheSize))
	}
	if cfg.Kafka != nil {
		opts = append(opts, disasterboard.WithKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic))
	}

	return opts
}

// Build creates a Board from cfg.
func Build(cfg *Config, logger *slog.Logger) (*disasterboard.Board, error) {
	return disasterboard.New(BuildOptions(cfg, logger)...)
}

// buildLocation fills in whatever half of the location the file left out.
// An address alone is resolved through the city catalog; coordinates alone
// keep an empty address.
func buildLocation(lc LocationConfig) disasterboard.Location {
	if lc.Latitude != nil {
		return disasterboard.Location{
			Latitude:  *lc.Latitude,
			Longitude: *lc.Longitude,
			Address:   lc.Address,
		}
	}
	pos, _ := location.Geocode(lc.Address)
	return pos
}
