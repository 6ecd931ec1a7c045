package disasterboard

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

// boardConfig holds mutable state during Board construction.
type boardConfig struct {
	apiURL         string
	requestTimeout time.Duration
	title          string
	port           int
	logger         *slog.Logger
	views          []View
	disabled       map[string]bool
	retryDelay     time.Duration
	location       *Location
	locator        Locator
	geocoder       Geocoder
	nominatimURL   string
	geocodeCache   int
	kafkaBrokers   []string
	kafkaTopic     string
	clock          clockwork.Clock
	stateCallbacks []func(ViewState)
}

// Option is a function that configures a [Board] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*boardConfig) error

// WithAPIURL sets the base URL of the disaster REST API, including the
// /api prefix. Defaults to http://localhost:5000/api.
//
// Example:
//
//	b, err := disasterboard.New(
//	    disasterboard.WithAPIURL("https://disasters.example.com/api"),
//	)
//
// The URL itself is validated by [New].
func WithAPIURL(url string) Option {
	return func(cfg *boardConfig) error {
		if strings.TrimSpace(url) == "" {
			return errors.New("API URL cannot be empty")
		}
		cfg.apiURL = url
		return nil
	}
}

// WithRequestTimeout bounds every individual API request. Defaults to 10
// seconds.
//
// Returns an error if the duration is zero or negative.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *boardConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Board instance.
//
// If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	b, err := disasterboard.New(disasterboard.WithLogger(logger))
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *boardConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "Disaster Dashboard".
func WithTitle(title string) Option {
	return func(cfg *boardConfig) error {
		cfg.title = title
		return nil
	}
}

// WithViewInterval overrides the polling interval of a built-in view.
// Zero makes the view fetch only when mounted and on refresh.
//
// Example:
//
//	b, err := disasterboard.New(
//	    disasterboard.WithViewInterval(disasterboard.ViewAlerts, 2*time.Minute),
//	)
//
// Returns an error for an unknown view or a negative interval.
func WithViewInterval(name string, d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d < 0 {
			return fmt.Errorf("view %q: interval cannot be negative", name)
		}
		i, err := findView(cfg.views, name)
		if err != nil {
			return err
		}
		cfg.views[i].interval = d
		return nil
	}
}

// WithViewRetries overrides the retry budget of a built-in view. Zero
// disables retries; the view then waits for its next regular cycle.
//
// Returns an error for an unknown view or a negative count.
func WithViewRetries(name string, n int) Option {
	return func(cfg *boardConfig) error {
		if n < 0 {
			return fmt.Errorf("view %q: max retries cannot be negative", name)
		}
		i, err := findView(cfg.views, name)
		if err != nil {
			return err
		}
		cfg.views[i].maxRetries = n
		return nil
	}
}

// WithoutView disables a built-in view. A disabled view is never polled
// and does not appear in the API.
func WithoutView(name string) Option {
	return func(cfg *boardConfig) error {
		if _, err := findView(cfg.views, name); err != nil {
			return err
		}
		cfg.disabled[name] = true
		return nil
	}
}

// WithRetryDelay sets the delay before the first retry of a failed cycle.
// Later retries wait linearly longer: 2x, 3x, ... Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithRetryDelay(d time.Duration) Option {
	return func(cfg *boardConfig) error {
		if d <= 0 {
			return errors.New("retry delay must be positive")
		}
		cfg.retryDelay = d
		return nil
	}
}

// WithLocation selects the initial location. Location-dependent views
// (map, news, social) mount as soon as the board starts.
//
// Returns an error if the coordinates are out of range.
func WithLocation(loc Location) Option {
	return func(cfg *boardConfig) error {
		if err := validateLocation(loc); err != nil {
			return err
		}
		cfg.location = &loc
		return nil
	}
}

// WithLocator sets the device position provider used by [Board.Locate].
// When no location is selected with [WithLocation], the board locates
// itself on start.
func WithLocator(l Locator) Option {
	return func(cfg *boardConfig) error {
		if l == nil {
			return errors.New("locator cannot be nil")
		}
		cfg.locator = l
		return nil
	}
}

// WithGeocoder sets the reverse geocoder that turns located coordinates
// into an address. It takes precedence over [WithNominatim].
func WithGeocoder(g Geocoder) Option {
	return func(cfg *boardConfig) error {
		if g == nil {
			return errors.New("geocoder cannot be nil")
		}
		cfg.geocoder = g
		return nil
	}
}

// WithNominatim reverse-geocodes with the Nominatim service at baseURL
// (empty for the public OpenStreetMap instance), caching up to cacheSize
// addresses. A cacheSize of zero uses the default size.
func WithNominatim(baseURL string, cacheSize int) Option {
	return func(cfg *boardConfig) error {
		if cacheSize < 0 {
			return errors.New("geocode cache size cannot be negative")
		}
		cfg.nominatimURL = baseURL
		if cfg.nominatimURL == "" {
			cfg.nominatimURL = defaultNominatimURL
		}
		cfg.geocodeCache = cacheSize
		return nil
	}
}

// WithKafka forwards every newly seen disaster alert to a Kafka topic.
// Forwarding is best effort: write failures are logged and never affect
// polling.
//
// Example:
//
//	b, err := disasterboard.New(
//	    disasterboard.WithKafka([]string{"localhost:9092"}, "disaster-alerts"),
//	)
func WithKafka(brokers []string, topic string) Option {
	return func(cfg *boardConfig) error {
		if len(brokers) == 0 {
			return errors.New("kafka: at least one broker is required")
		}
		if strings.TrimSpace(topic) == "" {
			return errors.New("kafka: topic cannot be empty")
		}
		cfg.kafkaBrokers = append([]string(nil), brokers...)
		cfg.kafkaTopic = topic
		return nil
	}
}

// WithClock sets the clock that drives polling timers and timestamps.
// Intended for tests; defaults to the real clock.
func WithClock(clock clockwork.Clock) Option {
	return func(cfg *boardConfig) error {
		if clock == nil {
			return errors.New("clock cannot be nil")
		}
		cfg.clock = clock
		return nil
	}
}

// WithStateCallback registers a function to be called on every view
// state transition.
//
// Multiple callbacks may be registered by calling WithStateCallback multiple
// times; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They run on the transitioning
// view's polling goroutine, so a blocking callback delays that view's next
// cycle. Callbacks of different views may run concurrently.
//
// Panics within callbacks are recovered and logged; they do not stop polling.
//
// Example:
//
//	b, err := disasterboard.New(
//	    disasterboard.WithStateCallback(func(s disasterboard.ViewState) {
//	        if !s.IsConnected {
//	            log.Printf("%s disconnected: %s", s.View, s.LastError)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithStateCallback(cb func(ViewState)) Option {
	return func(cfg *boardConfig) error {
		if cb == nil {
			return nil
		}
		cfg.stateCallbacks = append(cfg.stateCallbacks, cb)
		return nil
	}
}

func validateLocation(loc Location) error {
	if loc.Latitude < -90 || loc.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", loc.Latitude)
	}
	if loc.Longitude < -180 || loc.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", loc.Longitude)
	}
	return nil
}
