// Package disasterboard provides an embeddable disaster-information
// dashboard backed by a disaster REST API.
//
// A [Board] polls the API on behalf of a set of views and keeps the latest
// state of each one: whether it is loading, whether the backend is
// reachable, when it last succeeded and how many retries it has made. The
// state is served as a small web page, a JSON API, a Server-Sent Events
// stream and Prometheus metrics.
//
// # Quick Start
//
//	b, _ := disasterboard.New(
//	    disasterboard.WithAPIURL("http://localhost:5000/api"),
//	    disasterboard.WithLocation(disasterboard.Location{
//	        Latitude: 19.076, Longitude: 72.8777, Address: "Mumbai, Maharashtra",
//	    }),
//	)
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	b.Start(ctx) // blocks until context is cancelled
//
// # Views
//
// Five views are built in:
//
//   - [ViewAlerts]: all disasters every 60s, falling back to the GDACS and
//     ReliefWeb feeds; health-gated with 3 retries at 5s, 10s and 15s
//   - [ViewStatus]: backend counters every 30s; health-gated, no retries
//   - [ViewMap]: top disasters plus weather at the selected location
//   - [ViewNews]: local news every 10 minutes
//   - [ViewSocial]: social media posts every 5 minutes
//
// Map, news and social depend on the location. They start once a location
// is selected, through [WithLocation], [Board.SetLocation], [Board.Locate]
// or the dashboard, and refresh whenever it changes.
//
// Every failure (unreachable backend, error status, malformed payload)
// ends a cycle with empty items and the view marked disconnected. A failed
// cycle is retried while the view's retry budget lasts; afterwards the view
// waits for its next regular cycle. Failures are logged, never raised.
//
// # Configuration
//
// Board uses the functional options pattern for configuration:
//
//	b, err := disasterboard.New(
//	    disasterboard.WithPort(9090),
//	    disasterboard.WithViewInterval(disasterboard.ViewAlerts, 2*time.Minute),
//	    disasterboard.WithViewRetries(disasterboard.ViewStatus, 1),
//	    disasterboard.WithoutView(disasterboard.ViewSocial),
//	    disasterboard.WithKafka([]string{"localhost:9092"}, "disaster-alerts"),
//	)
//
// The config package builds the same options from a YAML file.
//
// # Architecture
//
// Board consists of several internal packages (under internal/):
//
//   - internal/api: REST client with envelope validation and error taxonomy
//   - internal/poller: per-view polling loop, retry policy and state transitions
//   - internal/feed: generated news and social sources
//   - internal/location: emergency contacts, shelters, safety tips and the city catalog
//   - internal/geo: device location and reverse geocoding
//   - internal/sink: forwarding of new alerts to Kafka
//   - internal/store: in-memory view states with pub/sub for real-time updates
//   - internal/server: HTTP server with JSON API and Server-Sent Events
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package disasterboard
