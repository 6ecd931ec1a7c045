package disasterboard

import (
	"fmt"
	"slices"
	"time"
)

// Built-in view names.
const (
	ViewAlerts = "alerts"
	ViewStatus = "status"
	ViewMap    = "map"
	ViewNews   = "news"
	ViewSocial = "social"
)

// View is the polling configuration of one dashboard view.
//
// View is immutable; use the getters to read its fields. Views are
// configured through [WithViewInterval], [WithViewRetries] and
// [WithoutView] rather than constructed directly.
type View struct {
	name            string
	interval        time.Duration
	maxRetries      int
	healthGated     bool
	followsLocation bool
}

// Name returns the view name.
func (v View) Name() string {
	return v.name
}

// Interval returns the time between regular fetch cycles. Zero means the
// view fetches when mounted and on refresh only.
func (v View) Interval() time.Duration {
	return v.interval
}

// MaxRetries returns the retry budget after a failed cycle.
func (v View) MaxRetries() int {
	return v.maxRetries
}

// HealthGated reports whether each cycle probes backend health before
// fetching.
func (v View) HealthGated() bool {
	return v.healthGated
}

// FollowsLocation reports whether the view depends on the selected
// location. Such views mount once a location is selected and refresh
// whenever it changes.
func (v View) FollowsLocation() bool {
	return v.followsLocation
}

// defaultViews returns the dashboard's views in display order.
func defaultViews() []View {
	return []View{
		{name: ViewAlerts, interval: 60 * time.Second, maxRetries: 3, healthGated: true},
		{name: ViewStatus, interval: 30 * time.Second, healthGated: true},
		{name: ViewMap, followsLocation: true},
		{name: ViewNews, interval: 10 * time.Minute, followsLocation: true},
		{name: ViewSocial, interval: 5 * time.Minute, followsLocation: true},
	}
}

// ViewNames returns the names of the built-in views in display order.
func ViewNames() []string {
	views := defaultViews()
	names := make([]string, len(views))
	for i, v := range views {
		names[i] = v.name
	}
	return names
}

// findView returns the index of the view called name.
func findView(views []View, name string) (int, error) {
	i := slices.IndexFunc(views, func(v View) bool { return v.name == name })
	if i < 0 {
		return -1, fmt.Errorf("unknown view %q (known: %v)", name, ViewNames())
	}
	return i, nil
}
