// Package feed provides the news and social media sources. There is no real
// upstream for either yet, so both return fixed sample content after a short
// artificial delay, stamped relative to the current time.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// Artificial response delays.
const (
	NewsDelay   = 1000 * time.Millisecond
	SocialDelay = 800 * time.Millisecond
)

// NewsArticle is a news headline about the selected location.
type NewsArticle struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Location  string    `json:"location"`
}

// Key returns the article ID.
func (a NewsArticle) Key() string { return a.ID }

// Engagement counts reactions to a social post.
type Engagement struct {
	Likes    int `json:"likes"`
	Shares   int `json:"shares"`
	Comments int `json:"comments"`
}

// SocialPost is a social media post about the selected location.
type SocialPost struct {
	ID         string     `json:"id"`
	Platform   string     `json:"platform"`
	Username   string     `json:"username"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
	Verified   bool       `json:"verified"`
	Engagement Engagement `json:"engagement"`
}

// Key returns the post ID.
func (p SocialPost) Key() string { return p.ID }

// NewsSource serves sample news articles.
type NewsSource struct {
	clock clockwork.Clock
}

// NewNewsSource creates a news source on clock; nil selects the real clock.
func NewNewsSource(clock clockwork.Clock) *NewsSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NewsSource{clock: clock}
}

// Fetch waits [NewsDelay] and returns three articles for address, 2, 4 and 6
// hours old.
func (s *NewsSource) Fetch(ctx context.Context, address string) ([]NewsArticle, error) {
	if err := sleep(ctx, s.clock, NewsDelay); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	return []NewsArticle{
		{
			ID:        "news-1",
			Title:     "Emergency Response Teams Deployed to Flood-Affected Areas",
			Summary:   "Local authorities have mobilized emergency response teams following recent flooding in the region.",
			URL:       "#",
			Source:    "Emergency News",
			Timestamp: now.Add(-2 * time.Hour),
			Location:  address,
		},
		{
			ID:        "news-2",
			Title:     "Weather Alert: Heavy Rainfall Expected",
			Summary:   "Meteorological department issues warning for heavy rainfall in the next 24 hours.",
			URL:       "#",
			Source:    "Weather Service",
			Timestamp: now.Add(-4 * time.Hour),
			Location:  address,
		},
		{
			ID:        "news-3",
			Title:     "Disaster Preparedness Workshop Scheduled",
			Summary:   "Community disaster preparedness workshop to be held this weekend.",
			URL:       "#",
			Source:    "Community News",
			Timestamp: now.Add(-6 * time.Hour),
			Location:  address,
		},
	}, nil
}

// SocialSource serves sample social media posts.
type SocialSource struct {
	clock clockwork.Clock
}

// NewSocialSource creates a social source on clock; nil selects the real
// clock.
func NewSocialSource(clock clockwork.Clock) *SocialSource {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SocialSource{clock: clock}
}

// Fetch waits [SocialDelay] and returns three posts, 30 minutes, 1 hour and
// 2 hours old. The first mentions address.
func (s *SocialSource) Fetch(ctx context.Context, address string) ([]SocialPost, error) {
	if err := sleep(ctx, s.clock, SocialDelay); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	return []SocialPost{
		{
			ID:         "social-1",
			Platform:   "Twitter",
			Username:   "@EmergencyAlert",
			Content:    fmt.Sprintf("🚨 ALERT: Monitoring weather conditions in %s. Stay safe and follow official guidelines.", address),
			Timestamp:  now.Add(-30 * time.Minute),
			Verified:   true,
			Engagement: Engagement{Likes: 45, Shares: 23, Comments: 12},
		},
		{
			ID:         "social-2",
			Platform:   "Facebook",
			Username:   "Local Emergency Services",
			Content:    "Emergency shelters are available for those affected by recent weather conditions. Contact us for assistance.",
			Timestamp:  now.Add(-1 * time.Hour),
			Verified:   true,
			Engagement: Engagement{Likes: 78, Shares: 34, Comments: 19},
		},
		{
			ID:         "social-3",
			Platform:   "Twitter",
			Username:   "@WeatherUpdate",
			Content:    "Current conditions show improvement, but residents should remain cautious. Updates every hour.",
			Timestamp:  now.Add(-2 * time.Hour),
			Verified:   false,
			Engagement: Engagement{Likes: 23, Shares: 8, Comments: 5},
		},
	}, nil
}

func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
