package models

import "time"

// FeedSource is a statically configured RSS/Atom feed belonging to one category.
type FeedSource struct {
	ID       string `json:"id" yaml:"id"`
	URL      string `json:"url" yaml:"url"`
	Name     string `json:"name" yaml:"name"`
	Color    string `json:"color" yaml:"color"`
	Category string `json:"category" yaml:"-"`
}

// FeedItem is a single normalized entry parsed from a feed. Items are never
// mutated after the parser creates them.
type FeedItem struct {
	Title       string    `json:"title"`
	PubDate     time.Time `json:"pubDate"`
	Link        string    `json:"link"`
	GUID        string    `json:"guid"`
	Description string    `json:"description"`
	Content     string    `json:"content,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Source      string    `json:"source"`
	Color       string    `json:"color"`
}

// Key returns the identity used for stream deduplication: link, else guid.
func (i FeedItem) Key() string {
	if i.Link != "" {
		return i.Link
	}
	return i.GUID
}

// CategoryEntry is the cached result of one successful category refresh.
// It is replaced wholesale on every refresh and must be treated as read-only.
type CategoryEntry struct {
	Feeds     map[string][]FeedItem `json:"feeds"`
	Stream    []FeedItem            `json:"stream"`
	FetchedAt time.Time             `json:"fetchedAt"`
}

// FetchResult carries the outcome of a single feed fetch through a channel.
type FetchResult struct {
	FeedID string
	Items  []FeedItem
	Err    error
}

// CategoryFetch is what the orchestrator returns for one category: items for
// every feed that produced at least one item, and one error line per failure.
type CategoryFetch struct {
	Feeds  map[string][]FeedItem
	Errors []string
}

// CacheMeta annotates a response with where its data came from.
type CacheMeta struct {
	Hit       bool   `json:"hit"`
	Age       *int64 `json:"age,omitempty"`
	Refreshed string `json:"refreshed,omitempty"`
	Stale     bool   `json:"stale,omitempty"`
}

// FeedResponse is the body of the category feed endpoint.
type FeedResponse struct {
	Feeds     map[string][]FeedItem `json:"feeds"`
	Stream    []FeedItem            `json:"stream"`
	Errors    []string              `json:"errors,omitempty"`
	Cache     CacheMeta             `json:"_cache"`
	Timestamp time.Time             `json:"timestamp"`
}

// CategoryStatus summarises the cache state of one category.
type CategoryStatus struct {
	Name        string     `json:"name"`
	Feeds       int        `json:"feeds"`
	Cached      bool       `json:"cached"`
	Stale       bool       `json:"stale"`
	AgeSeconds  *int64     `json:"age,omitempty"`
	Items       int        `json:"items"`
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`
}

// Seconds converts a duration into the whole-second pointer used by CacheMeta.
func Seconds(d time.Duration) *int64 {
	s := int64(d / time.Second)
	return &s
}
