// Package stream merges per-feed item lists into one time-ordered stream.
package stream

import (
	"sort"

	"github.com/raffaelramalhorosa/econdash/internal/models"
)

// DefaultLimit is the maximum stream length served to clients.
const DefaultLimit = 400

// Build deduplicates items by link (else guid), sorts them newest first and
// truncates to limit. When two items share a key the one encountered later
// wins; feeds are visited in id order so the outcome does not depend on map
// iteration. limit <= 0 means no limit.
func Build(feeds map[string][]models.FeedItem, limit int) []models.FeedItem {
	ids := make([]string, 0, len(feeds))
	total := 0
	for id, items := range feeds {
		ids = append(ids, id)
		total += len(items)
	}
	sort.Strings(ids)

	index := make(map[string]int, total)
	out := make([]models.FeedItem, 0, total)
	for _, id := range ids {
		for _, it := range feeds[id] {
			key := it.Key()
			if pos, seen := index[key]; seen {
				out[pos] = it
				continue
			}
			index[key] = len(out)
			out = append(out, it)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].PubDate.After(out[j].PubDate)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Merge combines several feed maps into one. Feed ids are unique across
// categories, so a later map only overwrites an id it shares with an earlier one.
func Merge(maps ...map[string][]models.FeedItem) map[string][]models.FeedItem {
	n := 0
	for _, m := range maps {
		n += len(m)
	}
	out := make(map[string][]models.FeedItem, n)
	for _, m := range maps {
		for id, items := range m {
			out[id] = items
		}
	}
	return out
}
