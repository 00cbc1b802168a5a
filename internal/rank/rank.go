// Package rank orders the aggregated feed: duplicates collapse by URL
// hash, entries sort newest first, and each entry gets a score that
// trades recency against publisher variety.
package rank

import (
	"math"
	"sort"
	"time"

	"github.com/infblueocean/newsriver/internal/model"
)

// Dedupe collapses articles sharing a URL hash. The last occurrence
// wins, but it keeps the position where the hash first appeared, so
// enriched re-fetches of a story replace the original in place.
func Dedupe(articles []*model.Article) []*model.Article {
	index := make(map[string]int, len(articles))
	out := make([]*model.Article, 0, len(articles))
	for _, a := range articles {
		if i, ok := index[a.URLHash]; ok {
			out[i] = a
			continue
		}
		index[a.URLHash] = len(out)
		out = append(out, a)
	}
	return out
}

// SortByRecency orders articles newest first. The sort is stable so
// same-timestamp articles keep their dedupe order.
func SortByRecency(articles []*model.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].PublishTime.After(articles[j].PublishTime.Time)
	})
}

// ScoreEntries assigns the final rank score in feed order. Recency is
// log(seconds since publish); a publisher's variety multiplier starts
// at 1.0 and doubles with each article, so a source that floods the
// feed pushes its own later entries down the ranking (lower score
// ranks higher).
func ScoreEntries(articles []*model.Article, now time.Time) {
	variety := make(map[string]float64)
	for _, a := range articles {
		secondsAgo := now.UTC().Sub(a.PublishTime.Time).Seconds()
		recency := 0.1
		if secondsAgo > 0 {
			recency = math.Log(secondsAgo)
		}

		v, ok := variety[a.PublisherID]
		if !ok {
			v = 1.0
		}
		a.Score = recency * v
		variety[a.PublisherID] = v * 2.0
	}
}
