// Package sanitize scrubs article free-text fields of any HTML before
// they reach the output feed or the store.
package sanitize

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/infblueocean/newsriver/internal/model"
)

var policy = bluemonday.StrictPolicy()

// Scrub returns a copy of the article with every free-text field
// stripped of markup. URL-bearing and numeric fields are untouched.
func Scrub(article *model.Article) *model.Article {
	out := article.Clone()
	out.Title = clean(out.Title)
	out.Description = clean(out.Description)
	out.Category = clean(out.Category)
	out.PublisherName = clean(out.PublisherName)
	out.OffersCategory = clean(out.OffersCategory)
	for i, ch := range out.Channels {
		out.Channels[i] = clean(ch)
	}
	return out
}

func clean(s string) string {
	scrubbed := policy.Sanitize(s)
	// The sanitizer entity-escapes ampersands even in plain text.
	return strings.ReplaceAll(scrubbed, "&amp;", "&")
}
