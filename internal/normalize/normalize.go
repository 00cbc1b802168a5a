// Package normalize maps raw feed items onto canonical Articles. The
// whole stage is a pure function over (RawItem, PublisherFeed): no
// network, no shared state, every rule unit-testable in isolation.
package normalize

import (
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	goaway "github.com/TwiN/go-away"
	"github.com/araddon/dateparse"

	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/model"
)

// maxArticleAge is the retention window for non-product content.
const maxArticleAge = 60 * 24 * time.Hour

// minImagePathLen rejects image URLs whose path is too short to be a
// real asset (root icons, tracking pixels at /).
const minImagePathLen = 4

// Normalizer validates and converts raw feed items.
type Normalizer struct {
	detector *goaway.ProfanityDetector
	extraBad []string

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Normalizer. extraBadWords extends the stock profanity
// dictionary with publisher-specific terms from config.
func New(extraBadWords []string) *Normalizer {
	lowered := make([]string, 0, len(extraBadWords))
	for _, w := range extraBadWords {
		lowered = append(lowered, strings.ToLower(w))
	}
	return &Normalizer{
		detector: goaway.NewProfanityDetector(),
		extraBad: lowered,
		now:      time.Now,
	}
}

// Normalize produces an Article from one feed entry, or nil when the
// entry fails validation. Rules short-circuit on first failure.
func (n *Normalizer) Normalize(item model.RawItem, pub model.PublisherFeed) *model.Article {
	if item.Title == "" {
		return nil
	}

	title := html.UnescapeString(stripTags(item.Title))
	if n.isProfane(title) {
		logging.Debug("Dropping profane title", "publisher", pub.PublisherID)
		return nil
	}

	link := item.Link
	if link == "" {
		link = item.URL
	}
	if link == "" {
		return nil
	}

	publishTime, ok := n.parseTime(item)
	if !ok {
		return nil
	}

	if pub.ContentType != model.ContentTypeProduct {
		now := n.now().UTC()
		if publishTime.After(now) || publishTime.Before(now.Add(-maxArticleAge)) {
			return nil
		}
	}

	out := &model.Article{
		Title:              title,
		Link:               link,
		PublishTime:        model.NewStamp(publishTime),
		ImageURL:           resolveImage(item, pub),
		Category:           pub.Category,
		ContentType:        pub.ContentType,
		PublisherID:        pub.PublisherID,
		PublisherName:      pub.PublisherName,
		CreativeInstanceID: pub.CreativeInstanceID,
		Channels:           append([]string(nil), pub.Channels...),
	}

	if item.Description != "" {
		out.Description = stripTags(item.Description)
	}
	if pub.ContentType == model.ContentTypeAudio {
		out.Enclosures = append([]model.Enclosure(nil), item.Enclosures...)
	}
	if pub.ContentType == model.ContentTypeProduct {
		out.OffersCategory = item.Category
	}

	return out
}

func (n *Normalizer) isProfane(title string) bool {
	if n.detector.IsProfane(title) {
		return true
	}
	lowered := strings.ToLower(title)
	for _, w := range n.extraBad {
		if strings.Contains(lowered, w) {
			return true
		}
	}
	return false
}

// parseTime resolves the entry timestamp, preferring updated over
// published, normalized to UTC.
func (n *Normalizer) parseTime(item model.RawItem) (time.Time, bool) {
	raw := item.Updated
	if raw == "" {
		raw = item.Published
	}
	if raw == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// resolveImage applies the image precedence chain: explicit image
// field, urlToImage, widest media content, widest media thumbnail,
// first <img> in the summary, first <img> in the content body. Found
// URLs with no host are joined against the publisher site; paths
// shorter than minImagePathLen are treated as placeholders.
func resolveImage(item model.RawItem, pub model.PublisherFeed) string {
	raw := imageFromItem(item)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		logging.Debug("Unparseable image URL", "url", raw, "publisher", pub.PublisherID)
		return ""
	}

	if u.Host == "" {
		base, err := url.Parse(pub.SiteURL)
		if err != nil {
			return ""
		}
		u = base.ResolveReference(u)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}

	if len(u.Path) < minImagePathLen {
		return ""
	}
	return u.String()
}

func imageFromItem(item model.RawItem) string {
	if item.Image != "" {
		return item.Image
	}
	if item.URLToImage != "" {
		return item.URLToImage
	}
	if u := widestMedia(item.MediaContent); u != "" {
		return u
	}
	if u := widestMedia(item.MediaThumbnail); u != "" {
		return u
	}
	if u := firstImgSrc(item.Summary); u != "" {
		return u
	}
	return firstImgSrc(item.ContentHTML)
}

// widestMedia picks the reference with the largest declared width,
// falling back to height, then to the first entry.
func widestMedia(refs []model.MediaRef) string {
	if len(refs) == 0 {
		return ""
	}

	best, bestW := "", -1
	for _, r := range refs {
		if r.Width > bestW {
			best, bestW = r.URL, r.Width
		}
	}
	if bestW > 0 {
		return best
	}

	best, bestH := "", -1
	for _, r := range refs {
		if r.Height > bestH {
			best, bestH = r.URL, r.Height
		}
	}
	if bestH > 0 {
		return best
	}
	return refs[0].URL
}

// firstImgSrc returns the src of the first <img> tag in an HTML
// fragment, or empty.
func firstImgSrc(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return src
}

// stripTags extracts the text content of an HTML fragment.
func stripTags(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(doc.Text())
}
