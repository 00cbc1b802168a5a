package images

import (
	"context"
	"net/http"

	"github.com/PuerkitoBio/goquery"

	"github.com/infblueocean/newsriver/internal/fetch"
	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/model"
)

// Scraper pulls a lead image out of an article page's metadata when
// the feed entry carried none, or when the publisher prefers
// OpenGraph images over feed images.
type Scraper struct {
	client *http.Client
}

func NewScraper(client *http.Client) *Scraper {
	return &Scraper{client: client}
}

// Backfill fills the article's image from page metadata when the feed
// gave nothing, or when the publisher opts into OpenGraph images. The
// padded image mirrors the plain one until the cache stage replaces it.
func (s *Scraper) Backfill(ctx context.Context, f Fetched, pub model.PublisherFeed) Fetched {
	if f.Article.ImageURL != "" && !pub.OGImages {
		out := f
		out.Article = f.Article.Clone()
		out.Article.PaddedImageURL = out.Article.ImageURL
		return out
	}

	out := f
	out.Article = f.Article.Clone()
	if img := s.scrape(ctx, f.Article.URL); img != "" {
		out.Article.ImageURL = img
	}
	out.Article.PaddedImageURL = out.Article.ImageURL
	return out
}

// scrape fetches the page and reads the usual metadata slots in
// preference order: og:image, twitter:image, link rel=image_src.
func (s *Scraper) scrape(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", fetch.RandomUserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		logging.Debug("Metadata fetch failed", "url", pageURL, "err", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		logging.Debug("Metadata parse failed", "url", pageURL, "err", err)
		return ""
	}

	selectors := []string{
		`meta[property="og:image"]`,
		`meta[name="twitter:image"]`,
		`meta[property="twitter:image"]`,
	}
	for _, sel := range selectors {
		if content, ok := doc.Find(sel).First().Attr("content"); ok && content != "" {
			return content
		}
	}
	if href, ok := doc.Find(`link[rel="image_src"]`).First().Attr("href"); ok {
		return href
	}
	return ""
}
