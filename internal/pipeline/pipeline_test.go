package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/infblueocean/newsriver/internal/config"
	"github.com/infblueocean/newsriver/internal/enrich"
	"github.com/infblueocean/newsriver/internal/fetch"
	"github.com/infblueocean/newsriver/internal/images"
	"github.com/infblueocean/newsriver/internal/model"
	"github.com/infblueocean/newsriver/internal/normalize"
	"github.com/infblueocean/newsriver/internal/resolve"
	"github.com/infblueocean/newsriver/internal/store"
)

type passthroughTransformer struct{}

func (passthroughTransformer) ResizeAndPad(data []byte, width, height, maxSize, quality int) ([]byte, error) {
	return data, nil
}

func rssFeed(base string, published time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example Feed</title><link>%[1]s</link>
<item>
  <title>First headline of the day</title>
  <link>%[1]s/story1</link>
  <pubDate>%[2]s</pubDate>
  <description><![CDATA[First story text. <img src="%[1]s/img/photo1.png">]]></description>
</item>
<item>
  <title>Second headline arrives later</title>
  <link>%[1]s/story2</link>
  <pubDate>%[3]s</pubDate>
  <description>Second story text with no picture.</description>
</item>
</channel></rss>`,
		base,
		published.Format(time.RFC1123Z),
		published.Add(30*time.Minute).Format(time.RFC1123Z))
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// newTestWorld spins up one server that plays every external role:
// feed host, article host, image CDN, popularity service, classifier.
func newTestWorld(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	published := time.Now().UTC().Add(-2 * time.Hour)
	classifyCalls := 0

	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/feed.rss", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssFeed(srv.URL, published)))
	})
	mux.HandleFunc("/story1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><head></head><body>story one</body></html>"))
	})
	mux.HandleFunc("/story2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><meta property="og:image" content="` +
			srv.URL + `/img/photo2.png"></head><body>story two</body></html>`))
	})
	mux.HandleFunc("/img/photo1.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(testPNG(t, 500, 500))
	})
	mux.HandleFunc("/img/photo2.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(testPNG(t, 500, 500))
	})
	mux.HandleFunc("/pop", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") == srv.URL+"/story1" {
			w.Write([]byte(`{"popularity":{"popularity":{"clicks":50}}}`))
			return
		}
		w.Write([]byte(`{"popularity":{"popularity":{"clicks":10}}}`))
	})
	mux.HandleFunc("/classify", func(w http.ResponseWriter, r *http.Request) {
		classifyCalls++
		w.Write([]byte(`{"results":[{"categories":[{"name":"Business","confidence":0.95}]}]}`))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &classifyCalls
}

func newTestPipeline(t *testing.T, srv *httptest.Server, locale config.Locale) (*Pipeline, string, *store.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Concurrency = 2
	cfg.ThreadPoolSize = 4
	cfg.NoUpload = true
	feedDir := t.TempDir()

	db, err := store.Open(":memory:", 1)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client := srv.Client()
	fetcher := fetch.NewFetcher(client, cfg.MaxContentSize, cfg.DefaultHeaders, nil)

	publishers := map[string]model.PublisherFeed{
		srv.URL + "/feed.rss": {
			PublisherID:   "pub1",
			PublisherName: "Example News",
			FeedURL:       srv.URL + "/feed.rss",
			SiteURL:       srv.URL,
			Category:      "Top News",
			ContentType:   model.ContentTypeArticle,
			Channels:      []string{"Weather"},
			MaxEntries:    20,
			Enabled:       true,
		},
	}

	stages := Stages{
		Fetcher:    fetcher,
		Parser:     fetch.NewParser(nil),
		Normalizer: normalize.New(cfg.ExtraBadWords),
		Resolver:   resolve.New(client, nil, locale.Name),
		Popularity: enrich.NewPopularityScorer(fetcher, srv.URL+"/pop?url=", 1<<20,
			cfg.PopScoreCutoff, cfg.PopScoreExponent),
		Classifier: enrich.NewChannelClassifier(client, enrich.ClassifierConfig{
			APIURL:              srv.URL + "/classify",
			APIToken:            "secret",
			DefaultChannels:     cfg.DefaultChannels,
			AugmentChannels:     cfg.AugmentChannels,
			ExcludedChannels:    cfg.ExcludedChannels,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			MinClassifiableText: cfg.MinClassifiableTextLen,
			Tier2: enrich.BuildTaxonomy(map[string][]string{
				"Economy": {"Business", "Economics"},
			}, nil),
			Tier1: enrich.BuildTaxonomy(map[string][]string{
				"Business": {"Economy"},
			}, nil),
		}),
		ImageFetcher: images.NewFetcher(client, 0),
		Scraper:      images.NewScraper(client),
		ImageProcessor: images.NewProcessor(images.ProcessorConfig{
			CacheDir:    t.TempDir(),
			PCDNBase:    "https://pcdn.example.com",
			StorePrefix: "cache/",
			Transformer: passthroughTransformer{},
			NoUpload:    true,
		}),
	}

	sink := NewSink(feedDir, db, nil, true)
	return New(cfg, locale, publishers, stages, nil, sink), feedDir, db
}

func TestRunEndToEnd(t *testing.T) {
	srv, classifyCalls := newTestWorld(t)
	locale := config.Locale{
		Name:       "en_US",
		Enrichment: config.EnrichmentPolicy{Popularity: true, Classification: true},
	}
	p, feedDir, db := newTestPipeline(t, srv, locale)

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Articles != 2 {
		t.Fatalf("report.Articles = %d, want 2", report.Articles)
	}
	if stat := report.FeedStats[srv.URL+"/feed.rss"]; stat == nil || stat.SizeAfterGet != 2 {
		t.Errorf("feed stat = %+v, want size_after_get 2", stat)
	}

	data, err := os.ReadFile(filepath.Join(feedDir, "en_US.json"))
	if err != nil {
		t.Fatalf("feed file missing: %v", err)
	}
	var articles []*model.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		t.Fatal(err)
	}
	if len(articles) != 2 {
		t.Fatalf("len(articles) = %d, want 2", len(articles))
	}

	// Newest first.
	if articles[0].Title != "Second headline arrives later" {
		t.Errorf("articles[0].Title = %q, want the newer story first", articles[0].Title)
	}

	for i, a := range articles {
		if a.URLHash == "" || a.URL == "" {
			t.Errorf("articles[%d] missing resolved URL or hash", i)
		}
		if a.PopScore < 1.0 {
			t.Errorf("articles[%d].PopScore = %v, below the floor", i, a.PopScore)
		}
		if a.Score == 0 {
			t.Errorf("articles[%d].Score = 0, want ranked", i)
		}
		if len(a.Channels) != 1 || a.Channels[0] != "Business" {
			t.Errorf("articles[%d].Channels = %v, want replaced by prediction", i, a.Channels)
		}
	}

	// The two raw pop scores differ, so min-max puts one at the floor
	// and one at the top of the range.
	scores := []float64{articles[0].PopScore, articles[1].PopScore}
	if !(scores[0] == 1.0 && scores[1] == 100.0) && !(scores[0] == 100.0 && scores[1] == 1.0) {
		t.Errorf("PopScores = %v, want {1, 100}", scores)
	}

	// Story 1 had a feed image, story 2 got one from page metadata.
	for i, a := range articles {
		if a.ImageURL == "" {
			t.Errorf("articles[%d].ImageURL empty", i)
		}
		if a.PaddedImageURL != a.ImageURL {
			t.Errorf("articles[%d].PaddedImageURL = %q, want passthrough of %q",
				i, a.PaddedImageURL, a.ImageURL)
		}
	}

	if *classifyCalls != 2 {
		t.Errorf("classifier calls = %d, want 2", *classifyCalls)
	}

	// Taxonomy-mapped channels land in the store next to each article.
	for i, a := range articles {
		chs, err := db.ArticleChannels(context.Background(), a.URLHash, "en_US")
		if err != nil {
			t.Fatalf("ArticleChannels failed: %v", err)
		}
		if len(chs) != 2 || chs[0] != "Business" || chs[1] != "Economy" {
			t.Errorf("articles[%d] stored channels = %v, want [Business Economy]", i, chs)
		}
	}

	if _, err := os.Stat(filepath.Join(feedDir, "report.en_US.json")); err != nil {
		t.Errorf("report file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(feedDir, "en_US", "top_news.json")); err != nil {
		t.Errorf("category shard missing: %v", err)
	}
}

func TestRunEnrichmentPolicyDisabled(t *testing.T) {
	srv, classifyCalls := newTestWorld(t)
	locale := config.Locale{Name: "en_CA"} // both enrichers off
	p, feedDir, _ := newTestPipeline(t, srv, locale)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(feedDir, "en_CA.json"))
	if err != nil {
		t.Fatal(err)
	}
	var articles []*model.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		t.Fatal(err)
	}

	for i, a := range articles {
		if a.PopScore != 1.0 {
			t.Errorf("articles[%d].PopScore = %v, want neutral 1.0", i, a.PopScore)
		}
		if len(a.Channels) != 1 || a.Channels[0] != "Weather" {
			t.Errorf("articles[%d].Channels = %v, want publisher channels kept", i, a.Channels)
		}
	}
	if *classifyCalls != 0 {
		t.Errorf("classifier calls = %d, want 0", *classifyCalls)
	}
}

func TestRunRecordsFeedErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Concurrency = 2
	cfg.ThreadPoolSize = 2
	publishers := map[string]model.PublisherFeed{
		srv.URL + "/feed.rss": {PublisherID: "pub1", FeedURL: srv.URL + "/feed.rss", MaxEntries: 20, Enabled: true},
	}

	client := srv.Client()
	fetcher := fetch.NewFetcher(client, cfg.MaxContentSize, cfg.DefaultHeaders, nil)
	stages := Stages{
		Fetcher:      fetcher,
		Parser:       fetch.NewParser(nil),
		Normalizer:   normalize.New(nil),
		Resolver:     resolve.New(client, nil, "en_US"),
		ImageFetcher: images.NewFetcher(client, 0),
		Scraper:      images.NewScraper(client),
		ImageProcessor: images.NewProcessor(images.ProcessorConfig{
			CacheDir:    t.TempDir(),
			Transformer: passthroughTransformer{},
			NoUpload:    true,
		}),
	}
	p := New(cfg, config.Locale{Name: "en_US"}, publishers, stages, nil, NewSink(t.TempDir(), nil, nil, true))

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Articles != 0 {
		t.Errorf("report.Articles = %d, want 0", report.Articles)
	}
	if len(report.FeedErrors) != 1 {
		t.Errorf("FeedErrors = %v, want one failing hostname", report.FeedErrors)
	}
}
