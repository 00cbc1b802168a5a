// Package pipeline orchestrates one aggregation run for a locale:
// download, parse, normalize, resolve, enrich, image processing,
// scrub, rank, sink. Stages fan out over the worker pools; all feed
// and report bookkeeping happens on the orchestrating goroutine.
package pipeline

import (
	"context"
	"net/url"
	"sort"

	"github.com/google/uuid"

	"github.com/infblueocean/newsriver/internal/config"
	"github.com/infblueocean/newsriver/internal/enrich"
	"github.com/infblueocean/newsriver/internal/fetch"
	"github.com/infblueocean/newsriver/internal/images"
	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/metrics"
	"github.com/infblueocean/newsriver/internal/model"
	"github.com/infblueocean/newsriver/internal/normalize"
	"github.com/infblueocean/newsriver/internal/rank"
	"github.com/infblueocean/newsriver/internal/resolve"
	"github.com/infblueocean/newsriver/internal/sanitize"
	"github.com/infblueocean/newsriver/internal/work"
)

// Stages bundles the per-stage workers the pipeline drives. Popularity
// and Classifier may be nil; the locale's enrichment policy decides
// whether they run at all.
type Stages struct {
	Fetcher    *fetch.Fetcher
	Parser     *fetch.Parser
	Normalizer *normalize.Normalizer
	Resolver   *resolve.Resolver
	Popularity *enrich.PopularityScorer
	Classifier *enrich.ChannelClassifier

	ImageFetcher   *images.Fetcher
	Scraper        *images.Scraper
	ImageProcessor *images.Processor
}

// Pipeline runs aggregation for one locale.
type Pipeline struct {
	cfg        *config.Config
	locale     config.Locale
	publishers map[string]model.PublisherFeed
	stages     Stages
	recorder   *metrics.Recorder
	sink       *Sink

	ioPool  *work.Pool
	cpuPool *work.Pool
}

func New(cfg *config.Config, locale config.Locale, publishers map[string]model.PublisherFeed,
	stages Stages, recorder *metrics.Recorder, sink *Sink) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		locale:     locale,
		publishers: publishers,
		stages:     stages,
		recorder:   recorder,
		sink:       sink,
		ioPool:     work.NewIO(cfg.ThreadPoolSize),
		cpuPool:    work.NewCPU(cfg.Concurrency),
	}
}

// Run executes the full pipeline and returns the run report.
func (p *Pipeline) Run(ctx context.Context) (*model.Report, error) {
	report := model.NewReport(uuid.NewString(), p.locale.Name)

	parsed := p.downloadAndParse(ctx, report)
	raw := p.normalizeFeeds(parsed, report)
	logging.Info("Normalized entries", "locale", p.locale.Name, "articles", len(raw))

	fresh, cached := p.resolveAll(ctx, raw)
	logging.Info("Resolved URLs", "fresh", len(fresh), "cached", len(cached))

	fresh = p.enrichAll(ctx, fresh)
	fresh = p.processImages(ctx, fresh)

	fresh = work.Map(p.cpuPool, fresh, func(a *model.Article) *model.Article {
		return sanitize.Scrub(a)
	})

	final := append(fresh, cached...)
	final = rank.Dedupe(final)
	rank.SortByRecency(final)
	rank.ScoreEntries(final, report.StartedAt)

	report.Finish(len(final))
	if err := p.sink.Write(ctx, p.locale.Name, final, report); err != nil {
		return report, err
	}

	if p.recorder != nil {
		p.recorder.Push("newsriver")
	}
	return report, nil
}

// downloadAndParse fans feed downloads out over the IO pool and
// parsing over the CPU pool. Failed feeds are counted and dropped.
func (p *Pipeline) downloadAndParse(ctx context.Context, report *model.Report) []*fetch.Parsed {
	keys := make([]string, 0, len(p.publishers))
	for feedURL := range p.publishers {
		keys = append(keys, feedURL)
	}
	sort.Strings(keys)
	logging.Info("Downloading feeds", "locale", p.locale.Name, "feeds", len(keys))

	downloads := work.FilterMap(p.ioPool, keys, func(feedURL string) *fetch.Downloaded {
		dl, err := p.stages.Fetcher.Download(ctx, feedURL)
		if err != nil {
			report.FeedError(hostOf(feedURL))
			return nil
		}
		return dl
	})

	parsed := work.FilterMap(p.cpuPool, downloads, func(dl *fetch.Downloaded) *fetch.Parsed {
		out, err := p.stages.Parser.Parse(dl)
		if err != nil {
			report.FeedError(hostOf(dl.Key))
			return nil
		}
		return out
	})

	for _, f := range parsed {
		report.Stat(f.Key).SizeAfterGet = f.SizeAfterGet
	}
	return parsed
}

type feedItem struct {
	item model.RawItem
	pub  model.PublisherFeed
}

// normalizeFeeds caps each feed at the publisher's entry budget and
// runs validation over the CPU pool.
func (p *Pipeline) normalizeFeeds(parsed []*fetch.Parsed, report *model.Report) []*model.Article {
	var pending []feedItem
	for _, f := range parsed {
		pub, ok := p.publishers[f.Key]
		if !ok {
			continue
		}
		items := f.Items
		if len(items) > pub.MaxEntries {
			items = items[:pub.MaxEntries]
		}
		report.Stat(f.Key).SizeAfterInsert = len(items)
		for _, item := range items {
			pending = append(pending, feedItem{item: item, pub: pub})
		}
	}

	return work.FilterMap(p.cpuPool, pending, func(fi feedItem) *model.Article {
		return p.stages.Normalizer.Normalize(fi.item, fi.pub)
	})
}

// resolveAll canonicalizes URLs over the IO pool and splits the
// output into freshly resolved articles and store hits that need no
// further enrichment.
func (p *Pipeline) resolveAll(ctx context.Context, articles []*model.Article) (fresh, cached []*model.Article) {
	results := work.FilterMap(p.ioPool, articles, func(a *model.Article) *resolve.Result {
		return p.stages.Resolver.Resolve(ctx, a)
	})

	for _, r := range results {
		if r.Cached {
			cached = append(cached, r.Article)
		} else {
			fresh = append(fresh, r.Article)
		}
	}
	return fresh, cached
}

// enrichAll applies the locale's enrichment policy: popularity
// scoring with global normalization, then channel classification.
func (p *Pipeline) enrichAll(ctx context.Context, articles []*model.Article) []*model.Article {
	if p.locale.Enrichment.Popularity && p.stages.Popularity != nil {
		articles = work.Map(p.ioPool, articles, func(a *model.Article) *model.Article {
			return p.stages.Popularity.Score(ctx, a)
		})
		enrich.NormalizePopScores(articles, p.cfg.PopScoreRange)
	} else {
		for _, a := range articles {
			a.PopScore = 1.0
		}
	}

	if p.locale.Enrichment.Classification && p.stages.Classifier != nil {
		articles = work.Map(p.ioPool, articles, func(a *model.Article) *model.Article {
			return p.stages.Classifier.Classify(ctx, a)
		})
	}
	return articles
}

// processImages runs the three image stages: download and size gate
// on the IO pool, dimension check on the CPU pool, metadata backfill
// and cache transform back on the IO pool.
func (p *Pipeline) processImages(ctx context.Context, articles []*model.Article) []*model.Article {
	pubByID := make(map[string]model.PublisherFeed, len(p.publishers))
	for _, pub := range p.publishers {
		pubByID[pub.PublisherID] = pub
	}

	fetched := work.Map(p.ioPool, articles, func(a *model.Article) images.Fetched {
		return p.stages.ImageFetcher.Fetch(ctx, a)
	})

	checked := work.Map(p.cpuPool, fetched, func(f images.Fetched) images.Fetched {
		return images.CheckSmall(f, p.cfg.MinImageSize)
	})

	backfilled := work.Map(p.ioPool, checked, func(f images.Fetched) images.Fetched {
		return p.stages.Scraper.Backfill(ctx, f, pubByID[f.Article.PublisherID])
	})

	return work.Map(p.ioPool, backfilled, func(f images.Fetched) *model.Article {
		return p.stages.ImageProcessor.Process(ctx, f)
	})
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
