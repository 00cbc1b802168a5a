package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/joho/godotenv"

	"github.com/infblueocean/newsriver/internal/config"
	"github.com/infblueocean/newsriver/internal/enrich"
	"github.com/infblueocean/newsriver/internal/fetch"
	"github.com/infblueocean/newsriver/internal/images"
	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/metrics"
	"github.com/infblueocean/newsriver/internal/normalize"
	"github.com/infblueocean/newsriver/internal/pipeline"
	"github.com/infblueocean/newsriver/internal/resolve"
	"github.com/infblueocean/newsriver/internal/scheduler"
	"github.com/infblueocean/newsriver/internal/store"
)

func main() {
	configPath := flag.String("config", "newsriver.yaml", "path to config file")
	localeName := flag.String("locale", "", "run only this locale")
	cronMode := flag.Bool("cron", false, "keep running on the configured schedule")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal("Failed to load config", "path", *configPath, "error", err)
	}

	level, err := charmlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = charmlog.InfoLevel
	}
	logging.Init(cfg.LogDir, level)
	defer logging.Close()

	for _, dir := range []string{cfg.OutputPath, cfg.FeedPath, cfg.ImgCachePath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logging.Fatal("Failed to create directory", "path", dir, "error", err)
		}
	}

	db, err := store.Open(cfg.DatabasePath, 0)
	if err != nil {
		logging.Fatal("Failed to open database", "path", cfg.DatabasePath, "error", err)
	}
	defer db.Close()

	recorder := metrics.NewRecorder(cfg.PushgatewayURL)

	var uploader pipeline.ObjectUploader
	var imageStore images.ObjectStore
	if cfg.NoUpload {
		fsStore := store.NewFSObjectStore(cfg.OutputPath)
		uploader, imageStore = fsStore, fsStore
	} else {
		pub, err := store.NewS3ObjectStore(context.Background(), cfg.PubS3Bucket)
		if err != nil {
			logging.Fatal("Failed to init S3", "bucket", cfg.PubS3Bucket, "error", err)
		}
		private, err := store.NewS3ObjectStore(context.Background(), cfg.PrivateS3Bucket)
		if err != nil {
			logging.Fatal("Failed to init S3", "bucket", cfg.PrivateS3Bucket, "error", err)
		}
		uploader, imageStore = pub, private
	}

	locales := cfg.Locales
	if *localeName != "" {
		locales = nil
		for _, loc := range cfg.Locales {
			if loc.Name == *localeName {
				locales = []config.Locale{loc}
			}
		}
		if len(locales) == 0 {
			logging.Fatal("Unknown locale", "locale", *localeName)
		}
	}
	if len(locales) == 0 {
		logging.Fatal("No locales configured")
	}

	runAll := func(ctx context.Context) {
		for _, loc := range locales {
			runLocale(ctx, cfg, loc, db, recorder, uploader, imageStore)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*cronMode {
		runAll(ctx)
		return
	}

	sched := scheduler.New()
	if err := sched.Add(cfg.CronSpec, runAll); err != nil {
		logging.Fatal("Invalid cron spec", "spec", cfg.CronSpec, "error", err)
	}
	sched.Start()
	logging.Info("Scheduler started", "spec", cfg.CronSpec)

	<-ctx.Done()
	logging.Info("Shutting down")
	sched.Stop()
}

func runLocale(ctx context.Context, cfg *config.Config, loc config.Locale,
	db *store.Store, recorder *metrics.Recorder,
	uploader pipeline.ObjectUploader, imageStore images.ObjectStore) {

	publishers, err := config.LoadPublishers(loc.SourcesFile)
	if err != nil {
		logging.Error("Failed to load sources", "locale", loc.Name, "error", err)
		return
	}
	logging.Info("Starting run", "locale", loc.Name, "publishers", len(publishers))

	client := &http.Client{Timeout: cfg.RequestTimeout}
	fetcher := fetch.NewFetcher(client, cfg.MaxContentSize, cfg.DefaultHeaders, recorder)
	if cfg.RequestsPerSecond > 0 {
		fetcher.Throttle(cfg.RequestsPerSecond, cfg.ThreadPoolSize)
	}

	stages := pipeline.Stages{
		Fetcher:      fetcher,
		Parser:       fetch.NewParser(recorder),
		Normalizer:   normalize.New(cfg.ExtraBadWords),
		Resolver:     resolve.New(client, db, loc.Name),
		ImageFetcher: images.NewFetcher(client, images.DefaultMaxImageBytes),
		Scraper:      images.NewScraper(client),
		ImageProcessor: images.NewProcessor(images.ProcessorConfig{
			CacheDir:    cfg.ImgCachePath,
			Store:       imageStore,
			StorePrefix: "brave-today/cache/",
			PCDNBase:    cfg.PCDNURLBase,
			Transformer: images.PadTransformer{},
			NoUpload:    cfg.NoUpload,
		}),
	}
	if loc.Enrichment.Popularity && cfg.PopEndpoint != "" {
		stages.Popularity = enrich.NewPopularityScorer(fetcher, cfg.PopEndpoint,
			cfg.MaxContentSize, cfg.PopScoreCutoff, cfg.PopScoreExponent)
	}
	if loc.Enrichment.Classification && cfg.ClassifyAPIURL != "" {
		tier2, tier1 := enrich.DefaultTaxonomies(cfg.ClassifyVocabulary)
		stages.Classifier = enrich.NewChannelClassifier(client, enrich.ClassifierConfig{
			APIURL:              cfg.ClassifyAPIURL,
			APIToken:            cfg.ClassifyAPIToken,
			DefaultChannels:     cfg.DefaultChannels,
			AugmentChannels:     cfg.AugmentChannels,
			ExcludedChannels:    cfg.ExcludedChannels,
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			MinClassifiableText: cfg.MinClassifiableTextLen,
			Tier2:               tier2,
			Tier1:               tier1,
		})
	}

	sink := pipeline.NewSink(cfg.FeedPath, db, uploader, cfg.NoUpload)
	p := pipeline.New(cfg, loc, publishers, stages, recorder, sink)

	start := time.Now()
	report, err := p.Run(ctx)
	if err != nil {
		logging.Error("Run failed", "locale", loc.Name, "error", err)
		return
	}
	logging.Info("Run finished", "locale", loc.Name,
		"articles", report.Articles,
		"feed_errors", len(report.FeedErrors),
		"took", time.Since(start).Round(time.Millisecond))
}
