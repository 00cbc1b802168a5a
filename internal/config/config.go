// Package config loads the immutable process configuration. The Config
// struct is constructed once at startup and passed into stage
// constructors; nothing in this package is read after Load returns.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/infblueocean/newsriver/internal/model"
)

// EnrichmentPolicy controls which signal enrichers run for a locale.
// Replaces the old special-casing on the sources file name.
type EnrichmentPolicy struct {
	Popularity     bool `yaml:"popularity"`
	Classification bool `yaml:"classification"`
}

// Locale describes one region/language the pipeline aggregates for.
type Locale struct {
	Name        string           `yaml:"name"`         // e.g. "en_US"
	SourcesFile string           `yaml:"sources_file"` // publisher list JSON
	Enrichment  EnrichmentPolicy `yaml:"enrichment"`
}

// Config is the full aggregator configuration.
type Config struct {
	// Worker pool sizing. The IO pool is oversubscribed on purpose:
	// its tasks block on the network.
	Concurrency    int `yaml:"concurrency"`      // CPU-bound pool size
	ThreadPoolSize int `yaml:"thread_pool_size"` // IO-bound pool size

	RequestTimeout time.Duration     `yaml:"request_timeout"`
	MaxContentSize int64             `yaml:"max_content_size"`
	DefaultHeaders map[string]string `yaml:"default_headers"`

	// RequestsPerSecond throttles outbound HTTP across the IO pool.
	// Zero means no limit.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	OutputPath   string `yaml:"output_path"`
	FeedPath     string `yaml:"feed_path"`
	ImgCachePath string `yaml:"img_cache_path"`
	LogDir       string `yaml:"log_dir"`
	LogLevel     string `yaml:"log_level"`

	NoUpload     bool   `yaml:"no_upload"`
	MinImageSize int    `yaml:"min_image_size"`
	PCDNURLBase  string `yaml:"pcdn_url_base"`

	PrivateS3Bucket string `yaml:"private_s3_bucket"`
	PubS3Bucket     string `yaml:"pub_s3_bucket"`

	// Popularity signal service.
	PopEndpoint      string  `yaml:"pop_endpoint"`
	PopScoreCutoff   float64 `yaml:"pop_score_cutoff"`
	PopScoreExponent float64 `yaml:"pop_score_exponent"`
	PopScoreRange    float64 `yaml:"pop_score_range"`

	// Classification signal service.
	ClassifyAPIURL         string   `yaml:"classify_api_url"`
	ClassifyAPIToken       string   `yaml:"classify_api_token"`
	ClassifyVocabulary     []string `yaml:"classify_vocabulary"` // external label set for taxonomy wildcards
	DefaultChannels        []string `yaml:"default_channels"`
	AugmentChannels        []string `yaml:"augment_channels"`
	ExcludedChannels       []string `yaml:"excluded_channels"`
	ConfidenceThreshold    float64  `yaml:"confidence_threshold"`
	MinClassifiableTextLen int      `yaml:"min_classifiable_text_len"`

	ExtraBadWords []string `yaml:"extra_bad_words"`

	PushgatewayURL string `yaml:"pushgateway_url"`

	DatabasePath string `yaml:"database_path"`
	APIToken     string `yaml:"api_token"`
	APIAddr      string `yaml:"api_addr"`

	CronSpec string   `yaml:"cron_spec"`
	Locales  []Locale `yaml:"locales"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Concurrency:    max(runtime.NumCPU()-1, 1),
		ThreadPoolSize: runtime.NumCPU() * 5,
		RequestTimeout: 30 * time.Second,
		MaxContentSize: 10_000_000,
		DefaultHeaders: map[string]string{"Accept": "*/*"},

		OutputPath:   "output",
		FeedPath:     "output/feed",
		ImgCachePath: "output/feed/cache",
		LogLevel:     "info",

		MinImageSize: 400,
		PCDNURLBase:  "https://pcdn.brave.software",

		PrivateS3Bucket: "brave-private-cdn-development",
		PubS3Bucket:     "brave-today-cdn-development",

		PopScoreCutoff:   300,
		PopScoreExponent: 2.0 / 3.0,
		PopScoreRange:    100,

		DefaultChannels:        []string{"Fun"},
		AugmentChannels:        []string{"Top Sources", "Top News", "World News", "US News", "Culture"},
		ExcludedChannels:       []string{"Crime"},
		ConfidenceThreshold:    0.9,
		MinClassifiableTextLen: 20,

		ExtraBadWords: []string{"vibrators", "hedonistic"},

		DatabasePath: "data/newsriver.db",
		APIAddr:      ":8080",
		CronSpec:     "0 * * * *",
	}
}

// Load reads the YAML config at path (if it exists) over the defaults,
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.ThreadPoolSize <= 0 {
		cfg.ThreadPoolSize = runtime.NumCPU() * 5
	}
	return cfg, nil
}

// LoadPublishers reads a publisher list JSON file keyed by feed URL.
func LoadPublishers(path string) (map[string]model.PublisherFeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}

	var raw []model.PublisherFeed
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}

	out := make(map[string]model.PublisherFeed, len(raw))
	for _, p := range raw {
		if !p.Enabled {
			continue
		}
		if p.MaxEntries <= 0 {
			p.MaxEntries = 20
		}
		out[p.FeedURL] = p
	}
	return out, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("NEWSRIVER_POP_ENDPOINT"); v != "" {
		c.PopEndpoint = v
	}
	if v := os.Getenv("NEWSRIVER_CLASSIFY_API_URL"); v != "" {
		c.ClassifyAPIURL = v
	}
	if v := os.Getenv("NEWSRIVER_CLASSIFY_API_TOKEN"); v != "" {
		c.ClassifyAPIToken = v
	}
	if v := os.Getenv("NEWSRIVER_API_TOKEN"); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv("NEWSRIVER_DB_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("NEWSRIVER_PUSHGATEWAY_URL"); v != "" {
		c.PushgatewayURL = v
	}
	if v := os.Getenv("NEWSRIVER_NO_UPLOAD"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.NoUpload = b
		}
	}
}

