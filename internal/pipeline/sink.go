package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/model"
)

// ArticleWriter is the store-side consumer of finished articles.
type ArticleWriter interface {
	UpsertArticle(ctx context.Context, a *model.Article, locale string) error
}

// ObjectUploader pushes finished feed files to the CDN bucket.
type ObjectUploader interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// Sink writes a finished run: the main feed file, per-category
// shards, the run report, plus optional store and CDN output.
type Sink struct {
	feedDir  string
	store    ArticleWriter
	uploader ObjectUploader
	noUpload bool
}

// NewSink builds a sink writing under feedDir. store and uploader may
// be nil.
func NewSink(feedDir string, store ArticleWriter, uploader ObjectUploader, noUpload bool) *Sink {
	return &Sink{feedDir: feedDir, store: store, uploader: uploader, noUpload: noUpload}
}

// Write persists the final article list. The feed file is written to
// a temp name first and renamed so readers never see a partial file.
func (s *Sink) Write(ctx context.Context, locale string, articles []*model.Article, report *model.Report) error {
	if err := os.MkdirAll(s.feedDir, 0o755); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}

	data, err := json.Marshal(articles)
	if err != nil {
		return fmt.Errorf("encode feed: %w", err)
	}

	feedPath := filepath.Join(s.feedDir, locale+".json")
	if err := writeAtomic(feedPath, data); err != nil {
		return err
	}

	if err := s.writeShards(locale, articles); err != nil {
		return err
	}
	if err := s.writeReport(locale, report); err != nil {
		return err
	}

	if s.uploader != nil && !s.noUpload {
		if err := s.uploader.Upload(ctx, "brave-today/"+locale+".json", data); err != nil {
			logging.Error("Feed upload failed", "locale", locale, "error", err)
		}
	}

	if s.store != nil {
		for _, a := range articles {
			if err := s.store.UpsertArticle(ctx, a, locale); err != nil {
				logging.Error("Article upsert failed", "url_hash", a.URLHash, "error", err)
			}
		}
	}
	return nil
}

// writeShards emits one feed file per category so category pages can
// be served without filtering the full feed.
func (s *Sink) writeShards(locale string, articles []*model.Article) error {
	byCategory := make(map[string][]*model.Article)
	for _, a := range articles {
		if a.Category == "" {
			continue
		}
		byCategory[a.Category] = append(byCategory[a.Category], a)
	}

	shardDir := filepath.Join(s.feedDir, locale)
	if len(byCategory) > 0 {
		if err := os.MkdirAll(shardDir, 0o755); err != nil {
			return fmt.Errorf("create shard dir: %w", err)
		}
	}

	var g errgroup.Group
	for category, shard := range byCategory {
		g.Go(func() error {
			data, err := json.Marshal(shard)
			if err != nil {
				return fmt.Errorf("encode shard %s: %w", category, err)
			}
			return writeAtomic(filepath.Join(shardDir, slug(category)+".json"), data)
		})
	}
	return g.Wait()
}

func (s *Sink) writeReport(locale string, report *model.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return writeAtomic(filepath.Join(s.feedDir, "report."+locale+".json"), data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + "-tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func slug(category string) string {
	out := strings.ToLower(category)
	out = strings.ReplaceAll(out, " ", "_")
	out = strings.ReplaceAll(out, "/", "_")
	return out
}
