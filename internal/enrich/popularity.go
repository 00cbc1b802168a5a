// Package enrich adds external signals to articles: a popularity score
// from an engagement-metrics service and channel labels from a text
// classifier. Both degrade to neutral values on failure; enrichment
// never drops an article.
package enrich

import (
	"context"
	"encoding/json"
	"math"

	"github.com/infblueocean/newsriver/internal/fetch"
	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/model"
)

// PopularityScorer queries the engagement-metrics service for raw
// popularity signals and compresses outliers.
type PopularityScorer struct {
	fetcher  *fetch.Fetcher
	endpoint string
	maxBytes int64

	cutoff   float64
	exponent float64
}

// NewPopularityScorer builds a scorer. endpoint is a prefix the
// article URL is appended to. Aggregates above cutoff are compressed
// with the given power-law exponent so a single viral story cannot
// dominate ranking.
func NewPopularityScorer(fetcher *fetch.Fetcher, endpoint string, maxBytes int64, cutoff, exponent float64) *PopularityScorer {
	return &PopularityScorer{
		fetcher:  fetcher,
		endpoint: endpoint,
		maxBytes: maxBytes,
		cutoff:   cutoff,
		exponent: exponent,
	}
}

type popularityResponse struct {
	Popularity struct {
		Popularity map[string]float64 `json:"popularity"`
	} `json:"popularity"`
}

// Score sets the raw popularity score on a copy of the article. Every
// failure path yields the neutral score 1.0.
func (s *PopularityScorer) Score(ctx context.Context, article *model.Article) *model.Article {
	out := article.Clone()
	out.PopScore = s.rawScore(ctx, article.URL)
	return out
}

func (s *PopularityScorer) rawScore(ctx context.Context, articleURL string) float64 {
	body, err := s.fetcher.GetWithMaxSize(ctx, s.endpoint+articleURL, s.maxBytes)
	if err != nil {
		logging.Debug("Popularity lookup failed", "url", articleURL, "err", err)
		return 1.0
	}

	var resp popularityResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		logging.Debug("Popularity response unparseable", "url", articleURL, "err", err)
		return 1.0
	}

	// A well-formed response with no signals means "unknown", not
	// "zero popular": it gets the neutral score like any failure.
	if len(resp.Popularity.Popularity) == 0 {
		return 1.0
	}

	var agg float64
	for _, v := range resp.Popularity.Popularity {
		agg += v
	}
	if agg <= s.cutoff {
		return agg
	}
	return (s.cutoff - 1) + math.Pow(1+agg-s.cutoff, s.exponent)
}

// NormalizePopScores rescales raw scores across the whole run with a
// min-max normalization into [0, scoreRange], clamped to a 1.0 floor.
// When every article carries the same raw score the range is
// degenerate and all scores collapse to 1.0.
func NormalizePopScores(articles []*model.Article, scoreRange float64) {
	if len(articles) == 0 {
		return
	}

	minScore, maxScore := articles[0].PopScore, articles[0].PopScore
	for _, a := range articles[1:] {
		minScore = min(minScore, a.PopScore)
		maxScore = max(maxScore, a.PopScore)
	}

	for _, a := range articles {
		if maxScore == minScore {
			a.PopScore = 1.0
			continue
		}
		normalized := scoreRange * (a.PopScore - minScore) / (maxScore - minScore)
		a.PopScore = max(normalized, 1.0)
	}
}
