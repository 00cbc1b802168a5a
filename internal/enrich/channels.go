package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/model"
)

// ChannelClassifier sends article text to an external classification
// service and rewrites the article's channel set from the prediction.
type ChannelClassifier struct {
	client   *http.Client
	apiURL   string
	apiToken string

	defaults   map[string]bool
	augment    map[string]bool
	excluded   map[string]bool
	confidence float64
	minTextLen int

	tier2 *Taxonomy
	tier1 *Taxonomy
}

// ClassifierConfig carries the channel policy knobs.
type ClassifierConfig struct {
	APIURL   string
	APIToken string

	// DefaultChannels short-circuit classification: an article already
	// carrying one keeps its channels untouched.
	DefaultChannels []string
	// AugmentChannels survive a prediction instead of being replaced.
	AugmentChannels []string
	// ExcludedChannels are never applied from a prediction.
	ExcludedChannels []string

	ConfidenceThreshold float64
	MinClassifiableText int

	// Tier2/Tier1 map the classifier's vocabulary onto the two-tier
	// channel taxonomy. When nil no external channels are produced.
	Tier2 *Taxonomy
	Tier1 *Taxonomy
}

func NewChannelClassifier(client *http.Client, cfg ClassifierConfig) *ChannelClassifier {
	return &ChannelClassifier{
		client:     client,
		apiURL:     cfg.APIURL,
		apiToken:   cfg.APIToken,
		defaults:   toSet(cfg.DefaultChannels),
		augment:    toSet(cfg.AugmentChannels),
		excluded:   toSet(cfg.ExcludedChannels),
		confidence: cfg.ConfidenceThreshold,
		minTextLen: cfg.MinClassifiableText,
		tier2:      cfg.Tier2,
		tier1:      cfg.Tier1,
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}

type classifyResponse struct {
	Results []struct {
		Categories []Prediction `json:"categories"`
	} `json:"results"`
}

// Classify returns the article with an updated channel set, or the
// article unchanged when classification is skipped or fails. An
// article in a default channel, or with too little text to classify,
// never hits the network. When taxonomies are configured the full
// prediction list is also mapped onto the two channel tiers; those
// external channels are produced even when the top prediction is
// excluded or below the confidence threshold.
func (c *ChannelClassifier) Classify(ctx context.Context, article *model.Article) *model.Article {
	if c.intersectsDefaults(article.Channels) {
		return article
	}
	if len(article.Description)+len(article.Title) < c.minTextLen {
		return article
	}

	preds, ok := c.predict(ctx, article)
	if !ok {
		return article
	}

	out := article.Clone()
	if c.tier2 != nil && c.tier1 != nil {
		tier2s, tier1s := ChannelsForClassification(preds, c.tier2, c.tier1)
		out.ExternalChannels = dedupeSorted(append(tier2s, tier1s...))
	}

	top := preds[0]
	if c.excluded[top.Name] || top.Confidence < c.confidence {
		return out
	}
	if kept := c.augmentIntersection(article.Channels); len(kept) > 0 {
		out.Channels = append([]string{top.Name}, kept...)
	} else {
		out.Channels = []string{top.Name}
	}
	return out
}

func (c *ChannelClassifier) intersectsDefaults(channels []string) bool {
	for _, ch := range channels {
		if c.defaults[ch] {
			return true
		}
	}
	return false
}

func (c *ChannelClassifier) augmentIntersection(channels []string) []string {
	var kept []string
	for _, ch := range channels {
		if c.augment[ch] {
			kept = append(kept, ch)
		}
	}
	return kept
}

// predict posts a single-article batch and returns the first result's
// categories sorted by confidence descending.
func (c *ChannelClassifier) predict(ctx context.Context, article *model.Article) ([]Prediction, bool) {
	payload, err := json.Marshal([]*model.Article{article})
	if err != nil {
		return nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.client.Do(req)
	if err != nil {
		logging.Debug("Classification request failed", "url", article.URL, "err", err)
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logging.Debug("Classification rejected", "url", article.URL, "status", resp.StatusCode)
		return nil, false
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logging.Debug("Classification response unparseable", "url", article.URL, "err", err)
		return nil, false
	}
	if len(parsed.Results) == 0 || len(parsed.Results[0].Categories) == 0 {
		return nil, false
	}

	categories := parsed.Results[0].Categories
	sort.SliceStable(categories, func(i, j int) bool {
		return categories[i].Confidence > categories[j].Confidence
	})
	return categories, true
}
