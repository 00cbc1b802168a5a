// Package model defines the records that flow through the aggregation
// pipeline: publisher feed descriptors, raw parsed feed items, and the
// canonical Article produced by normalization.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// StampFormat is the wire format for article publish times. All
// timestamps are normalized to UTC before being stamped.
const StampFormat = "2006-01-02 15:04:05"

// Stamp is a UTC timestamp that marshals to the fixed StampFormat.
type Stamp struct {
	time.Time
}

// NewStamp normalizes t to UTC, truncated to whole seconds.
func NewStamp(t time.Time) Stamp {
	return Stamp{t.UTC().Truncate(time.Second)}
}

func (s Stamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.UTC().Format(StampFormat) + `"`), nil
}

func (s *Stamp) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	t, err := time.ParseInLocation(StampFormat, raw, time.UTC)
	if err != nil {
		return fmt.Errorf("parse stamp %q: %w", raw, err)
	}
	s.Time = t
	return nil
}

// String returns the wire representation.
func (s Stamp) String() string {
	return s.UTC().Format(StampFormat)
}

// Content types a publisher feed may carry.
const (
	ContentTypeArticle = "article"
	ContentTypeAudio   = "audio"
	ContentTypeProduct = "product"
)

// PublisherFeed describes one publisher's feed endpoint. It is
// immutable input to the pipeline, supplied by the sources loader.
type PublisherFeed struct {
	PublisherID        string   `json:"publisher_id" yaml:"publisher_id"`
	PublisherName      string   `json:"publisher_name" yaml:"publisher_name"`
	FeedURL            string   `json:"feed_url" yaml:"feed_url"`
	SiteURL            string   `json:"site_url" yaml:"site_url"`
	Category           string   `json:"category" yaml:"category"`
	ContentType        string   `json:"content_type" yaml:"content_type"`
	Channels           []string `json:"channels" yaml:"channels"`
	CreativeInstanceID string   `json:"creative_instance_id" yaml:"creative_instance_id"`
	MaxEntries         int      `json:"max_entries" yaml:"max_entries"`
	Enabled            bool     `json:"enabled" yaml:"enabled"`
	OGImages           bool     `json:"og_images" yaml:"og_images"`
}

// MediaRef is a media:content or media:thumbnail reference on a feed
// entry, as declared by the publisher.
type MediaRef struct {
	URL    string
	Width  int
	Height int
}

// Enclosure is a feed enclosure (audio feeds carry their payload here).
type Enclosure struct {
	URL    string `json:"url"`
	Type   string `json:"type"`
	Length string `json:"length"`
}

// RawItem is one parsed feed entry, before normalization. Ephemeral:
// created by the parser, consumed by the normalizer, never persisted.
type RawItem struct {
	Title          string
	Link           string
	URL            string
	Updated        string
	Published      string
	Image          string
	URLToImage     string
	MediaContent   []MediaRef
	MediaThumbnail []MediaRef
	Summary        string // may contain HTML
	ContentHTML    string // may contain HTML
	Description    string // may contain HTML
	Category       string
	Enclosures     []Enclosure
}

// Article is the canonical record as it flows through the pipeline.
// Stages produce updated copies rather than mutating shared state.
type Article struct {
	Title              string      `json:"title"`
	Description        string      `json:"description"`
	Link               string      `json:"-"` // pre-resolution URL, cleared once URL is set
	URL                string      `json:"url"`
	URLHash            string      `json:"url_hash"`
	Category           string      `json:"category"`
	ContentType        string      `json:"content_type"`
	PublisherID        string      `json:"publisher_id"`
	PublisherName      string      `json:"publisher_name"`
	CreativeInstanceID string      `json:"creative_instance_id"`
	Channels           []string    `json:"channels,omitempty"`
	// ExternalChannels are taxonomy-mapped channels from the external
	// classifier vocabulary; persisted to the store, never in feed JSON.
	ExternalChannels []string `json:"-"`
	ImageURL           string      `json:"img"`
	PaddedImageURL     string      `json:"padded_img"`
	PopScore           float64     `json:"pop_score"`
	Score              float64     `json:"score"`
	PublishTime        Stamp       `json:"publish_time"`
	OffersCategory     string      `json:"offers_category,omitempty"`
	Enclosures         []Enclosure `json:"enclosures,omitempty"`
}

// Clone returns a deep copy safe to hand to another pipeline stage.
func (a *Article) Clone() *Article {
	out := *a
	if a.Channels != nil {
		out.Channels = append([]string(nil), a.Channels...)
	}
	if a.ExternalChannels != nil {
		out.ExternalChannels = append([]string(nil), a.ExternalChannels...)
	}
	if a.Enclosures != nil {
		out.Enclosures = append([]Enclosure(nil), a.Enclosures...)
	}
	return &out
}

// HashURL computes the canonical content-addressed identifier for a
// resolved article URL.
func HashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
