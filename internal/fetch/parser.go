package fetch

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/extensions"

	"github.com/infblueocean/newsriver/internal/logging"
	"github.com/infblueocean/newsriver/internal/metrics"
	"github.com/infblueocean/newsriver/internal/model"
)

// Parsed is the output of parsing one downloaded feed.
type Parsed struct {
	Key          string
	Items        []model.RawItem
	SizeAfterGet int
}

// Parser turns raw feed bytes into RawItem lists. A feed that parses
// to zero items is a failure: for alerting it is indistinguishable
// from a feed that failed to parse at all.
type Parser struct {
	recorder *metrics.Recorder
}

// NewParser creates a Parser. recorder may be nil.
func NewParser(recorder *metrics.Recorder) *Parser {
	return &Parser{recorder: recorder}
}

// Parse parses one downloaded feed. Parser-internal warnings about
// malformed markup are swallowed; only a hard failure or an empty item
// list drops the feed.
func (p *Parser) Parse(dl *Downloaded) (*Parsed, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(dl.Data))
	if err != nil || len(feed.Items) == 0 {
		if err == nil {
			err = fmt.Errorf("read 0 articles from %s", dl.Key)
		}
		logging.Error("Feed failed to parse", "url", dl.Key, "error", err)
		if p.recorder != nil {
			p.recorder.EmptyFeed(hostname(dl.Key))
		}
		return nil, err
	}

	items := make([]model.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		items = append(items, convertItem(entry, feed))
	}
	return &Parsed{Key: dl.Key, Items: items, SizeAfterGet: len(items)}, nil
}

// convertItem maps one gofeed entry onto the pipeline's RawItem.
func convertItem(entry *gofeed.Item, feed *gofeed.Feed) model.RawItem {
	item := model.RawItem{
		Title:       entry.Title,
		Link:        entry.Link,
		Updated:     entry.Updated,
		Published:   entry.Published,
		Summary:     entry.Description,
		Description: entry.Description,
		ContentHTML: entry.Content,
	}

	// Fall back to the feed-level timestamp when the entry has none.
	if item.Updated == "" && item.Published == "" {
		item.Updated = feed.Updated
		item.Published = feed.Published
	}

	if entry.Image != nil {
		item.Image = entry.Image.URL
	}
	if len(entry.Categories) > 0 {
		item.Category = entry.Categories[0]
	}
	for _, enc := range entry.Enclosures {
		if enc == nil {
			continue
		}
		item.Enclosures = append(item.Enclosures, model.Enclosure{
			URL:    enc.URL,
			Type:   enc.Type,
			Length: enc.Length,
		})
	}

	if media, ok := entry.Extensions["media"]; ok {
		item.MediaContent = mediaRefs(media["content"])
		item.MediaThumbnail = mediaRefs(media["thumbnail"])
	}

	return item
}

func mediaRefs(exts []ext.Extension) []model.MediaRef {
	refs := make([]model.MediaRef, 0, len(exts))
	for _, e := range exts {
		u := e.Attrs["url"]
		if u == "" {
			continue
		}
		width, _ := strconv.Atoi(e.Attrs["width"])
		height, _ := strconv.Atoi(e.Attrs["height"])
		refs = append(refs, model.MediaRef{URL: u, Width: width, Height: height})
	}
	if len(refs) == 0 {
		return nil
	}
	return refs
}
