package normalize

import (
	"testing"
	"time"

	"github.com/infblueocean/newsriver/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	n := New([]string{"hedonistic"})
	n.now = func() time.Time { return testNow }
	return n
}

func testPub() model.PublisherFeed {
	return model.PublisherFeed{
		PublisherID:   "pub1",
		PublisherName: "Example News",
		SiteURL:       "https://example.com",
		Category:      "Top News",
		ContentType:   model.ContentTypeArticle,
		Channels:      []string{"Top News"},
	}
}

func testItem() model.RawItem {
	return model.RawItem{
		Title:     "A perfectly fine headline",
		Link:      "https://example.com/story",
		Published: testNow.Add(-time.Hour).Format(time.RFC1123Z),
	}
}

func TestNormalizeDropRules(t *testing.T) {
	n := newTestNormalizer()
	pub := testPub()

	tests := []struct {
		name   string
		mutate func(*model.RawItem)
	}{
		{"missing title", func(it *model.RawItem) { it.Title = "" }},
		{"profane title", func(it *model.RawItem) { it.Title = "A deeply Hedonistic weekend" }},
		{"no link or url", func(it *model.RawItem) { it.Link, it.URL = "", "" }},
		{"no timestamp", func(it *model.RawItem) { it.Published, it.Updated = "", "" }},
		{"unparseable timestamp", func(it *model.RawItem) { it.Published = "sometime last week" }},
		{"future timestamp", func(it *model.RawItem) {
			it.Published = testNow.Add(time.Hour).Format(time.RFC1123Z)
		}},
		{"older than retention window", func(it *model.RawItem) {
			it.Published = testNow.Add(-maxArticleAge - time.Second).Format(time.RFC1123Z)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := testItem()
			tt.mutate(&item)
			if got := n.Normalize(item, pub); got != nil {
				t.Errorf("Normalize() = %+v, want nil", got)
			}
		})
	}
}

func TestNormalizeRetentionBoundary(t *testing.T) {
	n := newTestNormalizer()
	item := testItem()
	item.Published = testNow.Add(-maxArticleAge + time.Hour).Format(time.RFC1123Z)

	if got := n.Normalize(item, testPub()); got == nil {
		t.Fatal("article just inside the retention window was dropped")
	}
}

func TestNormalizeProductSkipsAgeCheck(t *testing.T) {
	n := newTestNormalizer()
	pub := testPub()
	pub.ContentType = model.ContentTypeProduct

	item := testItem()
	item.Published = testNow.Add(-maxArticleAge * 2).Format(time.RFC1123Z)
	item.Category = "Gadgets"

	got := n.Normalize(item, pub)
	if got == nil {
		t.Fatal("old product entry was dropped")
	}
	if got.OffersCategory != "Gadgets" {
		t.Errorf("OffersCategory = %q, want %q", got.OffersCategory, "Gadgets")
	}
}

func TestNormalizeTitleCleaned(t *testing.T) {
	n := newTestNormalizer()
	item := testItem()
	item.Title = "<b>Fish &amp; Chips</b>"

	got := n.Normalize(item, testPub())
	if got == nil {
		t.Fatal("Normalize() = nil")
	}
	if got.Title != "Fish & Chips" {
		t.Errorf("Title = %q, want %q", got.Title, "Fish & Chips")
	}
}

func TestNormalizeLinkPrefersLinkOverURL(t *testing.T) {
	n := newTestNormalizer()
	item := testItem()
	item.Link = "https://example.com/canonical"
	item.URL = "https://example.com/fallback"

	got := n.Normalize(item, testPub())
	if got == nil {
		t.Fatal("Normalize() = nil")
	}
	if got.Link != "https://example.com/canonical" {
		t.Errorf("Link = %q, want canonical link", got.Link)
	}

	item.Link = ""
	got = n.Normalize(item, testPub())
	if got == nil {
		t.Fatal("Normalize() = nil")
	}
	if got.Link != "https://example.com/fallback" {
		t.Errorf("Link = %q, want fallback url", got.Link)
	}
}

func TestNormalizeUpdatedPreferredOverPublished(t *testing.T) {
	n := newTestNormalizer()
	item := testItem()
	updated := testNow.Add(-30 * time.Minute)
	item.Updated = updated.Format(time.RFC1123Z)

	got := n.Normalize(item, testPub())
	if got == nil {
		t.Fatal("Normalize() = nil")
	}
	if !got.PublishTime.Equal(updated.Truncate(time.Second)) {
		t.Errorf("PublishTime = %v, want %v", got.PublishTime, updated)
	}
}

func TestNormalizeAudioKeepsEnclosures(t *testing.T) {
	n := newTestNormalizer()
	pub := testPub()
	pub.ContentType = model.ContentTypeAudio

	item := testItem()
	item.Enclosures = []model.Enclosure{{URL: "https://example.com/ep1.mp3", Type: "audio/mpeg"}}

	got := n.Normalize(item, pub)
	if got == nil {
		t.Fatal("Normalize() = nil")
	}
	if len(got.Enclosures) != 1 || got.Enclosures[0].URL != "https://example.com/ep1.mp3" {
		t.Errorf("Enclosures = %+v, want the single mp3 enclosure", got.Enclosures)
	}
}

func TestImagePrecedence(t *testing.T) {
	tests := []struct {
		name string
		item model.RawItem
		want string
	}{
		{
			name: "explicit image wins",
			item: model.RawItem{
				Image:      "https://cdn.example.com/a.jpg",
				URLToImage: "https://cdn.example.com/b.jpg",
			},
			want: "https://cdn.example.com/a.jpg",
		},
		{
			name: "url_to_image before media",
			item: model.RawItem{
				URLToImage:   "https://cdn.example.com/b.jpg",
				MediaContent: []model.MediaRef{{URL: "https://cdn.example.com/c.jpg", Width: 100}},
			},
			want: "https://cdn.example.com/b.jpg",
		},
		{
			name: "widest media content",
			item: model.RawItem{
				MediaContent: []model.MediaRef{
					{URL: "https://cdn.example.com/small.jpg", Width: 320},
					{URL: "https://cdn.example.com/large.jpg", Width: 1200},
				},
			},
			want: "https://cdn.example.com/large.jpg",
		},
		{
			name: "thumbnail when no content",
			item: model.RawItem{
				MediaThumbnail: []model.MediaRef{{URL: "https://cdn.example.com/thumb.jpg", Width: 150}},
			},
			want: "https://cdn.example.com/thumb.jpg",
		},
		{
			name: "img tag in summary",
			item: model.RawItem{
				Summary: `<p>text <img src="https://cdn.example.com/inline.jpg"></p>`,
			},
			want: "https://cdn.example.com/inline.jpg",
		},
		{
			name: "img tag in content body",
			item: model.RawItem{
				ContentHTML: `<div><img src="https://cdn.example.com/body.jpg"/></div>`,
			},
			want: "https://cdn.example.com/body.jpg",
		},
		{
			name: "no image anywhere",
			item: model.RawItem{Summary: "<p>plain text</p>"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveImage(tt.item, testPub()); got != tt.want {
				t.Errorf("resolveImage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveImageHostlessJoinedAgainstSite(t *testing.T) {
	item := model.RawItem{Image: "/images/photo.jpg"}
	got := resolveImage(item, testPub())
	if got != "https://example.com/images/photo.jpg" {
		t.Errorf("resolveImage() = %q, want site-joined URL", got)
	}
}

func TestResolveImageRejectsPlaceholderPath(t *testing.T) {
	for _, raw := range []string{"https://example.com/", "https://example.com/x"} {
		if got := resolveImage(model.RawItem{Image: raw}, testPub()); got != "" {
			t.Errorf("resolveImage(%q) = %q, want empty", raw, got)
		}
	}
}

func TestWidestMediaFallsBackToHeight(t *testing.T) {
	refs := []model.MediaRef{
		{URL: "https://cdn.example.com/a.jpg", Height: 200},
		{URL: "https://cdn.example.com/b.jpg", Height: 600},
	}
	if got := widestMedia(refs); got != "https://cdn.example.com/b.jpg" {
		t.Errorf("widestMedia() = %q, want the tallest ref", got)
	}
}
