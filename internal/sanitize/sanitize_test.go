package sanitize

import (
	"testing"

	"github.com/infblueocean/newsriver/internal/model"
)

func TestScrubStripsMarkup(t *testing.T) {
	got := Scrub(&model.Article{
		Title:       `Breaking <script>alert(1)</script> news`,
		Description: `<a href="https://evil.example.com">click</a> here`,
	})
	if got.Title != "Breaking  news" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.Description != "click here" {
		t.Errorf("Description = %q", got.Description)
	}
}

func TestScrubKeepsAmpersands(t *testing.T) {
	got := Scrub(&model.Article{Title: "Fish & Chips", Channels: []string{"Food & Drink"}})
	if got.Title != "Fish & Chips" {
		t.Errorf("Title = %q, want ampersand preserved", got.Title)
	}
	if got.Channels[0] != "Food & Drink" {
		t.Errorf("Channels[0] = %q, want ampersand preserved", got.Channels[0])
	}
}

func TestScrubLeavesURLFieldsAlone(t *testing.T) {
	in := &model.Article{
		URL:      "https://example.com/a?x=1&y=2",
		ImageURL: "https://cdn.example.com/a.jpg",
	}
	got := Scrub(in)
	if got.URL != in.URL || got.ImageURL != in.ImageURL {
		t.Error("URL fields were modified")
	}
}

func TestScrubDoesNotMutateInput(t *testing.T) {
	in := &model.Article{Title: "<b>bold</b>"}
	Scrub(in)
	if in.Title != "<b>bold</b>" {
		t.Error("input article was mutated")
	}
}
