package enrich

import (
	"sort"
	"strings"
)

// Taxonomy maps category labels from an external classification
// vocabulary onto internal channel names. Built once at startup and
// read-only afterwards.
type Taxonomy struct {
	mapping    map[string][]string
	exclusions map[string]map[string]bool
}

// BuildTaxonomy compiles rule notation into a lookup table. Rules map
// a channel to the category labels that imply it:
//
//	"label"    include exactly this label
//	"prefix*"  include every vocabulary entry starting with prefix
//	"-label"   exclude: never map this label to the channel, even if
//	           another rule (or wildcard) matched it
//
// A trailing * on an exclusion expands it against the vocabulary too.
func BuildTaxonomy(rules map[string][]string, vocabulary []string) *Taxonomy {
	t := &Taxonomy{
		mapping:    make(map[string][]string),
		exclusions: make(map[string]map[string]bool),
	}

	for channel, labels := range rules {
		for _, label := range labels {
			label = strings.TrimSpace(label)

			if excluded, ok := strings.CutPrefix(label, "-"); ok {
				if prefix, wild := strings.CutSuffix(excluded, "*"); wild {
					for _, entry := range vocabulary {
						entry = strings.TrimSpace(entry)
						if strings.HasPrefix(entry, prefix) {
							t.exclude(entry, channel)
						}
					}
				} else {
					t.exclude(excluded, channel)
				}
				continue
			}

			if prefix, wild := strings.CutSuffix(label, "*"); wild {
				for _, entry := range vocabulary {
					entry = strings.TrimSpace(entry)
					if strings.HasPrefix(entry, prefix) {
						t.mapping[entry] = append(t.mapping[entry], channel)
					}
				}
				continue
			}

			t.mapping[label] = append(t.mapping[label], channel)
		}
	}
	return t
}

func (t *Taxonomy) exclude(label, channel string) {
	if t.exclusions[label] == nil {
		t.exclusions[label] = make(map[string]bool)
	}
	t.exclusions[label][channel] = true
}

// Channels returns the channels implied by the given category labels,
// exclusions applied, in rule order with duplicates removed.
func (t *Taxonomy) Channels(categories []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, category := range categories {
		for _, channel := range t.mapping[category] {
			if t.exclusions[category][channel] || seen[channel] {
				continue
			}
			seen[channel] = true
			out = append(out, channel)
		}
	}
	return out
}

// classificationFloor is the minimum confidence for an external
// prediction to participate in taxonomy mapping at all.
const classificationFloor = 0.15

// Prediction is one category from an external document classifier.
type Prediction struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ChannelsForClassification maps external classifier output onto the
// two internal tiers. Tier 2 channels are the specific ones, tier 1
// the general ones; tier 2 hits are themselves fed through the tier 1
// taxonomy so an article tagged "Basketball" also lands in "Sports".
func ChannelsForClassification(preds []Prediction, tier2, tier1 *Taxonomy) (tier2s, tier1s []string) {
	var labels []string
	for _, p := range preds {
		if p.Confidence < classificationFloor {
			continue
		}
		labels = append(labels, strings.TrimSpace(p.Name))
	}

	tier2s = tier2.Channels(labels)
	tier1s = tier1.Channels(labels)
	tier1s = append(tier1s, tier1.Channels(tier2s)...)

	return dedupeSorted(tier2s), dedupeSorted(tier1s)
}

func dedupeSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
