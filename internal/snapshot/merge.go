package snapshot

import "github.com/alvmarrod/lineup-weaver/internal/crawler"

// Snapshot is the durable intermediate state of one source
type Snapshot struct {
	Links   []string
	Details []crawler.ArtistDetail
}

// MergeStats describes what a merge changed
type MergeStats struct {
	NewLinks       int `json:"new_links"`
	NewDetails     int `json:"new_details"`
	UpdatedDetails int `json:"updated_details"`
	Skipped        int `json:"skipped"`
}

// Merge returns a new snapshot with links and details folded in; s is not modified
func (s Snapshot) Merge(links []string, details []crawler.ArtistDetail) (Snapshot, MergeStats) {
	var stats MergeStats

	mergedLinks := MergeLinks(s.Links, links)
	stats.NewLinks = len(mergedLinks) - len(dedupe(s.Links))

	mergedDetails, res := mergeDetails(s.Details, details)
	stats.NewDetails = res.added
	stats.UpdatedDetails = res.updated
	stats.Skipped = res.skipped

	return Snapshot{Links: mergedLinks, Details: mergedDetails}, stats
}

// MergeLinks is an order-preserving set union
func MergeLinks(existing, incoming []string) []string {
	out := make([]string, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, link := range list {
			if link == "" || seen[link] {
				continue
			}
			seen[link] = true
			out = append(out, link)
		}
	}
	return out
}

func dedupe(links []string) []string {
	return MergeLinks(links, nil)
}

// identity extractors, tried in order; the first non-empty result is the key
var identityKeys = []func(crawler.ArtistDetail) string{
	func(d crawler.ArtistDetail) string { return d.Slug },
	func(d crawler.ArtistDetail) string { return d.URL },
	func(d crawler.ArtistDetail) string {
		if d.Name == "" {
			return ""
		}
		return "name:" + d.Name
	},
}

// IdentityKey returns the merge key of a detail record, or false when the
// record has no slug, URL or name
func IdentityKey(d crawler.ArtistDetail) (string, bool) {
	for _, key := range identityKeys {
		if k := key(d); k != "" {
			return k, true
		}
	}
	return "", false
}

// MergeDetails folds incoming records into existing ones by identity key.
// Non-empty incoming fields overwrite; empty ones keep the existing value.
// Records without any identity are excluded and counted in skipped.
func MergeDetails(existing, incoming []crawler.ArtistDetail) ([]crawler.ArtistDetail, int) {
	merged, res := mergeDetails(existing, incoming)
	return merged, res.skipped
}

type mergeResult struct {
	added, updated, skipped int
}

func mergeDetails(existing, incoming []crawler.ArtistDetail) ([]crawler.ArtistDetail, mergeResult) {
	var res mergeResult
	order := make([]string, 0, len(existing)+len(incoming))
	byKey := make(map[string]crawler.ArtistDetail, len(existing)+len(incoming))

	for _, d := range existing {
		key, ok := IdentityKey(d)
		if !ok {
			res.skipped++
			continue
		}
		if prev, dup := byKey[key]; dup {
			byKey[key] = overlay(prev, d)
			continue
		}
		order = append(order, key)
		byKey[key] = d
	}

	for _, d := range incoming {
		key, ok := IdentityKey(d)
		if !ok {
			res.skipped++
			continue
		}
		prev, found := byKey[key]
		if !found {
			order = append(order, key)
			byKey[key] = d
			res.added++
			continue
		}
		next := overlay(prev, d)
		if next != prev {
			res.updated++
		}
		byKey[key] = next
	}

	out := make([]crawler.ArtistDetail, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out, res
}

// overlay copies every non-empty field of next over prev
func overlay(prev, next crawler.ArtistDetail) crawler.ArtistDetail {
	pick := func(old, new string) string {
		if new != "" {
			return new
		}
		return old
	}
	return crawler.ArtistDetail{
		Festival: pick(prev.Festival, next.Festival),
		URL:      pick(prev.URL, next.URL),
		Slug:     pick(prev.Slug, next.Slug),
		Name:     pick(prev.Name, next.Name),
		Country:  pick(prev.Country, next.Country),
		Day:      pick(prev.Day, next.Day),
		Stage:    pick(prev.Stage, next.Stage),
		Time:     pick(prev.Time, next.Time),
	}
}
