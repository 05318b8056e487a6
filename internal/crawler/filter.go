package crawler

import (
	"net/url"
	"strings"

	"github.com/alvmarrod/lineup-weaver/internal/config"
)

// Non-navigational href schemes never lead to an artist page
var skippedSchemes = []string{"mailto:", "tel:", "javascript:", "data:"}

// ResolveLink turns an href into an absolute URL against baseURL.
// Absolute hrefs are kept as-is and the fragment is dropped.
func ResolveLink(baseURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !ref.IsAbs() {
		base, err := url.Parse(baseURL + "/")
		if err != nil {
			return "", false
		}
		ref = base.ResolveReference(ref)
	}
	ref.Fragment = ""
	return ref.String(), true
}

// AllowLink applies the profile's allow and deny patterns
func AllowLink(p *config.SiteProfile, absolute string) bool {
	if p.LinkAllow != nil && !p.LinkAllow.MatchString(absolute) {
		return false
	}
	if p.LinkDeny != nil && p.LinkDeny.MatchString(absolute) {
		return false
	}
	return true
}

// FilterLinks resolves, filters and de-duplicates hrefs, preserving first-seen order
func FilterLinks(p *config.SiteProfile, hrefs []string) []string {
	seen := make(map[string]bool)
	var filtered []string

	for _, href := range hrefs {
		absolute, ok := ResolveLink(p.BaseURL, href)
		if !ok {
			continue
		}
		if !AllowLink(p, absolute) {
			continue
		}
		if seen[absolute] {
			continue
		}
		seen[absolute] = true
		filtered = append(filtered, absolute)
	}

	return filtered
}
