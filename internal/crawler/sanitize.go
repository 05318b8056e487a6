package crawler

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	countryRe     = regexp.MustCompile(`^(.*)\s+([A-Z]{2})$`)
	strictTimeRe  = regexp.MustCompile(`^(\d{1,2}:\d{2})$`)
	placeholderRe = regexp.MustCompile(`(?i)^tba$`)
	// Container class that broad [class*="stage"] selectors sometimes return instead of a stage name.
	stageArtifactRe = regexp.MustCompile(`(?i)event-card`)
)

// NormalizeText collapses whitespace runs and trims; "" means absent
func NormalizeText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// SplitNameAndCountry splits a trailing two-letter country code off an artist name.
// "Architects GB" yields ("Architects", "GB").
func SplitNameAndCountry(raw string) (name, country string) {
	clean := NormalizeText(raw)
	if clean == "" {
		return "", ""
	}
	if m := countryRe.FindStringSubmatch(clean); m != nil {
		return NormalizeText(m[1]), m[2]
	}
	return clean, ""
}

// ExtractSlug returns the last non-empty path segment of a URL
func ExtractSlug(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(u.Path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] != "" {
			return parts[i]
		}
	}
	return ""
}

// SanitizeStage drops markup artifacts and canonicalizes "tba"
func SanitizeStage(value string) string {
	clean := NormalizeText(value)
	switch {
	case clean == "":
		return ""
	case stageArtifactRe.MatchString(clean):
		return ""
	case placeholderRe.MatchString(clean):
		return Placeholder
	}
	return clean
}

// SanitizeTime accepts only H:MM or HH:MM and canonicalizes "tba"
func SanitizeTime(value string) string {
	clean := NormalizeText(value)
	if clean == "" {
		return ""
	}
	if placeholderRe.MatchString(clean) {
		return Placeholder
	}
	if m := strictTimeRe.FindStringSubmatch(clean); m != nil {
		return m[1]
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
