package crawler

// Placeholder is stored when a stage or time is unknown
const Placeholder = "TBA"

// ArtistDetail is one artist record extracted from a detail page.
// Empty strings mean the value is absent.
type ArtistDetail struct {
	Festival string `json:"festival"`
	URL      string `json:"url,omitempty"`
	Slug     string `json:"slug,omitempty"`
	Name     string `json:"name,omitempty"`
	Country  string `json:"country,omitempty"`
	Day      string `json:"day,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Time     string `json:"time,omitempty"`
}

// Sparse reports whether the page yielded no schedule data at all
func (d ArtistDetail) Sparse() bool {
	unknown := func(v string) bool { return v == "" || v == Placeholder }
	return d.Day == "" && unknown(d.Stage) && unknown(d.Time)
}

// ScrapeFailure records a detail page that could not be extracted
type ScrapeFailure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// ScrapeResult is the output of one source's detail extraction
type ScrapeResult struct {
	Festival string          `json:"festival"`
	Links    []string        `json:"links"`
	Details  []ArtistDetail  `json:"details"`
	Failures []ScrapeFailure `json:"failures"`
}
