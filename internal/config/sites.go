package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sites.toml
var builtinSites []byte

// AllSources selects every registered profile
const AllSources = "all"

// Selectors names the CSS selectors used on an artist detail page
type Selectors struct {
	Name  string `toml:"name"`
	Day   string `toml:"day"`
	Stage string `toml:"stage"`
	Time  string `toml:"time"`
}

// SiteProfile is the static extraction configuration for one festival website
type SiteProfile struct {
	ID           string    `toml:"id"`
	FestivalID   string    `toml:"festival_id"`
	Name         string    `toml:"name"`
	Year         int       `toml:"year"`
	IndexURLs    []string  `toml:"index_urls"`
	BaseURL      string    `toml:"base_url"`
	LinkSelector string    `toml:"link_selector"`
	LinkAllowRaw string    `toml:"link_allow"`
	LinkDenyRaw  string    `toml:"link_deny"`
	Parser       string    `toml:"parser"`
	Selectors    Selectors `toml:"selectors"`

	LinkAllow *regexp.Regexp `toml:"-"`
	LinkDeny  *regexp.Regexp `toml:"-"`
}

// Registry holds the loaded site profiles in declaration order
type Registry struct {
	profiles []*SiteProfile
	byID     map[string]*SiteProfile
}

type sitesFile struct {
	Site []*SiteProfile `toml:"site"`
}

// DefaultRegistry parses the embedded site profiles
func DefaultRegistry() (*Registry, error) {
	return parseRegistry(builtinSites)
}

// LoadRegistry reads site profiles from a TOML file. An empty path returns
// the built-in profiles.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}
	return parseRegistry(data)
}

func parseRegistry(data []byte) (*Registry, error) {
	var file sitesFile
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse sites TOML: %w", err)
	}
	if len(file.Site) == 0 {
		return nil, fmt.Errorf("no site profiles defined")
	}

	reg := &Registry{byID: make(map[string]*SiteProfile, len(file.Site))}
	for i, p := range file.Site {
		if err := p.compile(); err != nil {
			return nil, fmt.Errorf("site #%d: %w", i+1, err)
		}
		if _, dup := reg.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate site id %q", p.ID)
		}
		reg.byID[p.ID] = p
		reg.profiles = append(reg.profiles, p)
	}
	return reg, nil
}

func (p *SiteProfile) compile() error {
	p.ID = strings.ToLower(strings.TrimSpace(p.ID))
	if p.ID == "" || p.ID == AllSources {
		return fmt.Errorf("id is required and may not be %q", AllSources)
	}
	if _, err := uuid.Parse(p.FestivalID); err != nil {
		return fmt.Errorf("site %s: festival_id must be a UUID: %w", p.ID, err)
	}
	if p.Name == "" {
		return fmt.Errorf("site %s: name is required", p.ID)
	}
	if p.Year < 1900 {
		return fmt.Errorf("site %s: year must be set", p.ID)
	}
	if len(p.IndexURLs) == 0 {
		return fmt.Errorf("site %s: at least one index_url is required", p.ID)
	}
	if p.BaseURL == "" {
		return fmt.Errorf("site %s: base_url is required", p.ID)
	}
	p.BaseURL = strings.TrimRight(p.BaseURL, "/")
	if p.LinkSelector == "" {
		return fmt.Errorf("site %s: link_selector is required", p.ID)
	}
	if p.Selectors.Name == "" {
		return fmt.Errorf("site %s: selectors.name is required", p.ID)
	}
	if p.Parser == "" {
		return fmt.Errorf("site %s: parser is required", p.ID)
	}

	var err error
	if p.LinkAllowRaw != "" {
		if p.LinkAllow, err = regexp.Compile(p.LinkAllowRaw); err != nil {
			return fmt.Errorf("site %s: link_allow: %w", p.ID, err)
		}
	}
	if p.LinkDenyRaw != "" {
		if p.LinkDeny, err = regexp.Compile(p.LinkDenyRaw); err != nil {
			return fmt.Errorf("site %s: link_deny: %w", p.ID, err)
		}
	}
	return nil
}

// All returns every profile in declaration order
func (r *Registry) All() []*SiteProfile {
	out := make([]*SiteProfile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Lookup returns the profile with the given id, or nil
func (r *Registry) Lookup(id string) *SiteProfile {
	return r.byID[strings.ToLower(strings.TrimSpace(id))]
}

// Select resolves a --festival argument ("all" or a single id)
func (r *Registry) Select(arg string) ([]*SiteProfile, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if arg == "" || arg == AllSources {
		return r.All(), nil
	}
	p := r.Lookup(arg)
	if p == nil {
		return nil, fmt.Errorf("unknown festival %q (use %s or %s)", arg, strings.Join(r.IDs(), ", "), AllSources)
	}
	return []*SiteProfile{p}, nil
}

// IDs lists the registered profile ids
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.profiles))
	for _, p := range r.profiles {
		ids = append(ids, p.ID)
	}
	return ids
}
