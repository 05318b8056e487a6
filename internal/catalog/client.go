package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
)

// DefaultRetryAfter is used when a 429 response carries no usable Retry-After
const DefaultRetryAfter = 60 * time.Second

// ErrRateLimited marks a search that was still rate limited after its retry
var ErrRateLimited = errors.New("catalog rate limited")

// StatusError is returned for non-200 catalog responses
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("spotify %s returned %d", e.Op, e.Code)
}

// Is lets errors.Is(err, ErrRateLimited) match 429 responses
func (e *StatusError) Is(target error) bool {
	return target == ErrRateLimited && e.Code == http.StatusTooManyRequests
}

// Image is one artist picture
type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// Artist is one search hit
type Artist struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Genres       []string `json:"genres"`
	Popularity   int      `json:"popularity"`
	Images       []Image  `json:"images"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// ImageURL returns the first image, which Spotify orders largest first
func (a Artist) ImageURL() (string, bool) {
	if len(a.Images) == 0 || a.Images[0].URL == "" {
		return "", false
	}
	return a.Images[0].URL, true
}

// SearchResult is the outcome of one artist lookup
type SearchResult struct {
	Artists []Artist
	// Retried is set when a 429 forced a wait and a second request
	Retried bool
	Cached  bool
}

// Searcher is the catalog surface used by enrichment
type Searcher interface {
	Token(ctx context.Context) (string, error)
	SearchArtists(ctx context.Context, name string) (*SearchResult, error)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type searchResponse struct {
	Artists struct {
		Items []Artist `json:"items"`
	} `json:"artists"`
}

// Client is a Spotify Web API client using the client-credentials flow
type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	apiBaseURL   string
	limit        int

	httpClient *http.Client
	sleep      func(context.Context, time.Duration) error
	now        func() time.Time
	cache      *lru.Cache[string, []Artist]
	log        logrus.FieldLogger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

var _ Searcher = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleep replaces the rate-limit wait
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithSearchLimit sets how many candidates a search returns
func WithSearchLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// WithCacheSize enables an in-process LRU of search results; 0 disables it
func WithCacheSize(size int) Option {
	return func(c *Client) {
		if size <= 0 {
			c.cache = nil
			return
		}
		cache, err := lru.New[string, []Artist](size)
		if err == nil {
			c.cache = cache
		}
	}
}

// WithLogger sets the client logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a catalog client
func New(clientID, clientSecret, tokenURL, apiBaseURL string, opts ...Option) (*Client, error) {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("spotify client id and secret required")
	}
	tokenURL = strings.TrimSpace(tokenURL)
	apiBaseURL = strings.TrimSpace(apiBaseURL)
	if tokenURL == "" || apiBaseURL == "" {
		return nil, errors.New("spotify token and api urls required")
	}

	c := &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		apiBaseURL:   strings.TrimRight(apiBaseURL, "/"),
		limit:        5,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		sleep:        sleepContext,
		now:          time.Now,
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns a bearer token, exchanging the client credentials when the
// cached one is missing or about to expire
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Op: "token", Code: resp.StatusCode}
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("spotify token response has no access_token")
	}

	ttl := time.Duration(payload.ExpiresIn) * time.Second
	if ttl > time.Minute {
		ttl -= 30 * time.Second
	}
	c.token = payload.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	return c.token, nil
}

// SearchArtists looks up artists by name. A 429 is retried exactly once
// after the server's Retry-After interval.
func (c *Client) SearchArtists(ctx context.Context, name string) (*SearchResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("query must not be empty")
	}

	key := cases.Fold().String(name)
	if c.cache != nil {
		if artists, ok := c.cache.Get(key); ok {
			return &SearchResult{Artists: artists, Cached: true}, nil
		}
	}

	artists, wait, err := c.search(ctx, name)
	result := &SearchResult{}
	if wait > 0 {
		c.log.WithFields(logrus.Fields{"band": name, "retry_after": wait}).Warn("Rate limited by Spotify, waiting")
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
		result.Retried = true
		artists, wait, err = c.search(ctx, name)
		if wait > 0 {
			err = fmt.Errorf("search %q after retry: %w", name, &StatusError{Op: "search", Code: http.StatusTooManyRequests})
		}
	}
	if err != nil {
		return result, err
	}

	result.Artists = artists
	if c.cache != nil {
		c.cache.Add(key, artists)
	}
	return result, nil
}

// search performs one request; a positive wait means the response was a 429
func (c *Client) search(ctx context.Context, name string) ([]Artist, time.Duration, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, 0, err
	}

	endpoint, err := url.Parse(c.apiBaseURL + "/search")
	if err != nil {
		return nil, 0, fmt.Errorf("parse spotify url: %w", err)
	}
	params := url.Values{}
	params.Set("q", name)
	params.Set("type", "artist")
	params.Set("limit", strconv.Itoa(c.limit))
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, 0, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, &StatusError{Op: "search", Code: resp.StatusCode}
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, fmt.Errorf("decode spotify response: %w", err)
	}
	return payload.Artists.Items, 0, nil
}

func parseRetryAfter(raw string) time.Duration {
	seconds, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seconds <= 0 {
		return DefaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
