package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/alvmarrod/lineup-weaver/internal/catalog"
	"github.com/alvmarrod/lineup-weaver/internal/config"
	"github.com/alvmarrod/lineup-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

type commandContext struct {
	configFlag *string
	sitesFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	registryOnce sync.Once
	registry     *config.Registry
	registryErr  error
}

func newCommandContext(configFlag, sitesFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		sitesFlag:  sitesFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := "config.json"
		if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configErr = config.LoadConfig(path)
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureRegistry() (*config.Registry, error) {
	c.registryOnce.Do(func() {
		if c.sitesFlag != nil && strings.TrimSpace(*c.sitesFlag) != "" {
			c.registry, c.registryErr = config.LoadRegistry(strings.TrimSpace(*c.sitesFlag))
			return
		}
		c.registry, c.registryErr = config.DefaultRegistry()
	})
	return c.registry, c.registryErr
}

func (c *commandContext) selectSources(festival string) ([]*config.SiteProfile, error) {
	reg, err := c.ensureRegistry()
	if err != nil {
		return nil, err
	}
	return reg.Select(festival)
}

func (c *commandContext) openStore(ctx context.Context) (storage.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func (c *commandContext) newSearcher() (*catalog.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateCatalogCredentials(); err != nil {
		return nil, err
	}
	return catalog.New(
		cfg.Spotify.ClientID,
		cfg.Spotify.ClientSecret,
		cfg.Spotify.TokenURL,
		cfg.Spotify.APIBaseURL,
		catalog.WithSearchLimit(cfg.Spotify.SearchLimit),
		catalog.WithCacheSize(cfg.Spotify.CacheSize),
		catalog.WithLogger(logrus.StandardLogger()),
	)
}
