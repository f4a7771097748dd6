// Package services wires the resolution pipeline: title resolver, episode
// locator, source ranking, swarm lifecycle, and the orchestrator on top.
package services

import (
	"fmt"

	"github.com/amaumene/gostreamer/internal/cache"
	"github.com/amaumene/gostreamer/internal/config"
	"github.com/amaumene/gostreamer/internal/database"
	"github.com/amaumene/gostreamer/internal/provider"
	"github.com/amaumene/gostreamer/internal/ranker"
	"github.com/amaumene/gostreamer/internal/swarm"
	"github.com/amaumene/gostreamer/internal/torrents"
	"github.com/amaumene/gostreamer/pkg/logger"
)

// Container holds every service with its dependencies injected. One
// container per process; Close releases the swarm client and database.
type Container struct {
	Config *config.Config
	DB     database.Database
	Cache  *cache.LRUCache

	Provider provider.Client
	Embed    provider.EmbedResolver
	Indexer  *torrents.Apibay
	Ranker   *ranker.Ranker
	Swarm    *swarm.Manager

	Resolver     *TitleResolver
	Locator      *EpisodeLocator
	Orchestrator *Orchestrator

	logger logger.Logger
}

// NewContainer builds the full service graph from configuration.
func NewContainer(cfg *config.Config) (*Container, error) {
	db, err := database.NewBolt(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open mapping store: %w", err)
	}

	memCache := cache.New(cfg.CacheSize, cfg.CacheTTL)

	swarmCfg := swarm.DefaultConfig(cfg.SwarmDataDir)
	swarmCfg.MaxActive = cfg.MaxActiveSessions
	swarmCfg.IdleTimeout = cfg.SwarmIdleTimeout
	swarmManager, err := swarm.NewManager(swarmCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to start swarm manager: %w", err)
	}

	providerClient := provider.NewHTTPClient(cfg.ProviderBaseURL, memCache)
	embedResolver := NewHTTPEmbedResolver()
	indexer := torrents.NewApibay(memCache)
	rk := ranker.New()

	resolver := NewTitleResolver(providerClient, db, cfg.MappingTTL)
	locator := NewEpisodeLocator(providerClient, db)
	orchestrator := NewOrchestrator(resolver, locator, providerClient, embedResolver, indexer, rk, swarmManager)

	return &Container{
		Config:       cfg,
		DB:           db,
		Cache:        memCache,
		Provider:     providerClient,
		Embed:        embedResolver,
		Indexer:      indexer,
		Ranker:       rk,
		Swarm:        swarmManager,
		Resolver:     resolver,
		Locator:      locator,
		Orchestrator: orchestrator,
		logger:       logger.New(),
	}, nil
}

// Close shuts the container down in reverse dependency order.
func (c *Container) Close() {
	c.Swarm.Close()
	if err := c.DB.Close(); err != nil {
		c.logger.Warnf("[Container] failed to close database: %v", err)
	}
}
