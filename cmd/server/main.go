package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/trialmatch-engine/internal/api"
	"github.com/trialmatch-engine/internal/config"
	"github.com/trialmatch-engine/internal/service"
	"github.com/trialmatch-engine/pkg/external"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	if err := configManager.Validate(); err != nil {
		logrus.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	// External collaborators.
	registry := external.NewTrialRegistryClient(cfg.Registry)
	literature := external.NewLiteratureClient(cfg.Literature)

	var trialCache *external.TrialSearchCache
	if cfg.Cache.Enabled {
		trialCache, err = external.NewTrialSearchCache(cfg.Cache)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to trial cache")
		}
		defer trialCache.Close()
	}
	litCache := external.NewLiteratureCache(cfg.Cache.LiteratureSize, cfg.Cache.LiteratureTTL)

	searchClient := external.NewResilientSearchClient(logger, registry, literature, trialCache, litCache)

	// Matching and mining services.
	catalog := service.NewCriterionCatalog(logger)
	agent := service.NewEligibilityAgent(logger)
	agentV2 := service.NewEligibilityAgentV2(logger, catalog)
	miner := service.NewPatternMiner(logger, searchClient, searchClient, cfg.Engine)

	server := api.NewServer(logger, cfg, agent, agentV2, miner)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting trial matching engine")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from configuration.
func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
