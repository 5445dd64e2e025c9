package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/handlers"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/services/classifier"
	"github.com/ternarybob/colligo/internal/services/dedup"
	"github.com/ternarybob/colligo/internal/services/events"
	"github.com/ternarybob/colligo/internal/services/orchestrator"
	"github.com/ternarybob/colligo/internal/services/registry"
	"github.com/ternarybob/colligo/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager *badger.Manager
	EventService   interfaces.EventService
	Registry       *registry.Service
	Orchestrator   *orchestrator.Service
	Dedup          interfaces.DedupService

	ScraperHandler  *handlers.ScraperHandler
	PlatformHandler *handlers.PlatformHandler
	DedupHandler    *handlers.DedupHandler
	StatusHandler   *handlers.StatusHandler
	WSHandler       *handlers.WebSocketHandler

	eventSubscriber *handlers.EventSubscriber
	cron            *cron.Cron
}

// New initializes all application components in dependency order
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx := context.Background()

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	eventService := events.NewService(logger)

	registryService, err := registry.NewService(ctx, storageManager.PlatformConfigStorage(), cfg.Scrapers.Runtime, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize platform registry: %w", err)
	}

	classifierService := classifier.NewService()

	orchestratorService := orchestrator.NewService(
		registryService,
		classifierService,
		eventService,
		&cfg.Scrapers,
		logger,
	)
	registryService.SetRunningChecker(orchestratorService)

	dedupService := dedup.NewCoordinator(
		&cfg.Dedup,
		dedup.Factory(cfg.Dedup.CooldownDuration(), logger),
		eventService,
		logger,
	)

	wsHandler := handlers.NewWebSocketHandler()
	eventSubscriber := handlers.NewEventSubscriber(wsHandler, eventService, &cfg.WebSocket)

	a := &App{
		Config:          cfg,
		Logger:          logger,
		StorageManager:  storageManager,
		EventService:    eventService,
		Registry:        registryService,
		Orchestrator:    orchestratorService,
		Dedup:           dedupService,
		ScraperHandler:  handlers.NewScraperHandler(orchestratorService),
		PlatformHandler: handlers.NewPlatformHandler(registryService),
		DedupHandler:    handlers.NewDedupHandler(dedupService),
		StatusHandler:   handlers.NewStatusHandler(orchestratorService, registryService),
		WSHandler:       wsHandler,
		eventSubscriber: eventSubscriber,
		cron:            cron.New(),
	}

	if err := a.scheduleCleanup(); err != nil {
		a.Close()
		return nil, err
	}

	logger.Info().Msg("Application initialized")

	return a, nil
}

// scheduleCleanup registers the periodic process-table eviction job
func (a *App) scheduleCleanup() error {
	schedule := a.Config.Scrapers.CleanupSchedule
	if schedule == "" {
		schedule = "0 * * * *"
	}

	if _, err := a.cron.AddFunc(schedule, func() {
		a.Orchestrator.Cleanup()
	}); err != nil {
		return fmt.Errorf("failed to schedule process cleanup: %w", err)
	}

	a.cron.Start()

	a.Logger.Info().
		Str("schedule", schedule).
		Msg("Process cleanup scheduled")

	return nil
}

// Close releases application resources
func (a *App) Close() {
	if a.cron != nil {
		a.cron.Stop()
	}
	if a.WSHandler != nil {
		a.WSHandler.Close()
	}
	if a.EventService != nil {
		a.EventService.Close()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}

	a.Logger.Info().Msg("Application closed")
}
