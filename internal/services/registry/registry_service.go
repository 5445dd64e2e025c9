package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Service implements RegistryService over the static catalog plus persisted
// config overrides.
type Service struct {
	catalog []models.Platform
	configs map[string]models.PlatformConfig
	storage interfaces.PlatformConfigStorage
	running interfaces.RunningChecker
	runtime string
	mu      sync.RWMutex
	logger  arbor.ILogger
}

var _ interfaces.RegistryService = (*Service)(nil)

// NewService creates a registry service and loads persisted configs. The
// running checker may be set later via SetRunningChecker since the
// orchestrator is constructed after the registry.
func NewService(ctx context.Context, storage interfaces.PlatformConfigStorage, runtime string, logger arbor.ILogger) (*Service, error) {
	s := &Service{
		catalog: defaultCatalog(),
		configs: make(map[string]models.PlatformConfig),
		storage: storage,
		runtime: runtime,
		logger:  logger,
	}

	if err := s.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to load platform configs: %w", err)
	}

	logger.Info().
		Int("platforms", len(s.catalog)).
		Msg("Platform registry initialized")

	return s, nil
}

// SetRunningChecker injects the orchestrator's running-status view used to
// annotate ListAllPlatforms.
func (s *Service) SetRunningChecker(checker interfaces.RunningChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = checker
}

// Reload re-reads persisted configs into the in-memory registry
func (s *Service) Reload(ctx context.Context) error {
	configs, err := s.storage.LoadConfigs(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.configs = make(map[string]models.PlatformConfig, len(configs))
	for _, cfg := range configs {
		s.configs[cfg.PlatformID] = cfg
	}

	return nil
}

// GetPlatform looks up a catalog entry by id
func (s *Service) GetPlatform(platformID string) (models.Platform, bool) {
	for _, p := range s.catalog {
		if p.ID == platformID {
			return p, true
		}
	}
	return models.Platform{}, false
}

// configFor returns the stored config for a platform, defaulting to enabled
// with unset order when no record exists. Caller must hold at least a read
// lock.
func (s *Service) configFor(platformID string) models.PlatformConfig {
	if cfg, ok := s.configs[platformID]; ok {
		return cfg
	}
	return models.PlatformConfig{PlatformID: platformID, Enabled: true}
}

// ListPlatforms returns enabled platforms sorted by display order with
// custom-name overrides applied. Unset order (0) sorts last; ties break on
// platform id for determinism.
func (s *Service) ListPlatforms() []models.Platform {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type entry struct {
		platform models.Platform
		order    int
	}

	var entries []entry
	for _, p := range s.catalog {
		cfg := s.configFor(p.ID)
		if !cfg.Enabled {
			continue
		}
		if cfg.CustomName != "" {
			p.Name = cfg.CustomName
		}
		entries = append(entries, entry{platform: p, order: cfg.DisplayOrder})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		oi, oj := entries[i].order, entries[j].order
		if oi == 0 && oj == 0 {
			return entries[i].platform.ID < entries[j].platform.ID
		}
		if oi == 0 {
			return false
		}
		if oj == 0 {
			return true
		}
		if oi != oj {
			return oi < oj
		}
		return entries[i].platform.ID < entries[j].platform.ID
	})

	platforms := make([]models.Platform, len(entries))
	for i, e := range entries {
		platforms[i] = e.platform
	}
	return platforms
}

// ListAllPlatforms returns the unfiltered catalog annotated with config and
// live running status for settings UIs.
func (s *Service) ListAllPlatforms() []models.AnnotatedPlatform {
	s.mu.RLock()
	defer s.mu.RUnlock()

	annotated := make([]models.AnnotatedPlatform, 0, len(s.catalog))
	for _, p := range s.catalog {
		cfg := s.configFor(p.ID)

		status := models.PlatformStatusAvailable
		if s.running != nil && s.running.IsRunning(p.ID) {
			status = models.PlatformStatusRunning
		}

		annotated = append(annotated, models.AnnotatedPlatform{
			Platform:     p,
			Status:       status,
			Enabled:      cfg.Enabled,
			DisplayOrder: cfg.DisplayOrder,
			CustomName:   cfg.CustomName,
		})
	}
	return annotated
}

// UpdateConfig applies a partial config update. The update is persisted
// first; the in-memory registry is only touched after a successful write so
// memory and durable storage never diverge.
func (s *Service) UpdateConfig(ctx context.Context, platformID string, update models.PlatformConfigUpdate) error {
	if _, ok := s.GetPlatform(platformID); !ok {
		return fmt.Errorf("unknown platform: %s", platformID)
	}

	s.mu.RLock()
	cfg := s.configFor(platformID)
	s.mu.RUnlock()

	if update.Enabled != nil {
		cfg.Enabled = *update.Enabled
	}
	if update.DisplayOrder != nil {
		cfg.DisplayOrder = *update.DisplayOrder
	}
	if update.CustomName != nil {
		cfg.CustomName = *update.CustomName
	}

	if err := s.storage.SaveConfig(ctx, &cfg); err != nil {
		return fmt.Errorf("failed to persist platform config: %w", err)
	}

	if err := s.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload platform configs: %w", err)
	}

	s.logger.Info().
		Str("platform_id", platformID).
		Msg("Platform config updated")

	return nil
}

// BulkUpdate applies multiple config updates as one write-through pass. The
// registry reloads once at the end; a persist failure aborts the remainder.
func (s *Service) BulkUpdate(ctx context.Context, updates map[string]models.PlatformConfigUpdate) error {
	for platformID, update := range updates {
		if _, ok := s.GetPlatform(platformID); !ok {
			return fmt.Errorf("unknown platform: %s", platformID)
		}

		s.mu.RLock()
		cfg := s.configFor(platformID)
		s.mu.RUnlock()

		if update.Enabled != nil {
			cfg.Enabled = *update.Enabled
		}
		if update.DisplayOrder != nil {
			cfg.DisplayOrder = *update.DisplayOrder
		}
		if update.CustomName != nil {
			cfg.CustomName = *update.CustomName
		}

		if err := s.storage.SaveConfig(ctx, &cfg); err != nil {
			return fmt.Errorf("failed to persist platform config for %s: %w", platformID, err)
		}
	}

	if err := s.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload platform configs: %w", err)
	}

	s.logger.Info().
		Int("count", len(updates)).
		Msg("Platform configs bulk updated")

	return nil
}

// ResetConfigs removes all persisted overrides and reloads
func (s *Service) ResetConfigs(ctx context.Context) error {
	if err := s.storage.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to reset platform configs: %w", err)
	}

	if err := s.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload platform configs: %w", err)
	}

	s.logger.Info().Msg("Platform configs reset to defaults")
	return nil
}

// BuildCommand maps a platform id plus run options to an executable command
// line. Unknown ids still produce a command via the naming convention so the
// builder stays pure; existence checks belong to Trigger.
func (s *Service) BuildCommand(platformID string, opts models.TriggerOptions) string {
	platform, ok := s.GetPlatform(platformID)
	if !ok {
		platform = models.Platform{ID: platformID}
	}
	return BuildCommand(s.runtime, platform, opts)
}
