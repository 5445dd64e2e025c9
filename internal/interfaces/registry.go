package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// RunningChecker reports whether any process for a platform is currently
// running. Implemented by the orchestrator and injected into the registry to
// annotate platform listings without a package cycle.
type RunningChecker interface {
	IsRunning(platformID string) bool
}

// RegistryService manages the platform catalog and its persisted
// configuration overrides.
type RegistryService interface {
	// ListPlatforms returns enabled platforms sorted by display order with
	// custom-name overrides applied
	ListPlatforms() []models.Platform

	// ListAllPlatforms returns the unfiltered catalog annotated with config
	// and live running status for settings UIs
	ListAllPlatforms() []models.AnnotatedPlatform

	// GetPlatform looks up a catalog entry by id
	GetPlatform(platformID string) (models.Platform, bool)

	// UpdateConfig applies a partial config update, persisting before the
	// in-memory registry is touched
	UpdateConfig(ctx context.Context, platformID string, update models.PlatformConfigUpdate) error

	// BulkUpdate applies multiple config updates as one write-through pass
	BulkUpdate(ctx context.Context, updates map[string]models.PlatformConfigUpdate) error

	// ResetConfigs removes all persisted overrides and reloads
	ResetConfigs(ctx context.Context) error

	// Reload re-reads persisted configs into the in-memory registry
	Reload(ctx context.Context) error

	// BuildCommand maps a platform id plus run options to an executable
	// command line. Pure and deterministic.
	BuildCommand(platformID string, opts models.TriggerOptions) string
}

// PlatformConfigStorage persists platform configuration overrides.
type PlatformConfigStorage interface {
	// LoadConfigs returns all persisted platform config records
	LoadConfigs(ctx context.Context) ([]models.PlatformConfig, error)

	// GetConfig returns the record for one platform, or found=false
	GetConfig(ctx context.Context, platformID string) (*models.PlatformConfig, error)

	// SaveConfig inserts or replaces one platform config record
	SaveConfig(ctx context.Context, config *models.PlatformConfig) error

	// DeleteAll removes every persisted config record
	DeleteAll(ctx context.Context) error
}
