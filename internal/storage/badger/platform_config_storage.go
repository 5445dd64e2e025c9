package badger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// PlatformConfigStorage implements the PlatformConfigStorage interface for
// Badger.
type PlatformConfigStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewPlatformConfigStorage creates a new PlatformConfigStorage instance
func NewPlatformConfigStorage(db *BadgerDB, logger arbor.ILogger) interfaces.PlatformConfigStorage {
	return &PlatformConfigStorage{
		db:     db,
		logger: logger,
	}
}

// normalizeID converts a platform id to lowercase for case-insensitive storage
func (s *PlatformConfigStorage) normalizeID(platformID string) string {
	return strings.ToLower(strings.TrimSpace(platformID))
}

// LoadConfigs returns all persisted platform config records
func (s *PlatformConfigStorage) LoadConfigs(ctx context.Context) ([]models.PlatformConfig, error) {
	var configs []models.PlatformConfig
	if err := s.db.Store().Find(&configs, nil); err != nil {
		return nil, fmt.Errorf("failed to load platform configs: %w", err)
	}
	return configs, nil
}

// GetConfig returns the record for one platform, or nil when none is stored
func (s *PlatformConfigStorage) GetConfig(ctx context.Context, platformID string) (*models.PlatformConfig, error) {
	var config models.PlatformConfig
	err := s.db.Store().Get(s.normalizeID(platformID), &config)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get platform config: %w", err)
	}
	return &config, nil
}

// SaveConfig inserts or replaces one platform config record
func (s *PlatformConfigStorage) SaveConfig(ctx context.Context, config *models.PlatformConfig) error {
	if config == nil || config.PlatformID == "" {
		return fmt.Errorf("platform config requires a platform id")
	}

	key := s.normalizeID(config.PlatformID)
	if err := s.db.Store().Upsert(key, config); err != nil {
		return fmt.Errorf("failed to save platform config: %w", err)
	}

	s.logger.Debug().
		Str("platform_id", config.PlatformID).
		Bool("enabled", config.Enabled).
		Int("display_order", config.DisplayOrder).
		Msg("Platform config saved")

	return nil
}

// DeleteAll removes every persisted config record
func (s *PlatformConfigStorage) DeleteAll(ctx context.Context) error {
	if err := s.db.Store().DeleteMatching(&models.PlatformConfig{}, nil); err != nil {
		return fmt.Errorf("failed to delete platform configs: %w", err)
	}

	s.logger.Info().Msg("All platform configs deleted")
	return nil
}
