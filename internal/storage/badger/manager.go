package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
)

// Manager bundles the Badger-backed storage implementations behind one
// connection.
type Manager struct {
	db             *BadgerDB
	platformConfig interfaces.PlatformConfigStorage
	logger         arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:             db,
		platformConfig: NewPlatformConfigStorage(db, logger),
		logger:         logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// PlatformConfigStorage returns the platform config storage interface
func (m *Manager) PlatformConfigStorage() interfaces.PlatformConfigStorage {
	return m.platformConfig
}

// Close closes the underlying database connection
func (m *Manager) Close() error {
	return m.db.Close()
}
