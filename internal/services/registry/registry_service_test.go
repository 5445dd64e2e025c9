package registry

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

// fakeConfigStorage is an in-memory PlatformConfigStorage with failure
// injection for write-through tests.
type fakeConfigStorage struct {
	configs  map[string]models.PlatformConfig
	failSave bool
}

func newFakeConfigStorage() *fakeConfigStorage {
	return &fakeConfigStorage{configs: make(map[string]models.PlatformConfig)}
}

func (f *fakeConfigStorage) LoadConfigs(ctx context.Context) ([]models.PlatformConfig, error) {
	var out []models.PlatformConfig
	for _, cfg := range f.configs {
		out = append(out, cfg)
	}
	return out, nil
}

func (f *fakeConfigStorage) GetConfig(ctx context.Context, platformID string) (*models.PlatformConfig, error) {
	if cfg, ok := f.configs[platformID]; ok {
		return &cfg, nil
	}
	return nil, nil
}

func (f *fakeConfigStorage) SaveConfig(ctx context.Context, config *models.PlatformConfig) error {
	if f.failSave {
		return fmt.Errorf("storage unavailable")
	}
	f.configs[config.PlatformID] = *config
	return nil
}

func (f *fakeConfigStorage) DeleteAll(ctx context.Context) error {
	f.configs = make(map[string]models.PlatformConfig)
	return nil
}

type stubRunningChecker struct {
	running map[string]bool
}

func (s *stubRunningChecker) IsRunning(platformID string) bool {
	return s.running[platformID]
}

func newTestService(t *testing.T, storage *fakeConfigStorage) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), storage, "node", arbor.NewLogger())
	require.NoError(t, err)
	return svc
}

func platformIDs(platforms []models.Platform) []string {
	ids := make([]string, len(platforms))
	for i, p := range platforms {
		ids[i] = p.ID
	}
	return ids
}

func TestListPlatforms_DefaultsAllEnabledSortedByID(t *testing.T) {
	svc := newTestService(t, newFakeConfigStorage())

	platforms := svc.ListPlatforms()
	assert.Equal(t, []string{"ajbell", "flagstone", "hl", "moneyfacts", "raisin"}, platformIDs(platforms))
}

func TestListPlatforms_OrderingAndOverrides(t *testing.T) {
	storage := newFakeConfigStorage()
	storage.configs["moneyfacts"] = models.PlatformConfig{PlatformID: "moneyfacts", Enabled: true, DisplayOrder: 1}
	storage.configs["raisin"] = models.PlatformConfig{PlatformID: "raisin", Enabled: true, DisplayOrder: 2, CustomName: "Raisin Savings"}
	storage.configs["flagstone"] = models.PlatformConfig{PlatformID: "flagstone", Enabled: false}

	svc := newTestService(t, storage)

	platforms := svc.ListPlatforms()

	// Set order first, unset order last, disabled filtered out.
	assert.Equal(t, []string{"moneyfacts", "raisin", "ajbell", "hl"}, platformIDs(platforms))

	// Custom name override applied.
	assert.Equal(t, "Raisin Savings", platforms[1].Name)
}

func TestListAllPlatforms_AnnotatesRunningStatus(t *testing.T) {
	svc := newTestService(t, newFakeConfigStorage())
	svc.SetRunningChecker(&stubRunningChecker{running: map[string]bool{"flagstone": true}})

	annotated := svc.ListAllPlatforms()
	require.Len(t, annotated, 5)

	byID := make(map[string]models.AnnotatedPlatform)
	for _, p := range annotated {
		byID[p.ID] = p
	}

	assert.Equal(t, models.PlatformStatusRunning, byID["flagstone"].Status)
	assert.Equal(t, models.PlatformStatusAvailable, byID["moneyfacts"].Status)
	assert.True(t, byID["moneyfacts"].Enabled)
}

func TestUpdateConfig_WriteThrough(t *testing.T) {
	storage := newFakeConfigStorage()
	svc := newTestService(t, storage)

	enabled := false
	name := "Custom Moneyfacts"
	err := svc.UpdateConfig(context.Background(), "moneyfacts", models.PlatformConfigUpdate{
		Enabled:    &enabled,
		CustomName: &name,
	})
	require.NoError(t, err)

	// Persisted.
	stored := storage.configs["moneyfacts"]
	assert.False(t, stored.Enabled)
	assert.Equal(t, "Custom Moneyfacts", stored.CustomName)

	// Reflected in subsequent listings.
	assert.NotContains(t, platformIDs(svc.ListPlatforms()), "moneyfacts")
}

func TestUpdateConfig_PersistFailureLeavesMemoryUntouched(t *testing.T) {
	storage := newFakeConfigStorage()
	svc := newTestService(t, storage)

	storage.failSave = true
	enabled := false
	err := svc.UpdateConfig(context.Background(), "moneyfacts", models.PlatformConfigUpdate{Enabled: &enabled})
	require.Error(t, err)

	// In-memory registry still lists the platform as enabled.
	assert.Contains(t, platformIDs(svc.ListPlatforms()), "moneyfacts")
}

func TestUpdateConfig_UnknownPlatform(t *testing.T) {
	svc := newTestService(t, newFakeConfigStorage())

	enabled := true
	err := svc.UpdateConfig(context.Background(), "nope", models.PlatformConfigUpdate{Enabled: &enabled})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown platform")
}

func TestBulkUpdateAndReset(t *testing.T) {
	storage := newFakeConfigStorage()
	svc := newTestService(t, storage)

	off := false
	order := 3
	err := svc.BulkUpdate(context.Background(), map[string]models.PlatformConfigUpdate{
		"moneyfacts": {Enabled: &off},
		"raisin":     {DisplayOrder: &order},
	})
	require.NoError(t, err)

	ids := platformIDs(svc.ListPlatforms())
	assert.NotContains(t, ids, "moneyfacts")
	assert.Equal(t, "raisin", ids[0], "explicit order sorts before unset order")

	require.NoError(t, svc.ResetConfigs(context.Background()))
	assert.Equal(t, []string{"ajbell", "flagstone", "hl", "moneyfacts", "raisin"}, platformIDs(svc.ListPlatforms()))
}

func TestServiceBuildCommand_UnknownPlatformUsesConvention(t *testing.T) {
	svc := newTestService(t, newFakeConfigStorage())

	got := svc.BuildCommand("somebank", models.TriggerOptions{})
	assert.Equal(t, "node somebank-scraper.js --headless", got)
}
