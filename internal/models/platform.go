package models

// Platform is an immutable catalog entry describing one external data source
// with a dedicated scraper script.
type Platform struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	SupportsModular bool     `json:"supports_modular"` // Platform supports --types/--exclude account-type selection
	SupportsVisible bool     `json:"supports_visible"` // Platform supports visible (non-headless) browser mode
	AccountTypes    []string `json:"account_types,omitempty"`
}

// PlatformStatus is the derived availability of a platform
type PlatformStatus string

const (
	PlatformStatusAvailable PlatformStatus = "available"
	PlatformStatusRunning   PlatformStatus = "running"
)

// AnnotatedPlatform is a catalog entry combined with its persisted config and
// live running status, used by settings UIs.
type AnnotatedPlatform struct {
	Platform
	Status       PlatformStatus `json:"status"`
	Enabled      bool           `json:"enabled"`
	DisplayOrder int            `json:"display_order"`
	CustomName   string         `json:"custom_name,omitempty"`
}

// PlatformConfig is the persisted, mutable override record for a platform.
// DisplayOrder 0 means unset (sorts last); CustomName "" means unset.
type PlatformConfig struct {
	PlatformID   string `json:"platform_id" badgerhold:"key"`
	Enabled      bool   `json:"enabled"`
	DisplayOrder int    `json:"display_order"`
	CustomName   string `json:"custom_name"`
}

// PlatformConfigUpdate is a partial update applied to a PlatformConfig.
// Nil fields are left unchanged.
type PlatformConfigUpdate struct {
	Enabled      *bool   `json:"enabled,omitempty"`
	DisplayOrder *int    `json:"display_order,omitempty"`
	CustomName   *string `json:"custom_name,omitempty"`
}
