package registry

import "github.com/ternarybob/colligo/internal/models"

// defaultCatalog is the static set of collectible platforms. Persisted
// PlatformConfig records override enablement, ordering and display names but
// never add or remove catalog entries.
func defaultCatalog() []models.Platform {
	return []models.Platform{
		{
			ID:              "moneyfacts",
			Name:            "Moneyfacts",
			SupportsModular: true,
			AccountTypes:    []string{"easy-access", "fixed-term", "notice", "cash-isa"},
		},
		{
			ID:              "flagstone",
			Name:            "Flagstone",
			SupportsVisible: true,
		},
		{
			ID:              "hl",
			Name:            "HL Active Savings",
			SupportsVisible: true,
		},
		{
			ID:   "ajbell",
			Name: "AJ Bell Cash Savings",
		},
		{
			ID:   "raisin",
			Name: "Raisin UK",
		},
	}
}

// scriptOverrides maps platform ids to scraper script names that do not
// follow the <id>-scraper.js convention.
var scriptOverrides = map[string]string{
	"ajbell": "aj-bell-scraper.js",
	"hl":     "hl-active-savings-scraper.js",
}

// ScriptForPlatform resolves the scraper script file for a platform id,
// falling back to the <id>-scraper.js naming convention for unknown ids.
func ScriptForPlatform(platformID string) string {
	if script, ok := scriptOverrides[platformID]; ok {
		return script
	}
	return platformID + "-scraper.js"
}
