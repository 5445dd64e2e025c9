package registry

import (
	"strings"

	"github.com/ternarybob/colligo/internal/models"
)

// BuildCommand maps a platform id plus run options to an executable command
// line. Pure: identical inputs always produce the identical command.
//
// Shape: <runtime> <script> [--verbose] [--headless] [--types=a,b] [--exclude=x,y]
func BuildCommand(runtime string, platform models.Platform, opts models.TriggerOptions) string {
	parts := []string{runtime, ScriptForPlatform(platform.ID)}

	if opts.Verbose {
		parts = append(parts, "--verbose")
	}

	// Headless is the default; visible mode requires explicit opt-in and
	// platform support.
	if !(opts.Visible && platform.SupportsVisible) {
		parts = append(parts, "--headless")
	}

	if platform.SupportsModular {
		if len(opts.AccountTypes) > 0 {
			parts = append(parts, "--types="+strings.Join(opts.AccountTypes, ","))
		}
		if len(opts.ExcludeTypes) > 0 {
			parts = append(parts, "--exclude="+strings.Join(opts.ExcludeTypes, ","))
		}
	}

	return strings.Join(parts, " ")
}
