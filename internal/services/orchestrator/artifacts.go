package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// sweepArtifacts removes transient artifact files left behind by a
// successful run. Matching is name-based: files whose name contains the run
// date formatted with the configured layout, scoped to the configured
// artifact directories and the platform's own subdirectory. Best effort
// throughout: failures are logged, never propagated.
func (s *Service) sweepArtifacts(platformID string, runDate time.Time) {
	if len(s.config.ArtifactDirs) == 0 {
		return
	}

	layout := s.config.ArtifactDateLayout
	if layout == "" {
		layout = "2006-01-02"
	}
	dateToken := runDate.Format(layout)

	removed := 0
	for _, dir := range s.config.ArtifactDirs {
		for _, candidate := range []string{filepath.Join(dir, platformID), dir} {
			removed += s.sweepDir(candidate, platformID, dateToken)
		}
	}

	if removed > 0 {
		s.logger.Info().
			Str("platform_id", platformID).
			Int("removed", removed).
			Str("date", dateToken).
			Msg("Removed transient artifact files")
	}
}

// sweepDir deletes matching regular files directly inside dir. Files are
// matched when the name carries both the platform id and the date token so a
// shared artifact directory never loses another platform's output.
func (s *Service) sweepDir(dir, platformID, dateToken string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("dir", dir).Msg("Artifact sweep could not read directory")
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.Contains(name, dateToken) {
			continue
		}
		// Inside the platform subdirectory every dated file belongs to the
		// platform; in shared directories require the platform id in the name.
		if filepath.Base(dir) != platformID && !strings.Contains(name, platformID) {
			continue
		}

		path := filepath.Join(dir, name)
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("file", path).Msg("Failed to remove artifact file")
			continue
		}
		removed++
	}
	return removed
}
