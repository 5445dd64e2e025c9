package classifier

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Service implements OutputClassifier. All methods are pure functions over
// their inputs; extraction is best-effort and never returns an error.
type Service struct{}

var _ interfaces.OutputClassifier = (*Service)(nil)

// NewService creates a new output classifier
func NewService() *Service {
	return &Service{}
}

// Allow-list of structural lines kept in normal display mode.
var displayAllowPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[(Info|Progress|Warning|Error)\]`),
	regexp.MustCompile(`Starting extraction`),
	regexp.MustCompile(`Completed successfully`),
	regexp.MustCompile(`Found \d+`),
	regexp.MustCompile(`Processed \d+`),
}

// Deny-list of noise suppressed in normal display mode even when an allow
// pattern matches.
var displayDenyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[Debug\]`),
	regexp.MustCompile(`(?i)DevTools listening`),
	regexp.MustCompile(`(?i)(chromium|puppeteer|browser) (launch|clos|start|exit)`),
}

// Leading status markers recognized by ExtractProgress.
var progressMarkers = []struct {
	prefix string
	kind   models.ProgressKind
}{
	{"✅", models.ProgressSuccess},
	{"⚠️", models.ProgressWarning},
	{"❌", models.ProgressError},
	{"🔄", models.ProgressInfo},
}

var (
	recordCountRe    = regexp.MustCompile(`Found (\d+) rates`)
	processedCountRe = regexp.MustCompile(`Processed (\d+) products for database`)
	completionRe     = regexp.MustCompile(`(.+): Completed successfully`)
	separatorRe      = regexp.MustCompile(`^[-=]{20,}$`)
	filesLineRe      = regexp.MustCompile(`Files:\s*(.+)`)
)

// FilterForDisplay drops noise lines in normal mode. Debug mode returns the
// text unmodified, so debug output is always a superset of normal output.
// Order-preserving.
func (s *Service) FilterForDisplay(text string, debug bool) string {
	if debug {
		return text
	}

	lines := strings.Split(text, "\n")
	var kept []string

	for _, line := range lines {
		if s.isDisplayLine(line) {
			kept = append(kept, line)
		}
	}

	return strings.Join(kept, "\n")
}

// isDisplayLine applies the deny-list first, then the allow-list and status
// markers.
func (s *Service) isDisplayLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	for _, re := range displayDenyPatterns {
		if re.MatchString(trimmed) {
			return false
		}
	}

	for _, marker := range progressMarkers {
		if strings.HasPrefix(trimmed, marker.prefix) {
			return true
		}
	}

	for _, re := range displayAllowPatterns {
		if re.MatchString(trimmed) {
			return true
		}
	}

	return false
}

// ExtractProgress classifies a single line by its leading status marker,
// stripping the marker from the message. Returns false when no marker
// matches.
func (s *Service) ExtractProgress(line string) (*models.ProgressEvent, bool) {
	trimmed := strings.TrimSpace(line)

	for _, marker := range progressMarkers {
		if strings.HasPrefix(trimmed, marker.prefix) {
			return &models.ProgressEvent{
				Kind:    marker.kind,
				Message: strings.TrimSpace(strings.TrimPrefix(trimmed, marker.prefix)),
			}, true
		}
	}

	return nil, false
}

// ExtractResults computes the results summary from the full raw output, the
// exit code and the operator-kill flag. Total: unmatched patterns leave
// fields absent, never an error.
func (s *Service) ExtractResults(output string, exitCode int, killed bool) *models.Results {
	results := &models.Results{
		Success: exitCode == 0,
	}

	if m := recordCountRe.FindStringSubmatch(output); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			results.RecordCount = &n
		}
	}

	if m := processedCountRe.FindStringSubmatch(output); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			results.ProcessedCount = &n
		}
	}

	if m := completionRe.FindStringSubmatch(output); m != nil {
		results.Message = strings.TrimSpace(m[0])
	}

	if !results.Success {
		results.Error = extractErrorMessage(output, exitCode, killed)
	}

	if files := extractFileManifest(output); len(files) > 0 {
		results.Files = files
	}

	return results
}

// extractErrorMessage collects the first few lines that look like errors.
// Without any, it synthesizes a message from how the process died: the killed
// flag marks operator termination, a negative exit code a signal death.
func extractErrorMessage(output string, exitCode int, killed bool) string {
	var errorLines []string
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.Contains(trimmed, "[Error]") || strings.Contains(trimmed, "Failed") || strings.HasPrefix(trimmed, "❌") {
			errorLines = append(errorLines, trimmed)
			if len(errorLines) >= 3 {
				break
			}
		}
	}

	if len(errorLines) == 0 {
		if killed {
			return "terminated by operator"
		}
		if exitCode < 0 {
			return "process terminated by signal"
		}
		return "process exited with code " + strconv.Itoa(exitCode)
	}

	return strings.Join(errorLines, "; ")
}

// extractFileManifest parses the "Platform Results:" section for "Files:"
// entries, classifying each path into a semantic role. The section is bounded
// by a blank line, a long separator line, or end of text. Last write wins per
// role.
func extractFileManifest(output string) map[string]string {
	lines := strings.Split(output, "\n")

	inSection := false
	files := make(map[string]string)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if !inSection {
			if strings.Contains(trimmed, "Platform Results:") {
				inSection = true
			}
			continue
		}

		if trimmed == "" || separatorRe.MatchString(trimmed) {
			break
		}

		m := filesLineRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}

		for _, path := range strings.Split(m[1], ",") {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			files[classifyFileRole(path)] = path
		}
	}

	if len(files) == 0 {
		return nil
	}
	return files
}

// classifyFileRole assigns a semantic role by filename heuristic.
func classifyFileRole(path string) string {
	name := strings.ToLower(path)
	base := name
	if idx := strings.LastIndexAny(base, "/\\"); idx >= 0 {
		base = base[idx+1:]
	}

	switch {
	case strings.Contains(base, "raw"):
		return models.FileRoleRaw
	case strings.Contains(base, "normalized"):
		return models.FileRoleNormalized
	case strings.HasSuffix(base, ".log"):
		return models.FileRoleLog
	default:
		return models.FileRoleMain
	}
}
