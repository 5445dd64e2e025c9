package classifier

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/colligo/internal/models"
)

func TestFilterForDisplay_NormalMode(t *testing.T) {
	s := NewService()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "debug dropped, info kept",
			input: "[Debug] noisy line\n[Info] Starting extraction",
			want:  []string{"[Info] Starting extraction"},
		},
		{
			name:  "browser chatter dropped",
			input: "DevTools listening on ws://127.0.0.1:9222\nChromium launch complete\n[Progress] Page 2 of 10",
			want:  []string{"[Progress] Page 2 of 10"},
		},
		{
			name:  "counts and completion kept",
			input: "random chatter\nFound 41 rates\nProcessed 41 products\nmoneyfacts: Completed successfully",
			want:  []string{"Found 41 rates", "Processed 41 products", "moneyfacts: Completed successfully"},
		},
		{
			name:  "status emoji kept",
			input: "✅ Found 41 rates\nsome internal trace",
			want:  []string{"✅ Found 41 rates"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.FilterForDisplay(tt.input, false)
			if len(tt.want) == 0 {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, strings.Join(tt.want, "\n"), got)
		})
	}
}

func TestFilterForDisplay_DebugModeIsSuperset(t *testing.T) {
	s := NewService()

	input := strings.Join([]string{
		"[Debug] internal state dump",
		"[Info] Starting extraction",
		"DevTools listening on ws://localhost",
		"✅ Found 12 rates",
		"unstructured chatter",
	}, "\n")

	debug := s.FilterForDisplay(input, true)
	normal := s.FilterForDisplay(input, false)

	assert.Equal(t, input, debug, "debug mode must return input unmodified")

	debugLines := strings.Split(debug, "\n")
	for _, line := range strings.Split(normal, "\n") {
		assert.Contains(t, debugLines, line)
	}
	assert.GreaterOrEqual(t, len(debugLines), len(strings.Split(normal, "\n")))
}

func TestExtractProgress(t *testing.T) {
	s := NewService()

	tests := []struct {
		line     string
		wantKind models.ProgressKind
		wantMsg  string
		wantOK   bool
	}{
		{"✅ Found 41 rates", models.ProgressSuccess, "Found 41 rates", true},
		{"  ✅ trimmed leading space", models.ProgressSuccess, "trimmed leading space", true},
		{"⚠️ Slow response from site", models.ProgressWarning, "Slow response from site", true},
		{"❌ Login failed", models.ProgressError, "Login failed", true},
		{"🔄 Fetching page 3", models.ProgressInfo, "Fetching page 3", true},
		{"[Info] no marker here", "", "", false},
		{"plain line", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			event, ok := s.ExtractProgress(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				assert.Nil(t, event)
				return
			}
			require.NotNil(t, event)
			assert.Equal(t, tt.wantKind, event.Kind)
			assert.Equal(t, tt.wantMsg, event.Message)
		})
	}
}

func TestExtractResults_SuccessScenario(t *testing.T) {
	s := NewService()

	output := strings.Join([]string{
		"[Info] Starting extraction",
		"✅ Found 41 rates",
		"Processed 41 products for database",
		"moneyfacts: Completed successfully",
	}, "\n")

	results := s.ExtractResults(output, 0, false)

	require.NotNil(t, results)
	assert.True(t, results.Success)
	require.NotNil(t, results.RecordCount)
	assert.Equal(t, 41, *results.RecordCount)
	require.NotNil(t, results.ProcessedCount)
	assert.Equal(t, 41, *results.ProcessedCount)
	assert.Equal(t, "moneyfacts: Completed successfully", results.Message)
	assert.Empty(t, results.Error)
}

func TestExtractResults_FailureCollectsErrorLines(t *testing.T) {
	s := NewService()

	output := strings.Join([]string{
		"[Info] Starting extraction",
		"[Error] Timeout waiting for selector",
		"Navigation Failed after 3 attempts",
		"[Error] Session closed",
		"[Error] a fourth error that is ignored",
	}, "\n")

	results := s.ExtractResults(output, 1, false)

	assert.False(t, results.Success)
	assert.Contains(t, results.Error, "Timeout waiting for selector")
	assert.Contains(t, results.Error, "Navigation Failed")
	assert.Contains(t, results.Error, "Session closed")
	assert.NotContains(t, results.Error, "fourth error")
}

func TestExtractResults_FailureWithoutErrorLines(t *testing.T) {
	s := NewService()

	results := s.ExtractResults("nothing useful here", 7, false)
	assert.False(t, results.Success)
	assert.Equal(t, "process exited with code 7", results.Error)
	assert.Nil(t, results.RecordCount)
	assert.Nil(t, results.ProcessedCount)
}

func TestExtractResults_TerminationLabels(t *testing.T) {
	s := NewService()

	t.Run("operator kill", func(t *testing.T) {
		results := s.ExtractResults("[Info] Starting extraction", models.ExitCodeKilled, true)
		assert.False(t, results.Success)
		assert.Equal(t, "terminated by operator", results.Error)
	})

	t.Run("signal death is not an operator kill", func(t *testing.T) {
		// External signals (SIGSEGV, OOM) also surface as exit code -1; only
		// the killed flag may produce the operator label.
		results := s.ExtractResults("[Info] Starting extraction", -1, false)
		assert.False(t, results.Success)
		assert.Equal(t, "process terminated by signal", results.Error)
	})

	t.Run("error lines win over the kill label", func(t *testing.T) {
		results := s.ExtractResults("[Error] session lost", models.ExitCodeKilled, true)
		assert.Contains(t, results.Error, "session lost")
		assert.NotContains(t, results.Error, "terminated by operator")
	})
}

func TestExtractResults_FileManifest(t *testing.T) {
	s := NewService()

	tests := []struct {
		name   string
		output string
		want   map[string]string
	}{
		{
			name: "section bounded by blank line",
			output: strings.Join([]string{
				"Platform Results:",
				"Files: output/moneyfacts-raw-2025-11-14.json, output/moneyfacts-normalized-2025-11-14.json",
				"Files: logs/moneyfacts.log, output/moneyfacts-2025-11-14.json",
				"",
				"Files: after/section-ends.json",
			}, "\n"),
			want: map[string]string{
				models.FileRoleRaw:        "output/moneyfacts-raw-2025-11-14.json",
				models.FileRoleNormalized: "output/moneyfacts-normalized-2025-11-14.json",
				models.FileRoleLog:        "logs/moneyfacts.log",
				models.FileRoleMain:       "output/moneyfacts-2025-11-14.json",
			},
		},
		{
			name: "section bounded by separator",
			output: strings.Join([]string{
				"Platform Results:",
				"Files: data-raw.json",
				"========================================",
				"Files: ignored.json",
			}, "\n"),
			want: map[string]string{
				models.FileRoleRaw: "data-raw.json",
			},
		},
		{
			name: "last write wins per role",
			output: strings.Join([]string{
				"Platform Results:",
				"Files: first-raw.json",
				"Files: second-raw.json",
			}, "\n"),
			want: map[string]string{
				models.FileRoleRaw: "second-raw.json",
			},
		},
		{
			name:   "no section",
			output: "Files: ignored-raw.json",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := s.ExtractResults(tt.output, 0, false)
			if tt.want == nil {
				assert.Nil(t, results.Files)
				return
			}
			assert.Equal(t, tt.want, results.Files)
		})
	}
}

func TestExtractResults_Idempotent(t *testing.T) {
	s := NewService()

	output := "✅ Found 8 rates\nPlatform Results:\nFiles: a-raw.json, b.log"

	first := s.ExtractResults(output, 0, false)
	second := s.ExtractResults(output, 0, false)

	assert.Equal(t, first, second)
}
