// Package evidence writes the per-run record of what a pipeline did.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zen-systems/codefactory/pkg/adapter"
	"github.com/zen-systems/codefactory/pkg/testrunner"
	"github.com/zen-systems/codefactory/pkg/transcript"
)

// RunRecord captures run-level metadata and outcome.
type RunRecord struct {
	ID               string            `json:"id"`
	Pipeline         string            `json:"pipeline"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
	InputHash        string            `json:"input_hash"`
	Workspace        string            `json:"workspace"`
	Status           string            `json:"status"`
	Error            string            `json:"error,omitempty"`
	ErrorKind        string            `json:"error_kind,omitempty"`
	ReviewIterations int               `json:"review_iterations"`
	FilesExtracted   int               `json:"files_extracted"`
	Executed         []string          `json:"executed,omitempty"`
	ToolVersions     map[string]string `json:"tool_versions,omitempty"`
}

// StageRecord captures one executed step.
type StageRecord struct {
	Index          int                  `json:"index"`
	Name           string               `json:"name"`
	Worker         string               `json:"worker,omitempty"`
	Output         string               `json:"output,omitempty"`
	OutputHash     string               `json:"output_hash,omitempty"`
	Fallback       bool                 `json:"fallback_reply,omitempty"`
	FixRequired    bool                 `json:"fix_required,omitempty"`
	Calls          []adapter.CallReport `json:"calls,omitempty"`
	Error          string               `json:"error,omitempty"`
	DurationMillis int64                `json:"duration_ms"`
}

// Writer writes evidence bundles to disk.
type Writer struct {
	baseDir string
	runDir  string
}

// NewWriter creates a new evidence writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(filepath.Join(runDir, "stages"), 0755); err != nil {
		return nil, err
	}

	return &Writer{baseDir: baseDir, runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// WriteStage writes a stage record to stages/NN-<stage>.json. The index
// prefix keeps re-executed stages from overwriting each other.
func (w *Writer) WriteStage(record StageRecord) error {
	if record.Name == "" {
		return fmt.Errorf("stage name is required")
	}
	path := filepath.Join(w.runDir, "stages", fmt.Sprintf("%02d-%s.json", record.Index, record.Name))
	return writeJSON(path, record)
}

// WriteTranscript writes the run's messages to transcript.json.
func (w *Writer) WriteTranscript(messages []transcript.Message) error {
	if messages == nil {
		messages = []transcript.Message{}
	}
	return writeJSON(filepath.Join(w.runDir, "transcript.json"), messages)
}

// WriteTests writes the aggregate test report to tests.json.
func (w *Writer) WriteTests(report *testrunner.Report) error {
	if report == nil {
		return fmt.Errorf("test report is required")
	}
	return writeJSON(filepath.Join(w.runDir, "tests.json"), report)
}

// ReadTranscript loads a transcript.json written by WriteTranscript.
func ReadTranscript(path string) ([]transcript.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var messages []transcript.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	return messages, nil
}

// HashString returns the hex SHA-256 of value.
func HashString(value string) string {
	h := sha256.Sum256([]byte(value))
	return hex.EncodeToString(h[:])
}

// Truncate shortens value to at most limit bytes.
func Truncate(value string, limit int) string {
	if limit <= 0 || len(value) <= limit {
		return value
	}
	return value[:limit]
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
