package evidence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zen-systems/codefactory/pkg/adapter"
	"github.com/zen-systems/codefactory/pkg/testrunner"
	"github.com/zen-systems/codefactory/pkg/transcript"
)

func TestEvidenceWriter(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(dir, "run-123")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}

	run := RunRecord{
		ID:        "run-123",
		Pipeline:  "default",
		StartedAt: time.Now().UTC(),
		InputHash: HashString("build a calculator"),
		Workspace: dir,
		Status:    "success",
	}
	if err := writer.WriteRun(run); err != nil {
		t.Fatalf("write run: %v", err)
	}

	for i, name := range []string{"coding", "review", "coding"} {
		stage := StageRecord{
			Index:  i,
			Name:   name,
			Output: "ok",
			Calls:  []adapter.CallReport{{Adapter: "mock", Model: "mock-1"}},
		}
		if err := writer.WriteStage(stage); err != nil {
			t.Fatalf("write stage: %v", err)
		}
	}

	msgs := []transcript.Message{{Role: transcript.RoleSystem, Content: "seed"}, {Role: transcript.RoleAssistant, Content: "reply"}}
	if err := writer.WriteTranscript(msgs); err != nil {
		t.Fatalf("write transcript: %v", err)
	}
	if err := writer.WriteTests(testrunner.Aggregate(nil)); err != nil {
		t.Fatalf("write tests: %v", err)
	}

	for _, rel := range []string{"run.json", "transcript.json", "tests.json", "stages/00-coding.json", "stages/01-review.json", "stages/02-coding.json"} {
		if _, err := os.Stat(filepath.Join(writer.RunDir(), filepath.FromSlash(rel))); err != nil {
			t.Fatalf("missing %s: %v", rel, err)
		}
	}

	got, err := ReadTranscript(filepath.Join(writer.RunDir(), "transcript.json"))
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if len(got) != 2 || got[1].Content != "reply" || got[0].Role != transcript.RoleSystem {
		t.Fatalf("unexpected transcript: %+v", got)
	}

	data, err := os.ReadFile(filepath.Join(writer.RunDir(), "tests.json"))
	if err != nil {
		t.Fatalf("read tests: %v", err)
	}
	var report testrunner.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode tests: %v", err)
	}
	if report.Status != testrunner.StatusNoTests {
		t.Fatalf("unexpected test status %q", report.Status)
	}
}

func TestNewWriterRequiresArgs(t *testing.T) {
	if _, err := NewWriter("", "run"); err == nil {
		t.Fatalf("expected error for empty base dir")
	}
	if _, err := NewWriter(t.TempDir(), ""); err == nil {
		t.Fatalf("expected error for empty run ID")
	}
}

func TestTruncate(t *testing.T) {
	if Truncate("abcdef", 3) != "abc" {
		t.Fatalf("expected truncation")
	}
	if Truncate("abc", 0) != "abc" {
		t.Fatalf("limit 0 means no truncation")
	}
}
