package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zen-systems/codefactory/pkg/adapter"
	"github.com/zen-systems/codefactory/pkg/config"
	"github.com/zen-systems/codefactory/pkg/evidence"
	"github.com/zen-systems/codefactory/pkg/transcript"
	"github.com/zen-systems/codefactory/pkg/workspace"
)

func TestDefaultAdapterSelection(t *testing.T) {
	cfg := &config.Config{Policy: config.DefaultCallPolicy()}
	adapters := map[string]adapter.Adapter{"mock": adapter.NewMockAdapter(), "groq": adapter.NewMockAdapter()}

	name, err := defaultAdapter("", cfg, adapters)
	if err != nil || name != "groq" {
		t.Fatalf("expected groq by preference, got %q (%v)", name, err)
	}

	name, err = defaultAdapter("mock", cfg, adapters)
	if err != nil || name != "mock" {
		t.Fatalf("expected explicit mock, got %q (%v)", name, err)
	}

	if _, err := defaultAdapter("openai", cfg, adapters); err == nil {
		t.Fatalf("expected error for unavailable adapter")
	}

	if _, err := defaultAdapter("", cfg, map[string]adapter.Adapter{"mock": adapter.NewMockAdapter()}); err == nil {
		t.Fatalf("expected error when no real adapter is configured")
	}
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	content := "name: small\nstages:\n  - id: coding\n    adapter: groq\n  - id: review\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	cmd := validateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out.String(), "small is valid (2 stages)") {
		t.Fatalf("unexpected output %q", out.String())
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("name: bad\nstages: []\n"), 0644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	cmd = validateCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{bad})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestExtractCommand(t *testing.T) {
	dir := t.TempDir()
	runDir := filepath.Join(dir, "runs")
	writer, err := evidence.NewWriter(runDir, "r1")
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	msgs := []transcript.Message{{Role: transcript.RoleAssistant, Content: workspace.BeginMarker("main.py") + "\nprint(1)\n" + workspace.EndMarker}}
	if err := writer.WriteTranscript(msgs); err != nil {
		t.Fatalf("write transcript: %v", err)
	}

	ws := filepath.Join(dir, "ws")
	cmd := extractCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--transcript", filepath.Join(writer.RunDir(), "transcript.json"), "--workspace", ws})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("extract: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(ws, "main.py"))
	if err != nil {
		t.Fatalf("read main.py: %v", err)
	}
	if string(data) != "print(1)" {
		t.Fatalf("unexpected content %q", string(data))
	}
}

func TestStagesCommandListsDefaults(t *testing.T) {
	cmd := stagesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("stages: %v", err)
	}
	for _, want := range []string{"requirements", "review", "0.3", "ui", "0.8", "FIX_REQUIRED"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected %q in output:\n%s", want, out.String())
		}
	}
}

func TestRunCommandWithMockAdapter(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	dir := t.TempDir()
	ws := filepath.Join(dir, "ws")

	cmd := runCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--adapter", "mock", "--workspace", ws, "--no-tests", "--json", "build", "a", "calculator"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("run: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), `"status": "success"`) {
		t.Fatalf("unexpected output %s", out.String())
	}
}
