package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"dubbing/internal/config"
	"dubbing/internal/ledger"
	"dubbing/internal/pipeline"
)

type cliTestEnv struct {
	base       string
	configPath string
	stateDir   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	env := &cliTestEnv{
		base:       base,
		configPath: filepath.Join(base, "config.toml"),
		stateDir:   filepath.Join(base, "state"),
	}
	content := fmt.Sprintf(`[paths]
work_dir = %q
state_dir = %q
log_dir = %q

[llm]
api_key = "test-key"
`, filepath.Join(base, "work"), env.stateDir, filepath.Join(base, "logs"))
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "translate=yes")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("init must refuse to overwrite without --overwrite")
	}
}

func TestHistoryListsRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	store, err := ledger.Open(env.stateDir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	const runID = "3f2a9c1e-0000-4000-8000-000000000001"
	if err := store.BeginRun(ctx, runID, "{}", 1); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordFile(ctx, ledger.FileResult{
		RunID: runID, Name: "lecture", Stage: "tts", Status: ledger.StatusFailed,
		Error: "edge-tts: connection reset", Duration: 3 * time.Second,
	}); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, runID, ledger.StatusFailed, 1); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	out, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "3f2a9c1e")
	requireContains(t, out, "failed")

	out, err = runCLI(t, []string{"history", "3f2a"}, env.configPath)
	if err != nil {
		t.Fatalf("history run: %v", err)
	}
	requireContains(t, out, "lecture")
	requireContains(t, out, "connection reset")

	if _, err := runCLI(t, []string{"history", "ffff"}, env.configPath); err == nil {
		t.Fatal("unknown run id should fail")
	}
}

func TestRunRejectsUnpairedInputs(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := filepath.Join(env.base, "in")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.mkv", "a.srt", "b.srt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	_, err := runCLI(t, []string{"run", "--skip-preflight",
		"--videos", filepath.Join(dir, "a.mkv"),
		"--subtitles", filepath.Join(dir, "*.srt"),
	}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "1 videos but 2 subtitles") {
		t.Fatalf("expected pairing error, got %v", err)
	}
}

func TestRunFlagsOverrideConfig(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.LLM.APIKey = "key"

	cmd := &cobra.Command{}
	var flags runFlags
	bindRunFlags(cmd, &flags)
	out := filepath.Join(base, "out")
	if err := cmd.ParseFlags([]string{"-t", "English", "--no-tts", "-j", "3", "-o", out}); err != nil {
		t.Fatal(err)
	}
	if err := flags.apply(cmd, &cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Translate.TargetLang != "English" || cfg.TTS.Enabled || cfg.Workflow.MaxParallelFiles != 3 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.TTS.Voice != config.Default().TTS.Voice {
		t.Fatal("unset flags must keep config values")
	}
	if info, err := os.Stat(out); err != nil || !info.IsDir() {
		t.Fatalf("output dir not created: %v", err)
	}

	cmd = &cobra.Command{}
	bindRunFlags(cmd, &flags)
	if err := cmd.ParseFlags([]string{"-j", "0"}); err != nil {
		t.Fatal(err)
	}
	if err := flags.apply(cmd, &cfg); err == nil {
		t.Fatal("invalid override should fail validation")
	}
}

func TestRenderReport(t *testing.T) {
	outDir := t.TempDir()
	srt := filepath.Join(outDir, "talk.trans.srt")
	if err := os.WriteFile(srt, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	report := pipeline.Report{
		RunID:      "abcdef0123456789",
		StartedAt:  start,
		FinishedAt: start.Add(75 * time.Second),
		Files: []pipeline.FileOutcome{
			{Name: "talk", Status: ledger.StatusSucceeded, Outputs: []string{srt}, Duration: 70 * time.Second},
			{Name: "demo", Status: ledger.StatusFailed, Stage: pipeline.StageTTS, Err: errors.New("edge-tts: 503")},
		},
	}
	var buf bytes.Buffer
	renderReport(&buf, report, false)
	out := buf.String()
	requireContains(t, out, "talk.trans.srt (2.0 kB)")
	requireContains(t, out, "edge-tts: 503")
	requireContains(t, out, "1m10s")
	requireContains(t, out, "Run abcdef01: 1 of 2 files succeeded in 1m15s")
}

func TestWorkdirListAndClean(t *testing.T) {
	env := setupCLITestEnv(t)
	work := filepath.Join(env.base, "work")
	stale := filepath.Join(work, "old-talk-1f2e")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stale, "batch0001.wav"), make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-40 * 24 * time.Hour)
	for _, p := range []string{filepath.Join(stale, "batch0001.wav"), stale} {
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(work, "fresh-9a8b"), 0o755); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, []string{"workdir", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("workdir list: %v", err)
	}
	requireContains(t, out, "old-talk-1f2e")
	requireContains(t, out, "Total: 2 directories, 2.0 kB")

	out, err = runCLI(t, []string{"workdir", "clean"}, env.configPath)
	if err != nil {
		t.Fatalf("workdir clean: %v", err)
	}
	requireContains(t, out, "Removed 1 work directories (2.0 kB)")
	if _, err := os.Stat(filepath.Join(work, "fresh-9a8b")); err != nil {
		t.Fatal("recent directory should survive")
	}

	out, err = runCLI(t, []string{"workdir", "clean", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("workdir clean --all: %v", err)
	}
	requireContains(t, out, "Removed 1 work directories")
}

func TestTestNotifyRequiresTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "ntfy_topic") {
		t.Fatalf("expected missing topic error, got %v", err)
	}
}
