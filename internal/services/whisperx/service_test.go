package whisperx

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func argValue(args []string, flag string) (string, bool) {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return "", false
	}
	return args[idx+1], true
}

func TestBuildArgsDefaults(t *testing.T) {
	svc := NewService(Config{Device: "cuda"}, "")
	args := svc.buildArgs("/tmp/a.wav", "/tmp/out")

	if v, _ := argValue(args, "--model"); v != DefaultModel {
		t.Fatalf("model = %q", v)
	}
	if v, _ := argValue(args, "--batch_size"); v != "4" {
		t.Fatalf("batch size = %q", v)
	}
	if v, _ := argValue(args, "--index-url"); v != CUDAIndexURL {
		t.Fatalf("index url = %q", v)
	}
	if !slices.Contains(args, "--no_align") {
		t.Fatal("alignment should be disabled by default")
	}
	if slices.Contains(args, "--language") || slices.Contains(args, "--hf_token") {
		t.Fatalf("unexpected optional args: %v", args)
	}
	if v, _ := argValue(args, "--compute_type"); v != CUDAComputeType {
		t.Fatalf("compute type = %q", v)
	}
}

func TestBuildArgsDiarizeCPU(t *testing.T) {
	svc := NewService(Config{
		Model:     "large-v3",
		Device:    "cpu",
		Language:  "English",
		Diarize:   true,
		HFToken:   "hf_x",
		BatchSize: 8,
	}, "")
	args := svc.buildArgs("/tmp/a.wav", "/tmp/out")

	if slices.Contains(args, "--no_align") {
		t.Fatal("diarization needs alignment")
	}
	if !slices.Contains(args, "--diarize") {
		t.Fatal("missing --diarize")
	}
	if v, _ := argValue(args, "--hf_token"); v != "hf_x" {
		t.Fatalf("hf token = %q", v)
	}
	if v, _ := argValue(args, "--language"); v != "en" {
		t.Fatalf("language = %q", v)
	}
	if v, _ := argValue(args, "--device"); v != CPUDevice {
		t.Fatalf("device = %q", v)
	}
	if v, _ := argValue(args, "--index-url"); v != PypiIndexURL {
		t.Fatalf("index url = %q", v)
	}
	if !svc.WordTimed() {
		t.Fatal("diarized transcripts are word timed")
	}
}

func TestTranscribeRunsExtractionThenWhisperX(t *testing.T) {
	work := t.TempDir()
	svc := NewService(Config{Align: true}, "ffmpeg-test")
	var calls []string
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		calls = append(calls, name)
		if name != UVXCommand {
			return nil
		}
		outDir, _ := argValue(args, "--output_dir")
		payload := `{"language":"en","segments":[{"text":" Hello world.","start":0.5,"end":1.5,
			"words":[{"word":"Hello","start":0.5,"end":0.9,"score":0.9},{"word":"world."}]}]}`
		return os.WriteFile(filepath.Join(outDir, "talk.whisperx.json"), []byte(payload), 0o644)
	})

	payload, err := svc.Transcribe(context.Background(), "/videos/talk.mkv", work)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if strings.Join(calls, ",") != "ffmpeg-test,uvx" {
		t.Fatalf("unexpected command order %v", calls)
	}
	if payload.Language != "en" || len(payload.Segments) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	words := payload.Segments[0].Words
	if len(words) != 2 || words[0].Start == nil || words[1].Start != nil {
		t.Fatalf("word timing not preserved: %+v", words)
	}
}

func TestTranscribeRequiresWorkDir(t *testing.T) {
	svc := NewService(Config{}, "")
	if _, err := svc.Transcribe(context.Background(), "a.mkv", ""); err == nil {
		t.Fatal("expected error without work dir")
	}
}

func TestLoadPayloadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPayload(path); err == nil {
		t.Fatal("expected parse error")
	}
}
