package tts

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T, runner Runner, opts ...Option) (*Service, *[]time.Duration) {
	t.Helper()
	var sleeps []time.Duration
	opts = append([]Option{
		WithRunner(runner),
		WithSleeper(func(d time.Duration) { sleeps = append(sleeps, d) }),
	}, opts...)
	return New(Config{Requests: 1000, Window: time.Second}, opts...), &sleeps
}

func argAfter(args []string, n int) string {
	return args[len(args)-n]
}

func TestSynthesizeParsesBoundaries(t *testing.T) {
	out := filepath.Join(t.TempDir(), "batch.mp3")
	var gotStdin string
	svc, _ := newTestService(t, func(_ context.Context, stdin, name string, args ...string) ([]byte, error) {
		gotStdin = stdin
		if name != UVXCommand || argAfter(args, 2) != "zh-CN-YunyangNeural" {
			t.Errorf("unexpected command %s %v", name, args)
		}
		if err := os.WriteFile(argAfter(args, 1), []byte("mp3"), 0o644); err != nil {
			return nil, err
		}
		return []byte(`{"offset": 1000000, "duration": 5000000, "text": "Tom &amp; Jerry"}
{"offset": 8000000, "duration": 2500000, "text": "run"}
`), nil
	})

	words, err := svc.Synthesize(context.Background(), "Tom & Jerry\nrun", "zh-CN-YunyangNeural", out)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotStdin != "Tom & Jerry\nrun" {
		t.Fatalf("text not passed on stdin: %q", gotStdin)
	}
	want := []WordTiming{{Start: 0.1, End: 0.6, Text: "Tom & Jerry"}, {Start: 0.8, End: 1.05, Text: "run"}}
	if len(words) != len(want) {
		t.Fatalf("got %d words", len(words))
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("word %d = %+v, want %+v", i, words[i], want[i])
		}
	}
}

func TestSynthesizeRetriesAndRemovesPartialAudio(t *testing.T) {
	out := filepath.Join(t.TempDir(), "batch.mp3")
	calls := 0
	svc, sleeps := newTestService(t, func(_ context.Context, _, _ string, args ...string) ([]byte, error) {
		calls++
		path := argAfter(args, 1)
		if calls < 3 {
			if _, err := os.Stat(path); err == nil {
				t.Errorf("attempt %d started with a stale audio file", calls)
			}
			_ = os.WriteFile(path, []byte("partial"), 0o644)
			return nil, errors.New("connection reset")
		}
		if err := os.WriteFile(path, []byte("complete"), 0o644); err != nil {
			return nil, err
		}
		return []byte(`{"offset": 0, "duration": 10000000, "text": "ok"}`), nil
	})

	if _, err := svc.Synthesize(context.Background(), "ok", "v", out); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(*sleeps) != 2 || (*sleeps)[0] != time.Second || (*sleeps)[1] != 2*time.Second {
		t.Fatalf("unexpected backoff %v", *sleeps)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "complete" {
		t.Fatalf("audio = %q", data)
	}
}

func TestSynthesizeRejectsMissingBoundaries(t *testing.T) {
	out := filepath.Join(t.TempDir(), "batch.mp3")
	svc, _ := newTestService(t, func(_ context.Context, _, _ string, args ...string) ([]byte, error) {
		_ = os.WriteFile(argAfter(args, 1), []byte("mp3"), 0o644)
		return nil, nil
	}, WithRetryMaxAttempts(2))

	_, err := svc.Synthesize(context.Background(), "hello", "v", out)
	if err == nil || !strings.Contains(err.Error(), "failed after 2 attempts") {
		t.Fatalf("expected capped failure, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Fatal("partial audio left behind")
	}
}

func TestSynthesizeMissingBinaryIsPermanent(t *testing.T) {
	calls := 0
	svc, _ := newTestService(t, func(context.Context, string, string, ...string) ([]byte, error) {
		calls++
		return nil, exec.ErrNotFound
	})
	if _, err := svc.Synthesize(context.Background(), "hello", "v", filepath.Join(t.TempDir(), "a.mp3")); !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("missing binary retried %d times", calls)
	}
}

func TestSynthesizeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc, _ := newTestService(t, func(context.Context, string, string, ...string) ([]byte, error) {
		cancel()
		return nil, errors.New("boom")
	})
	if _, err := svc.Synthesize(ctx, "hello", "v", filepath.Join(t.TempDir(), "a.mp3")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	svc, _ := newTestService(t, func(context.Context, string, string, ...string) ([]byte, error) {
		t.Fatal("runner should not be called")
		return nil, nil
	})
	if _, err := svc.Synthesize(context.Background(), "  ", "v", "x.mp3"); err == nil {
		t.Fatal("expected error")
	}
}
