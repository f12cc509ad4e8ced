package ffmpeg

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"dubbing/internal/media/wavio"
	"dubbing/internal/reconcile"
)

type call struct {
	name string
	args []string
}

func argValue(args []string, flag string) string {
	idx := slices.Index(args, flag)
	if idx < 0 || idx+1 >= len(args) {
		return ""
	}
	return args[idx+1]
}

func TestAtempoChain(t *testing.T) {
	tests := []struct {
		speed float64
		want  string
	}{
		{1.25, "atempo=1.25"},
		{2, "atempo=2"},
		{5, "atempo=2.0,atempo=2.0,atempo=1.25"},
		{0.25, "atempo=0.5,atempo=0.5"},
	}
	for _, tc := range tests {
		if got := AtempoChain(tc.speed); got != tc.want {
			t.Errorf("AtempoChain(%v) = %q, want %q", tc.speed, got, tc.want)
		}
	}
}

func TestSpeedFactor(t *testing.T) {
	tests := []struct{ actual, target, want float64 }{
		{2.0, 1.0, 2.0},
		{1.01, 1.0, 1.01},
		{1.001, 1.0, 1.01},
		{3.3, 3.0, 1.1},
	}
	for _, tc := range tests {
		if got := SpeedFactor(tc.actual, tc.target); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("SpeedFactor(%v, %v) = %v, want %v", tc.actual, tc.target, got, tc.want)
		}
	}
}

func TestConcatInsertsSilenceAndSpeedsUp(t *testing.T) {
	work := t.TempDir()
	var calls []call
	tool := New("ffmpeg-test", WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, call{name: name, args: args})
		if filter := argValue(args, "-filter:a"); filter != "" {
			// Pretend the stretched clip came out at exactly one second.
			return nil, wavio.WriteSilence(args[len(args)-1], 1.0, SampleRate)
		}
		return nil, nil
	}))

	segments := []reconcile.Segment{
		{Source: filepath.Join(work, "a.wav"), TargetStart: 0.5, TargetDuration: 1.0, ActualDuration: 0.8},
		{Source: filepath.Join(work, "b.wav"), TargetStart: 1.8, TargetDuration: 1.0, ActualDuration: 2.0},
	}
	stats, err := tool.Concat(context.Background(), segments, work, filepath.Join(work, "out.wav"))
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if stats.Segments != 2 || stats.SpedUp != 1 || stats.Overspeed != 1 || stats.MaxSpeed != 2.0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if math.Abs(stats.Silence-1.0) > 1e-9 || math.Abs(stats.Duration-2.8) > 1e-3 {
		t.Fatalf("unexpected timing %+v", stats)
	}

	if len(calls) != 2 {
		t.Fatalf("expected speed change and concat, got %d calls", len(calls))
	}
	if got := argValue(calls[0].args, "-filter:a"); got != "atempo=2" {
		t.Fatalf("filter = %q", got)
	}
	if calls[1].name != "ffmpeg-test" || argValue(calls[1].args, "-f") != "concat" {
		t.Fatalf("unexpected concat call %+v", calls[1])
	}

	list, err := os.ReadFile(argValue(calls[1].args, "-i"))
	if err != nil {
		t.Fatalf("read list: %v", err)
	}
	var names []string
	for _, line := range strings.Split(strings.TrimSpace(string(list)), "\n") {
		names = append(names, filepath.Base(strings.Trim(strings.TrimPrefix(line, "file "), "'")))
	}
	want := "silence_0000.wav,a.wav,silence_0001.wav,speed_0001.wav"
	if strings.Join(names, ",") != want {
		t.Fatalf("concat order = %v, want %s", names, want)
	}
}

func TestConcatRejectsEmpty(t *testing.T) {
	if _, err := New("").Concat(context.Background(), nil, t.TempDir(), "out.wav"); err == nil {
		t.Fatal("expected error for empty segment list")
	}
}

func TestConcatListEscapesQuotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	if err := writeConcatList(path, []string{"/clips/it's.wav"}); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != `file '/clips/it'\''s.wav'`+"\n" {
		t.Fatalf("unexpected list %q", data)
	}
}

func TestAddAudioTrackPutsDubFirst(t *testing.T) {
	var got []string
	tool := New("", WithRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != Command {
			t.Errorf("binary = %s", name)
		}
		got = args
		return nil, nil
	}))
	if err := tool.AddAudioTrack(context.Background(), "in.mkv", "dub.wav", "out.tts.mp4", "zh-CN-YunyangNeural", "chi"); err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(got, " ")
	if !strings.Contains(joined, "-map 0:v -map 1:a -map 0:a?") {
		t.Fatalf("unexpected mapping: %s", joined)
	}
	if !strings.Contains(joined, "-metadata:s:a:0 title=zh-CN-YunyangNeural") || !strings.Contains(joined, "language=chi") {
		t.Fatalf("missing metadata: %s", joined)
	}
	if got[len(got)-1] != "out.tts.mp4" {
		t.Fatalf("output not last: %v", got)
	}
}

func TestFailureIncludesToolOutput(t *testing.T) {
	tool := New("ffmpeg", WithRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Invalid data found\n"), errors.New("exit status 1")
	}))
	err := tool.ConvertToWAV(context.Background(), "in.mp3", "out.wav")
	if err == nil || !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}
