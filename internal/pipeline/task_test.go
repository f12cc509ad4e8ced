package pipeline

import (
	"errors"
	"testing"

	"dubbing/internal/services"
)

func TestBuildTasks(t *testing.T) {
	tests := []struct {
		name      string
		videos    []string
		subtitles []string
		want      []Task
		invalid   bool
	}{
		{
			name:   "videos only",
			videos: []string{"/v/a.mkv", "/v/b.mp4"},
			want:   []Task{{Name: "a", Video: "/v/a.mkv"}, {Name: "b", Video: "/v/b.mp4"}},
		},
		{
			name:      "subtitles only",
			subtitles: []string{"/s/talk.srt"},
			want:      []Task{{Name: "talk", Subtitle: "/s/talk.srt"}},
		},
		{
			name:      "paired by position",
			videos:    []string{"/v/a.mkv", "/v/b.mkv"},
			subtitles: []string{"/s/x.srt", "/s/y.SRT"},
			want: []Task{
				{Name: "a", Video: "/v/a.mkv", Subtitle: "/s/x.srt"},
				{Name: "b", Video: "/v/b.mkv", Subtitle: "/s/y.SRT"},
			},
		},
		{name: "count mismatch", videos: []string{"/v/a.mkv"}, subtitles: []string{"/s/a.srt", "/s/b.srt"}, invalid: true},
		{name: "not srt", subtitles: []string{"/s/a.ass"}, invalid: true},
		{name: "nothing", invalid: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := BuildTasks(tc.videos, tc.subtitles)
			if tc.invalid {
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildTasks: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d tasks, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("task %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestTaskNeedsASR(t *testing.T) {
	if !(Task{Video: "a.mkv"}).NeedsASR() {
		t.Fatal("video without subtitle needs transcription")
	}
	if (Task{Video: "a.mkv", Subtitle: "a.srt"}).NeedsASR() {
		t.Fatal("paired subtitle replaces transcription")
	}
	if got := (Task{Subtitle: "a.srt"}).Input(); got != "a.srt" {
		t.Fatalf("Input = %q", got)
	}
}
