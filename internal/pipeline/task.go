package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"dubbing/internal/fileutil"
	"dubbing/internal/services"
)

// Task is one input file. Video is empty for subtitle-only tasks;
// Subtitle is empty when the transcript comes from speech recognition.
type Task struct {
	Name     string
	Video    string
	Subtitle string
}

// Input returns the file the task is named after.
func (t Task) Input() string {
	if t.Video != "" {
		return t.Video
	}
	return t.Subtitle
}

// NeedsASR reports whether the task transcribes its video.
func (t Task) NeedsASR() bool {
	return t.Subtitle == ""
}

// BuildTasks pairs expanded video and subtitle paths.
//
//   - videos only: each video is transcribed
//   - subtitles only: subtitles are translated and voiced without a video
//   - both: counts must match and pair by position; no transcription runs
//
// Subtitles must be SRT files.
func BuildTasks(videos, subtitles []string) ([]Task, error) {
	if len(videos) == 0 && len(subtitles) == 0 {
		return nil, services.Wrap(services.ErrValidation, "input", "pair files", "no videos or subtitles given", nil)
	}
	for _, sub := range subtitles {
		if !strings.EqualFold(filepath.Ext(sub), ".srt") {
			return nil, services.Wrap(services.ErrValidation, "input", "pair files",
				fmt.Sprintf("unsupported subtitle %q (only .srt)", filepath.Base(sub)), nil)
		}
	}
	if len(videos) > 0 && len(subtitles) > 0 && len(videos) != len(subtitles) {
		return nil, services.Wrap(services.ErrValidation, "input", "pair files",
			fmt.Sprintf("%d videos but %d subtitles", len(videos), len(subtitles)), nil)
	}

	n := max(len(videos), len(subtitles))
	tasks := make([]Task, n)
	for i := range n {
		var task Task
		if len(videos) > 0 {
			task.Video = videos[i]
		}
		if len(subtitles) > 0 {
			task.Subtitle = subtitles[i]
		}
		task.Name = fileutil.Stem(task.Input())
		tasks[i] = task
	}
	return tasks, nil
}
