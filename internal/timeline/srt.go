package timeline

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asticode/go-astisub"
)

// ReadSRT parses an SRT document. Multi-line cues are joined with a space.
func ReadSRT(r io.Reader) (*Timeline, error) {
	subs, err := astisub.ReadFromSRT(r)
	if err != nil {
		return nil, fmt.Errorf("parse srt: %w", err)
	}
	out := &Timeline{Entries: make([]Entry, 0, len(subs.Items))}
	for _, item := range subs.Items {
		lines := make([]string, 0, len(item.Lines))
		for _, line := range item.Lines {
			var b strings.Builder
			for _, li := range line.Items {
				b.WriteString(li.Text)
			}
			if text := strings.TrimSpace(b.String()); text != "" {
				lines = append(lines, text)
			}
		}
		out.Entries = append(out.Entries, Entry{
			Start: item.StartAt.Seconds(),
			End:   item.EndAt.Seconds(),
			Text:  strings.Join(lines, " "),
		})
	}
	return out.Renumber(), nil
}

// ReadFile loads an SRT file.
func ReadFile(path string) (*Timeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open srt: %w", err)
	}
	defer f.Close()
	tl, err := ReadSRT(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tl, nil
}

// WriteSRT serializes the timeline. Newlines inside a text become separate
// cue lines.
func (t *Timeline) WriteSRT(w io.Writer) error {
	subs := astisub.NewSubtitles()
	for _, e := range t.Entries {
		item := &astisub.Item{
			Index:   e.Index,
			StartAt: secondsToDuration(e.Start),
			EndAt:   secondsToDuration(e.End),
		}
		for _, line := range strings.Split(e.Text, "\n") {
			item.Lines = append(item.Lines, astisub.Line{Items: []astisub.LineItem{{Text: line}}})
		}
		subs.Items = append(subs.Items, item)
	}
	if len(subs.Items) == 0 {
		return nil
	}
	if err := subs.WriteToSRT(w); err != nil {
		return fmt.Errorf("write srt: %w", err)
	}
	return nil
}

// WriteFile writes the timeline to path atomically.
func (t *Timeline) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := t.WriteSRT(&buf); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure srt dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".srt-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp srt: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp srt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp srt: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace srt: %w", err)
	}
	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	if seconds < 0 {
		seconds = 0
	}
	return time.Duration(math.Round(seconds*1000)) * time.Millisecond
}
