package reconcile

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"dubbing/internal/logging"
	"dubbing/internal/media/wavio"
	"dubbing/internal/services/tts"
)

// Extractor cuts a batch's synthesized audio into per-line clips.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor builds an Extractor that reports alignment problems to logger.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logging.NewComponentLogger(logger, "reconcile")}
}

// ClipPath names the clip for line index (zero based) of the batch prefix.
func ClipPath(dir, prefix string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_line%d.wav", prefix, index+1))
}

// Extract aligns words to lines and writes one WAV clip per line into dir.
// Lines that could not be aligned get a minimal silent clip so the result
// always has one clip per line.
func (x *Extractor) Extract(batchWAV string, words []tts.WordTiming, lines []string, dir, prefix string) ([]Clip, error) {
	audio, err := wavio.Read(batchWAV)
	if err != nil {
		return nil, fmt.Errorf("read batch audio: %w", err)
	}
	spans := AlignLines(words, lines)

	clips := make([]Clip, 0, len(lines))
	for i, span := range spans {
		var piece *wavio.Clip
		if span.Matched {
			piece = audio.Slice(span.Start, span.End)
		} else {
			logging.WarnWithContext(x.logger, "line not found in synthesized speech", "tts_alignment_missing",
				logging.String("batch", prefix),
				logging.Int("line", i+1),
				logging.String("text", lines[i]),
				logging.Seconds("best_score", span.Score),
				logging.Int("words", len(words)),
				logging.String(logging.FieldImpact, "line is rendered as silence"),
			)
			piece = wavio.Silence(wavio.MinClip, audio.Buffer.Format.SampleRate)
		}
		path := ClipPath(dir, prefix, i)
		if err := wavio.Write(path, piece); err != nil {
			return nil, fmt.Errorf("write clip %d: %w", i+1, err)
		}
		clips = append(clips, Clip{Path: path, Duration: piece.Seconds()})
	}
	x.logger.Debug("batch audio split",
		logging.String("batch", prefix),
		logging.Int("lines", len(lines)),
		logging.Int("words", len(words)),
	)
	return clips, nil
}
