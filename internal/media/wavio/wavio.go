package wavio

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Defaults for files this package creates.
const (
	DefaultSampleRate = 24000
	DefaultBitDepth   = 16
	// MinClip is the shortest clip Slice writes, in seconds.
	MinClip = 0.01
)

// ErrInvalidWAV reports a file that is not a readable PCM WAV.
var ErrInvalidWAV = errors.New("invalid wav file")

// Clip is decoded PCM audio.
type Clip struct {
	Buffer   *audio.IntBuffer
	BitDepth int
}

// Frames returns the number of sample frames.
func (c *Clip) Frames() int {
	if c == nil || c.Buffer == nil || c.Buffer.Format == nil || c.Buffer.Format.NumChannels == 0 {
		return 0
	}
	return len(c.Buffer.Data) / c.Buffer.Format.NumChannels
}

// Seconds returns the clip length.
func (c *Clip) Seconds() float64 {
	if c.Frames() == 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.Buffer.Format.SampleRate)
}

// Read decodes a whole WAV file.
func Read(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &Clip{Buffer: buf, BitDepth: int(dec.BitDepth)}, nil
}

// Duration returns the length of a WAV file in seconds, computed from the
// size of its data chunk.
func Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("duration %s: %w", path, err)
	}
	frameSize := int64(dec.NumChans) * int64(dec.BitDepth/8)
	if frameSize == 0 || dec.SampleRate == 0 {
		return 0, fmt.Errorf("%w: %s: missing format", ErrInvalidWAV, path)
	}
	return float64(dec.PCMLen()/frameSize) / float64(dec.SampleRate), nil
}

// Write encodes clip to path.
func Write(path string, clip *Clip) error {
	if clip == nil || clip.Buffer == nil || clip.Buffer.Format == nil {
		return errors.New("write wav: empty clip")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bitDepth := clip.BitDepth
	if bitDepth == 0 {
		bitDepth = DefaultBitDepth
	}
	enc := wav.NewEncoder(f, clip.Buffer.Format.SampleRate, bitDepth, clip.Buffer.Format.NumChannels, 1)
	if err := enc.Write(clip.Buffer); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("finalize %s: %w", path, err)
	}
	return f.Close()
}

// Slice returns the part of clip between start and end seconds. An end
// beyond the clip (math.Inf(1) included) runs to the end. The result is
// never shorter than MinClip; missing audio is padded with silence.
func (c *Clip) Slice(start, end float64) *Clip {
	format := c.Buffer.Format
	channels := format.NumChannels
	rate := float64(format.SampleRate)
	if start < 0 {
		start = 0
	}
	if end < start+MinClip {
		end = start + MinClip
	}
	total := c.Frames()
	first := min(int(math.Round(start*rate)), total)
	var want int
	if math.IsInf(end, 1) {
		want = total - first
	} else {
		want = int(math.Round((end - start) * rate))
	}
	want = max(want, int(math.Round(MinClip*rate)))
	last := min(first+want, total)

	data := make([]int, want*channels)
	copy(data, c.Buffer.Data[first*channels:last*channels])
	return &Clip{
		Buffer: &audio.IntBuffer{
			Format:         &audio.Format{SampleRate: format.SampleRate, NumChannels: channels},
			Data:           data,
			SourceBitDepth: c.Buffer.SourceBitDepth,
		},
		BitDepth: c.BitDepth,
	}
}

// Silence builds a silent mono clip.
func Silence(seconds float64, sampleRate int) *Clip {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	frames := max(int(math.Round(seconds*float64(sampleRate))), 0)
	return &Clip{
		Buffer: &audio.IntBuffer{
			Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
			Data:           make([]int, frames),
			SourceBitDepth: DefaultBitDepth,
		},
		BitDepth: DefaultBitDepth,
	}
}

// WriteSilence writes a silent mono WAV of the given length.
func WriteSilence(path string, seconds float64, sampleRate int) error {
	return Write(path, Silence(seconds, sampleRate))
}
