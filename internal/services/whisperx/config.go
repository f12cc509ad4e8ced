package whisperx

import "dubbing/internal/config"

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// Model is the Whisper model name (e.g. "turbo", "large-v3").
	Model string
	// Device is "cuda" or "cpu".
	Device string
	// Language is passed through when set; empty lets WhisperX detect it.
	Language string
	// Align produces word-level timestamps.
	Align bool
	// Diarize assigns speakers to words; needs HFToken.
	Diarize bool
	// VADMethod selects voice activity detection ("silero" or "pyannote").
	VADMethod string
	// HFToken is the Hugging Face token for gated pyannote models.
	HFToken   string
	BatchSize int
}

// ConfigFromASR maps the [asr] configuration section.
func ConfigFromASR(asr config.ASR) Config {
	return Config{
		Model:     asr.Model,
		Device:    asr.Device,
		Language:  asr.Language,
		Align:     asr.Align,
		Diarize:   asr.Diarize,
		VADMethod: asr.VADMethod,
		HFToken:   asr.HFToken,
		BatchSize: asr.BatchSize,
	}
}

// WhisperX configuration constants.
const (
	DefaultModel      = "turbo"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	DefaultBatchSize  = 4
	ChunkSize         = "10"
	OutputFormat      = "json"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	CUDAComputeType   = "int8"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
	SampleRate        = 16000
)

// Command names for external tools.
const (
	UVXCommand    = "uvx"
	FFmpegCommand = "ffmpeg"
)
