package transcode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/SunnyCat2013/genretron/algorithms/common"
	"github.com/SunnyCat2013/genretron/logging"
)

// AudioData represents decoded mono audio
type AudioData struct {
	PCM        []float64     `json:"-"`
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channels of the source before downmix
	Duration   time.Duration `json:"duration"`
	Path       string        `json:"path"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// TargetSampleRate resamples sources with a different rate when > 0.
	// When 0, the source rate is kept.
	TargetSampleRate int `json:"target_sample_rate"`
	// FFmpegPath enables the ffmpeg fallback for extensions without a
	// native decoder. Empty disables it.
	FFmpegPath string        `json:"ffmpeg_path"`
	Timeout    time.Duration `json:"timeout"` // Timeout for ffmpeg operations
}

// DefaultDecoderConfig returns the GTZAN decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 22050,
		FFmpegPath:       "",
		Timeout:          30 * time.Second,
	}
}

// Decoder reads mono PCM from audio files
type Decoder struct {
	config   *DecoderConfig
	registry *Registry
	logger   logging.Logger
}

// NewDecoder creates a decoder over the default format registry
func NewDecoder(config *DecoderConfig) *Decoder {
	return NewDecoderWithRegistry(config, DefaultRegistry())
}

// NewDecoderWithRegistry creates a decoder over a custom format registry
func NewDecoderWithRegistry(config *DecoderConfig, registry *Registry) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config:   config,
		registry: registry,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// SetLogger replaces the decoder's logger
func (d *Decoder) SetLogger(logger logging.Logger) {
	d.logger = logger.WithFields(logging.Fields{"component": "audio_decoder"})
}

// Registry returns the format registry
func (d *Decoder) Registry() *Registry {
	return d.registry
}

// Extensions returns the extensions this decoder can read natively
func (d *Decoder) Extensions() []string {
	return d.registry.Extensions()
}

// ReadFrames decodes exactly frames mono frames from the start of a file.
// Multi-channel sources are averaged to mono. A file that ends earlier
// fails with ErrTrackTooShort; trailing audio is ignored.
func (d *Decoder) ReadFrames(path string, frames int) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "ReadFrames",
		"filename": path,
	})

	if frames <= 0 {
		return nil, fmt.Errorf("frame count must be positive, got %d", frames)
	}

	format, ok := d.registry.Lookup(path)
	if !ok {
		if d.config.FFmpegPath == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
		}
		return d.readFramesWithFFmpeg(path, frames, logger)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()

	src, err := format.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	sourceRate := src.SampleRate()
	targetRate := d.targetRate(sourceRate)

	// frames needed at the source rate to produce frames at the target rate
	need := frames
	if sourceRate != targetRate {
		need = int(math.Ceil(float64(frames) * float64(sourceRate) / float64(targetRate)))
		logger.Debug("Resampling source", logging.Fields{
			"source_rate": sourceRate,
			"target_rate": targetRate,
		})
	}

	pcm, err := readMono(src, need)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(pcm) < need {
		return nil, fmt.Errorf("%w: %s has %d frames, need %d", ErrTrackTooShort, path, len(pcm), need)
	}

	pcm = common.Resample(pcm, sourceRate, targetRate)
	if len(pcm) < frames {
		return nil, fmt.Errorf("%w: %s resampled to %d frames, need %d", ErrTrackTooShort, path, len(pcm), frames)
	}
	pcm = pcm[:frames]

	return &AudioData{
		PCM:        pcm,
		SampleRate: targetRate,
		Channels:   src.Channels(),
		Duration:   time.Duration(frames) * time.Second / time.Duration(targetRate),
		Path:       path,
	}, nil
}

func (d *Decoder) targetRate(sourceRate int) int {
	if d.config.TargetSampleRate > 0 {
		return d.config.TargetSampleRate
	}
	return sourceRate
}

// readMono reads up to frames frames from src and averages channels
func readMono(src Source, frames int) ([]float64, error) {
	channels := src.Channels()
	if channels <= 0 {
		return nil, fmt.Errorf("source reports %d channels", channels)
	}

	pcm := make([]float64, 0, frames)
	chunk := make([]float32, 4096*channels)
	carry := make([]float32, 0, channels) // partial frame between reads
	inv := 1.0 / float64(channels)

	for len(pcm) < frames {
		n, err := src.ReadSamples(chunk)
		values := chunk[:n]
		if len(carry) > 0 {
			values = append(carry, values...)
			carry = carry[:0]
		}

		whole := len(values) / channels
		for f := 0; f < whole && len(pcm) < frames; f++ {
			sum := 0.0
			for c := range channels {
				sum += float64(values[f*channels+c])
			}
			pcm = append(pcm, sum*inv)
		}
		carry = append(carry, values[whole*channels:]...)

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 && len(values) == 0 {
			// a source that makes no progress without reporting EOF
			break
		}
	}

	return pcm, nil
}

// readFramesWithFFmpeg pipes the file through ffmpeg as mono f64le
func (d *Decoder) readFramesWithFFmpeg(path string, frames int, logger logging.Logger) (*AudioData, error) {
	if _, err := exec.LookPath(d.config.FFmpegPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFFmpegUnavailable, err)
	}

	rate := d.config.TargetSampleRate
	if rate <= 0 {
		return nil, fmt.Errorf("ffmpeg fallback needs a target sample rate")
	}

	args := []string{
		"-v", "error",
		"-i", path,
		"-vn",
		"-f", "f64le",
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-af", fmt.Sprintf("atrim=end_sample=%d", frames),
		"pipe:1",
	}

	ctx := context.Background()
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	output, err := exec.CommandContext(ctx, d.config.FFmpegPath, args...).Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "ffmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	pcm := bytesToFloat64(output)
	if len(pcm) < frames {
		return nil, fmt.Errorf("%w: %s has %d frames, need %d", ErrTrackTooShort, path, len(pcm), frames)
	}

	return &AudioData{
		PCM:        pcm[:frames],
		SampleRate: rate,
		Channels:   1,
		Duration:   time.Duration(frames) * time.Second / time.Duration(rate),
		Path:       path,
	}, nil
}

// bytesToFloat64 converts raw little-endian float64 bytes to []float64
func bytesToFloat64(data []byte) []float64 {
	sampleCount := len(data) / 8
	samples := make([]float64, sampleCount)

	for i := range sampleCount {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}

	return samples
}
