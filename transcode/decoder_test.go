package transcode

import (
	"bytes"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func ramp(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16((i%200 - 100) * 100)
	}
	return samples
}

func writeAU(t *testing.T, path string, sampleRate, channels int, samples []int16) {
	t.Helper()

	var buf bytes.Buffer
	if err := WriteAU16(&buf, sampleRate, channels, samples); err != nil {
		t.Fatalf("WriteAU16() error = %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func intBuffer(sampleRate, channels int, samples []int16) *goaudio.IntBuffer {
	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(v)
	}
	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
}

func writeWAV(t *testing.T, path string, sampleRate, channels int, samples []int16) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	if err := enc.Write(intBuffer(sampleRate, channels, samples)); err != nil {
		t.Fatalf("wav Write() error = %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("wav Close() error = %v", err)
	}
}

func writeAIFF(t *testing.T, path string, sampleRate, channels int, samples []int16) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()

	enc := aiff.NewEncoder(f, sampleRate, 16, channels)
	if err := enc.Write(intBuffer(sampleRate, channels, samples)); err != nil {
		t.Fatalf("aiff Write() error = %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("aiff Close() error = %v", err)
	}
}

func assertPCM(t *testing.T, got []float64, want []int16) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("len(PCM) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		w := float64(want[i]) / 32768.0
		if math.Abs(got[i]-w) > 1e-6 {
			t.Fatalf("PCM[%d] = %v, want %v", i, got[i], w)
		}
	}
}

func TestReadFrames_Formats(t *testing.T) {
	t.Parallel()

	const rate = 8000
	samples := ramp(1000)

	tests := []struct {
		name  string
		file  string
		write func(t *testing.T, path string, sampleRate, channels int, samples []int16)
	}{
		{"au", "track.au", writeAU},
		{"wav", "track.wav", writeWAV},
		{"aiff", "track.aiff", writeAIFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), tt.file)
			tt.write(t, path, rate, 1, samples)

			dec := NewDecoder(&DecoderConfig{TargetSampleRate: rate})
			got, err := dec.ReadFrames(path, 600)
			if err != nil {
				t.Fatalf("ReadFrames() error = %v", err)
			}

			if got.SampleRate != rate {
				t.Errorf("SampleRate = %d, want %d", got.SampleRate, rate)
			}
			if got.Channels != 1 {
				t.Errorf("Channels = %d, want 1", got.Channels)
			}
			assertPCM(t, got.PCM, samples[:600])
		})
	}
}

func TestReadFrames_StereoIsAveraged(t *testing.T) {
	t.Parallel()

	// left = 1000, right = -3000 -> mono = -1000
	interleaved := make([]int16, 2*300)
	for i := 0; i < len(interleaved); i += 2 {
		interleaved[i] = 1000
		interleaved[i+1] = -3000
	}

	path := filepath.Join(t.TempDir(), "stereo.au")
	writeAU(t, path, 8000, 2, interleaved)

	got, err := NewDecoder(&DecoderConfig{}).ReadFrames(path, 300)
	if err != nil {
		t.Fatalf("ReadFrames() error = %v", err)
	}

	if got.Channels != 2 {
		t.Errorf("Channels = %d, want 2", got.Channels)
	}
	want := -1000.0 / 32768.0
	for i, v := range got.PCM {
		if math.Abs(v-want) > 1e-6 {
			t.Fatalf("PCM[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestReadFrames_TooShort(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "short.wav")
	writeWAV(t, path, 8000, 1, ramp(100))

	_, err := NewDecoder(&DecoderConfig{TargetSampleRate: 8000}).ReadFrames(path, 101)
	if !errors.Is(err, ErrTrackTooShort) {
		t.Errorf("ReadFrames() error = %v, want ErrTrackTooShort", err)
	}
}

func TestReadFrames_Resamples(t *testing.T) {
	t.Parallel()

	samples := make([]int16, 2000)
	for i := range samples {
		samples[i] = 4000
	}
	path := filepath.Join(t.TempDir(), "fast.au")
	writeAU(t, path, 16000, 1, samples)

	got, err := NewDecoder(&DecoderConfig{TargetSampleRate: 8000}).ReadFrames(path, 1000)
	if err != nil {
		t.Fatalf("ReadFrames() error = %v", err)
	}
	if len(got.PCM) != 1000 {
		t.Fatalf("len(PCM) = %d, want 1000", len(got.PCM))
	}
	if got.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", got.SampleRate)
	}
	for i, v := range got.PCM {
		if math.Abs(v-4000.0/32768.0) > 1e-6 {
			t.Fatalf("PCM[%d] = %v after resampling a constant signal", i, v)
		}
	}
}

func TestReadFrames_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.au")
	if err := os.WriteFile(garbage, []byte("definitely not audio, just text"), 0o644); err != nil {
		t.Fatal(err)
	}
	flac := filepath.Join(dir, "track.flac")
	if err := os.WriteFile(flac, []byte("fLaC"), 0o644); err != nil {
		t.Fatal(err)
	}

	dec := NewDecoder(&DecoderConfig{TargetSampleRate: 8000})

	tests := []struct {
		name string
		path string
		want error
	}{
		{"not au", garbage, ErrNotAuFile},
		{"unregistered extension", flac, ErrUnsupportedFormat},
		{"missing file", filepath.Join(dir, "missing.wav"), os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dec.ReadFrames(tt.path, 10)
			if !errors.Is(err, tt.want) {
				t.Errorf("ReadFrames() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()

	for _, ext := range []string{".au", ".wav", ".aif", ".aiff", ".mp3", ".ogg", "WAV", "mp3"} {
		if _, ok := r.Get(ext); !ok {
			t.Errorf("Get(%q) not registered", ext)
		}
	}
	if _, ok := r.Get(".flac"); ok {
		t.Error("Get(.flac) unexpectedly registered")
	}

	r.Register("FLAC", AuDecoder{})
	if _, ok := r.Lookup("/corpus/blues/blues.00000.flac"); !ok {
		t.Error("Lookup() after Register(FLAC) failed")
	}
}

func TestCompressedDecodersRejectGarbage(t *testing.T) {
	t.Parallel()

	for name, dec := range map[string]FormatDecoder{
		"mp3":    Mp3Decoder{},
		"vorbis": VorbisDecoder{},
		"wav":    WavDecoder{},
		"aiff":   AiffDecoder{},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := dec.Decode(bytes.NewReader([]byte("this is not an audio container")))
			if err == nil {
				t.Errorf("Decode() accepted garbage")
			}
		})
	}
}

func TestMulawToLinear(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   byte
		want int16
	}{
		{0xff, 0},
		{0x7f, 0},
		{0x80, 32124},
		{0x00, -32124},
	}

	for _, tt := range tests {
		if got := mulawToLinear(tt.in); got != tt.want {
			t.Errorf("mulawToLinear(%#x) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

type chunkedSource struct {
	channels int
	values   []float32
	step     int
}

func (s *chunkedSource) SampleRate() int { return 8000 }
func (s *chunkedSource) Channels() int   { return s.channels }

func (s *chunkedSource) ReadSamples(dst []float32) (int, error) {
	if len(s.values) == 0 {
		return 0, io.EOF
	}
	n := min(s.step, len(dst), len(s.values))
	copy(dst, s.values[:n])
	s.values = s.values[n:]
	return n, nil
}

func TestReadMono_PartialFramesAcrossReads(t *testing.T) {
	t.Parallel()

	// 3 channels handed out 2 values at a time
	src := &chunkedSource{
		channels: 3,
		values:   []float32{0.3, 0.6, 0.9, -0.3, -0.6, -0.9, 0.0, 0.3, 0.6},
		step:     2,
	}

	got, err := readMono(src, 10)
	if err != nil {
		t.Fatalf("readMono() error = %v", err)
	}

	want := []float64{0.6, -0.6, 0.3}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-6 {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
}
