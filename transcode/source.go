package transcode

import (
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Source is a stream of interleaved PCM samples in [-1, 1]
type Source interface {
	// SampleRate of the PCM stream in Hz.
	SampleRate() int
	// Channels count (e.g., 1=mono, 2=stereo).
	Channels() int
	// ReadSamples fills dst with interleaved samples and returns the number
	// of values written (not frames). n == 0 with io.EOF ends the stream.
	ReadSamples(dst []float32) (n int, err error)
}

// FormatDecoder opens a Source over an encoded container
type FormatDecoder interface {
	Decode(r io.ReadSeeker) (Source, error)
}

// Registry maps lower-case file extensions (".wav") to decoders
type Registry struct {
	mu     sync.RWMutex
	codecs map[string]FormatDecoder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]FormatDecoder)}
}

// DefaultRegistry returns a registry with every native decoder
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".au", AuDecoder{})
	r.Register(".snd", AuDecoder{})
	r.Register(".wav", WavDecoder{})
	r.Register(".aif", AiffDecoder{})
	r.Register(".aiff", AiffDecoder{})
	r.Register(".mp3", Mp3Decoder{})
	r.Register(".ogg", VorbisDecoder{})
	return r
}

// Register binds a decoder to an extension, replacing any previous one
func (r *Registry) Register(ext string, d FormatDecoder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.codecs[normalizeExt(ext)] = d
}

// Get returns the decoder for an extension
func (r *Registry) Get(ext string) (FormatDecoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.codecs[normalizeExt(ext)]
	return d, ok
}

// Lookup returns the decoder for a file path by its extension
func (r *Registry) Lookup(path string) (FormatDecoder, bool) {
	return r.Get(filepath.Ext(path))
}

// Extensions returns the registered extensions, sorted
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.codecs))
	for ext := range r.codecs {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
