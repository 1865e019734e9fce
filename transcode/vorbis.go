package transcode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// VorbisDecoder decodes Ogg Vorbis streams
type VorbisDecoder struct{}

type vorbisSource struct {
	dec *oggvorbis.Reader
}

func (s *vorbisSource) SampleRate() int { return s.dec.SampleRate() }
func (s *vorbisSource) Channels() int   { return s.dec.Channels() }

func (s *vorbisSource) ReadSamples(dst []float32) (int, error) {
	channels := s.dec.Channels()
	// the reader only hands out whole frames
	usable := len(dst) - len(dst)%channels
	if usable == 0 {
		return 0, nil
	}

	n, err := s.dec.Read(dst[:usable])
	if n == 0 {
		if err != nil && err != io.EOF {
			return 0, fmt.Errorf("decoding Vorbis: %w", err)
		}
		return 0, io.EOF
	}
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("decoding Vorbis: %w", err)
	}
	return n, nil
}

// Decode reads the Vorbis identification and setup headers
func (VorbisDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening Ogg Vorbis: %w", err)
	}
	return &vorbisSource{dec: dec}, nil
}
