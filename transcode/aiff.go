package transcode

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"
)

// AiffDecoder decodes integer PCM AIFF files
type AiffDecoder struct{}

// Decode reads the COMM chunk and returns a Source over the SSND samples
func (AiffDecoder) Decode(r io.ReadSeeker) (Source, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotAiffFile
	}

	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("reading AIFF header: %w", err)
	}

	format := dec.Format()
	if format == nil {
		return nil, ErrNotAiffFile
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit AIFF", ErrUnsupportedEncoding, bitDepth)
	}

	// AIFF samples are signed at every depth
	return &intSource{
		dec:        dec,
		format:     format,
		bitDepth:   bitDepth,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
	}, nil
}
