package transcode

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const auMagic = 0x2e736e64 // ".snd"

// Sun/NeXT AU encodings
const (
	auMulaw    = 1
	auLinear8  = 2
	auLinear16 = 3
	auLinear24 = 4
	auLinear32 = 5
	auFloat32  = 6
	auFloat64  = 7
)

// AuDecoder decodes Sun/NeXT .au files, the container GTZAN ships in.
// All AU data is big-endian.
type AuDecoder struct{}

type auSource struct {
	r          *bufio.Reader
	encoding   uint32
	width      int
	sampleRate int
	channels   int
	remaining  int64 // bytes left, -1 when the header does not say
	buf        []byte
}

func (s *auSource) SampleRate() int { return s.sampleRate }
func (s *auSource) Channels() int   { return s.channels }

func (s *auSource) ReadSamples(dst []float32) (int, error) {
	want := len(dst) * s.width
	if s.remaining >= 0 && int64(want) > s.remaining {
		want = int(s.remaining) - int(s.remaining)%s.width
	}
	if want == 0 {
		return 0, io.EOF
	}

	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}
	s.buf = s.buf[:want]

	n, err := io.ReadFull(s.r, s.buf)
	samples := n / s.width
	if s.remaining >= 0 {
		s.remaining -= int64(samples * s.width)
	}

	for i := range samples {
		dst[i] = s.sample(s.buf[i*s.width : (i+1)*s.width])
	}

	switch {
	case samples == 0 && (err == io.EOF || err == io.ErrUnexpectedEOF):
		return 0, io.EOF
	case err == io.ErrUnexpectedEOF:
		return samples, nil
	case err != nil && err != io.EOF:
		return samples, fmt.Errorf("reading AU data: %w", err)
	}
	return samples, nil
}

func (s *auSource) sample(b []byte) float32 {
	switch s.encoding {
	case auMulaw:
		return float32(mulawToLinear(b[0])) / 32768.0
	case auLinear8:
		return float32(int8(b[0])) / 128.0
	case auLinear16:
		return float32(int16(binary.BigEndian.Uint16(b))) / 32768.0
	case auLinear24:
		v := int32(b[0])<<24 | int32(b[1])<<16 | int32(b[2])<<8
		return float32(v>>8) / 8388608.0
	case auLinear32:
		return float32(float64(int32(binary.BigEndian.Uint32(b))) / 2147483648.0)
	case auFloat32:
		return math.Float32frombits(binary.BigEndian.Uint32(b))
	case auFloat64:
		return float32(math.Float64frombits(binary.BigEndian.Uint64(b)))
	}
	return 0
}

// mulawToLinear expands a G.711 mu-law byte to 16-bit linear PCM
func mulawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := (u >> 4) & 0x07
	mantissa := u & 0x0f
	magnitude := ((int16(mantissa) << 3) + 0x84) << exponent
	magnitude -= 0x84
	if sign != 0 {
		return -magnitude
	}
	return magnitude
}

// Decode reads the 24-byte AU header and skips the annotation field
func (AuDecoder) Decode(r io.ReadSeeker) (Source, error) {
	header := make([]byte, 24)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrNotAuFile
		}
		return nil, fmt.Errorf("reading AU header: %w", err)
	}

	if binary.BigEndian.Uint32(header[0:4]) != auMagic {
		return nil, ErrNotAuFile
	}

	offset := binary.BigEndian.Uint32(header[4:8])
	size := binary.BigEndian.Uint32(header[8:12])
	encoding := binary.BigEndian.Uint32(header[12:16])
	sampleRate := int(binary.BigEndian.Uint32(header[16:20]))
	channels := int(binary.BigEndian.Uint32(header[20:24]))

	var width int
	switch encoding {
	case auMulaw, auLinear8:
		width = 1
	case auLinear16:
		width = 2
	case auLinear24:
		width = 3
	case auLinear32, auFloat32:
		width = 4
	case auFloat64:
		width = 8
	default:
		return nil, fmt.Errorf("%w: AU encoding %d", ErrUnsupportedEncoding, encoding)
	}

	if offset < 24 || channels <= 0 || sampleRate <= 0 {
		return nil, ErrNotAuFile
	}
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seeking to AU data: %w", err)
	}

	remaining := int64(-1)
	if size != 0xffffffff {
		remaining = int64(size)
	}

	return &auSource{
		r:          bufio.NewReaderSize(r, 64*1024),
		encoding:   encoding,
		width:      width,
		sampleRate: sampleRate,
		channels:   channels,
		remaining:  remaining,
	}, nil
}

// WriteAU16 writes mono or interleaved 16-bit linear PCM as an AU file
func WriteAU16(w io.Writer, sampleRate, channels int, samples []int16) error {
	header := make([]byte, 24)
	binary.BigEndian.PutUint32(header[0:4], auMagic)
	binary.BigEndian.PutUint32(header[4:8], 24)
	binary.BigEndian.PutUint32(header[8:12], uint32(len(samples)*2))
	binary.BigEndian.PutUint32(header[12:16], auLinear16)
	binary.BigEndian.PutUint32(header[16:20], uint32(sampleRate))
	binary.BigEndian.PutUint32(header[20:24], uint32(channels))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("writing AU header: %w", err)
	}

	buf := make([]byte, len(samples)*2)
	for i, v := range samples {
		binary.BigEndian.PutUint16(buf[2*i:], uint16(v))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing AU data: %w", err)
	}
	return nil
}
