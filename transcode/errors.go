package transcode

import "errors"

var (
	// ErrUnsupportedFormat means no decoder is registered for a file extension
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrTrackTooShort means a file holds fewer frames than requested
	ErrTrackTooShort = errors.New("track shorter than configured duration")
	// ErrNotWavFile means the RIFF/WAVE header is missing or invalid
	ErrNotWavFile = errors.New("not a WAV file")
	// ErrNotAiffFile means the FORM/AIFF header is missing or invalid
	ErrNotAiffFile = errors.New("not an AIFF file")
	// ErrNotAuFile means the .snd magic is missing
	ErrNotAuFile = errors.New("not a Sun AU file")
	// ErrUnsupportedEncoding means the container holds a sample encoding we cannot convert
	ErrUnsupportedEncoding = errors.New("unsupported sample encoding")
	// ErrFFmpegUnavailable means the ffmpeg fallback is disabled or missing
	ErrFFmpegUnavailable = errors.New("ffmpeg fallback unavailable")
)
