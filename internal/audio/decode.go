package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// Format is a container format recognised from a blob's leading bytes.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatFLAC    Format = "flac"
	FormatOGG     Format = "ogg"
	FormatAIFF    Format = "aiff"
	FormatM4A     Format = "m4a"
)

const (
	decodeChunkFrames = 4096
	defaultQuality    = 4
)

// Decoder turns a fetched blob into a PCM buffer.
type Decoder interface {
	Decode(ctx context.Context, blob []byte) (*Buffer, error)
}

// BeepDecoder decodes wav, mp3, flac and ogg vorbis, resampling to the
// output rate.
type BeepDecoder struct {
	SampleRate int
	Quality    int // resampling quality, 1 to 64
}

// NewDecoder returns a decoder producing buffers at sampleRate.
func NewDecoder(sampleRate int) *BeepDecoder {
	return &BeepDecoder{SampleRate: sampleRate, Quality: defaultQuality}
}

// DetectFormat sniffs the container format of blob.
func DetectFormat(blob []byte) Format {
	switch {
	case len(blob) >= 12 && string(blob[0:4]) == "RIFF" && string(blob[8:12]) == "WAVE":
		return FormatWAV
	case len(blob) >= 4 && string(blob[0:4]) == "fLaC":
		return FormatFLAC
	case len(blob) >= 4 && string(blob[0:4]) == "OggS":
		return FormatOGG
	case len(blob) >= 12 && string(blob[0:4]) == "FORM" &&
		(string(blob[8:12]) == "AIFF" || string(blob[8:12]) == "AIFC"):
		return FormatAIFF
	case len(blob) >= 8 && string(blob[4:8]) == "ftyp":
		return FormatM4A
	case len(blob) >= 3 && string(blob[0:3]) == "ID3":
		return FormatMP3
	case len(blob) >= 2 && blob[0] == 0xFF && blob[1]&0xE0 == 0xE0:
		return FormatMP3
	default:
		return FormatUnknown
	}
}

// Decode implements Decoder. Every failure wraps ErrDecode.
func (d *BeepDecoder) Decode(ctx context.Context, blob []byte) (buf *Buffer, err error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrDecode, ErrEmptyAudio)
	}

	format := DetectFormat(blob)
	if format == FormatUnknown || format == FormatAIFF || format == FormatM4A {
		return nil, fmt.Errorf("%w: %w: %q", ErrDecode, ErrUnsupportedFormat, format)
	}

	// The pure Go decoders can panic on truncated or hostile input
	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = fmt.Errorf("%w: %s decoder panic: %v", ErrDecode, format, r)
		}
	}()

	streamer, source, err := open(format, blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, format, err)
	}
	defer streamer.Close() //nolint:errcheck

	log.Debug("Decoding sample",
		"format", format,
		"source_rate", source.SampleRate,
		"channels", source.NumChannels,
		"frames", streamer.Len())

	var s beep.Streamer = streamer
	if format == FormatWAV && source.Precision >= 2 {
		// beep's wav decoder maps 16 and 24 bit PCM onto [-0.5, 0.5]
		s = &effects.Gain{Streamer: s, Gain: 1}
	}
	target := beep.SampleRate(d.sampleRate())
	if source.SampleRate != target {
		s = beep.Resample(d.quality(), source.SampleRate, target, s)
	}

	samples, err := drain(ctx, s, streamer.Len(), source.SampleRate, target)
	if err != nil {
		return nil, err
	}
	if serr := streamer.Err(); serr != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, format, serr)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrDecode, ErrEmptyAudio)
	}
	return NewBuffer(samples, int(target)), nil
}

func open(format Format, blob []byte) (beep.StreamSeekCloser, beep.Format, error) {
	r := bytes.NewReader(blob)
	switch format {
	case FormatWAV:
		return wav.Decode(r)
	case FormatFLAC:
		return flac.Decode(r)
	case FormatMP3:
		return mp3.Decode(io.NopCloser(r))
	case FormatOGG:
		return vorbis.Decode(io.NopCloser(r))
	default:
		return nil, beep.Format{}, ErrUnsupportedFormat
	}
}

// drain reads s to completion into interleaved float32 samples, checking ctx
// between chunks.
func drain(ctx context.Context, s beep.Streamer, sourceFrames int, from, to beep.SampleRate) ([]float32, error) {
	estimate := sourceFrames
	if from > 0 && from != to {
		estimate = int(int64(sourceFrames) * int64(to) / int64(from))
	}
	out := make([]float32, 0, (estimate+1)*ChannelCount)
	chunk := make([][2]float64, decodeChunkFrames)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, ok := s.Stream(chunk)
		for _, frame := range chunk[:n] {
			out = append(out, float32(frame[0]), float32(frame[1]))
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out, nil
}

func (d *BeepDecoder) sampleRate() int {
	if d.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return d.SampleRate
}

func (d *BeepDecoder) quality() int {
	if d.Quality < 1 || d.Quality > 64 {
		return defaultQuality
	}
	return d.Quality
}
