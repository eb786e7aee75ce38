package audio

import (
	"math"
	"sync"
	"time"
)

// Buffer holds decoded PCM as interleaved stereo float32 frames at the
// output sample rate. It is immutable once created, apart from its peak
// cache.
type Buffer struct {
	samples    []float32
	sampleRate int

	mu    sync.Mutex
	peaks map[int][]float32
}

// NewBuffer wraps interleaved stereo samples. A trailing partial frame is
// dropped.
func NewBuffer(samples []float32, sampleRate int) *Buffer {
	frames := len(samples) / ChannelCount
	return &Buffer{
		samples:    samples[:frames*ChannelCount],
		sampleRate: sampleRate,
		peaks:      make(map[int][]float32),
	}
}

// Frames returns the number of stereo frames.
func (b *Buffer) Frames() int {
	return len(b.samples) / ChannelCount
}

// SampleRate returns the frame rate.
func (b *Buffer) SampleRate() int {
	return b.sampleRate
}

// Duration returns the playback length.
func (b *Buffer) Duration() time.Duration {
	if b.sampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.sampleRate)
}

// Samples returns the interleaved sample slice. Callers must not modify it.
func (b *Buffer) Samples() []float32 {
	return b.samples
}

// Frame returns the left and right samples of frame i.
func (b *Buffer) Frame(i int) (float32, float32) {
	return b.samples[i*ChannelCount], b.samples[i*ChannelCount+1]
}

// Peaks returns one peak amplitude per bucket taken from the first channel.
// The result always has exactly buckets entries; a buffer with fewer frames than
// buckets repeats samples across neighbouring buckets. Results are cached per bucket count.
func (b *Buffer) Peaks(buckets int) []float32 {
	if buckets <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.peaks[buckets]; ok {
		return p
	}
	p := b.computePeaks(buckets)
	b.peaks[buckets] = p
	return p
}

func (b *Buffer) computePeaks(buckets int) []float32 {
	peaks := make([]float32, buckets)
	frames := b.Frames()
	if frames == 0 {
		return peaks
	}

	for i := range peaks {
		start := i * frames / buckets
		end := (i + 1) * frames / buckets
		if end <= start {
			end = start + 1
		}

		var peak float32
		for f := start; f < end; f++ {
			if v := float32(math.Abs(float64(b.samples[f*ChannelCount]))); v > peak {
				peak = v
			}
		}
		peaks[i] = peak
	}
	return peaks
}
