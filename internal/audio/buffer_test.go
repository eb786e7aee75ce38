package audio

import (
	"testing"
	"time"
)

func rampBuffer(frames int) *Buffer {
	samples := make([]float32, frames*ChannelCount)
	for i := 0; i < frames; i++ {
		samples[i*2] = float32(i) / float32(frames)
		samples[i*2+1] = -1 // right channel must be ignored by peaks
	}
	return NewBuffer(samples, 1000)
}

func TestBuffer_Basics(t *testing.T) {
	b := rampBuffer(500)

	if b.Frames() != 500 {
		t.Errorf("Expected 500 frames, got %d", b.Frames())
	}
	if b.Duration() != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", b.Duration())
	}

	odd := NewBuffer([]float32{1, 2, 3}, 1000)
	if odd.Frames() != 1 {
		t.Errorf("Partial frame should be dropped, got %d frames", odd.Frames())
	}
}

func TestBuffer_PeaksLength(t *testing.T) {
	for _, frames := range []int{1, 3, 7, 100, 1001} {
		b := rampBuffer(frames)
		for _, buckets := range []int{1, 2, 10, 640, 2000} {
			if got := len(b.Peaks(buckets)); got != buckets {
				t.Errorf("frames=%d buckets=%d: got %d peaks", frames, buckets, got)
			}
		}
	}
}

func TestBuffer_PeaksUseFirstChannel(t *testing.T) {
	b := rampBuffer(100)
	peaks := b.Peaks(4)

	for i, p := range peaks {
		if p > 1 || p < 0 {
			t.Errorf("bucket %d: peak %f out of range", i, p)
		}
		if i > 0 && p < peaks[i-1] {
			t.Errorf("bucket %d: ramp peaks should not decrease", i)
		}
	}
	if peaks[3] != 0.99 {
		t.Errorf("Last bucket peak = %f, want 0.99", peaks[3])
	}
}

func TestBuffer_PeaksCached(t *testing.T) {
	b := rampBuffer(100)

	first := b.Peaks(10)
	second := b.Peaks(10)
	if &first[0] != &second[0] {
		t.Error("Peaks should be computed once per bucket count")
	}
	if b.Peaks(0) != nil {
		t.Error("Zero buckets should return nil")
	}
}

func TestBuffer_PeaksEmptyBuffer(t *testing.T) {
	b := NewBuffer(nil, 1000)
	if got := b.Peaks(8); len(got) != 8 {
		t.Errorf("Expected 8 zero peaks, got %d", len(got))
	}
}
