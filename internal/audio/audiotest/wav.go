// Package audiotest provides synthetic audio for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"math"
)

// SineWAV returns a 16-bit PCM WAV of frames frames of a sine tone at freq Hz
// with amplitude amp (0 to 1) on every channel.
func SineWAV(sampleRate, channels, frames int, freq, amp float64) []byte {
	samples := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		v := int16(amp * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		for c := 0; c < channels; c++ {
			samples[i*channels+c] = v
		}
	}
	return PCM16WAV(sampleRate, channels, samples)
}

// PCM16WAV wraps interleaved 16-bit samples in a WAV container.
func PCM16WAV(sampleRate, channels int, samples []int16) []byte {
	var buf bytes.Buffer
	dataSize := uint32(len(samples) * 2)
	blockAlign := uint16(channels * 2)

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate)*uint32(blockAlign))
	_ = binary.Write(&buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)
	_ = binary.Write(&buf, binary.LittleEndian, samples)

	return buf.Bytes()
}
