// Package waveform draws per-bucket peaks of a decoded buffer and maps
// pointer positions back to seek fractions.
package waveform
