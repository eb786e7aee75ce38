//go:build nocgo

package audio

import "errors"

var errNoDevice = errors.New("audio output not available in nocgo build")

// OtoBackend is a stub for builds without cgo.
type OtoBackend struct{}

// NewOtoBackend returns a backend whose contexts always fail to open.
func NewOtoBackend(sampleRate, bufferSizeMS int) *OtoBackend {
	return &OtoBackend{}
}

// NewContext always fails.
func (b *OtoBackend) NewContext() (Context, error) {
	return nil, errors.Join(ErrContext, errNoDevice)
}
