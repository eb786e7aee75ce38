// Package audio decodes sample bytes and plays them through a single shared
// output device. It owns the device lifecycle (creation, suspension,
// recovery) and the per-sample transport state machine.
package audio
