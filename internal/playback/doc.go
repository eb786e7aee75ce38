// Package playback sequences the engine and the blob cache across a stream
// of sample selections: auto-play, restart debounce, stale-result rejection
// and preference propagation.
package playback
