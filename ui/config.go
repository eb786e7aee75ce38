package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	// Sample folder or server URL shown in the header
	Source string

	ShowAllFiles     bool
	EnableMouse      bool
	PauseOnFocusLoss bool

	// Keyboard seek step as a fraction of the sample
	SeekStep float64 `env:"SAMPLEDECK_SEEK_STEP" envDefault:"0.05"`

	// How often playback position and cache stats are refreshed
	RefreshInterval time.Duration `env:"SAMPLEDECK_UI_REFRESH" envDefault:"33ms"`

	HomeDir string `env:"HOME"`
}
