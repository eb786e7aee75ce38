package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# mouse support: click the waveform to seek
mouse: true
# show samples in ignored directories
all: false

cache:
  # in-memory budget for raw sample bytes, in MB
  max_size: 100
  # keep remote samples on disk between runs
  disk: true
  # disk cache directory (default: user cache dir)
  # dir: "~/.cache/sampledeck/samples"
  # disk budget, in MB
  disk_max_size: 1024
  # zstd level for the disk cache, 0 disables compression
  compression: 3

playback:
  # start playing as soon as a sample is selected
  auto_play: true
  # loop the selected sample
  loop: false
  # pause between stopping one sample and starting the next
  settle_delay: "50ms"
  # suspend audio output while the terminal is unfocused
  pause_on_focus_loss: false

audio:
  # output sample rate
  sample_rate: 44100
  # device buffer in milliseconds, 0 picks the platform default
  buffer_size: 0
  # play into a silent device
  mock: false

waveform:
  # peaks precomputed for every loaded sample
  buckets: 512

remote:
  # request timeout for sample servers
  timeout: "30s"
  # requests per second sent to sample servers, 0 disables limiting
  rate: 10
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the sampledeck config file",
	Long:    paragraph(fmt.Sprintf("\n%s the sampledeck config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("sampledeck config\nsampledeck config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("sampledeck", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
