// Package main provides the entry point for the sampledeck CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/sampledeck/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	showAllFiles bool
	mouse        bool
	mockAudio    bool
	debug        bool

	rootCmd = &cobra.Command{
		Use:   "sampledeck [DIR|URL]",
		Short: "Audition audio samples from the terminal",
		Long: paragraph(
			fmt.Sprintf("\nBrowse a sample folder or server and %s.", keyword("audition samples instantly")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveFilterDirs
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// options are the validated settings for one run.
type options struct {
	Source string
	Remote bool

	MemoryCacheBytes int64
	DiskCache        bool
	DiskCacheDir     string
	DiskCacheBytes   int64
	Compression      int

	AutoPlay         bool
	Loop             bool
	SettleDelay      time.Duration
	PauseOnFocusLoss bool

	SampleRate   int
	BufferSizeMS int
	MockAudio    bool

	WaveformBuckets int

	RemoteTimeout time.Duration
	RemoteRate    float64
}

var opts options

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	// grab config values from Viper
	mouse = viper.GetBool("mouse")
	showAllFiles = viper.GetBool("all")
	debug = viper.GetBool("debug")
	if debug {
		log.SetLevel(log.DebugLevel)
	}

	o, err := optionsFromViper(viper.GetViper())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("mock-audio") {
		o.MockAudio = mockAudio
	}
	opts = o
	return nil
}

// optionsFromViper reads and range-checks the configuration.
func optionsFromViper(v *viper.Viper) (options, error) {
	o := options{
		MemoryCacheBytes: v.GetInt64("cache.max_size") * 1024 * 1024,
		DiskCache:        v.GetBool("cache.disk"),
		DiskCacheDir:     v.GetString("cache.dir"),
		DiskCacheBytes:   v.GetInt64("cache.disk_max_size") * 1024 * 1024,
		Compression:      v.GetInt("cache.compression"),

		AutoPlay:         v.GetBool("playback.auto_play"),
		Loop:             v.GetBool("playback.loop"),
		SettleDelay:      v.GetDuration("playback.settle_delay"),
		PauseOnFocusLoss: v.GetBool("playback.pause_on_focus_loss"),

		SampleRate:   v.GetInt("audio.sample_rate"),
		BufferSizeMS: v.GetInt("audio.buffer_size"),
		MockAudio:    v.GetBool("audio.mock"),

		WaveformBuckets: v.GetInt("waveform.buckets"),

		RemoteTimeout: v.GetDuration("remote.timeout"),
		RemoteRate:    v.GetFloat64("remote.rate"),
	}

	if mb := v.GetInt64("cache.max_size"); mb < 1 || mb > 10000 {
		return o, fmt.Errorf("cache max_size must be between 1 and 10000 MB, got %d", mb)
	}
	if o.DiskCache && o.DiskCacheBytes <= 0 {
		return o, fmt.Errorf("cache disk_max_size must be positive, got %d MB", v.GetInt64("cache.disk_max_size"))
	}
	if o.Compression < 0 || o.Compression > 22 {
		return o, fmt.Errorf("cache compression must be between 0 and 22, got %d", o.Compression)
	}
	if o.SampleRate < 8000 || o.SampleRate > 192000 {
		return o, fmt.Errorf("audio sample_rate must be between 8000 and 192000, got %d", o.SampleRate)
	}
	if o.BufferSizeMS < 0 || o.BufferSizeMS > 1000 {
		return o, fmt.Errorf("audio buffer_size must be between 0 and 1000 ms, got %d", o.BufferSizeMS)
	}
	if o.SettleDelay < 0 || o.SettleDelay > time.Second {
		return o, fmt.Errorf("playback settle_delay must be between 0 and 1s, got %s", o.SettleDelay)
	}
	if o.WaveformBuckets < 0 || o.WaveformBuckets > 4096 {
		return o, fmt.Errorf("waveform buckets must be between 0 and 4096, got %d", o.WaveformBuckets)
	}
	if o.RemoteRate < 0 {
		return o, fmt.Errorf("remote rate must not be negative, got %v", o.RemoteRate)
	}

	if o.DiskCacheDir != "" {
		dir, err := homedir.Expand(o.DiskCacheDir)
		if err != nil {
			return o, fmt.Errorf("unable to expand cache dir: %w", err)
		}
		o.DiskCacheDir = dir
	}
	return o, nil
}

// resolveSource decides whether arg names a sample server or a folder.
func resolveSource(arg string) (source string, remote bool, err error) {
	if arg == "" {
		arg = "."
	}
	if u, err := url.ParseRequestURI(arg); err == nil && strings.Contains(arg, "://") {
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", false, fmt.Errorf("%s is not a supported protocol", u.Scheme)
		}
		return strings.TrimRight(u.String(), "/"), true, nil
	}

	path, err := homedir.Expand(arg)
	if err != nil {
		return "", false, fmt.Errorf("unable to expand path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", false, fmt.Errorf("unable to open sample folder: %w", err)
	}
	if !info.IsDir() {
		return "", false, fmt.Errorf("%s is not a directory", arg)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, fmt.Errorf("unable to get absolute path: %w", err)
	}
	return abs, false, nil
}

func execute(_ *cobra.Command, args []string) error {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	source, remote, err := resolveSource(arg)
	if err != nil {
		return err
	}
	opts.Source = source
	opts.Remote = remote

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("sampledeck needs an interactive terminal")
	}
	return runTUI(opts)
}

func runTUI(o options) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	cfg.Source = o.Source
	cfg.ShowAllFiles = showAllFiles
	cfg.EnableMouse = mouse
	cfg.PauseOnFocusLoss = o.PauseOnFocusLoss

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	deck, err := newDeck(o, viper.GetViper())
	if err != nil {
		return err
	}
	defer deck.Close()

	if _, err := ui.NewProgram(ctx, cfg, deck.deps()).Run(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug logs")
	rootCmd.PersistentFlags().BoolVar(&mockAudio, "mock-audio", false, "play into a silent device")
	rootCmd.Flags().BoolVarP(&showAllFiles, "all", "a", false, "show samples in ignored directories")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", true, "enable mouse support")

	// Config bindings
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("all", rootCmd.Flags().Lookup("all"))

	setDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, waveformCmd)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mouse", true)
	v.SetDefault("all", false)

	v.SetDefault("cache.max_size", 100)
	v.SetDefault("cache.disk", true)
	v.SetDefault("cache.dir", "")
	v.SetDefault("cache.disk_max_size", 1024)
	v.SetDefault("cache.compression", 3)

	v.SetDefault("playback.auto_play", true)
	v.SetDefault("playback.loop", false)
	v.SetDefault("playback.settle_delay", "50ms")
	v.SetDefault("playback.pause_on_focus_loss", false)

	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("audio.buffer_size", 0)
	v.SetDefault("audio.mock", false)

	v.SetDefault("waveform.buckets", 512)

	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.rate", 10.0)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "sampledeck")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "sampledeck")}, dirs...)
	}

	if c := os.Getenv("SAMPLEDECK_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("sampledeck")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("sampledeck")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "sampledeck.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
		return
	}
	// Read the fresh file so preference changes are written back to it
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		log.Warn("Could not read default configuration", "path", configFile, "err", err)
	}
}
