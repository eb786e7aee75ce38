package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/sampledeck/internal/audio"
	"github.com/dgnsrekt/sampledeck/internal/library"
	"github.com/dgnsrekt/sampledeck/internal/playback"
	"github.com/dgnsrekt/sampledeck/internal/waveform"
)

var (
	waveformOutput   string
	waveformWidth    int
	waveformHeight   int
	waveformDPR      float64
	waveformPosition float64

	waveformCmd = &cobra.Command{
		Use:     "waveform SAMPLE",
		Short:   "Render a sample's waveform to PNG",
		Long:    paragraph(fmt.Sprintf("\n%s of a local sample as a PNG image.", keyword("Render the waveform"))),
		Example: paragraph("sampledeck waveform kick.wav -o kick.png\nsampledeck waveform loop.flac --width 1200 --dpr 2 -o - > loop.png"),
		Args:    cobra.ExactArgs(1),
		RunE:    renderWaveform,
	}
)

func init() {
	waveformCmd.Flags().StringVarP(&waveformOutput, "output", "o", "waveform.png", "output file, - for stdout")
	waveformCmd.Flags().IntVar(&waveformWidth, "width", 800, "width in logical pixels")
	waveformCmd.Flags().IntVar(&waveformHeight, "height", 120, "height in logical pixels")
	waveformCmd.Flags().Float64Var(&waveformDPR, "dpr", 1, "device pixel ratio of the image")
	waveformCmd.Flags().Float64Var(&waveformPosition, "position", 0, "playback position to mark, from 0 to 1")
}

func renderWaveform(cmd *cobra.Command, args []string) error {
	if waveformWidth < 1 || waveformHeight < 1 {
		return errors.New("width and height must be positive")
	}
	if waveformDPR <= 0 || waveformDPR > 4 {
		return fmt.Errorf("dpr must be between 0 and 4, got %v", waveformDPR)
	}

	path, err := homedir.Expand(args[0])
	if err != nil {
		return fmt.Errorf("unable to expand path: %w", err)
	}
	blob, err := playback.NewFileFetcher().Fetch(cmd.Context(), library.Sample{Path: path})
	if err != nil {
		return err
	}

	buf, err := audio.NewDecoder(viper.GetInt("audio.sample_rate")).Decode(cmd.Context(), blob)
	if err != nil {
		return fmt.Errorf("unable to decode %s: %w", args[0], err)
	}
	log.Debug("Rendering waveform", "sample", path, "size", humanize.IBytes(uint64(len(blob))), "duration", buf.Duration())

	r := waveform.NewRenderer(buf, waveform.Layout{
		Width:            waveformWidth,
		Height:           waveformHeight,
		DevicePixelRatio: waveformDPR,
	})
	img := r.Draw(waveformPosition)

	var w io.Writer = os.Stdout
	if waveformOutput != "-" {
		f, err := os.Create(waveformOutput)
		if err != nil {
			return fmt.Errorf("unable to create output file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	if err := waveform.EncodePNG(w, img); err != nil {
		return err
	}
	if waveformOutput != "-" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Wrote waveform to:", waveformOutput)
	}
	return nil
}
