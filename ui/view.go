package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/sampledeck/internal/audio"
	"github.com/dgnsrekt/sampledeck/internal/library"
	"github.com/dgnsrekt/sampledeck/internal/playback"
)

const (
	formatColumn   = 5
	sizeColumn     = 9
	durationColumn = 6
)

func (m model) headerView() string {
	title := titleStyle.Render("sampledeck")
	source := m.cfg.Source
	if m.cfg.HomeDir != "" && strings.HasPrefix(source, m.cfg.HomeDir) {
		source = "~" + strings.TrimPrefix(source, m.cfg.HomeDir)
	}

	count := fmt.Sprintf("%d samples", len(m.samples))
	if len(m.visible) != len(m.samples) {
		count = fmt.Sprintf("%d of %d samples", len(m.visible), len(m.samples))
	}
	if m.filtering {
		return title + " " + m.filter.View()
	}
	if m.loading {
		count = m.spinner.View() + " scanning"
	}
	return title + " " + subtleStyle.Render(source) + "  " + dimStyle.Render(count)
}

func (m model) listView() string {
	h := m.listHeight()
	lines := make([]string, 0, h)

	switch {
	case len(m.samples) == 0 && !m.loading:
		lines = append(lines, subtleStyle.Render("  No samples found."))
	case len(m.visible) == 0 && !m.loading:
		lines = append(lines, subtleStyle.Render("  Nothing matched."))
	}

	end := min(m.offset+h, len(m.visible))
	for i := m.offset; i < end; i++ {
		lines = append(lines, m.sampleRow(i, m.visible[i]))
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m model) sampleRow(i int, s library.Sample) string {
	nameWidth := max(m.width-formatColumn-sizeColumn-durationColumn-8, 8)

	name := truncate.StringWithTail(s.Filename, uint(nameWidth), ellipsis) //nolint:gosec
	name = runewidth.FillRight(name, nameWidth)

	size := ""
	if s.Size > 0 {
		size = humanize.IBytes(uint64(s.Size)) //nolint:gosec
	}
	details := fmt.Sprintf("%-*s %*s %*s",
		formatColumn, s.Format,
		sizeColumn, size,
		durationColumn, formatDuration(s.Duration))

	marker := "  "
	nameStyle := dimStyle
	if i == m.cursor {
		marker = selectedStyle.Render("▌ ")
		nameStyle = selectedStyle
	}
	return marker + nameStyle.Render(name) + " " + subtleStyle.Render(details) + " " + m.sampleIndicator(s)
}

// sampleIndicator marks the loading state of a selected sample.
func (m model) sampleIndicator(s library.Sample) string {
	st := m.status
	if !st.HasSample || st.Sample.Key() != s.Key() {
		return " "
	}
	switch st.Selection.State {
	case playback.SampleLoading:
		return m.spinner.View()
	case playback.SampleFailed:
		return failedStyle.Render("✗")
	default:
		if st.Engine.Playing {
			return readyStyle.Render("▶")
		}
		return readyStyle.Render("●")
	}
}

func (m model) statusView() string {
	st := m.status
	parts := []string{"  " + stateLabel(st.Engine)}

	if st.Engine.BufferReady {
		parts = append(parts, fmt.Sprintf("%s / %s",
			formatDuration(st.Engine.Elapsed), formatDuration(st.Engine.Duration)))
	}
	parts = append(parts, flag("loop", st.Prefs.Loop), flag("auto", st.Prefs.AutoPlay))

	if m.deps.Cache != nil {
		cs := m.deps.Cache.Stats()
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("cache %s/%s",
			humanize.IBytes(uint64(max(cs.L1.Size, 0))),     //nolint:gosec
			humanize.IBytes(uint64(max(cs.L1.Capacity, 0))), //nolint:gosec
		)))
		if cs.DiskActive {
			parts = append(parts, subtleStyle.Render("disk "+humanize.IBytes(uint64(max(cs.L2.Size, 0))))) //nolint:gosec
		}
	}

	switch {
	case m.message != "":
		parts = append(parts, messageStyle.Render(m.message))
	case st.Selection.Err != nil:
		parts = append(parts, failedStyle.Render(st.Selection.Err.Error()))
	}

	line := strings.Join(parts, "  ")
	return truncate.StringWithTail(line, uint(max(m.width, 1)), ellipsis) //nolint:gosec
}

func stateLabel(st audio.Status) string {
	switch st.State {
	case audio.StatePlaying:
		return readyStyle.Render("▶ playing")
	case audio.StateDecoding:
		return subtleStyle.Render("… decoding")
	case audio.StateError:
		return failedStyle.Render("✗ error")
	case audio.StateReady, audio.StateStopped:
		return dimStyle.Render("■ stopped")
	default:
		return dimStyle.Render("  idle")
	}
}

func flag(name string, on bool) string {
	if on {
		return flagOnStyle.Render(name)
	}
	return flagOffStyle.Render(name)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "--:--"
	}
	d = d.Round(10 * time.Millisecond)
	minutes := int(d / time.Minute)
	seconds := (d % time.Minute).Seconds()
	return fmt.Sprintf("%d:%05.2f", minutes, seconds)
}
