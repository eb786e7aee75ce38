package waveform

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// PeakSource provides cached peak amplitudes. *audio.Buffer implements it.
type PeakSource interface {
	Peaks(buckets int) []float32
}

// Peaks returns buckets peaks from src, or nil without a source.
func Peaks(src PeakSource, buckets int) []float32 {
	if src == nil || buckets <= 0 {
		return nil
	}
	return src.Peaks(buckets)
}

// Layout is the display size in logical pixels plus the device pixel ratio
// of the backing store.
type Layout struct {
	Width            int
	Height           int
	DevicePixelRatio float64
}

// Backing returns the backing store size in device pixels.
func (l Layout) Backing() (int, int) {
	dpr := l.DevicePixelRatio
	if dpr <= 0 {
		dpr = 1
	}
	return int(math.Round(float64(l.Width) * dpr)), int(math.Round(float64(l.Height) * dpr))
}

// Palette colors a rendered waveform.
type Palette struct {
	Background color.RGBA
	Played     color.RGBA
	Unplayed   color.RGBA
	Cursor     color.RGBA
	Center     color.RGBA
}

// DefaultPalette matches the TUI colors.
var DefaultPalette = Palette{
	Background: color.RGBA{0x1a, 0x1a, 0x1a, 0xff},
	Played:     color.RGBA{0xee, 0x6f, 0xf8, 0xff},
	Unplayed:   color.RGBA{0x5c, 0x5c, 0x5c, 0xff},
	Cursor:     color.RGBA{0xff, 0xff, 0xff, 0xff},
	Center:     color.RGBA{0x3a, 0x3a, 0x3a, 0xff},
}

// Renderer draws one bar per logical pixel column into a backing image.
// Peaks are derived when the source or the logical width changes; other
// resizes only reallocate the backing store.
type Renderer struct {
	Palette Palette

	source PeakSource
	layout Layout
	peaks  []float32
	canvas *image.RGBA
}

// NewRenderer creates a renderer for src at layout.
func NewRenderer(src PeakSource, layout Layout) *Renderer {
	r := &Renderer{Palette: DefaultPalette, source: src}
	r.Resize(layout)
	return r
}

// SetSource replaces the buffer being drawn.
func (r *Renderer) SetSource(src PeakSource) {
	r.source = src
	r.peaks = Peaks(src, r.layout.Width)
}

// Resize changes the layout.
func (r *Renderer) Resize(layout Layout) {
	if layout.Width != r.layout.Width || r.peaks == nil {
		r.peaks = Peaks(r.source, layout.Width)
	}
	r.layout = layout

	w, h := layout.Backing()
	if r.canvas == nil || r.canvas.Rect.Dx() != w || r.canvas.Rect.Dy() != h {
		r.canvas = image.NewRGBA(image.Rect(0, 0, w, h))
	}
}

// Layout returns the current layout.
func (r *Renderer) Layout() Layout {
	return r.layout
}

// Peaks returns the peaks currently drawn.
func (r *Renderer) Peaks() []float32 {
	return r.peaks
}

// Draw paints the waveform at position (0 to 1) and returns the backing
// store. The image is reused by the next Draw.
func (r *Renderer) Draw(position float64) *image.RGBA {
	img := r.canvas
	w, h := img.Rect.Dx(), img.Rect.Dy()
	draw.Draw(img, img.Rect, image.NewUniform(r.Palette.Background), image.Point{}, draw.Src)
	if w == 0 || h == 0 {
		return img
	}

	position = SeekFraction(position, 1)
	mid := h / 2

	fill(img, 0, mid, w, mid+1, r.Palette.Center)

	n := len(r.peaks)
	for i, peak := range r.peaks {
		x0 := i * w / n
		x1 := (i + 1) * w / n
		if x1 <= x0 {
			x1 = x0 + 1
		}

		half := int(math.Round(float64(min(peak, 1)) * float64(h) / 2))
		if half == 0 && peak > 0 {
			half = 1
		}

		c := r.Palette.Unplayed
		if float64(i)/float64(n) < position {
			c = r.Palette.Played
		}
		fill(img, x0, mid-half, x1, mid+half, c)
	}

	cursor := int(position * float64(w))
	if cursor >= w {
		cursor = w - 1
	}
	thick := max(1, int(math.Round(r.layout.DevicePixelRatio)))
	fill(img, cursor, 0, min(cursor+thick, w), h, r.Palette.Cursor)

	return img
}

func fill(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	draw.Draw(img, image.Rect(x0, y0, x1, y1).Intersect(img.Rect), image.NewUniform(c), image.Point{}, draw.Src)
}
