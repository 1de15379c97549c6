package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/mapvideo/internal/incidence"
	"github.com/ivlev/mapvideo/internal/system"
)

// Marker is one of the min/avg/max legend entries. BandIndex is the
// position of BandColor within the severity-ordered legend; markers
// sharing a band are drawn side by side in that band's legend row.
type Marker struct {
	Name        string
	AccentColor string
	BandColor   string
	BandIndex   int
}

// Job describes a single frame: one day's fill color per region plus
// the legend data.
type Job struct {
	Headline string
	Date     string
	// Fills maps region keys to band colors. Aggregate keys are not
	// part of it; they arrive as Markers.
	Fills      map[string]string
	Ranges     []incidence.ColorRange
	Markers    []Marker
	TileBorder bool
	OutPath    string
}

// Renderer produces one annotated frame image per job.
type Renderer interface {
	RenderFrame(ctx context.Context, job Job) error
}

// Raster draws frames onto an RGBA canvas: headline and date on top, the
// severity legend with min/avg/max markers on the left, the region
// mosaic on the right and a QR attribution code in the bottom corner.
type Raster struct {
	Width   int
	Height  int
	DocsURL string
}

func NewRaster(width, height int, docsURL string) *Raster {
	return &Raster{Width: width, Height: height, DocsURL: docsURL}
}

const (
	margin     = 24
	legendRowH = 28
	qrSize     = 96
)

func (r *Raster) RenderFrame(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	canvas := system.GetImage(image.Rect(0, 0, r.Width, r.Height))
	defer system.PutImage(canvas)
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	drawText(canvas, margin, margin+12, color.Black, job.Headline)
	drawText(canvas, margin, margin+32, color.Black, job.Date)

	r.drawLegend(canvas, job)
	r.drawMosaic(canvas, job)

	if r.DocsURL != "" {
		if err := r.drawQR(canvas); err != nil {
			return fmt.Errorf("qr overlay: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(job.OutPath), 0755); err != nil {
		return err
	}
	f, err := os.Create(job.OutPath)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := png.Encode(f, canvas); err != nil {
		return fmt.Errorf("encode frame %s: %w", job.OutPath, err)
	}
	return nil
}

// drawLegend renders one row per color band, most severe on top, and
// places each marker's name in its accent color next to the band it
// falls into.
func (r *Raster) drawLegend(canvas *image.RGBA, job Job) {
	top := margin + 56

	markersByBand := map[int][]Marker{}
	for _, m := range job.Markers {
		markersByBand[m.BandIndex] = append(markersByBand[m.BandIndex], m)
	}

	for i := len(job.Ranges) - 1; i >= 0; i-- {
		band := job.Ranges[i]
		row := len(job.Ranges) - 1 - i
		y := top + row*legendRowH

		fillRect(canvas, margin, y, 36, legendRowH-8, parseHexColor(band.Color))

		label := fmt.Sprintf("> %.0f", band.Min)
		if band.Max < 1e9 {
			label = fmt.Sprintf("%.0f - %.0f", band.Min, band.Max)
		}
		drawText(canvas, margin+44, y+14, color.Black, label)

		for rank, m := range markersByBand[i] {
			x := margin + 120 + rank*42
			drawText(canvas, x, y+14, parseHexColor(m.AccentColor), m.Name)
		}
	}
}

// drawMosaic fills one tile per region, keys sorted for a stable
// layout across frames.
func (r *Raster) drawMosaic(canvas *image.RGBA, job Job) {
	if len(job.Fills) == 0 {
		return
	}
	keys := make([]string, 0, len(job.Fills))
	for key := range job.Fills {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	areaX := margin + 220
	areaY := margin + 56
	areaW := r.Width - areaX - margin
	areaH := r.Height - areaY - margin - qrSize

	cols := 1
	for cols*cols < len(keys) {
		cols++
	}
	rows := (len(keys) + cols - 1) / cols
	tileW := areaW / cols
	tileH := areaH / rows
	if tileH > tileW {
		tileH = tileW
	}

	border := parseHexColor("#DBDBDB")
	for i, key := range keys {
		x := areaX + (i%cols)*tileW
		y := areaY + (i/cols)*tileH
		fillRect(canvas, x, y, tileW-2, tileH-2, parseHexColor(job.Fills[key]))
		if job.TileBorder {
			strokeRect(canvas, x, y, tileW-2, tileH-2, border)
		}
	}
}

func (r *Raster) drawQR(canvas *image.RGBA) error {
	qr, err := qrcode.New(r.DocsURL, qrcode.Medium)
	if err != nil {
		return err
	}
	img := qr.Image(qrSize)
	target := image.Rect(r.Width-qrSize-margin, r.Height-qrSize-margin, r.Width-margin, r.Height-margin)
	draw.Draw(canvas, target, img, image.Point{}, draw.Over)
	return nil
}

func drawText(dst *image.RGBA, x, y int, col color.Color, s string) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func fillRect(dst *image.RGBA, x, y, w, h int, col color.Color) {
	draw.Draw(dst, image.Rect(x, y, x+w, y+h), image.NewUniform(col), image.Point{}, draw.Src)
}

func strokeRect(dst *image.RGBA, x, y, w, h int, col color.Color) {
	for i := x; i < x+w; i++ {
		dst.Set(i, y, col)
		dst.Set(i, y+h-1, col)
	}
	for j := y; j < y+h; j++ {
		dst.Set(x, j, col)
		dst.Set(x+w-1, j, col)
	}
}

func parseHexColor(s string) color.RGBA {
	c := color.RGBA{A: 0xFF}
	if len(s) == 7 && s[0] == '#' {
		fmt.Sscanf(s[1:], "%02x%02x%02x", &c.R, &c.G, &c.B)
	}
	return c
}
