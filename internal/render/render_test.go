package render

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/mapvideo/internal/incidence"
)

func TestRenderFrameWritesDecodablePNG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "districts", "districts_F-0001.png")
	r := NewRaster(640, 800, "https://example.org/docs")

	job := Job{
		Headline: "7-Tage-Inzidenz der Landkreise",
		Date:     "2023-01-05",
		Fills: map[string]string{
			"1": "#7FD38D",
			"2": "#EB1A1D",
			"3": "#FEFFB1",
		},
		Ranges: incidence.WeekIncidenceColorRanges,
		Markers: []Marker{
			{Name: "min", AccentColor: "green", BandColor: "#7FD38D", BandIndex: 1},
			{Name: "avg", AccentColor: "orange", BandColor: "#FEFFB1", BandIndex: 2},
			{Name: "max", AccentColor: "red", BandColor: "#EB1A1D", BandIndex: 5},
		},
		OutPath: out,
	}

	if err := r.RenderFrame(context.Background(), job); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("Frame file missing: %v", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("Frame is not a valid PNG: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 640 || bounds.Dy() != 800 {
		t.Errorf("Frame dimensions = %dx%d, want 640x800", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderFrameHonorsCancelledContext(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame.png")
	r := NewRaster(64, 64, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.RenderFrame(ctx, Job{OutPath: out}); err == nil {
		t.Fatal("Expected error from cancelled context")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("Cancelled render must not write a frame")
	}
}

func TestMarkersShareBandRow(t *testing.T) {
	// Two markers in the same band must not error and must keep their
	// rank order when grouped.
	out := filepath.Join(t.TempDir(), "frame.png")
	r := NewRaster(640, 800, "")

	job := Job{
		Headline: "7-Tage-Inzidenz der Bundesländer",
		Date:     "2023-01-05",
		Fills:    map[string]string{"9": "#7FD38D"},
		Ranges:   incidence.WeekIncidenceColorRanges,
		Markers: []Marker{
			{Name: "min", AccentColor: "green", BandColor: "#7FD38D", BandIndex: 1},
			{Name: "avg", AccentColor: "orange", BandColor: "#7FD38D", BandIndex: 1},
			{Name: "max", AccentColor: "red", BandColor: "#7FD38D", BandIndex: 1},
		},
		TileBorder: true,
		OutPath:    out,
	}

	if err := r.RenderFrame(context.Background(), job); err != nil {
		t.Fatalf("RenderFrame failed: %v", err)
	}
}
