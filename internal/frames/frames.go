package frames

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/mapvideo/internal/diff"
	"github.com/ivlev/mapvideo/internal/incidence"
	"github.com/ivlev/mapvideo/internal/regions"
	"github.com/ivlev/mapvideo/internal/render"
)

// Index returns the stable 1-based frame number of a date: its day
// offset from the earliest date in the snapshot. It depends only on
// the date's position in the full range, never on when the frame was
// rendered.
func Index(date, earliest string) (int, error) {
	d, err := time.Parse(incidence.DateFormat, date)
	if err != nil {
		return 0, fmt.Errorf("bad frame date %q: %w", date, err)
	}
	e, err := time.Parse(incidence.DateFormat, earliest)
	if err != nil {
		return 0, fmt.Errorf("bad earliest date %q: %w", earliest, err)
	}
	return int(d.Sub(e).Hours()/24) + 1, nil
}

// Path names a frame artifact: {dataDir}/{region}/{region}_F-0001.png.
func Path(dataDir string, region regions.Region, index int) string {
	return filepath.Join(dataDir, string(region), fmt.Sprintf("%s_F-%04d.png", region, index))
}

// Pattern is the printf-style frame pattern the encoder consumes.
func Pattern(dataDir string, region regions.Region) string {
	return filepath.Join(dataDir, string(region), fmt.Sprintf("%s_F-%%04d.png", region))
}

// Orchestrator fans render jobs for stale days out to the renderer and
// joins them before anyone may consider the frame set complete.
type Orchestrator struct {
	Renderer render.Renderer
	DataDir  string
	// Workers bounds concurrent renders; values < 1 mean unbounded.
	Workers int
	Log     *slog.Logger
}

var markerAccents = []struct {
	key    string
	accent string
}{
	{incidence.KeyMin, "green"},
	{incidence.KeyAvg, "orange"},
	{incidence.KeyMax, "red"},
}

// RenderStale renders every entry of the diff set concurrently. Frames
// may finish in any order, but the call returns only once all have
// been written; a single failed frame fails the whole set.
func (o *Orchestrator) RenderStale(ctx context.Context, region regions.Region, colors incidence.ColorsPerDay, stale []diff.Entry) error {
	if len(stale) == 0 {
		return nil
	}
	dates := colors.SortedDates()
	if len(dates) == 0 {
		return fmt.Errorf("empty snapshot for %s", region)
	}
	earliest := dates[0]
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	if o.Workers > 0 {
		g.SetLimit(o.Workers)
	}

	for _, entry := range stale {
		job, err := o.buildJob(region, colors, earliest, entry.Date)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := o.Renderer.RenderFrame(ctx, job); err != nil {
				return fmt.Errorf("frame %s (%s): %w", job.OutPath, job.Date, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if o.Log != nil {
		newFrames, changedFrames := diff.Counts(stale)
		o.Log.Info("frames rendered",
			"region", region,
			"new", newFrames,
			"changed", changedFrames,
			"took", time.Since(start),
		)
	}
	return nil
}

// buildJob assembles one day's render input: the per-region fill map
// and the three aggregate markers placed into their legend bands.
func (o *Orchestrator) buildJob(region regions.Region, colors incidence.ColorsPerDay, earliest, date string) (render.Job, error) {
	day, ok := colors[date]
	if !ok {
		return render.Job{}, fmt.Errorf("no colors for %s", date)
	}

	index, err := Index(date, earliest)
	if err != nil {
		return render.Job{}, err
	}

	fills := make(map[string]string, len(day))
	for key, entry := range day {
		if key == incidence.KeyMin || key == incidence.KeyAvg || key == incidence.KeyMax {
			continue
		}
		fills[key] = entry.Color
	}

	markers := make([]render.Marker, 0, len(markerAccents))
	for _, m := range markerAccents {
		entry, ok := day[m.key]
		if !ok {
			return render.Job{}, fmt.Errorf("day %s is missing aggregate %q", date, m.key)
		}
		markers = append(markers, render.Marker{
			Name:        m.key,
			AccentColor: m.accent,
			BandColor:   entry.Color,
			BandIndex:   incidence.RangeIndex(entry.Color, incidence.WeekIncidenceColorRanges),
		})
	}

	return render.Job{
		Headline:   region.Headline(),
		Date:       date,
		Fills:      fills,
		Ranges:     incidence.WeekIncidenceColorRanges,
		Markers:    markers,
		TileBorder: region == regions.States,
		OutPath:    Path(o.DataDir, region, index),
	}, nil
}
