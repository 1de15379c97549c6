package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ivlev/mapvideo/internal/config"
	"github.com/ivlev/mapvideo/internal/datasource"
	"github.com/ivlev/mapvideo/internal/diff"
	"github.com/ivlev/mapvideo/internal/frames"
	"github.com/ivlev/mapvideo/internal/fslock"
	"github.com/ivlev/mapvideo/internal/incidence"
	"github.com/ivlev/mapvideo/internal/regions"
	"github.com/ivlev/mapvideo/internal/render"
	"github.com/ivlev/mapvideo/internal/snapshot"
	"github.com/ivlev/mapvideo/internal/status"
	"github.com/ivlev/mapvideo/internal/video"
)

const (
	minDays            = 100
	minFrameRate       = 5
	maxFrameRate       = 25
	maxVideosPerRegion = 5
	snapshotsToKeep    = 2
)

// Video is the result of a successful production: the path of an
// existing or freshly encoded video file.
type Video struct {
	Filename string `json:"filename"`
}

// Engine runs the incremental frame cache and video pipeline: snapshot
// the classification, diff against the previous generation, re-render
// only stale frames under the region lock, encode, then prune
// superseded artifacts.
type Engine struct {
	cfg      config.Config
	provider datasource.Provider
	renderer render.Renderer
	encoder  video.Encoder
	store    *snapshot.Store
	ledger   *status.Ledger
	frames   *frames.Orchestrator
	log      *slog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

func New(cfg config.Config, provider datasource.Provider, renderer render.Renderer, encoder video.Encoder, log *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		provider: provider,
		renderer: renderer,
		encoder:  encoder,
		store:    snapshot.NewStore(cfg.DataDir),
		ledger: status.NewLedger(cfg.DataDir,
			time.Duration(cfg.StatusPollInterval), time.Duration(cfg.StatusMaxWait)),
		frames: &frames.Orchestrator{
			Renderer: renderer,
			DataDir:  cfg.DataDir,
			Workers:  cfg.Workers,
			Log:      log,
		},
		log: log,
		now: time.Now,
	}
}

// ProduceVideo is the public operation: return the requested region
// video, rendering and encoding only what the last snapshot did not
// already cover. days == nil selects the full available history.
func (e *Engine) ProduceVideo(ctx context.Context, region regions.Region, durationSeconds int, days *int) (Video, error) {
	meta, err := e.provider.Meta(ctx)
	if err != nil {
		return Video{}, fmt.Errorf("upstream meta: %w", err)
	}
	refDate, err := referenceDate(meta.Version)
	if err != nil {
		return Video{}, err
	}

	colors, err := e.loadOrComputeSnapshot(ctx, region, refDate)
	if err != nil {
		return Video{}, err
	}
	dates := colors.SortedDates()

	dayCount, frameRate, err := validateWindow(days, len(dates), durationSeconds)
	if err != nil {
		return Video{}, err
	}

	videoPath := e.videoPath(region, refDate, dayCount, durationSeconds)
	if fileExists(videoPath) {
		return Video{Filename: videoPath}, nil
	}

	// The region lock spans frame work and the encode. Another holder
	// may be producing the very same video, so re-check the target
	// after winning the lock.
	lock := fslock.New(
		filepath.Join(e.cfg.DataDir, string(region)+".lockfile"),
		time.Duration(e.cfg.RegionPollInterval),
	)
	lockCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.RegionMaxWait))
	defer cancel()
	if err := lock.Acquire(lockCtx); err != nil {
		return Video{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			e.log.Error("region lock release failed", "region", region, "error", err)
		}
	}()

	if fileExists(videoPath) {
		return Video{Filename: videoPath}, nil
	}

	if err := e.ensureFrames(ctx, region, colors); err != nil {
		return Video{}, err
	}

	startFrame := len(dates) - dayCount + 1
	encodeStart := e.now()
	err = e.encoder.Encode(ctx, frames.Pattern(e.cfg.DataDir, region), startFrame, frameRate, videoPath)
	if err != nil {
		return Video{}, fmt.Errorf("encode %s: %w", videoPath, err)
	}
	e.log.Info("video encoded",
		"region", region,
		"file", filepath.Base(videoPath),
		"frame_rate", frameRate,
		"took", time.Since(encodeStart),
	)

	if err := e.recordAndPruneVideos(ctx, region, refDate, videoPath); err != nil {
		return Video{}, err
	}
	if err := e.store.Prune(region, snapshotsToKeep); err != nil {
		return Video{}, fmt.Errorf("prune snapshots: %w", err)
	}

	return Video{Filename: videoPath}, nil
}

// WarmCache pre-computes the snapshot and renders stale frames without
// encoding anything, so the first request of the day only encodes.
func (e *Engine) WarmCache(ctx context.Context, region regions.Region) error {
	meta, err := e.provider.Meta(ctx)
	if err != nil {
		return fmt.Errorf("upstream meta: %w", err)
	}
	refDate, err := referenceDate(meta.Version)
	if err != nil {
		return err
	}
	colors, err := e.loadOrComputeSnapshot(ctx, region, refDate)
	if err != nil {
		return err
	}

	lock := fslock.New(
		filepath.Join(e.cfg.DataDir, string(region)+".lockfile"),
		time.Duration(e.cfg.RegionPollInterval),
	)
	lockCtx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.RegionMaxWait))
	defer cancel()
	if err := lock.Acquire(lockCtx); err != nil {
		return err
	}
	defer lock.Release()

	return e.ensureFrames(ctx, region, colors)
}

// loadOrComputeSnapshot returns the snapshot for the reference date.
// A date already materialized on disk is returned verbatim, which keeps
// repeated calls for the same day idempotent. A fresh computation
// resets the region's ready flag before any frame work can run.
func (e *Engine) loadOrComputeSnapshot(ctx context.Context, region regions.Region, refDate string) (incidence.ColorsPerDay, error) {
	colors, ok, err := e.store.Load(region, refDate)
	if err != nil {
		return nil, err
	}
	if ok {
		return colors, nil
	}

	start := e.now()
	histories, err := e.provider.CasesHistory(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("upstream case history: %w", err)
	}
	infos, err := e.provider.RegionsInfo(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("upstream region data: %w", err)
	}
	colors, err = incidence.Build(histories, infos)
	if err != nil {
		return nil, err
	}
	if err := e.store.Save(region, refDate, colors); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	e.log.Info("snapshot computed",
		"region", region,
		"ref_date", refDate,
		"days", len(colors),
		"took", time.Since(start),
	)

	err = e.ledger.Update(ctx, func(st *status.Status) error {
		st.SetReady(region, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return colors, nil
}

// ensureFrames brings the region's frame set up to date with the
// current snapshot. Caller must hold the region lock. The ready flag is
// set only after every stale frame rendered; a failed fan-out leaves it
// false so the next caller retries the full diff.
func (e *Engine) ensureFrames(ctx context.Context, region regions.Region, colors incidence.ColorsPerDay) error {
	st, err := e.ledger.Read()
	if err != nil {
		return err
	}
	if st.Ready(region) {
		return nil
	}

	previous, _, err := e.store.Previous(region)
	if err != nil {
		return err
	}
	stale := diff.Days(colors, previous)
	newFrames, changedFrames := diff.Counts(stale)
	e.log.Info("diff computed", "region", region, "new", newFrames, "changed", changedFrames)

	if err := e.frames.RenderStale(ctx, region, colors, stale); err != nil {
		return err
	}

	return e.ledger.Update(ctx, func(st *status.Status) error {
		st.SetReady(region, true)
		return nil
	})
}

// recordAndPruneVideos appends the new video to the ledger and applies
// retention under the status lock: videos of superseded reference dates
// go first, then everything beyond the five most recent.
func (e *Engine) recordAndPruneVideos(ctx context.Context, region regions.Region, refDate, videoPath string) error {
	created := e.createdAt(refDate)
	return e.ledger.Update(ctx, func(st *status.Status) error {
		list := append(st.VideoList(region), status.VideoRecord{Filename: videoPath, Created: created})

		kept := list[:0]
		for _, rec := range list {
			if strings.Contains(filepath.Base(rec.Filename), refDate) {
				kept = append(kept, rec)
				continue
			}
			if err := os.Remove(rec.Filename); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("evict stale video %s: %w", rec.Filename, err)
			}
		}

		sort.SliceStable(kept, func(i, j int) bool { return kept[i].Created < kept[j].Created })
		for len(kept) > maxVideosPerRegion {
			if err := os.Remove(kept[0].Filename); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("evict old video %s: %w", kept[0].Filename, err)
			}
			kept = kept[1:]
		}

		st.SetVideoList(region, kept)
		return nil
	})
}

// createdAt stamps a record with the reference date combined with the
// current time of day.
func (e *Engine) createdAt(refDate string) int64 {
	now := e.now().UTC()
	day, err := time.Parse(incidence.DateFormat, refDate)
	if err != nil {
		return now.UnixMilli()
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC).UnixMilli()
}

func (e *Engine) videoPath(region regions.Region, refDate string, days, durationSeconds int) string {
	return filepath.Join(e.cfg.VideoDir,
		fmt.Sprintf("%s_%s_Days%04d_Duration%04d.mp4", region, refDate, days, durationSeconds))
}

// validateWindow checks the requested day window and duration and
// derives the frame rate. It runs before any render or encode work.
func validateWindow(days *int, available, durationSeconds int) (dayCount, frameRate int, err error) {
	dayCount = available
	daysLabel := "unlimited"
	if days != nil {
		if *days < minDays || *days > available {
			return 0, 0, rangeErrorf("':days' parameter must be between '%d' and '%d'", minDays, available)
		}
		dayCount = *days
		daysLabel = strconv.Itoa(*days)
	}

	durationBounds := func() error {
		return rangeErrorf("':duration' parameter must be between '%d' and '%d' seconds if ':days' is '%s'",
			dayCount/maxFrameRate+1, dayCount/minFrameRate, daysLabel)
	}
	if durationSeconds < 1 {
		return 0, 0, durationBounds()
	}
	frameRate = dayCount / durationSeconds
	if frameRate < minFrameRate || frameRate > maxFrameRate {
		return 0, 0, durationBounds()
	}
	return dayCount, frameRate, nil
}

// referenceDate is the day before the upstream dataset version: the
// last date with complete data.
func referenceDate(version string) (string, error) {
	t, err := time.Parse(incidence.DateFormat, version)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, version); err != nil {
			return "", fmt.Errorf("bad upstream version %q: %w", version, err)
		}
	}
	return t.AddDate(0, 0, -1).Format(incidence.DateFormat), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
