package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Encoder turns a numbered frame sequence into a video file. The frame
// pattern is printf style ("districts_F-%04d.png"); startFrame is the
// first frame number to include.
type Encoder interface {
	Encode(ctx context.Context, framePattern string, startFrame, frameRate int, outPath string) error
}

// FFmpegEncoder shells out to ffmpeg. Frames are read straight from
// disk by frame number; the output is H.264 in yuv420p so every common
// player accepts it.
type FFmpegEncoder struct{}

func (e *FFmpegEncoder) buildArgs(framePattern string, startFrame, frameRate int, outPath string) []string {
	return []string{
		"-y",
		"-framerate", strconv.Itoa(frameRate),
		"-start_number", strconv.Itoa(startFrame),
		"-i", framePattern,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outPath,
	}
}

func (e *FFmpegEncoder) Encode(ctx context.Context, framePattern string, startFrame, frameRate int, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}

	args := e.buildArgs(framePattern, startFrame, frameRate, outPath)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		// A failed run can leave a truncated file behind; don't let it
		// satisfy a later cache-hit check.
		os.Remove(outPath)
		return fmt.Errorf("ffmpeg error: %w, output: %s", err, string(out))
	}
	return nil
}
