package system

import (
	"log/slog"
	"runtime"
	"syscall"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// InitResourceLimits raises the open-file limit. A full re-render keeps
// one frame file open per in-flight worker plus the ffmpeg pipes, which
// can exceed conservative defaults.
func InitResourceLimits(log *slog.Logger) {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("could not read file limit", "error", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Warn("could not raise file limit", "error", err)
	} else {
		log.Info("open file limit raised", "limit", rLimit.Cur)
	}
}

// RenderWorkers sizes the frame-render pool. configured > 0 wins;
// otherwise the count is the CPU count capped by how many full RGBA
// canvases fit into a quarter of the available memory, so a large
// backlog of stale frames cannot push the process into swap.
func RenderWorkers(configured, frameWidth, frameHeight int) int {
	if configured > 0 {
		return configured
	}

	workers, err := cpu.Counts(true)
	if err != nil || workers < 1 {
		workers = runtime.NumCPU()
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		frameBytes := uint64(frameWidth) * uint64(frameHeight) * 4
		if frameBytes > 0 {
			byMemory := int(vm.Available / 4 / frameBytes)
			if byMemory < workers {
				workers = byMemory
			}
		}
	}

	if workers < 1 {
		workers = 1
	}
	return workers
}
