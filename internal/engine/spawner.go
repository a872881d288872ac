package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sys/unix"
)

// Handle is the join handle returned by SpawnEngine.
type Handle struct {
	name string
	done chan error
}

// Name returns the spawned engine's name.
func (h *Handle) Name() string { return h.name }

// Join blocks until the engine's Start returns, yielding its result.
func (h *Handle) Join() error { return <-h.done }

// SpawnEngine runs e.Start on a dedicated OS thread pinned to cpu.
//
// Go has no user-space cooperative task executor the way the source's
// thread-per-core runtime does; runtime.LockOSThread plus CPU affinity is
// the idiomatic Go reading of "one executor per core, one engine per
// executor" (see SPEC_FULL.md §4.2 and DESIGN.md for why this HOW-level
// substitution is made). Within the pinned goroutine, the engine's own
// Start loop is responsible for the busy-spin-before-park discipline on
// its SPSC polls (code.hybscloud.com/spin), since that is a per-loop
// concern, not a per-thread one.
//
// Acquires a delay-shutdown token before calling e.Start and releases it
// when Start returns, so the process's signal handler can wait for every
// spawned engine to drain via sd.WaitShutdownComplete.
func SpawnEngine(cpu int, e Engine, ctx context.Context, sd *Shutdown, logger *slog.Logger) *Handle {
	h := &Handle{name: e.Name(), done: make(chan error, 1)}

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		if err := pinToCPU(cpu); err != nil {
			logger.Warn("cpu pinning unavailable, continuing unpinned",
				"engine", e.Name(), "cpu", cpu, "error", err)
		}

		release := sd.DelayShutdownToken()
		defer release()

		err := e.Start(ctx, sd)
		if err != nil {
			logger.Error("engine exited with error", "engine", e.Name(), "error", err)
		} else {
			logger.Info("engine exited cleanly", "engine", e.Name())
		}
		h.done <- err
	}()

	return h
}

// pinToCPU pins the calling OS thread to a single CPU. Linux-only; on any
// other GOOS (or if the syscall fails, e.g. insufficient privilege in a
// container) it returns an error and the caller logs-and-continues rather
// than treating it as fatal — an engine that can't be pinned still runs
// correctly, just with less predictable cache behavior (spec §7: never
// panic from a missing non-essential capability).
func pinToCPU(cpu int) error {
	if runtime.GOOS != "linux" {
		return fmt.Errorf("cpu affinity not supported on %s", runtime.GOOS)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
