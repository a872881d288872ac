package engine

import (
	"context"
	"sync"
)

// Shutdown is the shared coordination object every engine loop observes.
// It gives the process's signal handler a way to trigger cancellation and
// then wait for every engine to actually drain before the process exits
// (spec §4.2, §5).
type Shutdown struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewShutdown creates a Shutdown rooted at parent.
func NewShutdown(parent context.Context) *Shutdown {
	ctx, cancel := context.WithCancel(parent)
	return &Shutdown{ctx: ctx, cancel: cancel}
}

// Shutdown triggers cancellation. Safe to call more than once and from any
// goroutine (the signal handler or a recovered panic hook).
func (s *Shutdown) Shutdown() {
	s.cancel()
}

// ShutdownStarted is the polled-flag form: true once Shutdown has been called.
func (s *Shutdown) ShutdownStarted() bool {
	select {
	case <-s.ctx.Done():
		return true
	default:
		return false
	}
}

// WaitShutdownTriggered is the awaitable form, for use in a multi-way select
// alongside timers and channel reads.
func (s *Shutdown) WaitShutdownTriggered() <-chan struct{} {
	return s.ctx.Done()
}

// Context returns the underlying context, so blocking I/O (WS dial, TCP
// read) can be cancelled the instant shutdown starts.
func (s *Shutdown) Context() context.Context {
	return s.ctx
}

// DelayShutdownToken acquires an RAII-style token: while outstanding, it
// blocks WaitShutdownComplete from returning. The returned func releases
// the token; every engine loop must call it exactly once on exit.
func (s *Shutdown) DelayShutdownToken() func() {
	s.wg.Add(1)
	var once sync.Once
	return func() {
		once.Do(s.wg.Done)
	}
}

// WaitShutdownComplete blocks until every outstanding delay-shutdown token
// has been released — i.e. until every engine loop has returned.
func (s *Shutdown) WaitShutdownComplete() {
	s.wg.Wait()
}
