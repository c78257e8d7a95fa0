// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on the teacher's cancelwatch.go: the same context-driven,
// goroutine-leak-free cleanup idiom (context.AfterFunc to react promptly
// to cancellation) generalized from "close one connection when its
// context ends" to "scan every live pipe once a second and expire the
// ones whose TTL has run out".
package ttlwatch

import (
	"context"
	"time"

	"github.com/rtpproxy/relay/internal/pipe"
	"github.com/rtpproxy/relay/internal/rlog"
)

// Source lists the pipes currently eligible for TTL expiry.
type Source interface {
	LivePipes() []*pipe.Pipe
}

// Expirer is notified when a pipe's TTL reaches zero or below.
type Expirer interface {
	ExpirePipe(p *pipe.Pipe)
}

// Watcher periodically ticks every live pipe's TTL down by one second and
// expires the ones that hit zero.
type Watcher struct {
	source  Source
	expirer Expirer
	log     rlog.Logger
	period  time.Duration
}

// New returns a [*Watcher] that ticks once per period (typically one
// second, matching the TTL unit in spec.md §3/§4.3).
func New(source Source, expirer Expirer, period time.Duration, log rlog.Logger) *Watcher {
	return &Watcher{source: source, expirer: expirer, period: period, log: log}
}

// Run blocks, ticking the watcher until ctx is done. It registers a
// context.AfterFunc-style early exit the same way CancelWatchFunc does,
// so a caller that cancels ctx gets Run to return promptly rather than
// waiting for the next tick.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()
	stop := context.AfterFunc(ctx, ticker.Stop)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Watcher) tick() {
	for _, p := range w.source.LivePipes() {
		caller := p.Stream(0)
		callee := p.Stream(1)
		caller.TickTTL()
		callee.TickTTL()
		if p.GetTTL() <= 0 {
			w.log.Info("pipe ttl expired", "pipe_id", p.ID, "pipe_type", p.PipeType.String())
			w.expirer.ExpirePipe(p)
		}
	}
}
