// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on original_source/modules/catch_dtmf/rtpp_catch_dtmf.c's
// rtpp_catch_dtmf_worker: a dedicated worker thread drains queued DTMF
// events so history-state processing and notification delivery never run
// on the packet receive path, generalized onto [internal/module]'s
// worker-thread hook table and [internal/workqueue]'s bounded queue.
package dtmf

import (
	"context"

	"github.com/rtpproxy/relay/internal/module"
	"github.com/rtpproxy/relay/internal/rlog"
	"github.com/rtpproxy/relay/internal/rtpstream"
	"github.com/rtpproxy/relay/internal/workqueue"
)

// buildString identifies this module's build for [module.Descriptor].
const buildString = "dtmf-detector/1"

// Job is one decoded DTMF event queued for the worker thread to run
// through its stream's [History].
type Job struct {
	History   *History
	Event     Event
	Timestamp uint32
	Tag       string
	Target    string
	Side      rtpstream.Side
}

// Worker is the DTMF detector's worker-thread module: it owns no state of
// its own beyond the logger and notifier, since each [Job] carries the
// per-stream [History] it must run against.
type Worker struct {
	log      rlog.Logger
	notifier Notifier
}

// NewWorker returns a [*Worker] ready for [module.Registry.Register].
func NewWorker(log rlog.Logger, notifier Notifier) *Worker {
	return &Worker{log: log, notifier: notifier}
}

// Name implements [module.Module].
func (w *Worker) Name() string { return "dtmf-detector" }

// Descriptor implements [module.Module].
func (w *Worker) Descriptor() module.Descriptor {
	return module.Descriptor{Revision: module.HostRevision, BuildString: buildString}
}

// MainThread implements [module.WorkerThreadHooks]: it drains queue until
// ctx is done or a TERM signal arrives, running each queued [Job] through
// its history state machine.
func (w *Worker) MainThread(ctx context.Context, queue *workqueue.Queue) {
	for {
		item, ok := queue.Get(ctx)
		if !ok {
			return
		}
		if item.IsShutdown() {
			return
		}
		if item.Kind != workqueue.KindData {
			continue
		}
		job, ok := item.Data.(Job)
		if !ok {
			w.log.Debug("dtmf: worker received unexpected data item")
			continue
		}
		job.History.Process(job.Event, job.Timestamp, job.Tag, job.Target, job.Side, w.log, w.notifier)
	}
}

var (
	_ module.Module            = (*Worker)(nil)
	_ module.WorkerThreadHooks = (*Worker)(nil)
)
