// SPDX-License-Identifier: GPL-3.0-or-later

// Package stats wires the relay's counters into Prometheus, the way a
// statistics registry is invoked as an external collaborator per
// spec.md §1 — this package is the concrete default implementation of
// that collaborator's interface.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sink is the narrow statistics interface the data and control planes
// report through; spec.md treats the concrete registry as an external
// collaborator, so callers depend on this interface, not *Registry
// directly.
type Sink interface {
	IncSessionsCreated()
	IncSessionsCompleted()
	IncSessionsExpired()
	IncPacketsRelayed(pipeType string)
	IncPacketsDropped(pipeType, reason string)
	IncDTMFEvents()
	IncCommandErrors(kind string)
	ObserveOverloadRejected()
}

// Registry is the default [Sink] implementation, registering its metrics
// on reg.
type Registry struct {
	sessionsCreated   prometheus.Counter
	sessionsCompleted prometheus.Counter
	sessionsExpired   prometheus.Counter
	packetsRelayed    *prometheus.CounterVec
	packetsDropped    *prometheus.CounterVec
	dtmfEvents        prometheus.Counter
	commandErrors     *prometheus.CounterVec
	overloadRejected  prometheus.Counter
}

// NewRegistry constructs a [*Registry] and registers its metrics on reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtprelay_sessions_created_total",
			Help: "Total number of sessions created by the command engine.",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtprelay_sessions_completed_total",
			Help: "Total number of sessions that reached both sides having a remote destination.",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtprelay_sessions_expired_total",
			Help: "Total number of sessions removed by TTL expiry.",
		}),
		packetsRelayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtprelay_packets_relayed_total",
			Help: "Total number of packets forwarded, by pipe type.",
		}, []string{"pipe_type"}),
		packetsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtprelay_packets_dropped_total",
			Help: "Total number of packets dropped, by pipe type and reason.",
		}, []string{"pipe_type", "reason"}),
		dtmfEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtprelay_dtmf_events_total",
			Help: "Total number of DTMF event packets handed to the detector.",
		}),
		commandErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rtprelay_command_errors_total",
			Help: "Total number of control-plane command errors, by error kind.",
		}, []string{"kind"}),
		overloadRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rtprelay_overload_rejected_total",
			Help: "Total number of new sessions rejected by the overload limiter.",
		}),
	}
	reg.MustRegister(
		r.sessionsCreated,
		r.sessionsCompleted,
		r.sessionsExpired,
		r.packetsRelayed,
		r.packetsDropped,
		r.dtmfEvents,
		r.commandErrors,
		r.overloadRejected,
	)
	return r
}

func (r *Registry) IncSessionsCreated()   { r.sessionsCreated.Inc() }
func (r *Registry) IncSessionsCompleted() { r.sessionsCompleted.Inc() }
func (r *Registry) IncSessionsExpired()   { r.sessionsExpired.Inc() }

func (r *Registry) IncPacketsRelayed(pipeType string) {
	r.packetsRelayed.WithLabelValues(pipeType).Inc()
}

func (r *Registry) IncPacketsDropped(pipeType, reason string) {
	r.packetsDropped.WithLabelValues(pipeType, reason).Inc()
}

func (r *Registry) IncDTMFEvents() { r.dtmfEvents.Inc() }

func (r *Registry) IncCommandErrors(kind string) {
	r.commandErrors.WithLabelValues(kind).Inc()
}

func (r *Registry) ObserveOverloadRejected() { r.overloadRejected.Inc() }

var _ Sink = (*Registry)(nil)

// discardSink is a [Sink] that records nothing, the default for tests and
// for callers that do not want stats wiring.
type discardSink struct{}

func (discardSink) IncSessionsCreated()              {}
func (discardSink) IncSessionsCompleted()            {}
func (discardSink) IncSessionsExpired()              {}
func (discardSink) IncPacketsRelayed(string)         {}
func (discardSink) IncPacketsDropped(string, string) {}
func (discardSink) IncDTMFEvents()                   {}
func (discardSink) IncCommandErrors(string)          {}
func (discardSink) ObserveOverloadRejected()         {}

// Discard returns a [Sink] that discards every observation.
func Discard() Sink { return discardSink{} }
