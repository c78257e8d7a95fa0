// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on the teacher's connect.go: a [Dialer] abstraction plus a
// small staged pipeline around it (dial, then act on the connection),
// generalized from "dial and log" to "dial a notify socket and write one
// line", composed with [fx.Compose2] rather than a single Call method the
// way connect.go's ConnectFunc composes with whatever the caller chains
// after it.

// Package notify delivers timeout and DTMF notification lines to a
// control-plane-configured unix-domain datagram socket, the transport
// named by spec.md's notify_socket/notify_tag fields.
package notify

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rtpproxy/relay/internal/dtmf"
	"github.com/rtpproxy/relay/internal/errkind"
	"github.com/rtpproxy/relay/internal/fx"
	"github.com/rtpproxy/relay/internal/rlog"
)

// deliveryTimeout bounds how long a single notification delivery may
// block the goroutine [Sender.Schedule] spawns for it.
const deliveryTimeout = 2 * time.Second

// Request is one notification line to deliver.
type Request struct {
	Target string
	Line   string
	Kind   string
}

// Dialer abstracts [*net.Dialer] the way the teacher's connect.go
// abstracts dialing behind an interface for testability.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type netDialer struct{}

func (netDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

// dialed carries a request forward once its transport is open, the B in
// the Request -> dialed -> [fx.Unit] pipeline.
type dialed struct {
	conn net.Conn
	req  Request
}

// dialStage dials req.Target over a unix-domain datagram socket.
type dialStage struct {
	dialer Dialer
	log    rlog.Logger
	errCls errkind.Classifier
}

func (d *dialStage) Call(ctx context.Context, req Request) (dialed, error) {
	conn, err := d.dialer.DialContext(ctx, "unixgram", req.Target)
	if err != nil {
		d.log.Debug("notify: dial failed", "target", req.Target, "err_class", d.errCls.Classify(err))
		return dialed{}, fmt.Errorf("notify: dial %s: %w", req.Target, err)
	}
	return dialed{conn: conn, req: req}, nil
}

// writeStage writes the notification line and closes the connection.
type writeStage struct {
	log rlog.Logger
}

func (w *writeStage) Call(ctx context.Context, d dialed) (fx.Unit, error) {
	defer d.conn.Close()
	if _, err := d.conn.Write([]byte(d.req.Line + "\n")); err != nil {
		return fx.Unit{}, fmt.Errorf("notify: write to %s: %w", d.req.Target, err)
	}
	w.log.Debug("notify: delivered", "target", d.req.Target, "kind", d.req.Kind)
	return fx.Unit{}, nil
}

// Sender delivers [Request] values asynchronously over a unix-domain
// datagram socket. It implements [dtmf.Notifier].
type Sender struct {
	pipeline fx.Func[Request, fx.Unit]
	log      rlog.Logger
}

// NewSender returns a [*Sender] using the system dialer.
func NewSender(log rlog.Logger, errCls errkind.Classifier) *Sender {
	return newSender(netDialer{}, log, errCls)
}

func newSender(dialer Dialer, log rlog.Logger, errCls errkind.Classifier) *Sender {
	pipeline := fx.Compose2[Request, dialed, fx.Unit](
		&dialStage{dialer: dialer, log: log, errCls: errCls},
		&writeStage{log: log},
	)
	return &Sender{pipeline: pipeline, log: log}
}

// Schedule implements [dtmf.Notifier] and the session-timeout notify path:
// delivery happens on its own goroutine so the caller (data plane or TTL
// scanner) never blocks on notify I/O.
func (s *Sender) Schedule(target, line, kind string) {
	if target == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if _, err := s.pipeline.Call(ctx, Request{Target: target, Line: line, Kind: kind}); err != nil {
			s.log.Debug("notify: delivery failed", "target", target, "kind", kind, "err", err)
		}
	}()
}

var _ dtmf.Notifier = (*Sender)(nil)
