// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §8 scenario 4's `M1:catch_dtmf my-tag 101` wire
// example and original_source/modules/catch_dtmf/rtpp_catch_dtmf.c's
// per-call payload-type negotiation (the module looks the session up by
// its notify tag and installs the negotiated payload type on both of its
// RTP streams, rather than trusting one process-wide default).
package dtmf

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rtpproxy/relay/internal/module"
	"github.com/rtpproxy/relay/internal/rtpstream"
)

// SessionFinder resolves a session by its timeout-notify tag. The server
// satisfies it with a small adapter over
// [github.com/rtpproxy/relay/internal/session.Registry].
type SessionFinder interface {
	FindByTag(tag string) (RTPHolder, bool)
}

// RTPHolder is the subset of [github.com/rtpproxy/relay/internal/session.Session]
// the catch_dtmf subcommand needs: access to both RTP streams of the
// matched session.
type RTPHolder interface {
	RTPStream(side rtpstream.Side) *rtpstream.Stream
}

// Binding is the per-stream negotiated payload type installed via
// [rtpstream.Stream.SetCatchDTMFData], consulted by the data-plane taste
// function in place of one process-wide default.
type Binding struct {
	PayloadType int
}

// CatchDTMFModule implements [module.ControlPlaneHooks] for the
// "catch_dtmf" subcommand: `catch_dtmf <tag> <payload_type>` binds
// payload_type as the DTMF event payload type for the session whose
// notify tag is tag.
type CatchDTMFModule struct {
	registry SessionFinder
}

// NewCatchDTMFModule returns a [*CatchDTMFModule] resolving sessions
// through registry.
func NewCatchDTMFModule(registry SessionFinder) *CatchDTMFModule {
	return &CatchDTMFModule{registry: registry}
}

// Name implements [module.Module].
func (m *CatchDTMFModule) Name() string { return "catch_dtmf" }

// Descriptor implements [module.Module].
func (m *CatchDTMFModule) Descriptor() module.Descriptor {
	return module.Descriptor{Revision: module.HostRevision, BuildString: buildString}
}

// HandleSubcommand implements [module.ControlPlaneHooks]. It ignores any
// subcommand name other than "catch_dtmf", so it can safely run as the
// post-hook for every U/L command as well as for a standalone
// `M<n>:catch_dtmf` line.
func (m *CatchDTMFModule) HandleSubcommand(ctx context.Context, name string, args []string) error {
	if name != "catch_dtmf" {
		return nil
	}
	if len(args) < 2 {
		return fmt.Errorf("dtmf: catch_dtmf: want <tag> <payload_type>, got %d args", len(args))
	}
	tag := args[0]
	pt, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("dtmf: catch_dtmf: bad payload type %q: %w", args[1], err)
	}

	sess, ok := m.registry.FindByTag(tag)
	if !ok {
		return fmt.Errorf("dtmf: catch_dtmf: no session for tag %q", tag)
	}
	binding := Binding{PayloadType: pt}
	sess.RTPStream(rtpstream.Caller).SetCatchDTMFData(binding)
	sess.RTPStream(rtpstream.Callee).SetCatchDTMFData(binding)
	return nil
}

var (
	_ module.Module            = (*CatchDTMFModule)(nil)
	_ module.ControlPlaneHooks = (*CatchDTMFModule)(nil)
)
