// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on original_source/modules/catch_dtmf/rtpp_catch_dtmf.c,
// rtpp_catch_dtmf_worker in particular: the four-slot reverse-chronological
// history scan, the pending/digit-mismatch/duration-grows transitions, and
// the "<tag> <digit> <volume> <duration> <side>" notification line are all
// translated 1:1 from that worker's C logic.
package dtmf

import (
	"fmt"

	"github.com/rtpproxy/relay/internal/rlog"
	"github.com/rtpproxy/relay/internal/rtpstream"
)

// historyDepth is EINFO_HST_DPTH in the original implementation.
const historyDepth = 4

// dtmfEvents maps an RFC 4733 event id to its digit character; index 16
// (space) represents hold/wait.
const dtmfEvents = "0123456789*#ABCD "

// NotifyType is the notifier "type" tag scheduled alongside the
// notification line.
const NotifyType = "DTMF"

// Notifier schedules a notification line for delivery, e.g. to a
// configured notify socket.
type Notifier interface {
	Schedule(target, line, kind string)
}

// Event is one decoded RFC 4733 DTMF payload.
type Event struct {
	EventID  uint8
	End      bool
	Volume   uint8
	Duration uint16
}

// slot is one entry of the per-stream event-history ring.
type slot struct {
	valid    bool
	pending  bool
	digit    byte
	ts       uint32
	duration uint16
}

// History is the four-slot DTMF event-history ring for one stream,
// matching struct catch_dtmf_edata in the original implementation.
type History struct {
	hst  [historyDepth]slot
	next int
}

// NewHistory returns an empty [*History].
func NewHistory() *History {
	return &History{}
}

// DecodeEvent decodes an RFC 4733 DTMF payload: event byte, end bit,
// reserved bit, 6-bit volume, then a 16-bit network-byte-order duration.
func DecodeEvent(payload []byte) (Event, error) {
	if len(payload) < 4 {
		return Event{}, fmt.Errorf("dtmf: payload too short: %d bytes", len(payload))
	}
	return Event{
		EventID:  payload[0],
		End:      payload[1]&0x80 != 0,
		Volume:   payload[1] & 0x3f,
		Duration: uint16(payload[2])<<8 | uint16(payload[3]),
	}, nil
}

// Process runs one decoded event through the stream's history state
// machine, logging and possibly scheduling a notification through
// notifier. tag is the notify_tag for this session; target is the
// notify_target (e.g. a unix socket path); side is the stream's
// [rtpstream.Side].
func (h *History) Process(ev Event, ts uint32, tag, target string, side rtpstream.Side, log rlog.Logger, notifier Notifier) {
	if int(ev.EventID) >= len(dtmfEvents) {
		log.Debug("dtmf: unhandled event id", "event", ev.EventID)
		return
	}
	digit := dtmfEvents[ev.EventID]

	var found *slot
	for i := 1; i <= historyDepth; i++ {
		j := h.next - i
		if j < 0 {
			j += historyDepth
		}
		if h.hst[j].valid && h.hst[j].ts == ts {
			found = &h.hst[j]
			break
		}
	}

	if found == nil {
		s := &h.hst[h.next]
		*s = slot{valid: true, pending: true, digit: digit, ts: ts, duration: ev.Duration}
		h.next = (h.next + 1) % historyDepth
		return
	}

	if !found.pending {
		if !ev.End && found.duration <= ev.Duration {
			log.Warn("dtmf: received DTMF without start", "digit", string(digit))
		}
		return
	}

	if digit != found.digit {
		log.Warn("dtmf: digit changed mid-event", "received", string(digit), "processing", string(found.digit))
		return
	}

	if found.duration < ev.Duration {
		found.duration = ev.Duration
	}

	if !ev.End {
		return
	}

	found.pending = false
	sideNum := 0
	if side == rtpstream.Callee {
		sideNum = 1
	}
	line := fmt.Sprintf("%s %c %d %d %d", tag, found.digit, ev.Volume, found.duration, sideNum)
	if notifier != nil {
		notifier.Schedule(target, line, NotifyType)
	}
}
