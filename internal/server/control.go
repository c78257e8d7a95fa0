// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §5's "one control-plane command dispatcher" thread
// and the original implementation's cookie-prefixed reply convention
// (spec.md §7's "PARSE_10" example): one accept loop, one line-reading
// goroutine per connection, synchronous dispatch into the command engine.
package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/rtpproxy/relay/internal/command"
	"github.com/rtpproxy/relay/internal/proto"
)

// ServeControl accepts connections on l, handling each on its own
// goroutine, until ctx is done or l.Accept fails permanently.
func (s *Server) ServeControl(ctx context.Context, l net.Listener) error {
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept control connection: %w", err)
		}
		go s.handleControlConn(ctx, conn)
	}
}

func (s *Server) handleControlConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		reply := s.handleControlLine(ctx, scanner.Text())
		if _, err := conn.Write([]byte(reply + "\n")); err != nil {
			s.log.Debug("server: write control reply failed", "err", err)
			return
		}
	}
}

// handleControlLine parses and dispatches one request line, returning the
// full reply (cookie-prefixed body, or cookie-prefixed numeric error code
// on failure).
func (s *Server) handleControlLine(ctx context.Context, raw string) string {
	if cookie, name, args, ok := proto.ParseSubcommand(raw); ok {
		if err := s.HandleSubcommand(ctx, name, args); err != nil {
			s.log.Error("server: subcommand failed", "cookie", cookie, "name", name, "err", err)
			return fmt.Sprintf("%s E1", cookie)
		}
		return fmt.Sprintf("%s 0", cookie)
	}

	line, err := proto.ParseLine(raw)
	if err != nil {
		s.log.Warn("server: malformed control line", "err", err)
		return "0 E1"
	}

	body, err := s.HandleLine(ctx, line)
	if err != nil {
		var cmdErr *command.Error
		if errors.As(err, &cmdErr) {
			s.stats.IncCommandErrors(cmdErr.Kind.String())
			s.log.Error("server: command failed", "cookie", line.Cookie, "op", line.Op, "err", cmdErr)
			return fmt.Sprintf("%s E%d", line.Cookie, cmdErr.Code)
		}
		s.log.Error("server: unclassified command failure", "cookie", line.Cookie, "err", err)
		return fmt.Sprintf("%s E0", line.Cookie)
	}
	return fmt.Sprintf("%s %s", line.Cookie, body)
}
