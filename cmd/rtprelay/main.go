// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on spec.md §A10/§5 and nishisan-dev-n-backup's cmd/nbackup-server
// main.go: stdlib flag parsing, a context cancelled from SIGINT/SIGTERM, and
// a blocking run call that returns once every long-lived goroutine has
// stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rtpproxy/relay/internal/accounting"
	"github.com/rtpproxy/relay/internal/config"
	"github.com/rtpproxy/relay/internal/module"
	"github.com/rtpproxy/relay/internal/notify"
	"github.com/rtpproxy/relay/internal/rlog"
	"github.com/rtpproxy/relay/internal/server"
	"github.com/rtpproxy/relay/internal/stats"
	"github.com/rtpproxy/relay/internal/ttlwatch"
	"golang.org/x/time/rate"
)

func main() {
	listenAddr := flag.String("l", "", "IPv4 address to bind relay sockets to")
	listenAddr6 := flag.String("L", "", "IPv6 address to bind relay sockets to")
	controlSock := flag.String("s", "/var/run/rtprelay.sock", "control-plane unix socket path")
	portMin := flag.Int("m", 35000, "minimum UDP port for relay sockets")
	portMax := flag.Int("M", 65000, "maximum UDP port for relay sockets")
	maxTTL := flag.Duration("t", 60*time.Second, "session TTL before a silent stream expires")
	overloadRPS := flag.Float64("A", 0, "max new-session admissions per second (0 disables overload protection)")
	flag.Parse()

	logger := rlog.FromSlog(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg := config.New()
	cfg.Logger = logger
	cfg.PortMin, cfg.PortMax = *portMin, *portMax
	cfg.MaxTTL = *maxTTL
	if err := addBindAddrs(cfg, *listenAddr, *listenAddr6); err != nil {
		fmt.Fprintf(os.Stderr, "rtprelay: %v\n", err)
		os.Exit(1)
	}
	if *overloadRPS > 0 {
		cfg.OverloadLimiter = rate.NewLimiter(rate.Limit(*overloadRPS), 1)
	}

	promReg := prometheus.NewRegistry()
	statsSink := stats.NewRegistry(promReg)
	notifier := notify.NewSender(logger, cfg.ErrClassifier)

	modules := module.NewRegistry(logger)
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := modules.Register(rootCtx, accounting.NewRTCPWorker(logger, statsSink)); err != nil {
		fmt.Fprintf(os.Stderr, "rtprelay: registering rtcp accounting module: %v\n", err)
		os.Exit(1)
	}

	srv := server.New(cfg, statsSink, notifier, modules)

	listener, err := controlListener(*controlSock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rtprelay: %v\n", err)
		os.Exit(1)
	}
	defer listener.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("rtprelay: received signal, beginning slow shutdown", "signal", sig.String())
		srv.Engine.BeginSlowShutdown()
		listener.Close()
		cancel()
	}()

	watcher := ttlwatch.New(srv, srv, time.Second, logger)
	go watcher.Run(rootCtx)

	logger.Info("rtprelay: control plane listening", "addr", listener.Addr().String())
	if err := srv.ServeControl(rootCtx, listener); err != nil {
		logger.Error("rtprelay: control plane stopped", "err", err)
	}

	modules.Shutdown(context.Background())
	logger.Info("rtprelay: shutdown complete")
}

// addBindAddrs registers the configured v4/v6 bind addresses in cfg's
// table. At least one of v4, v6 must be non-empty.
func addBindAddrs(cfg *config.Config, v4, v6 string) error {
	if v4 == "" && v6 == "" {
		return fmt.Errorf("at least one of -l or -L must be set")
	}
	if v4 != "" {
		addr, err := netip.ParseAddr(v4)
		if err != nil {
			return fmt.Errorf("parsing -l %q: %w", v4, err)
		}
		cfg.BindAddrs.Add(addr)
	}
	if v6 != "" {
		addr, err := netip.ParseAddr(v6)
		if err != nil {
			return fmt.Errorf("parsing -L %q: %w", v6, err)
		}
		cfg.BindAddrs.Add(addr)
	}
	return nil
}

// controlListener builds the control-plane listener from path: a unix
// socket unless path carries a "tcp:" prefix, matching the original
// implementation's socket-or-port control-channel convention.
func controlListener(path string) (net.Listener, error) {
	if rest, ok := strings.CutPrefix(path, "tcp:"); ok {
		l, err := net.Listen("tcp", rest)
		if err != nil {
			return nil, fmt.Errorf("listening on control tcp addr %s: %w", rest, err)
		}
		return l, nil
	}
	_ = os.Remove(path)
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listening on control socket %s: %w", path, err)
	}
	return l, nil
}
