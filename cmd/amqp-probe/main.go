// Command amqp-probe dials an AMQP 0-9-1 broker, runs the connection
// handshake, and reports the negotiated tuning parameters. It exists to
// exercise the connection core end to end outside of the test suite; it
// does not open a channel, publish, or consume.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	amqpgo "github.com/kstaniek/amqpgo"
	"github.com/kstaniek/amqpgo/internal/handshake"
	"github.com/kstaniek/amqpgo/internal/metrics"
)

// version, commit and date are set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("amqp-probe %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}

	l := setupLogger(cfg.logFormat, cfg.logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host, port := cfg.host, cfg.port
	if cfg.mdnsDiscover {
		if h, p, found, err := discoverBroker(ctx, cfg.handshakeTO); err != nil {
			l.Warn("mdns_discover_failed", "error", err)
		} else if found {
			l.Info("mdns_discovered", "host", h, "port", p)
			host, port = h, p
		} else {
			l.Info("mdns_discover_empty", "fallback_host", host, "fallback_port", port)
		}
	}

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	l.Info("dialing", "host", host, "port", port)
	conn, err := amqpgo.OpenTCP(host, port)
	if err != nil {
		l.Error("dial_failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	tuning, err := conn.LoginWithProperties(loginParams(cfg))
	if err != nil {
		l.Error("login_failed", "error", err)
		os.Exit(1)
	}

	l.Info("connection_open",
		"vhost", cfg.vhost,
		"channel_max", tuning.ChannelMax,
		"frame_max", tuning.FrameMax,
		"heartbeat", tuning.Heartbeat,
	)
	fmt.Printf("connected: channel_max=%d frame_max=%d heartbeat=%d known_hosts=%q\n",
		tuning.ChannelMax, tuning.FrameMax, tuning.Heartbeat, tuning.KnownHosts)
}

func loginParams(cfg *appConfig) handshake.Params {
	return handshake.Params{
		VirtualHost: cfg.vhost,
		Credentials: amqpgo.PlainCredentials{Username: cfg.user, Password: cfg.password},
		ChannelMax:  uint16(cfg.channelMax),
		FrameMax:    uint32(cfg.frameMax),
		Heartbeat:   uint16(cfg.heartbeat),
	}
}
