package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type appConfig struct {
	host            string
	port            int
	vhost           string
	user            string
	password        string
	channelMax      int
	frameMax        int
	heartbeat       int
	handshakeTO     time.Duration
	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration
	mdnsDiscover    bool
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	host := flag.String("host", "127.0.0.1", "Broker hostname or address")
	port := flag.Int("port", 5672, "Broker TCP port")
	vhost := flag.String("vhost", "/", "Virtual host to open")
	user := flag.String("user", "guest", "SASL PLAIN username")
	password := flag.String("password", "guest", "SASL PLAIN password")
	channelMax := flag.Int("channel-max", 0, "Proposed channel-max (0 = no preference)")
	frameMax := flag.Int("frame-max", 131072, "Proposed frame-max in bytes (0 = no preference)")
	heartbeat := flag.Int("heartbeat", 0, "Proposed heartbeat in seconds (0 = no preference; this client never emits heartbeats regardless)")
	handshakeTO := flag.Duration("handshake-timeout", 10*time.Second, "Timeout for mDNS broker discovery (-mdns-discover); the handshake itself runs without a timeout")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	mdnsDiscover := flag.Bool("mdns-discover", false, "Discover brokers via mDNS (_amqp._tcp) before dialing -host")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	// Track which flags were explicitly set to give them precedence over env.
	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	cfg.host = *host
	cfg.port = *port
	cfg.vhost = *vhost
	cfg.user = *user
	cfg.password = *password
	cfg.channelMax = *channelMax
	cfg.frameMax = *frameMax
	cfg.heartbeat = *heartbeat
	cfg.handshakeTO = *handshakeTO
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.mdnsDiscover = *mdnsDiscover

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to dial the broker — only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.port <= 0 || c.port > 65535 {
		return fmt.Errorf("port must be in 1..65535 (got %d)", c.port)
	}
	if c.channelMax < 0 || c.channelMax > 65535 {
		return fmt.Errorf("channel-max must be in 0..65535 (got %d)", c.channelMax)
	}
	if c.frameMax < 0 {
		return fmt.Errorf("frame-max must be >= 0 (got %d)", c.frameMax)
	}
	if c.heartbeat < 0 || c.heartbeat > 65535 {
		return fmt.Errorf("heartbeat must be in 0..65535 (got %d)", c.heartbeat)
	}
	if c.handshakeTO <= 0 {
		return fmt.Errorf("handshake-timeout must be > 0")
	}
	if c.host == "" {
		return errors.New("host must not be empty")
	}
	return nil
}

// applyEnvOverrides maps AMQP_PROBE_* environment variables to config fields
// unless a corresponding flag was explicitly set (flag wins over env).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["host"]; !ok {
		if v, ok := get("AMQP_PROBE_HOST"); ok && v != "" {
			c.host = v
		}
	}
	if _, ok := set["port"]; !ok {
		if v, ok := get("AMQP_PROBE_PORT"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.port = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid AMQP_PROBE_PORT: %w", err)
			}
		}
	}
	if _, ok := set["vhost"]; !ok {
		if v, ok := get("AMQP_PROBE_VHOST"); ok {
			c.vhost = v
		}
	}
	if _, ok := set["user"]; !ok {
		if v, ok := get("AMQP_PROBE_USER"); ok && v != "" {
			c.user = v
		}
	}
	if _, ok := set["password"]; !ok {
		if v, ok := get("AMQP_PROBE_PASSWORD"); ok {
			c.password = v
		}
	}
	if _, ok := set["channel-max"]; !ok {
		if v, ok := get("AMQP_PROBE_CHANNEL_MAX"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.channelMax = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid AMQP_PROBE_CHANNEL_MAX: %w", err)
			}
		}
	}
	if _, ok := set["frame-max"]; !ok {
		if v, ok := get("AMQP_PROBE_FRAME_MAX"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.frameMax = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid AMQP_PROBE_FRAME_MAX: %w", err)
			}
		}
	}
	if _, ok := set["heartbeat"]; !ok {
		if v, ok := get("AMQP_PROBE_HEARTBEAT"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.heartbeat = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid AMQP_PROBE_HEARTBEAT: %w", err)
			}
		}
	}
	if _, ok := set["handshake-timeout"]; !ok {
		if v, ok := get("AMQP_PROBE_HANDSHAKE_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				c.handshakeTO = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid AMQP_PROBE_HANDSHAKE_TIMEOUT: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("AMQP_PROBE_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("AMQP_PROBE_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("AMQP_PROBE_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("AMQP_PROBE_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid AMQP_PROBE_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	if _, ok := set["mdns-discover"]; !ok {
		if v, ok := get("AMQP_PROBE_MDNS_DISCOVER"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsDiscover = true
			case "0", "false", "no", "off":
				c.mdnsDiscover = false
			}
		}
	}
	return firstErr
}
