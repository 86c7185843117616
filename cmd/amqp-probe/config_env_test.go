package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverridesBasic(t *testing.T) {
	base := baseConfig()

	os.Setenv("AMQP_PROBE_HOST", "broker.local")
	os.Setenv("AMQP_PROBE_PORT", "5673")
	os.Setenv("AMQP_PROBE_HEARTBEAT", "30")
	os.Setenv("AMQP_PROBE_LOG_METRICS_INTERVAL", "5s")
	t.Cleanup(func() {
		os.Unsetenv("AMQP_PROBE_HOST")
		os.Unsetenv("AMQP_PROBE_PORT")
		os.Unsetenv("AMQP_PROBE_HEARTBEAT")
		os.Unsetenv("AMQP_PROBE_LOG_METRICS_INTERVAL")
	})

	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.host != "broker.local" {
		t.Fatalf("host = %q", base.host)
	}
	if base.port != 5673 {
		t.Fatalf("port = %d", base.port)
	}
	if base.heartbeat != 30 {
		t.Fatalf("heartbeat = %d", base.heartbeat)
	}
	if base.logMetricsEvery != 5*time.Second {
		t.Fatalf("logMetricsEvery = %v", base.logMetricsEvery)
	}
}

func TestApplyEnvOverridesFlagPrecedence(t *testing.T) {
	base := baseConfig()
	base.port = 5672
	os.Setenv("AMQP_PROBE_PORT", "9999")
	t.Cleanup(func() { os.Unsetenv("AMQP_PROBE_PORT") })

	if err := applyEnvOverrides(base, map[string]struct{}{"port": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.port != 5672 {
		t.Fatalf("port = %d, want unchanged 5672 (flag should win)", base.port)
	}
}

func TestApplyEnvOverridesBadInt(t *testing.T) {
	base := baseConfig()
	os.Setenv("AMQP_PROBE_PORT", "notint")
	t.Cleanup(func() { os.Unsetenv("AMQP_PROBE_PORT") })

	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}

func TestApplyEnvOverridesMdnsDiscoverBooleanForms(t *testing.T) {
	base := baseConfig()
	os.Setenv("AMQP_PROBE_MDNS_DISCOVER", "yes")
	t.Cleanup(func() { os.Unsetenv("AMQP_PROBE_MDNS_DISCOVER") })

	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if !base.mdnsDiscover {
		t.Fatalf("expected mdnsDiscover true")
	}
}
