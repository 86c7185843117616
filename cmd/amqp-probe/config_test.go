package main

import (
	"testing"
	"time"
)

func baseConfig() *appConfig {
	return &appConfig{
		host:        "127.0.0.1",
		port:        5672,
		vhost:       "/",
		user:        "guest",
		password:    "guest",
		channelMax:  0,
		frameMax:    131072,
		heartbeat:   0,
		handshakeTO: 10 * time.Second,
		logFormat:   "text",
		logLevel:    "info",
	}
}

func TestConfigValidateOK(t *testing.T) {
	if err := baseConfig().validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badPort", func(c *appConfig) { c.port = 0 }},
		{"portTooLarge", func(c *appConfig) { c.port = 70000 }},
		{"negativeChannelMax", func(c *appConfig) { c.channelMax = -1 }},
		{"channelMaxTooLarge", func(c *appConfig) { c.channelMax = 70000 }},
		{"negativeFrameMax", func(c *appConfig) { c.frameMax = -1 }},
		{"negativeHeartbeat", func(c *appConfig) { c.heartbeat = -1 }},
		{"zeroHandshakeTO", func(c *appConfig) { c.handshakeTO = 0 }},
		{"emptyHost", func(c *appConfig) { c.host = "" }},
	}
	for _, tc := range tests {
		c := baseConfig()
		tc.mod(c)
		if err := c.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestConfigValidateNilReceiver(t *testing.T) {
	var c *appConfig
	if err := c.validate(); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
