// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration values.
// It is built once at process start and passed by pointer; nothing mutates it afterwards.
type Config struct {
	// MQTT
	MQTTHost             string  `mapstructure:"MQTT_HOST"`
	MQTTPort             int     `mapstructure:"MQTT_PORT"`
	MQTTClientID         string  `mapstructure:"MQTT_CLIENT_ID"`
	MQTTUsername         string  `mapstructure:"MQTT_USERNAME"`
	MQTTPassword         string  `mapstructure:"MQTT_PASSWORD"`
	MQTTKeepAliveSeconds int     `mapstructure:"MQTT_KEEPALIVE_SECONDS"`
	MQTTRateHz           float64 `mapstructure:"MQTT_RATE_HZ"`

	// Topics
	TopicTelemetry    string `mapstructure:"MQTT_TOPIC"`
	TopicSyncRequest  string `mapstructure:"MQTT_SYNC_REQUEST_TOPIC"`
	TopicSyncResponse string `mapstructure:"MQTT_SYNC_RESPONSE_TOPIC"`

	// Logging / monitoring
	LogLevel       string `mapstructure:"LOG_LEVEL"`
	MonitoringPort int    `mapstructure:"MONITORING_PORT"` // 0 disables /metrics

	// Web Server
	WebServerPort int `mapstructure:"WEB_SERVER_PORT"`

	// Console
	ConsoleLogInterval int `mapstructure:"CONSOLE_LOG_INTERVAL"` // milliseconds

	// Sync probe
	SyncProbeCount    int `mapstructure:"SYNC_PROBE_COUNT"`
	SyncProbeInterval int `mapstructure:"SYNC_PROBE_INTERVAL"` // milliseconds
	SyncProbeTimeout  int `mapstructure:"SYNC_PROBE_TIMEOUT"`  // milliseconds
}

// defaults lists every recognized key. Keys missing here are invisible to
// AutomaticEnv when unmarshalling, so optional keys are registered with "".
var defaults = map[string]any{
	"MQTT_HOST":                "nam5gxr.duckdns.org",
	"MQTT_PORT":                1028,
	"MQTT_CLIENT_ID":           "python-telemetry",
	"MQTT_USERNAME":            "",
	"MQTT_PASSWORD":            "",
	"MQTT_KEEPALIVE_SECONDS":   60,
	"MQTT_RATE_HZ":             10.0,
	"MQTT_TOPIC":               "telemetry/geopose",
	"MQTT_SYNC_REQUEST_TOPIC":  "time/sync/req",
	"MQTT_SYNC_RESPONSE_TOPIC": "time/sync/resp",
	"LOG_LEVEL":                "info",
	"MONITORING_PORT":          0,
	"WEB_SERVER_PORT":          8080,
	"CONSOLE_LOG_INTERVAL":     1000,
	"SYNC_PROBE_COUNT":         10,
	"SYNC_PROBE_INTERVAL":      500,
	"SYNC_PROBE_TIMEOUT":       2000,
}

// Load builds a Config from defaults, an optional dotenv file and the environment.
// Environment variables win over the file. A missing file is not an error;
// an empty path skips the file entirely.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks the settings every binary relies on. Settings used by a
// single binary are checked by its Validate* method.
func (c *Config) validate() error {
	if c.MQTTHost == "" {
		return fmt.Errorf("MQTT_HOST is required")
	}
	if c.MQTTPort < 1 || c.MQTTPort > 65535 {
		return fmt.Errorf("MQTT_PORT must be 1-65535, got %d", c.MQTTPort)
	}
	if c.MQTTClientID == "" {
		return fmt.Errorf("MQTT_CLIENT_ID is required")
	}
	if math.IsNaN(c.MQTTRateHz) || math.IsInf(c.MQTTRateHz, 0) || c.MQTTRateHz <= 0 || c.Interval() <= 0 {
		return fmt.Errorf("MQTT_RATE_HZ must be positive, finite and at most 1e9, got %v", c.MQTTRateHz)
	}
	if c.MQTTKeepAliveSeconds < 1 {
		return fmt.Errorf("MQTT_KEEPALIVE_SECONDS must be positive, got %d", c.MQTTKeepAliveSeconds)
	}
	if c.TopicTelemetry == "" {
		return fmt.Errorf("MQTT_TOPIC is required")
	}
	if c.MonitoringPort < 0 || c.MonitoringPort > 65535 {
		return fmt.Errorf("MONITORING_PORT must be 0-65535, got %d", c.MonitoringPort)
	}
	return nil
}

// ValidateSync checks the time-sync topics.
func (c *Config) ValidateSync() error {
	if c.TopicSyncRequest == "" || c.TopicSyncResponse == "" {
		return fmt.Errorf("MQTT_SYNC_REQUEST_TOPIC and MQTT_SYNC_RESPONSE_TOPIC are required")
	}
	if c.TopicSyncRequest == c.TopicSyncResponse {
		return fmt.Errorf("sync request and response topics must differ, both are %q", c.TopicSyncRequest)
	}
	return nil
}

// ValidateProbe checks the sync topics and the probe schedule.
func (c *Config) ValidateProbe() error {
	if err := c.ValidateSync(); err != nil {
		return err
	}
	if c.SyncProbeCount < 1 {
		return fmt.Errorf("SYNC_PROBE_COUNT must be positive, got %d", c.SyncProbeCount)
	}
	if c.SyncProbeInterval < 0 {
		return fmt.Errorf("SYNC_PROBE_INTERVAL must not be negative, got %d", c.SyncProbeInterval)
	}
	if c.SyncProbeTimeout < 1 {
		return fmt.Errorf("SYNC_PROBE_TIMEOUT must be positive, got %d", c.SyncProbeTimeout)
	}
	return nil
}

// ValidateWeb checks the web server port.
func (c *Config) ValidateWeb() error {
	if c.WebServerPort < 1 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	return nil
}

// ValidateConsole checks the console summary interval.
func (c *Config) ValidateConsole() error {
	if c.ConsoleLogInterval < 1 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must be positive, got %d", c.ConsoleLogInterval)
	}
	return nil
}

// BrokerURL returns the paho broker URL, e.g. "tcp://localhost:1883".
func (c *Config) BrokerURL() string {
	return "tcp://" + net.JoinHostPort(c.MQTTHost, strconv.Itoa(c.MQTTPort))
}

// Interval is the publish period derived from MQTT_RATE_HZ.
func (c *Config) Interval() time.Duration {
	return time.Duration(float64(time.Second) / c.MQTTRateHz)
}

// KeepAlive returns MQTT_KEEPALIVE_SECONDS as a duration.
func (c *Config) KeepAlive() time.Duration {
	return time.Duration(c.MQTTKeepAliveSeconds) * time.Second
}
