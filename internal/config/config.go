// Package config loads process configuration: the env vars that
// govern capture and persistence, plus an optional YAML file for the
// secondary ClickHouse sink's connection settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/IceCream110912138/NetTraffic-Sentinel/internal/store"
)

// Config holds every setting the process needs, assembled from
// environment variables with a YAML overlay for the optional
// ClickHouse writer.
type Config struct {
	MonitorIface      string
	ExcludeIPv6Prefix []string
	WebPort           int
	SaveInterval      int // seconds
	DBPath            string
	TZ                string
	ClickHouse        *store.ClickHouseConfig
}

// fileConfig is the shape of the optional YAML overlay file.
type fileConfig struct {
	ClickHouse *store.ClickHouseConfig `yaml:"clickhouse"`
}

// Load reads MONITOR_IFACE, EXCLUDE_IPV6_PREFIX, WEB_PORT,
// SAVE_INTERVAL, DB_PATH and TZ from the environment, applying the
// same defaults as the original program, then overlays
// configYAMLPath if it exists. A missing overlay file is not an
// error: the ClickHouse sink is optional.
func Load(configYAMLPath string) (*Config, error) {
	cfg := &Config{
		MonitorIface: getenv("MONITOR_IFACE", "eth0"),
		WebPort:      getenvInt("WEB_PORT", 8080),
		SaveInterval: getenvInt("SAVE_INTERVAL", 300),
		DBPath:       getenv("DB_PATH", "/data/traffic.db"),
		TZ:           os.Getenv("TZ"),
	}

	raw := os.Getenv("EXCLUDE_IPV6_PREFIX")
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			cfg.ExcludeIPv6Prefix = append(cfg.ExcludeIPv6Prefix, p)
		}
	}

	if configYAMLPath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(configYAMLPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", configYAMLPath, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: unmarshalling %s: %w", configYAMLPath, err)
	}
	cfg.ClickHouse = fc.ClickHouse
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
