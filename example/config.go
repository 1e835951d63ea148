package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/rzvoncek/internode"
)

type nodeConfig struct {
	Listen          string
	Version         int
	Heartbeat       time.Duration
	MaxMessageBytes int
	LogLevel        string
}

type fileConfig struct {
	Listen          string `toml:"listen"`
	Version         int    `toml:"messaging_version"`
	Heartbeat       string `toml:"heartbeat"`
	MaxMessageBytes int    `toml:"max_message_bytes"`
	LogLevel        string `toml:"log_level"`
}

func defaultNodeConfig() nodeConfig {
	return nodeConfig{
		Listen:    "127.0.0.1:7000",
		Version:   internode.CurrentVersion,
		Heartbeat: 30 * time.Second,
		LogLevel:  "info",
	}
}

func loadNodeConfig(path string) (nodeConfig, error) {
	cfg := defaultNodeConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nodeConfig{}, fmt.Errorf("load node config: %w", err)
	}

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}

	if meta.IsDefined("messaging_version") {
		cfg.Version = raw.Version
	}

	if meta.IsDefined("heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Heartbeat))
		if err != nil {
			return nodeConfig{}, fmt.Errorf("parse heartbeat: %w", err)
		}
		cfg.Heartbeat = d
	}

	if meta.IsDefined("max_message_bytes") {
		cfg.MaxMessageBytes = raw.MaxMessageBytes
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(raw.LogLevel))
	}

	return cfg, nil
}
