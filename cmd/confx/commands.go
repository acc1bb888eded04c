// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/confx/pkg/logging"
	"github.com/AleutianAI/confx/services/confx"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "confx",
	Short: "Dynamic configuration and feature flag service",
	Long: `confx serves versioned, rule-driven configuration values with
dependency-aware evaluation and live update streaming.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the confx HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}

		logger := logging.New(logging.Config{
			Level:   logging.ParseLevel(cfg.LogLevel),
			LogDir:  cfg.LogDir,
			Service: "confx",
			JSON:    true,
		})
		defer logger.Close()

		svc, err := confx.New(cfg, logger.Logger)
		if err != nil {
			return fmt.Errorf("initialize service: %w", err)
		}
		return svc.Run()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
}

// loadConfig layers defaults, the optional YAML file, and environment
// variable overrides, in that order.
func loadConfig(path string) (confx.Config, error) {
	var cfg confx.Config

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if v := os.Getenv("CONFX_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("CONFX_PORT must be an integer: %w", err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("CONFX_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CONFX_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CONFX_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTelEndpoint = v
	}

	return cfg.WithDefaults(), nil
}
