// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command confx starts the dynamic configuration service.
//
// Configuration is layered: built-in defaults, then an optional YAML
// config file, then environment variables. Environment variables win.
//
// # Environment Variables
//
//   - CONFX_PORT: HTTP server port (default: 12300)
//   - CONFX_DATA_DIR: badger database directory (default: in-memory)
//   - CONFX_LOG_LEVEL: DEBUG, INFO, WARN, ERROR (default: INFO)
//   - CONFX_LOG_DIR: enable file logging to this directory
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (optional)
//
// # Usage
//
//	# Build
//	go build -o confx ./cmd/confx
//
//	# Run with a config file
//	./confx serve --config config.yaml
//
//	# Or purely from the environment
//	CONFX_PORT=8080 CONFX_DATA_DIR=/var/lib/confx ./confx serve
package main

import (
	"log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
