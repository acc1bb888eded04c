// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes - error taxonomy.
//
// Degraded evaluation outcomes (prerequisite not met, cyclic
// dependency) are NOT errors; they are EvaluationSource values on a
// normal EvaluatedResult. The sentinels below cover the genuine
// failure classes, wrapped with %w so handlers can map them to HTTP
// status codes with errors.Is.
package datatypes

import "errors"

var (
	// ErrNotFound covers unknown projects, environments, config items,
	// versions, and dependency edges.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput covers values that don't parse under a declared
	// data type, duplicate rule priorities, self/duplicate/cyclic
	// dependency edges, and malformed requests.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConversion means a stored or served value does not parse under
	// the owning item's declared data type. Unlike a malformed rule
	// condition (which degrades to a non-match), this is a caller-facing
	// failure: the stored state itself is bad.
	ErrConversion = errors.New("value conversion failed")

	// ErrConflict means a concurrent write raced this one and the
	// operation should be retried by the caller.
	ErrConflict = errors.New("concurrent modification")
)
