// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate checks and converts raw config values against their
// declared data type.
//
// Every value in the system (version defaults, rule values,
// prerequisite expected values) is stored as a string; this package is
// the single place that decides whether such a string is well-formed
// for a DataType and how it becomes a typed Go value.
package validate

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/AleutianAI/confx/services/confx/datatypes"
)

// IsValid reports whether value is well-formed for the given data type.
//
// A nil value is valid for every type: it represents "unset", and the
// evaluation layer maps it to the type's off-value semantics.
func IsValid(value *string, dataType datatypes.DataType) bool {
	if value == nil {
		return true
	}
	switch dataType {
	case datatypes.DataTypeBoolean:
		v := strings.ToLower(*value)
		return v == "true" || v == "false"
	case datatypes.DataTypeInteger:
		_, err := strconv.ParseInt(*value, 10, 64)
		return err == nil
	case datatypes.DataTypeDouble:
		_, err := strconv.ParseFloat(*value, 64)
		return err == nil
	case datatypes.DataTypeString:
		return true
	case datatypes.DataTypeJSON:
		return json.Valid([]byte(*value))
	default:
		return false
	}
}

// Convert turns a stored string value into its typed representation:
// bool, int64, float64, string, or the unmarshalled JSON structure.
//
// A nil value converts to false for BOOLEAN and nil for every other
// type. A value that does not parse under the declared type returns
// datatypes.ErrConversion; stored state that fails here is a genuine
// caller-facing error, not a silent null.
func Convert(value *string, dataType datatypes.DataType) (any, error) {
	if value == nil {
		if dataType == datatypes.DataTypeBoolean {
			return false, nil
		}
		return nil, nil
	}
	switch dataType {
	case datatypes.DataTypeBoolean:
		switch strings.ToLower(*value) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q is not a boolean", datatypes.ErrConversion, *value)
	case datatypes.DataTypeInteger:
		n, err := strconv.ParseInt(*value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", datatypes.ErrConversion, *value)
		}
		return n, nil
	case datatypes.DataTypeDouble:
		f, err := strconv.ParseFloat(*value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a double", datatypes.ErrConversion, *value)
		}
		return f, nil
	case datatypes.DataTypeString:
		return *value, nil
	case datatypes.DataTypeJSON:
		var out any
		if err := json.Unmarshal([]byte(*value), &out); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON: %v", datatypes.ErrConversion, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown data type %q", datatypes.ErrConversion, dataType)
	}
}

// OffValue returns the value served when a prerequisite is unmet or a
// dependency cycle is detected: false for BOOLEAN, nil otherwise.
func OffValue(dataType datatypes.DataType) any {
	if dataType == datatypes.DataTypeBoolean {
		return false
	}
	return nil
}

// Equal compares an already-evaluated value against an expected raw
// string under the given data type.
//
// Numeric comparison goes through float64 for DOUBLE so an integer
// actual can satisfy a double expected value (10 vs "10.0"). JSON is
// compared structurally. A nil expected matches only a nil actual; a
// nil actual never matches a non-nil expected. Values that fail to
// parse compare as not equal rather than erroring.
func Equal(actual any, expected *string, dataType datatypes.DataType) bool {
	if expected == nil {
		return actual == nil
	}
	if actual == nil {
		return false
	}
	switch dataType {
	case datatypes.DataTypeBoolean:
		a, ok := actual.(bool)
		if !ok {
			return false
		}
		return a == (strings.ToLower(*expected) == "true")
	case datatypes.DataTypeInteger:
		a, ok := asInt64(actual)
		if !ok {
			return false
		}
		e, err := strconv.ParseInt(*expected, 10, 64)
		if err != nil {
			return false
		}
		return a == e
	case datatypes.DataTypeDouble:
		a, ok := asFloat64(actual)
		if !ok {
			return false
		}
		e, err := strconv.ParseFloat(*expected, 64)
		if err != nil {
			return false
		}
		return a == e
	case datatypes.DataTypeString:
		a, ok := actual.(string)
		if !ok {
			return false
		}
		return a == *expected
	case datatypes.DataTypeJSON:
		var e any
		if err := json.Unmarshal([]byte(*expected), &e); err != nil {
			return false
		}
		return reflect.DeepEqual(normalizeJSON(actual), e)
	default:
		return false
	}
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

// normalizeJSON round-trips a value through encoding/json so structural
// comparison sees the same concrete types on both sides.
func normalizeJSON(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
