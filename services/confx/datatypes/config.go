// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes provides data structures for the confx service.
//
// This file contains the core configuration entities: projects,
// environments, and config items. Versioning types live in version.go,
// dependency types in dependency.go, and evaluation types in
// evaluation.go.
package datatypes

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Data Types
// =============================================================================

// DataType is the declared type of a config item's value.
//
// Every value a config item serves (default value, rule values,
// prerequisite expected values) is stored as a string and interpreted
// under this type at evaluation time.
type DataType string

const (
	DataTypeBoolean DataType = "BOOLEAN"
	DataTypeString  DataType = "STRING"
	DataTypeInteger DataType = "INTEGER"
	DataTypeDouble  DataType = "DOUBLE"
	DataTypeJSON    DataType = "JSON"
)

// Valid reports whether dt is one of the declared data types.
func (dt DataType) Valid() bool {
	switch dt {
	case DataTypeBoolean, DataTypeString, DataTypeInteger, DataTypeDouble, DataTypeJSON:
		return true
	}
	return false
}

// =============================================================================
// Shared Validator Instance
// =============================================================================

// confxValidate is the validator instance for confx datatypes.
// Initialized in init() with custom validators.
var confxValidate *validator.Validate

func init() {
	confxValidate = validator.New()
	_ = confxValidate.RegisterValidation("datatype", validateDataType)
	_ = confxValidate.RegisterValidation("configkey", validateConfigKey)
}

// validateDataType validates that a field holds a declared DataType value.
func validateDataType(fl validator.FieldLevel) bool {
	return DataType(fl.Field().String()).Valid()
}

// validateConfigKey validates the character set of a config key.
//
// Keys are used in URLs and SSE payloads, so they are restricted to
// letters, digits, dots, dashes, and underscores.
func validateConfigKey(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	if key == "" {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-' || r == '_':
		default:
			return false
		}
	}
	return true
}

// Validate runs struct validation on any confx request type.
func Validate(v any) error {
	return confxValidate.Struct(v)
}

// =============================================================================
// Entities
// =============================================================================

// Project is the top-level grouping for config items and environments.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Environment is a deployment context (e.g. staging, production) under
// which every config item of the owning project has independent
// versions.
type Environment struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ConfigItem is a named, typed configuration/feature-flag definition
// scoped to a project. The key is immutable and unique within the
// project.
type ConfigItem struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	ConfigKey   string    `json:"config_key"`
	DataType    DataType  `json:"data_type"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// =============================================================================
// Request Types
// =============================================================================

// CreateProjectRequest is the payload for creating a project.
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=4096"`
}

// UpdateProjectRequest is the payload for updating a project's metadata.
type UpdateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=4096"`
}

// CreateEnvironmentRequest is the payload for creating an environment.
type CreateEnvironmentRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Description string `json:"description" validate:"max=4096"`
}

// CreateConfigItemRequest is the payload for creating a config item.
type CreateConfigItemRequest struct {
	ConfigKey   string `json:"config_key" validate:"required,max=255,configkey"`
	DataType    string `json:"data_type" validate:"required,datatype"`
	Name        string `json:"name" validate:"max=255"`
	Description string `json:"description" validate:"max=4096"`
}

// UpdateConfigItemRequest is the payload for updating a config item's
// metadata. The config key is immutable; the data type may only change
// while no versions exist for the item (see versions.Manager).
type UpdateConfigItemRequest struct {
	DataType    string `json:"data_type" validate:"required,datatype"`
	Name        string `json:"name" validate:"max=255"`
	Description string `json:"description" validate:"max=4096"`
}
