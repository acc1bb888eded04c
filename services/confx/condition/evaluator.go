// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package condition evaluates rule condition expressions against an
// attribute map.
//
// The rest of the system depends only on the narrow Evaluator contract:
// a condition string plus attributes in, a boolean (or an error) out.
// The default implementation compiles expressions with expr-lang, a
// sandboxed expression engine with no I/O or statement constructs, so a
// condition can never touch anything beyond the attributes it is given.
//
// Conditions reference attributes directly:
//
//	region == "EU"
//	itemCount > 10 && itemCount < 20
//	"beta" in features
package condition

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator decides whether a condition holds for a set of attributes.
//
// Implementations must be safe for concurrent use and must never mutate
// the attribute map. A returned error means the condition could not be
// evaluated (parse failure, type error); callers decide whether that
// degrades to non-match.
type Evaluator interface {
	Evaluate(condition string, attributes map[string]any) (bool, error)
}

// maxCachedPrograms bounds the compiled-program cache. Rule sets are
// small; the cache resets wholesale if it ever fills.
const maxCachedPrograms = 1024

// ExprEvaluator evaluates conditions with compiled expr-lang programs.
//
// Compiled programs are cached by source string since the same rule
// conditions are evaluated on every request. The zero value is not
// usable; call NewExprEvaluator.
type ExprEvaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewExprEvaluator creates an evaluator with an empty program cache.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{cache: make(map[string]*vm.Program)}
}

// Evaluate compiles (or reuses) the condition and runs it against the
// attribute map.
//
// Attributes absent from the map are undefined variables; comparisons
// against them fail at runtime and surface as an error, which the rule
// evaluator treats as a non-match for that one rule.
func (e *ExprEvaluator) Evaluate(condition string, attributes map[string]any) (bool, error) {
	if condition == "" {
		return false, fmt.Errorf("empty condition")
	}

	program, err := e.program(condition)
	if err != nil {
		return false, fmt.Errorf("compile condition: %w", err)
	}

	env := attributes
	if env == nil {
		env = map[string]any{}
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("run condition: %w", err)
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T, want bool", out)
	}
	return result, nil
}

func (e *ExprEvaluator) program(condition string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.cache[condition]
	e.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(condition,
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if len(e.cache) >= maxCachedPrograms {
		e.cache = make(map[string]*vm.Program)
	}
	e.cache[condition] = program
	e.mu.Unlock()
	return program, nil
}
