// Copyright 2025 The redux-io Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package filter evaluates CEL predicates against denormalized items. The
// expression sees one variable, `item`, bound to the denormalized object.
package filter

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// Filter is a compiled predicate.
type Filter struct {
	expr string
	prg  cel.Program
}

// Compile builds a Filter from a CEL expression. The expression must
// evaluate to a bool.
func Compile(expr string) (*Filter, error) {
	env, err := cel.NewEnv(
		cel.Variable("item", cel.DynType),
		ext.Strings(),
		ext.Lists(),
		cel.OptionalTypes(),
	)
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	return &Filter{expr: expr, prg: prg}, nil
}

// Match evaluates the predicate for one item.
func (f *Filter) Match(item map[string]any) (bool, error) {
	out, _, err := f.prg.Eval(map[string]any{"item": item})
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", f.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not return bool", f.expr)
	}
	return result, nil
}
