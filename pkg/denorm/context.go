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

package denorm

import (
	"slices"

	"github.com/taoh/redux-io/pkg/descriptor"
	"github.com/taoh/redux-io/pkg/schemamap"
)

// Context is the mutable state of one top-level denormalization call,
// threaded through the entire recursive tree of that call. A fresh Context
// is created at every public entry point, so state never leaks across
// unrelated top-level calls and "root level" is simply the frame that
// created it.
type Context struct {
	schemaMap schemamap.Map

	// path holds the descriptor keys currently being resolved, outermost
	// first. A descriptor already on the path closes a cycle.
	path []string

	// loop collects descriptor keys whose resolution traversed a cycle this
	// round; while non-empty, results are ineligible for caching.
	loop map[string]bool

	// incomplete is set when any nested resolution hit the depth bound.
	// Depth-limited partial results must never reach the cache.
	incomplete bool
}

func newContext(sm schemamap.Map) *Context {
	return &Context{
		schemaMap: sm,
		loop:      make(map[string]bool),
	}
}

// SchemaMap returns the schema map of this top-level call.
func (c *Context) SchemaMap() schemamap.Map {
	return c.schemaMap
}

// OnPath reports whether desc is an ancestor in the current resolution path.
func (c *Context) OnPath(desc descriptor.Descriptor) bool {
	return slices.Contains(c.path, desc.Key())
}

// EnterPath pushes desc onto the resolution path. Resolvers must pair it
// with ExitPath once the descriptor's relationships are resolved.
func (c *Context) EnterPath(desc descriptor.Descriptor) {
	c.path = append(c.path, desc.Key())
}

// ExitPath pops the innermost descriptor off the resolution path.
func (c *Context) ExitPath() {
	c.path = c.path[:len(c.path)-1]
}

func (c *Context) markLoop(key string)  { c.loop[key] = true }
func (c *Context) clearLoop(key string) { delete(c.loop, key) }

// cacheEligible reports whether results computed in this round may be
// stored: no depth-limited resolution and no unresolved cycle.
func (c *Context) cacheEligible() bool {
	return !c.incomplete && len(c.loop) == 0
}
