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
	"github.com/go-logr/logr"

	"github.com/taoh/redux-io/pkg/cache"
	"github.com/taoh/redux-io/pkg/schemamap"
)

// Option configures a Denormalizer at construction.
type Option func(*Denormalizer)

// WithStorage selects find-storage mode: get returns the current state
// snapshot (called once per top-level call) and paths maps schema names to
// the location of their raw collections inside it.
func WithStorage(get func() map[string]any, paths schemamap.PathMap) Option {
	return func(d *Denormalizer) {
		d.getStore = get
		d.paths = paths
	}
}

// WithResolver replaces the default graph resolver.
func WithResolver(factory ResolverFactory) Option {
	return func(d *Denormalizer) {
		d.resolverFactory = factory
	}
}

// WithCache replaces the validity cache, e.g. to share one across
// instances.
func WithCache(c *cache.Validity) Option {
	return func(d *Denormalizer) {
		d.cache = c
	}
}

// CacheChildObjects also caches nested (non-root) items. Child values are
// sub-graphs of their parent and already captured transitively when the
// parent is cached, so this is opt-in.
func CacheChildObjects() Option {
	return func(d *Denormalizer) {
		d.cacheChildren = true
	}
}

// WithDepthLimit sets the default nesting depth bound; Unlimited disables
// it.
func WithDepthLimit(maxDepth int) Option {
	return func(d *Denormalizer) {
		d.depthLimit = maxDepth
	}
}

// WithLogger attaches a logger; cache traffic is logged at V(1).
func WithLogger(log logr.Logger) Option {
	return func(d *Denormalizer) {
		d.log = log
	}
}

// CallOption adjusts a single denormalization call.
type CallOption func(*callOptions)

type callOptions struct {
	depth     int
	depthSet  bool
	schema    string
	schemaMap schemamap.Map
}

func newCallOptions(opts []CallOption) callOptions {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	return co
}

// WithMaxDepth overrides the instance depth bound for this call.
func WithMaxDepth(maxDepth int) CallOption {
	return func(co *callOptions) {
		co.depth = maxDepth
		co.depthSet = true
	}
}

// WithSchema supplies the schema name for inputs whose status does not
// carry one (primitive ids, plain id lists).
func WithSchema(name string) CallOption {
	return func(co *callOptions) {
		co.schema = name
	}
}

// WithSchemaMap supplies the schema map for this call, overriding the
// instance's storage access. Required on every call in provide-storage
// mode.
func WithSchemaMap(m schemamap.Map) CallOption {
	return func(co *callOptions) {
		co.schemaMap = m
	}
}
