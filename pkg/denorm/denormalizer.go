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

// Package denorm resolves normalized, relationship-based records back into
// nested object graphs. The Denormalizer wraps a GraphResolver with cache
// consultation, cycle and depth-bound recovery, and status propagation:
// callers receive either a complete graph, a graph with bare descriptors
// standing in for cyclic or too-deep positions, or a fatal error — never the
// internal cycle/depth signals.
package denorm

import (
	"errors"
	"fmt"
	"maps"

	"github.com/go-logr/logr"

	"github.com/taoh/redux-io/pkg/cache"
	"github.com/taoh/redux-io/pkg/descriptor"
	"github.com/taoh/redux-io/pkg/schemamap"
	"github.com/taoh/redux-io/pkg/status"
)

// Unlimited disables the nesting depth bound.
const Unlimited = cache.Unlimited

// Denormalizer is the orchestrator. It operates in one of two modes fixed
// at construction: find-storage (WithStorage; the schema map is rebuilt,
// memoized, from current storage on each call) or provide-storage (each
// call passes WithSchemaMap).
//
// Execution is single-threaded and synchronous; instances are not safe for
// concurrent use.
type Denormalizer struct {
	resolver        GraphResolver
	resolverFactory ResolverFactory
	cache           *cache.Validity

	getStore   func() map[string]any
	paths      schemamap.PathMap
	smResolver schemamap.Resolver

	depthLimit    int
	cacheChildren bool
	log           logr.Logger
}

var _ ItemSource = (*Denormalizer)(nil)

// New builds a Denormalizer. Without WithStorage the instance runs in
// provide-storage mode and every call must supply WithSchemaMap.
func New(opts ...Option) (*Denormalizer, error) {
	d := &Denormalizer{
		cache:      cache.New(),
		depthLimit: Unlimited,
		log:        logr.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.getStore != nil && len(d.paths) == 0 {
		return nil, errors.New("find-storage mode requires a schema path map")
	}
	if d.depthLimit < Unlimited {
		return nil, fmt.Errorf("depth limit must be >= 0 or Unlimited, got %d", d.depthLimit)
	}
	if d.resolverFactory == nil {
		d.resolverFactory = NewGraphResolver
	}
	d.resolver = d.resolverFactory(d)
	d.resolver.SetDepthLimit(d.depthLimit)
	d.cache.SetDefaultMaxDepth(d.depthLimit)
	return d, nil
}

// SetNestingDepthLimit sets the default depth bound used when a call omits
// WithMaxDepth, and keeps the resolver and cache bounds consistent with it.
func (d *Denormalizer) SetNestingDepthLimit(maxDepth int) {
	d.depthLimit = maxDepth
	d.resolver.SetDepthLimit(maxDepth)
	d.cache.SetDefaultMaxDepth(maxDepth)
}

// FlushCache drops every cached denormalized value.
func (d *Denormalizer) FlushCache() { d.cache.Flush() }

// FlushModificationCache drops only the freshness bookkeeping; cached
// values are revalidated against current storage on next access.
func (d *Denormalizer) FlushModificationCache() { d.cache.FlushModificationCache() }

// InvalidateModificationCache forces the next access to re-run freshness
// validation without dropping any bookkeeping.
func (d *Denormalizer) InvalidateModificationCache() { d.cache.InvalidateModificationCache() }

// InvalidateSchemaMap drops the memoized schema map; the next call rebuilds
// it from storage unconditionally.
func (d *Denormalizer) InvalidateSchemaMap() { d.smResolver.Invalidate() }

// DenormalizeItem resolves one descriptor into its nested object graph.
func (d *Denormalizer) DenormalizeItem(desc descriptor.Descriptor, opts ...CallOption) (map[string]any, error) {
	co := newCallOptions(opts)
	sm, err := d.schemaMapFor(co)
	if err != nil {
		return nil, err
	}
	depth, err := d.depthFor(co)
	if err != nil {
		return nil, err
	}

	d.cache.BeginRound()
	return d.resolveItem(newContext(sm), desc, depth, true)
}

// DenormalizeOne resolves a single reference. A nil reference resolves to
// (nil, nil) — an empty slot is not an error. A structured One takes its
// schema from its own status and the output's status is a clone of the
// reference's (the slot's state, not the pointed-to item's); a primitive id
// requires WithSchema and resolves like a plain item.
func (d *Denormalizer) DenormalizeOne(ref any, opts ...CallOption) (map[string]any, error) {
	if isNilInput(ref) {
		return nil, nil
	}
	co := newCallOptions(opts)
	desc, err := descriptor.ForOne(ref, co.schema)
	if err != nil {
		return nil, err
	}
	sm, err := d.schemaMapFor(co)
	if err != nil {
		return nil, err
	}
	depth, err := d.depthFor(co)
	if err != nil {
		return nil, err
	}

	d.cache.BeginRound()
	ctx := newContext(sm)

	refObj, structured := ref.(descriptor.Reference)
	if !structured {
		return d.resolveItem(ctx, desc, depth, true)
	}

	refStatus := refObj.GetStatus()
	if cached := d.cache.GetValidOne(refStatus, desc, depth, sm); cached != nil {
		d.log.V(1).Info("one served from cache", "key", desc.Key())
		return cached, nil
	}

	item, err := d.resolveItem(ctx, desc, depth, true)
	if err != nil {
		return nil, err
	}
	combined := maps.Clone(item)
	status.Set(combined, refStatus.Clone())
	if ctx.cacheEligible() && !isBareDescriptor(item) {
		d.cache.AddOne(combined, refStatus, desc, depth, sm)
	}
	return combined, nil
}

// DenormalizeCollection resolves an ordered id collection. A nil collection
// resolves to (nil, nil). Accepted inputs: *Collection, []any, []string,
// []int. The result's Status is a clone of the input collection's status
// when it carried one; statusless collections are returned uncached.
func (d *Denormalizer) DenormalizeCollection(coll any, opts ...CallOption) (*CollectionResult, error) {
	if isNilInput(coll) {
		return nil, nil
	}
	ids, st, err := collectionInput(coll)
	if err != nil {
		return nil, err
	}
	co := newCallOptions(opts)
	descs, err := descriptor.ForCollection(ids, st, co.schema)
	if err != nil {
		return nil, err
	}
	sm, err := d.schemaMapFor(co)
	if err != nil {
		return nil, err
	}
	depth, err := d.depthFor(co)
	if err != nil {
		return nil, err
	}

	d.cache.BeginRound()
	if st != nil {
		if cached := d.cache.GetValidCollection(st, descs, depth, sm); cached != nil {
			d.log.V(1).Info("collection served from cache", "schema", st.Schema, "tag", st.Tag)
			return cached.(*CollectionResult), nil
		}
	}

	ctx := newContext(sm)
	items := make([]map[string]any, len(descs))
	for i, desc := range descs {
		// Collection members are nested below the collection call, so the
		// item-level cache applies only with CacheChildObjects.
		item, err := d.resolveItem(ctx, desc, depth, false)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}

	result := &CollectionResult{Items: items}
	if st == nil {
		return result, nil
	}
	result.Status = st.Clone()
	if ctx.cacheEligible() {
		d.cache.AddCollection(result, items, st, descs, depth, sm)
	}
	return result, nil
}

// ResolveItem implements ItemSource: graph resolvers call back through it
// for nested relationship descriptors, so nesting shares this top-level
// call's Context and caching policy.
func (d *Denormalizer) ResolveItem(ctx *Context, desc descriptor.Descriptor, maxDepth int) (map[string]any, error) {
	return d.resolveItem(ctx, desc, maxDepth, false)
}

// resolveItem is the orchestrator state machine for one descriptor: cache
// fast path, resolver delegation, cycle/depth recovery, caching decision.
func (d *Denormalizer) resolveItem(ctx *Context, desc descriptor.Descriptor, maxDepth int, root bool) (map[string]any, error) {
	cacheable := root || d.cacheChildren
	if cacheable {
		if cached := d.cache.GetValidItem(desc, maxDepth, ctx.schemaMap); cached != nil {
			d.log.V(1).Info("item served from cache", "key", desc.Key())
			return cached, nil
		}
	}

	value, err := d.resolver.Resolve(ctx, desc, ctx.schemaMap, maxDepth)
	switch {
	case err == nil:
	case errors.Is(err, ErrCircular):
		// Recovered: the caller gets the bare descriptor at this position,
		// and nothing resolved through this cycle may be cached this round.
		ctx.markLoop(desc.Key())
		return desc.Map(), nil
	case errors.Is(err, ErrTooDeep):
		ctx.incomplete = true
		return desc.Map(), nil
	default:
		return nil, err
	}

	// The caching decision reads the loop set before this descriptor's key
	// is cleared: a result that recovered a cycle anywhere beneath it stays
	// uncached even when it is the one that closed the cycle.
	if cacheable && ctx.cacheEligible() && !isBareDescriptor(value) {
		d.cache.Add(value, maxDepth, ctx.schemaMap)
	}
	ctx.clearLoop(desc.Key())
	return value, nil
}

func (d *Denormalizer) schemaMapFor(co callOptions) (schemamap.Map, error) {
	if co.schemaMap != nil {
		return co.schemaMap, nil
	}
	if d.getStore == nil {
		return nil, ErrNoSchemaMap
	}
	return d.smResolver.Resolve(d.getStore(), d.paths), nil
}

func (d *Denormalizer) depthFor(co callOptions) (int, error) {
	if !co.depthSet {
		return d.depthLimit, nil
	}
	if co.depth < Unlimited {
		return 0, fmt.Errorf("max depth must be >= 0 or Unlimited, got %d", co.depth)
	}
	return co.depth, nil
}
