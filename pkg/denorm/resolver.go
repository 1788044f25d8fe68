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
	k8sruntime "k8s.io/apimachinery/pkg/runtime"

	"github.com/taoh/redux-io/pkg/cache"
	"github.com/taoh/redux-io/pkg/descriptor"
	"github.com/taoh/redux-io/pkg/schemamap"
	"github.com/taoh/redux-io/pkg/status"
)

// GraphResolver walks a descriptor's relationship graph and produces the
// nested denormalized object. It signals a cycle with ErrCircular and an
// exceeded depth bound with ErrTooDeep; the Denormalizer recovers both.
// Nested relationship descriptors are resolved back through an ItemSource,
// so caching policy stays in one place.
type GraphResolver interface {
	// Resolve returns the denormalized object for desc. maxDepth is the
	// number of relationship expansions still allowed below desc; Unlimited
	// disables the bound and DepthUnset applies the configured limit.
	Resolve(ctx *Context, desc descriptor.Descriptor, schemaMap schemamap.Map, maxDepth int) (map[string]any, error)

	// MergeItemData combines a descriptor with its normalized record into
	// the flat base of a denormalized item: id, type, attributes, status.
	MergeItemData(desc descriptor.Descriptor, record map[string]any) map[string]any

	// SetDepthLimit sets the bound substituted for DepthUnset requests.
	SetDepthLimit(maxDepth int)
}

// ItemSource resolves nested relationship descriptors. The Denormalizer
// implements it; resolvers call back through it so every nested item passes
// the same cycle, depth and caching protocol (mutual recursion).
type ItemSource interface {
	ResolveItem(ctx *Context, desc descriptor.Descriptor, maxDepth int) (map[string]any, error)
}

// ResolverFactory builds the GraphResolver for a Denormalizer. Custom
// factories can decorate or replace NewGraphResolver.
type ResolverFactory func(ItemSource) GraphResolver

// NewGraphResolver returns the default resolver for JSON-API shaped
// records: {id, type, attributes, relationships: {name: {"data": ...}}}.
func NewGraphResolver(source ItemSource) GraphResolver {
	return &graphResolver{source: source, depthLimit: Unlimited}
}

type graphResolver struct {
	source     ItemSource
	depthLimit int
}

func (r *graphResolver) SetDepthLimit(maxDepth int) {
	r.depthLimit = maxDepth
}

func (r *graphResolver) Resolve(ctx *Context, desc descriptor.Descriptor, sm schemamap.Map, maxDepth int) (map[string]any, error) {
	if maxDepth == cache.DepthUnset {
		maxDepth = r.depthLimit
	}
	if maxDepth != Unlimited && maxDepth < 0 {
		return nil, ErrTooDeep
	}
	if ctx.OnPath(desc) {
		return nil, ErrCircular
	}

	record := sm.Record(desc)
	item := r.MergeItemData(desc, record)
	if record == nil {
		return item, nil
	}

	ctx.EnterPath(desc)
	defer ctx.ExitPath()

	for name, data := range relationships(record) {
		resolved, err := r.resolveRelationship(ctx, data, maxDepth)
		if err != nil {
			return nil, err
		}
		item[name] = resolved
	}
	return item, nil
}

func (r *graphResolver) MergeItemData(desc descriptor.Descriptor, record map[string]any) map[string]any {
	item := map[string]any{"id": desc.ID, "type": desc.Type}
	if record == nil {
		return item
	}
	if attrs, ok := record["attributes"].(map[string]any); ok {
		for k, v := range k8sruntime.DeepCopyJSON(attrs) {
			item[k] = v
		}
	}
	// The denormalized item owns an independent clone of the record status.
	status.CloneOnto(record, item)
	return item
}

// resolveRelationship expands one relationship slot: nil stays nil, a single
// descriptor resolves to one nested item, a list resolves in order. Slots
// that are not descriptor shaped are deep-copied through unchanged.
func (r *graphResolver) resolveRelationship(ctx *Context, data any, maxDepth int) (any, error) {
	childDepth := maxDepth
	if maxDepth != Unlimited {
		childDepth = maxDepth - 1
	}

	switch t := data.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		desc, ok := descriptor.FromRecord(t)
		if !ok {
			return k8sruntime.DeepCopyJSON(t), nil
		}
		return r.source.ResolveItem(ctx, desc, childDepth)
	case []any:
		out := make([]any, len(t))
		for i, v := range t {
			m, ok := v.(map[string]any)
			if !ok {
				out[i] = v
				continue
			}
			desc, ok := descriptor.FromRecord(m)
			if !ok {
				out[i] = k8sruntime.DeepCopyJSON(m)
				continue
			}
			resolved, err := r.source.ResolveItem(ctx, desc, childDepth)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return t, nil
	}
}

// relationships extracts the relName -> data mapping of a normalized
// record. Each slot is the JSON-API "data" linkage: a descriptor, a list of
// descriptors, or null.
func relationships(record map[string]any) map[string]any {
	rels, ok := record["relationships"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(rels))
	for name, rel := range rels {
		relMap, ok := rel.(map[string]any)
		if !ok {
			continue
		}
		data, ok := relMap["data"]
		if !ok {
			continue
		}
		out[name] = data
	}
	return out
}
