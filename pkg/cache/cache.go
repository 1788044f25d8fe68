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

// Package cache stores denormalized values keyed by descriptor identity and
// validates them against the current normalized source before handing them
// back. An entry is served only when the depth bound it was computed under
// covers the requested bound and the underlying records are unchanged.
package cache

import (
	"reflect"
	"strings"

	"github.com/taoh/redux-io/pkg/descriptor"
	"github.com/taoh/redux-io/pkg/schemamap"
	"github.com/taoh/redux-io/pkg/status"
)

// Unlimited disables the nesting depth bound.
const Unlimited = -1

// DepthUnset asks for the configured default depth bound.
const DepthUnset = -2

// baseline captures what a cached value was computed from: the identity of
// the normalized record map and its modification stamp at cache time.
type baseline struct {
	desc   descriptor.Descriptor
	source uintptr
	stamp  int64
}

type entry struct {
	value any
	depth int

	// members are the item-shaped maps inside value, in member order. They
	// carry the statuses used for stamp revalidation once baselines are
	// flushed.
	members []map[string]any
	descs   []descriptor.Descriptor

	// refStamp is the modification stamp of the reference slot (one) or of
	// the collection status that keyed this entry.
	refStamp int64
	// ids pins the member id sequence of a collection entry.
	ids string

	// baselines is nil after FlushModificationCache; revalidation then
	// falls back to comparing member stamps against current records.
	baselines []baseline
}

// Validity is the cache owned by a denormalizer instance. All access is
// synchronous; there is no external mutation path, so no locking is needed
// beyond ordinary sequential execution.
type Validity struct {
	entries map[string]*entry
	// checked marks descriptor keys whose freshness has been validated in
	// the current round. Marks are per top-level call: BeginRound clears
	// them, so every top-level call revalidates against current storage.
	checked      map[string]bool
	defaultDepth int
}

// New returns an empty cache with an unlimited default depth bound.
func New() *Validity {
	return &Validity{
		entries:      make(map[string]*entry),
		checked:      make(map[string]bool),
		defaultDepth: Unlimited,
	}
}

// SetDefaultMaxDepth sets the bound substituted for DepthUnset requests.
func (c *Validity) SetDefaultMaxDepth(depth int) {
	c.defaultDepth = depth
}

// BeginRound starts a new top-level denormalization round: freshness marks
// from earlier rounds are discarded so changed storage is never served stale.
func (c *Validity) BeginRound() {
	clear(c.checked)
}

// Get returns the cached value for desc when its depth bound covers the
// request, without any freshness validation.
func (c *Validity) Get(desc descriptor.Descriptor, depth int) any {
	e := c.lookup(itemKey(desc), depth)
	if e == nil {
		return nil
	}
	return e.value
}

// IsChecked reports whether a freshness check for desc at this depth has
// already been performed in the current round.
func (c *Validity) IsChecked(desc descriptor.Descriptor, depth int) bool {
	return c.checked[itemKey(desc)] && c.lookup(itemKey(desc), depth) != nil
}

// GetValidItem returns the cached denormalized item for desc if it is still
// valid against current storage, else nil. A failed validation drops the
// entry.
func (c *Validity) GetValidItem(desc descriptor.Descriptor, depth int, sm schemamap.Map) map[string]any {
	v := c.getValid(itemKey(desc), depth, sm, nil)
	if v == nil {
		return nil
	}
	item, _ := v.(map[string]any)
	return item
}

// Add stores a denormalized item at the given depth bound and returns it.
// The descriptor identity comes from the value's status, falling back to its
// own id and type fields.
func (c *Validity) Add(value map[string]any, depth int, sm schemamap.Map) map[string]any {
	desc, ok := valueDescriptor(value)
	if !ok {
		return value
	}
	key := itemKey(desc)
	c.store(key, &entry{
		value:     value,
		depth:     c.resolveDepth(depth),
		members:   []map[string]any{value},
		descs:     []descriptor.Descriptor{desc},
		baselines: c.captureBaselines([]descriptor.Descriptor{desc}, sm),
	})
	return value
}

// GetValidOne returns the cached denormalized one-reference for desc if the
// reference stamp and the underlying item are both unchanged.
func (c *Validity) GetValidOne(refStatus *status.Status, desc descriptor.Descriptor, depth int, sm schemamap.Map) map[string]any {
	v := c.getValid(oneKey(desc), depth, sm, func(e *entry) bool {
		return refStatus != nil && e.refStamp == refStatus.ModifiedAt
	})
	if v == nil {
		return nil
	}
	item, _ := v.(map[string]any)
	return item
}

// AddOne stores the combined one-reference value (resolved item with the
// reference's own status cloned onto it) and returns it.
func (c *Validity) AddOne(value map[string]any, refStatus *status.Status, desc descriptor.Descriptor, depth int, sm schemamap.Map) map[string]any {
	var stamp int64
	if refStatus != nil {
		stamp = refStatus.ModifiedAt
	}
	c.store(oneKey(desc), &entry{
		value:     value,
		depth:     c.resolveDepth(depth),
		descs:     []descriptor.Descriptor{desc},
		refStamp:  stamp,
		baselines: c.captureBaselines([]descriptor.Descriptor{desc}, sm),
	})
	return value
}

// GetValidCollection returns the cached denormalized collection keyed by st
// if its status stamp, member id sequence and every member record are
// unchanged.
func (c *Validity) GetValidCollection(st *status.Status, descs []descriptor.Descriptor, depth int, sm schemamap.Map) any {
	if st == nil {
		return nil
	}
	return c.getValid(collectionKey(st), depth, sm, func(e *entry) bool {
		return e.refStamp == st.ModifiedAt && e.ids == idSequence(descs)
	})
}

// AddCollection stores a denormalized collection under its status identity
// and returns it. items are the member maps of value, in order.
func (c *Validity) AddCollection(value any, items []map[string]any, st *status.Status, descs []descriptor.Descriptor, depth int, sm schemamap.Map) any {
	if st == nil {
		return value
	}
	c.store(collectionKey(st), &entry{
		value:     value,
		depth:     c.resolveDepth(depth),
		members:   items,
		descs:     descs,
		refStamp:  st.ModifiedAt,
		ids:       idSequence(descs),
		baselines: c.captureBaselines(descs, sm),
	})
	return value
}

// Flush drops every cached value and all freshness bookkeeping.
func (c *Validity) Flush() {
	clear(c.entries)
	clear(c.checked)
}

// FlushModificationCache drops the freshness baselines but keeps the cached
// values. The next access revalidates each entry by comparing the
// modification stamps carried by its members against current storage;
// entries that cannot be revalidated that way are dropped.
func (c *Validity) FlushModificationCache() {
	for _, e := range c.entries {
		e.baselines = nil
	}
	clear(c.checked)
}

// InvalidateModificationCache clears the freshness marks only, forcing the
// next access to re-run validation against the baselines.
func (c *Validity) InvalidateModificationCache() {
	clear(c.checked)
}

func (c *Validity) lookup(key string, depth int) *entry {
	e := c.entries[key]
	if e == nil || !depthCovers(e.depth, c.resolveDepth(depth)) {
		return nil
	}
	return e
}

// getValid is the shared validation path: depth coverage, checked fast path,
// optional entry-shape gate, then record freshness. Valid entries are marked
// checked for the remainder of the round; invalid entries are dropped.
func (c *Validity) getValid(key string, depth int, sm schemamap.Map, gate func(*entry) bool) any {
	e := c.lookup(key, depth)
	if e == nil {
		return nil
	}
	if gate != nil && !gate(e) {
		c.drop(key)
		return nil
	}
	if c.checked[key] {
		return e.value
	}
	if !c.fresh(e, sm) {
		c.drop(key)
		return nil
	}
	// Revalidated: restore baselines so identity checks work again.
	if e.baselines == nil {
		e.baselines = c.captureBaselines(e.descs, sm)
	}
	c.checked[key] = true
	return e.value
}

func (c *Validity) store(key string, e *entry) {
	c.entries[key] = e
	c.checked[key] = true
}

func (c *Validity) drop(key string) {
	delete(c.entries, key)
	delete(c.checked, key)
}

// fresh reports whether every record underlying e is unchanged in sm.
func (c *Validity) fresh(e *entry, sm schemamap.Map) bool {
	if e.baselines != nil {
		for _, b := range e.baselines {
			record := sm.Record(b.desc)
			if record == nil {
				return false
			}
			if mapIdentity(record) == b.source {
				continue
			}
			// A replaced record is fresh only when its stamp provably
			// matches; stampless records cannot be proven unchanged.
			stamp := recordStamp(record)
			if stamp == 0 || stamp != b.stamp {
				return false
			}
		}
		return true
	}

	// Baselines flushed: fall back to comparing member stamps. Entries
	// without members (one-references, whose status is the slot's) cannot
	// be revalidated this way.
	if e.members == nil {
		return false
	}
	if len(e.members) != len(e.descs) {
		return false
	}
	for i, member := range e.members {
		record := sm.Record(e.descs[i])
		if record == nil {
			return false
		}
		stamp := recordStamp(record)
		if stamp == 0 || stamp != memberStamp(member) {
			return false
		}
	}
	return true
}

func (c *Validity) captureBaselines(descs []descriptor.Descriptor, sm schemamap.Map) []baseline {
	baselines := make([]baseline, len(descs))
	for i, desc := range descs {
		record := sm.Record(desc)
		baselines[i] = baseline{
			desc:   desc,
			source: mapIdentity(record),
			stamp:  recordStamp(record),
		}
	}
	return baselines
}

func (c *Validity) resolveDepth(depth int) int {
	if depth == DepthUnset {
		return c.defaultDepth
	}
	return depth
}

// depthCovers reports whether a value computed under the cached bound is
// usable for the requested bound. Unlimited covers everything and is matched
// only by Unlimited.
func depthCovers(cached, requested int) bool {
	if cached == Unlimited {
		return true
	}
	if requested == Unlimited {
		return false
	}
	return cached >= requested
}

func itemKey(desc descriptor.Descriptor) string { return "item:" + desc.Key() }
func oneKey(desc descriptor.Descriptor) string  { return "one:" + desc.Key() }

func collectionKey(st *status.Status) string {
	return "collection:" + st.Schema + ":" + st.Tag
}

func idSequence(descs []descriptor.Descriptor) string {
	ids := make([]string, len(descs))
	for i, d := range descs {
		ids[i] = d.ID
	}
	return strings.Join(ids, ",")
}

func valueDescriptor(value map[string]any) (descriptor.Descriptor, bool) {
	if st := status.Get(value); st != nil && st.Schema != "" && st.ID != "" {
		return descriptor.Descriptor{ID: st.ID, Type: st.Schema}, true
	}
	return descriptor.FromRecord(value)
}

func recordStamp(record map[string]any) int64 {
	return memberStamp(record)
}

func memberStamp(m map[string]any) int64 {
	if st := status.Get(m); st != nil {
		return st.ModifiedAt
	}
	return 0
}

func mapIdentity(m map[string]any) uintptr {
	if m == nil {
		return 0
	}
	return reflect.ValueOf(m).Pointer()
}
