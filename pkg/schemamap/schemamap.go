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

// Package schemamap flattens a storage snapshot into a schema-name ->
// raw-record-collection mapping, memoizing the most recent snapshot so a
// top-level denormalization pays for the walk at most once.
package schemamap

import (
	"reflect"

	"github.com/taoh/redux-io/pkg/descriptor"
	"github.com/taoh/redux-io/pkg/fieldpath"
)

// PathMap maps a schema name to the dotted path of its raw collection
// inside a storage snapshot (e.g. "user" -> "data.users").
type PathMap map[string]string

// Map is the flattened view: schema name -> collection of normalized
// records, keyed by canonical record id. A schema whose path is absent in
// the snapshot maps to a nil collection.
type Map map[string]map[string]any

// Record looks up the normalized record for desc, or nil when the schema or
// id is unknown.
func (m Map) Record(desc descriptor.Descriptor) map[string]any {
	collection := m[desc.Type]
	if collection == nil {
		return nil
	}
	record, _ := collection[desc.ID].(map[string]any)
	return record
}

// Resolver builds Maps from snapshots. It keeps a single-slot memo keyed by
// the identity of the most recent (snapshot, paths) pair: a repeated call
// with the same pair by reference returns the prior Map without rebuilding,
// any different pair replaces the memo.
type Resolver struct {
	lastState uintptr
	lastPaths uintptr
	lastMap   Map
}

// Resolve returns the schema map for the snapshot. Collections addressed by
// paths may be stored either keyed by id already, or as lists of records;
// lists are re-keyed by each record's canonical id.
func (r *Resolver) Resolve(state map[string]any, paths PathMap) Map {
	stateID := mapIdentity(state)
	pathsID := mapIdentity(paths)
	if r.lastMap != nil && r.lastState == stateID && r.lastPaths == pathsID {
		return r.lastMap
	}

	out := make(Map, len(paths))
	for schema, path := range paths {
		raw, ok := fieldpath.Get(state, path)
		if !ok {
			out[schema] = nil
			continue
		}
		out[schema] = keyRecords(raw)
	}

	r.lastState = stateID
	r.lastPaths = pathsID
	r.lastMap = out
	return out
}

// Invalidate drops the memo; the next Resolve rebuilds unconditionally.
func (r *Resolver) Invalidate() {
	r.lastState = 0
	r.lastPaths = 0
	r.lastMap = nil
}

func keyRecords(raw any) map[string]any {
	switch t := raw.(type) {
	case map[string]any:
		return t
	case []any:
		keyed := make(map[string]any, len(t))
		for _, v := range t {
			record, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if desc, ok := descriptor.FromRecord(record); ok {
				keyed[desc.ID] = record
			}
		}
		return keyed
	default:
		return nil
	}
}

// mapIdentity returns a stable identity for a map header. Two calls with the
// same map value observe the same identity even after inserts.
func mapIdentity(m any) uintptr {
	v := reflect.ValueOf(m)
	if v.Kind() != reflect.Map || v.IsNil() {
		return 0
	}
	return v.Pointer()
}
