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

// Package status attaches and reads the opaque annotation that travels with
// normalized records, single references, and collections. The annotation is
// independent of the entity's own data: it carries the schema name the value
// belongs to plus bookkeeping such as the modification timestamp used by the
// validity cache.
package status

import (
	k8sruntime "k8s.io/apimachinery/pkg/runtime"
)

// Key is the reserved map key under which a Status is stored on item maps.
// It is deliberately outside the JSON-API field namespace so it can never
// collide with record attributes or relationship names.
const Key = "@@redux-io/status"

// Value kinds, mirroring the three denormalizable shapes.
const (
	KindItem       = "item"
	KindOne        = "one"
	KindCollection = "collection"
)

// Status is the annotation attached to items, one-references, and
// collections. Schema is the only field the denormalization engine requires;
// everything else is bookkeeping that callers (or the cache) may consult.
type Status struct {
	// Schema is the schema name of the annotated value.
	Schema string `json:"schema,omitempty"`
	// Kind says which shape the annotated value has: item, one, collection.
	Kind string `json:"kind,omitempty"`
	// ID is the canonical id of the annotated record, when it has one.
	ID string `json:"id,omitempty"`
	// Tag distinguishes multiple collections of the same schema.
	Tag string `json:"tag,omitempty"`
	// Busy and Validation describe the slot itself (e.g. a one-reference
	// that is still loading), not the record it points to.
	Busy       string `json:"busyStatus,omitempty"`
	Validation string `json:"validationStatus,omitempty"`
	// ModifiedAt is the unix-nano timestamp of the last modification of the
	// underlying normalized record. The validity cache compares it to decide
	// whether a cached denormalized value is still fresh.
	ModifiedAt int64 `json:"modifiedAt,omitempty"`
	// Extra carries annotation fields this package does not interpret.
	Extra map[string]any `json:"extra,omitempty"`
}

// Carrier is implemented by wrapper types (one-references, collections)
// that hold their status as a field rather than under Key.
type Carrier interface {
	GetStatus() *Status
}

// Clone returns an independent deep copy of s. Mutating the copy never
// affects the original.
func (s *Status) Clone() *Status {
	if s == nil {
		return nil
	}
	out := *s
	if s.Extra != nil {
		out.Extra = k8sruntime.DeepCopyJSON(s.Extra)
	}
	return &out
}

// Get extracts the status attached to v, or nil when v carries none.
// It understands Carrier implementations, item maps (reserved key holding
// either a *Status or a JSON-decoded map), and nil.
func Get(v any) *Status {
	switch t := v.(type) {
	case nil:
		return nil
	case Carrier:
		return t.GetStatus()
	case *Status:
		return t
	case map[string]any:
		return fromAny(t[Key])
	default:
		return nil
	}
}

// Set attaches st to the item map under the reserved key. A nil st removes
// any existing annotation.
func Set(item map[string]any, st *Status) {
	if item == nil {
		return
	}
	if st == nil {
		delete(item, Key)
		return
	}
	item[Key] = st
}

// CloneOnto copies the status of src onto the item map dst as an independent
// clone. It is a no-op when src carries no status.
func CloneOnto(src any, dst map[string]any) {
	st := Get(src)
	if st == nil {
		return
	}
	Set(dst, st.Clone())
}

// fromAny normalizes the two storage shapes of a status: the typed struct
// used in-process and the plain map produced by JSON/YAML decoding.
func fromAny(v any) *Status {
	switch t := v.(type) {
	case *Status:
		return t
	case map[string]any:
		return fromMap(t)
	default:
		return nil
	}
}

func fromMap(m map[string]any) *Status {
	if m == nil {
		return nil
	}
	st := &Status{
		Schema:     stringField(m, "schema"),
		Kind:       stringField(m, "kind"),
		ID:         stringField(m, "id"),
		Tag:        stringField(m, "tag"),
		Busy:       stringField(m, "busyStatus"),
		Validation: stringField(m, "validationStatus"),
		ModifiedAt: intField(m, "modifiedAt"),
	}
	if extra, ok := m["extra"].(map[string]any); ok {
		st.Extra = k8sruntime.DeepCopyJSON(extra)
	}
	return st
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string) int64 {
	switch n := m[key].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
