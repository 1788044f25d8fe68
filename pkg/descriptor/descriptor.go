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

// Package descriptor builds the {id, type} references that identify
// normalized records, resolving the type either from an explicit schema
// argument or from status metadata attached to the input.
package descriptor

import (
	"fmt"
	"math"
	"strconv"

	"github.com/taoh/redux-io/pkg/status"
)

// Descriptor identifies one normalized record. Immutable value; Type must
// resolve to a known schema name by the time the record is looked up.
type Descriptor struct {
	ID   string
	Type string
}

// Key returns the canonical cache identity of the descriptor.
func (d Descriptor) Key() string {
	return d.Type + "." + d.ID
}

// Map returns the bare, unresolved form of the descriptor. It is the
// sentinel substituted into an object graph at cycle-closing and
// depth-exceeded positions.
func (d Descriptor) Map() map[string]any {
	return map[string]any{"id": d.ID, "type": d.Type}
}

// Reference is a structured single reference: an inner id together with the
// reference slot's own status. The status schema, not any explicit argument,
// determines the descriptor type.
type Reference interface {
	status.Carrier
	RefValue() any
}

// ForOne builds the descriptor for a single reference. A primitive id
// requires explicitSchema; a structured Reference takes its type from its
// own status.
func ForOne(value any, explicitSchema string) (Descriptor, error) {
	if ref, ok := value.(Reference); ok {
		st := ref.GetStatus()
		if st == nil || st.Schema == "" {
			return Descriptor{}, &MissingSchemaError{Input: "one reference"}
		}
		return Descriptor{ID: CanonicalID(ref.RefValue()), Type: st.Schema}, nil
	}
	if explicitSchema == "" {
		return Descriptor{}, &MissingSchemaError{Input: "primitive id"}
	}
	return Descriptor{ID: CanonicalID(value), Type: explicitSchema}, nil
}

// ForCollection builds one descriptor per id, order preserving. The schema
// comes from st when it carries one, from explicitSchema otherwise.
func ForCollection(ids []any, st *status.Status, explicitSchema string) ([]Descriptor, error) {
	schema := explicitSchema
	if st != nil && st.Schema != "" {
		schema = st.Schema
	}
	if schema == "" {
		return nil, &MissingSchemaError{Input: "collection"}
	}
	out := make([]Descriptor, len(ids))
	for i, id := range ids {
		out[i] = Descriptor{ID: CanonicalID(id), Type: schema}
	}
	return out, nil
}

// FromRecord extracts the descriptor of a normalized record, or false when
// the record has no id or type.
func FromRecord(record map[string]any) (Descriptor, bool) {
	id, okID := record["id"]
	typ, okType := record["type"].(string)
	if !okID || !okType || typ == "" {
		return Descriptor{}, false
	}
	return Descriptor{ID: CanonicalID(id), Type: typ}, true
}

// CanonicalID renders an id value in its canonical string form. JSON decodes
// numeric ids to float64; integral floats print without a fraction so that
// 1, 1.0 and "1" all address the same record.
func CanonicalID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
