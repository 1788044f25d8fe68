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
	"fmt"
	"reflect"

	"github.com/taoh/redux-io/pkg/status"
)

// isNilInput treats both untyped nil and nil-valued pointers, maps and
// slices as absent input.
func isNilInput(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// collectionInput normalizes the accepted collection shapes into an id list
// plus the collection's status, when it carries one.
func collectionInput(coll any) ([]any, *status.Status, error) {
	switch t := coll.(type) {
	case *Collection:
		return t.IDs, t.Status, nil
	case Collection:
		return t.IDs, t.Status, nil
	case []any:
		return t, nil, nil
	case []string:
		ids := make([]any, len(t))
		for i, id := range t {
			ids[i] = id
		}
		return ids, nil, nil
	case []int:
		ids := make([]any, len(t))
		for i, id := range t {
			ids[i] = id
		}
		return ids, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported collection input %T", coll)
	}
}

// isBareDescriptor reports whether value is merely the unresolved
// descriptor: nothing beyond id, type and a status annotation. Such values
// stand in for unknown records and are never cached.
func isBareDescriptor(value map[string]any) bool {
	if len(value) > 3 {
		return false
	}
	for k := range value {
		switch k {
		case "id", "type", status.Key:
		default:
			return false
		}
	}
	return true
}
