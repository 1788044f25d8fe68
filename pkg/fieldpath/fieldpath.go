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

// Package fieldpath parses dotted field paths and walks them through
// JSON-shaped values. Paths look like `data.users`, `items[0].id` or
// `data["dotted.key"]`.
package fieldpath

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a parsed path: either a field name or an array
// index. Index is -1 for field segments.
type Segment struct {
	Name  string
	Index int
}

func named(name string) Segment  { return Segment{Name: name, Index: -1} }
func indexed(idx int) Segment    { return Segment{Index: idx} }
func (s Segment) isIndex() bool  { return s.Index >= 0 }
func (s Segment) String() string { return Build([]Segment{s}) }

// Parse splits a path into segments.
func Parse(path string) ([]Segment, error) {
	if path == "" {
		return nil, fmt.Errorf("empty path")
	}

	var segments []Segment
	i := 0
	for i < len(path) {
		switch path[i] {
		case '.':
			if i == 0 || i == len(path)-1 {
				return nil, fmt.Errorf("path %q: dangling separator", path)
			}
			i++
		case '[':
			end := strings.IndexByte(path[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("path %q: unterminated bracket", path)
			}
			inner := path[i+1 : i+end]
			if len(inner) >= 2 && inner[0] == '"' && inner[len(inner)-1] == '"' {
				name, err := strconv.Unquote(inner)
				if err != nil {
					return nil, fmt.Errorf("path %q: bad quoted segment %s: %w", path, inner, err)
				}
				segments = append(segments, named(name))
			} else {
				idx, err := strconv.Atoi(inner)
				if err != nil || idx < 0 {
					return nil, fmt.Errorf("path %q: bad index %q", path, inner)
				}
				segments = append(segments, indexed(idx))
			}
			i += end + 1
		default:
			end := i
			for end < len(path) && path[end] != '.' && path[end] != '[' {
				end++
			}
			segments = append(segments, named(path[i:end]))
			i = end
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("path %q: no segments", path)
	}
	return segments, nil
}

// Build renders segments back into path syntax. Field names containing dots
// or brackets use quoted bracket notation.
func Build(segments []Segment) string {
	var b strings.Builder
	for i, segment := range segments {
		if segment.isIndex() {
			fmt.Fprintf(&b, "[%d]", segment.Index)
			continue
		}
		if strings.ContainsAny(segment.Name, ".[]") || segment.Name == "" {
			fmt.Fprintf(&b, "[%q]", segment.Name)
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(segment.Name)
	}
	return b.String()
}

// Get walks path through obj and returns the value it lands on. The second
// return is false when any step is absent or the shapes do not match.
func Get(obj map[string]any, path string) (any, bool) {
	segments, err := Parse(path)
	if err != nil {
		return nil, false
	}

	current := any(obj)
	for _, segment := range segments {
		if segment.isIndex() {
			array, ok := current.([]any)
			if !ok || segment.Index >= len(array) {
				return nil, false
			}
			current = array[segment.Index]
			continue
		}
		currentMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok := currentMap[segment.Name]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}
