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

import "errors"

// ErrCircular signals that resolving a descriptor would revisit an ancestor
// on the current resolution path. It is recovered inside the denormalizer:
// callers receive the bare descriptor at that position, never this error.
var ErrCircular = errors.New("circular denormalization")

// ErrTooDeep signals that the nesting depth bound would be exceeded. Like
// ErrCircular it is recovered internally; it additionally disables caching
// for the whole top-level call, since a depth-limited result is incomplete.
var ErrTooDeep = errors.New("denormalization too deep")

// ErrNoSchemaMap is returned when an instance in provide-storage mode is
// called without a WithSchemaMap call option.
var ErrNoSchemaMap = errors.New("no schema map: provide-storage mode requires WithSchemaMap")

// IsCircular reports whether err is a cycle signal.
func IsCircular(err error) bool {
	return errors.Is(err, ErrCircular)
}

// IsTooDeep reports whether err is a depth-exceeded signal.
func IsTooDeep(err error) bool {
	return errors.Is(err, ErrTooDeep)
}
