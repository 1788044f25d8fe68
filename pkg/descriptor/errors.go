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

package descriptor

import "errors"

// MissingSchemaError indicates that no schema was supplied and none could be
// inferred from status metadata. It is fatal and surfaced to the caller
// unchanged.
type MissingSchemaError struct {
	// Input names the shape being described: "collection", "one reference",
	// or "primitive id".
	Input string
}

func (e *MissingSchemaError) Error() string {
	return "no schema for " + e.Input + ": not present in status metadata and no explicit schema given"
}

// IsMissingSchema reports whether err (or any error in its chain) is a
// MissingSchemaError.
func IsMissingSchema(err error) bool {
	var mse *MissingSchemaError
	return errors.As(err, &mse)
}
