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
	"github.com/taoh/redux-io/pkg/descriptor"
	"github.com/taoh/redux-io/pkg/status"
)

// One is a structured single reference: an inner id plus the reference
// slot's own status. The slot status describes the reference (loading or
// error state, schema), which is distinct from the status of the item it
// points to.
type One struct {
	Value  any
	Status *status.Status
}

var _ descriptor.Reference = (*One)(nil)

func (o *One) GetStatus() *status.Status { return o.Status }
func (o *One) RefValue() any             { return o.Value }

// Collection is the normalized input shape for DenormalizeCollection: an
// ordered id list with the collection's status.
type Collection struct {
	IDs    []any
	Status *status.Status
}

var _ status.Carrier = (*Collection)(nil)

func (c *Collection) GetStatus() *status.Status { return c.Status }

// CollectionResult is the denormalized output of a collection: the resolved
// members in input order, plus a clone of the input collection's status when
// it carried one (nil otherwise — statusless results are never cached since
// there is no key to validate them against later).
type CollectionResult struct {
	Items  []map[string]any
	Status *status.Status
}

var _ status.Carrier = (*CollectionResult)(nil)

func (c *CollectionResult) GetStatus() *status.Status { return c.Status }
