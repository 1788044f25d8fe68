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

package denorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoh/redux-io/pkg/denorm"
	"github.com/taoh/redux-io/pkg/descriptor"
	"github.com/taoh/redux-io/pkg/schemamap"
	"github.com/taoh/redux-io/pkg/status"
)

// countingResolver wraps the default graph resolver and counts Resolve calls
// so tests can tell a cache hit from a re-resolution.
type countingResolver struct {
	denorm.GraphResolver
	calls int
}

func (r *countingResolver) Resolve(ctx *denorm.Context, desc descriptor.Descriptor, sm schemamap.Map, maxDepth int) (map[string]any, error) {
	r.calls++
	return r.GraphResolver.Resolve(ctx, desc, sm, maxDepth)
}

func userRecord(id, friendID string, stamp int64) map[string]any {
	rec := map[string]any{
		"id":   id,
		"type": "user",
		"attributes": map[string]any{
			"name": "user-" + id,
		},
		status.Key: &status.Status{Schema: "user", Kind: status.KindItem, ID: id, ModifiedAt: stamp},
	}
	if friendID != "" {
		rec["relationships"] = map[string]any{
			"friend": map[string]any{
				"data": map[string]any{"id": friendID, "type": "user"},
			},
		}
	}
	return rec
}

func postRecord(id, authorID string, stamp int64) map[string]any {
	return map[string]any{
		"id":   id,
		"type": "post",
		"attributes": map[string]any{
			"title": "post-" + id,
		},
		"relationships": map[string]any{
			"author": map[string]any{
				"data": map[string]any{"id": authorID, "type": "user"},
			},
		},
		status.Key: &status.Status{Schema: "post", Kind: status.KindItem, ID: id, ModifiedAt: stamp},
	}
}

// testState holds users 1 and 2 in a mutual friend cycle, user 3 as its own
// friend, users 4 and 5 without relationships, and a post by user 4.
func testState() map[string]any {
	return map[string]any{
		"users": map[string]any{
			"1": userRecord("1", "2", 100),
			"2": userRecord("2", "1", 110),
			"3": userRecord("3", "3", 120),
			"4": userRecord("4", "", 130),
			"5": userRecord("5", "", 140),
		},
		"posts": map[string]any{
			"10": postRecord("10", "4", 200),
		},
	}
}

func newTestDenormalizer(t *testing.T, state map[string]any, opts ...denorm.Option) (*denorm.Denormalizer, *countingResolver) {
	t.Helper()
	counter := &countingResolver{}
	opts = append(opts,
		denorm.WithStorage(func() map[string]any { return state }, schemamap.PathMap{
			"user": "users",
			"post": "posts",
		}),
		denorm.WithResolver(func(source denorm.ItemSource) denorm.GraphResolver {
			counter.GraphResolver = denorm.NewGraphResolver(source)
			return counter
		}),
	)
	d, err := denorm.New(opts...)
	require.NoError(t, err)
	return d, counter
}

var (
	descUser4 = descriptor.Descriptor{ID: "4", Type: "user"}
	descPost  = descriptor.Descriptor{ID: "10", Type: "post"}
)

func TestNew(t *testing.T) {
	t.Run("find-storage requires paths", func(t *testing.T) {
		_, err := denorm.New(denorm.WithStorage(func() map[string]any { return nil }, nil))
		assert.Error(t, err)
	})

	t.Run("rejects invalid depth limit", func(t *testing.T) {
		_, err := denorm.New(denorm.WithDepthLimit(-5))
		assert.Error(t, err)
	})
}

func TestDenormalizeItem(t *testing.T) {
	state := testState()
	d, _ := newTestDenormalizer(t, state)

	got, err := d.DenormalizeItem(descPost)
	require.NoError(t, err)

	assert.Equal(t, "10", got["id"])
	assert.Equal(t, "post", got["type"])
	assert.Equal(t, "post-10", got["title"])

	author, ok := got["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "4", author["id"])
	assert.Equal(t, "user-4", author["name"])

	// The output status is an independent clone of the record's.
	recordStatus := status.Get(state["posts"].(map[string]any)["10"])
	outStatus := status.Get(got)
	require.NotNil(t, outStatus)
	assert.Equal(t, recordStatus.ModifiedAt, outStatus.ModifiedAt)
	assert.NotSame(t, recordStatus, outStatus)
}

func TestDenormalizeItemMissingRecord(t *testing.T) {
	d, counter := newTestDenormalizer(t, testState())

	got, err := d.DenormalizeItem(descriptor.Descriptor{ID: "404", Type: "user"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "404", "type": "user"}, got)

	// A bare descriptor never enters the cache.
	calls := counter.calls
	_, err = d.DenormalizeItem(descriptor.Descriptor{ID: "404", Type: "user"})
	require.NoError(t, err)
	assert.Greater(t, counter.calls, calls)
}

func TestDenormalizeItemIdempotent(t *testing.T) {
	d, counter := newTestDenormalizer(t, testState())

	first, err := d.DenormalizeItem(descPost)
	require.NoError(t, err)
	calls := counter.calls
	require.Positive(t, calls)

	second, err := d.DenormalizeItem(descPost)
	require.NoError(t, err)
	assert.Equal(t, calls, counter.calls, "second call must be served from cache")
	assert.Equal(t, first, second)
}

func TestDenormalizeItemRecordChanged(t *testing.T) {
	state := testState()
	d, counter := newTestDenormalizer(t, state)

	first, err := d.DenormalizeItem(descUser4)
	require.NoError(t, err)
	assert.Equal(t, "user-4", first["name"])
	calls := counter.calls

	replaced := userRecord("4", "", 131)
	replaced["attributes"].(map[string]any)["name"] = "renamed"
	state["users"].(map[string]any)["4"] = replaced

	second, err := d.DenormalizeItem(descUser4)
	require.NoError(t, err)
	assert.Greater(t, counter.calls, calls, "changed record must force re-resolution")
	assert.Equal(t, "renamed", second["name"])
}

func TestDenormalizeItemDepthBound(t *testing.T) {
	d, counter := newTestDenormalizer(t, testState())

	t.Run("zero keeps relationships bare", func(t *testing.T) {
		got, err := d.DenormalizeItem(descPost, denorm.WithMaxDepth(0))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "4", "type": "user"}, got["author"])

		// A graph cut short by the depth bound is never cached.
		calls := counter.calls
		_, err = d.DenormalizeItem(descPost, denorm.WithMaxDepth(0))
		require.NoError(t, err)
		assert.Greater(t, counter.calls, calls)
	})

	t.Run("one expands the relationship", func(t *testing.T) {
		got, err := d.DenormalizeItem(descPost, denorm.WithMaxDepth(1))
		require.NoError(t, err)
		author := got["author"].(map[string]any)
		assert.Equal(t, "user-4", author["name"])
	})
}

func TestDenormalizeItemDepthCoverage(t *testing.T) {
	d, counter := newTestDenormalizer(t, testState())

	_, err := d.DenormalizeItem(descPost, denorm.WithMaxDepth(2))
	require.NoError(t, err)
	calls := counter.calls

	// A shallower request is covered by the cached bound.
	_, err = d.DenormalizeItem(descPost, denorm.WithMaxDepth(1))
	require.NoError(t, err)
	assert.Equal(t, calls, counter.calls)

	// A deeper one is not.
	_, err = d.DenormalizeItem(descPost, denorm.WithMaxDepth(3))
	require.NoError(t, err)
	assert.Greater(t, counter.calls, calls)

	// Neither is an unbounded one.
	calls = counter.calls
	_, err = d.DenormalizeItem(descPost, denorm.WithMaxDepth(denorm.Unlimited))
	require.NoError(t, err)
	assert.Greater(t, counter.calls, calls)
}

func TestDenormalizeItemSelfCycle(t *testing.T) {
	d, counter := newTestDenormalizer(t, testState())

	got, err := d.DenormalizeItem(descriptor.Descriptor{ID: "3", Type: "user"})
	require.NoError(t, err)
	assert.Equal(t, "user-3", got["name"])
	assert.Equal(t, map[string]any{"id": "3", "type": "user"}, got["friend"])

	// A result that closed a cycle over its own descriptor is not cached.
	calls := counter.calls
	_, err = d.DenormalizeItem(descriptor.Descriptor{ID: "3", Type: "user"})
	require.NoError(t, err)
	assert.Greater(t, counter.calls, calls)
}

func TestDenormalizeItemMutualCycle(t *testing.T) {
	d, counter := newTestDenormalizer(t, testState())

	got, err := d.DenormalizeItem(descriptor.Descriptor{ID: "1", Type: "user"})
	require.NoError(t, err)

	friend := got["friend"].(map[string]any)
	assert.Equal(t, "user-2", friend["name"])
	// The cycle closes back on user 1 with its bare descriptor.
	assert.Equal(t, map[string]any{"id": "1", "type": "user"}, friend["friend"])

	calls := counter.calls
	_, err = d.DenormalizeItem(descriptor.Descriptor{ID: "1", Type: "user"})
	require.NoError(t, err)
	assert.Greater(t, counter.calls, calls)
}

func TestDenormalizeItemCacheChildObjects(t *testing.T) {
	d, counter := newTestDenormalizer(t, testState(), denorm.CacheChildObjects())

	_, err := d.DenormalizeItem(descPost)
	require.NoError(t, err)
	calls := counter.calls

	// The author was cached as a child of the post.
	_, err = d.DenormalizeItem(descUser4)
	require.NoError(t, err)
	assert.Equal(t, calls, counter.calls)
}

func TestDenormalizeOne(t *testing.T) {
	t.Run("nil reference", func(t *testing.T) {
		d, _ := newTestDenormalizer(t, testState())
		got, err := d.DenormalizeOne(nil)
		require.NoError(t, err)
		assert.Nil(t, got)

		var ref *denorm.One
		got, err = d.DenormalizeOne(ref)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("structured reference", func(t *testing.T) {
		d, counter := newTestDenormalizer(t, testState())
		ref := &denorm.One{
			Value:  "4",
			Status: &status.Status{Schema: "user", Kind: status.KindOne, ModifiedAt: 500},
		}

		got, err := d.DenormalizeOne(ref)
		require.NoError(t, err)
		assert.Equal(t, "user-4", got["name"])

		// The combined status is an independent clone of the reference's,
		// not the item's.
		outStatus := status.Get(got)
		require.NotNil(t, outStatus)
		assert.Equal(t, int64(500), outStatus.ModifiedAt)
		assert.Equal(t, status.KindOne, outStatus.Kind)
		assert.NotSame(t, ref.Status, outStatus)

		calls := counter.calls
		again, err := d.DenormalizeOne(ref)
		require.NoError(t, err)
		assert.Equal(t, calls, counter.calls, "unchanged reference must hit the one cache")
		assert.Equal(t, got, again)
	})

	t.Run("changed reference stamp recombines", func(t *testing.T) {
		d, _ := newTestDenormalizer(t, testState())
		ref := &denorm.One{
			Value:  "4",
			Status: &status.Status{Schema: "user", Kind: status.KindOne, ModifiedAt: 500},
		}
		_, err := d.DenormalizeOne(ref)
		require.NoError(t, err)

		ref.Status = &status.Status{Schema: "user", Kind: status.KindOne, ModifiedAt: 501}
		got, err := d.DenormalizeOne(ref)
		require.NoError(t, err)
		assert.Equal(t, int64(501), status.Get(got).ModifiedAt)
	})

	t.Run("primitive id", func(t *testing.T) {
		d, _ := newTestDenormalizer(t, testState())
		got, err := d.DenormalizeOne("4", denorm.WithSchema("user"))
		require.NoError(t, err)
		assert.Equal(t, "user-4", got["name"])
	})

	t.Run("primitive id without schema", func(t *testing.T) {
		d, _ := newTestDenormalizer(t, testState())
		_, err := d.DenormalizeOne("4")
		assert.True(t, descriptor.IsMissingSchema(err))
	})

	t.Run("reference without schema", func(t *testing.T) {
		d, _ := newTestDenormalizer(t, testState())
		_, err := d.DenormalizeOne(&denorm.One{Value: "4"})
		assert.True(t, descriptor.IsMissingSchema(err))
	})
}

func TestDenormalizeCollection(t *testing.T) {
	t.Run("nil collection", func(t *testing.T) {
		d, _ := newTestDenormalizer(t, testState())
		got, err := d.DenormalizeCollection(nil)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ordered members and cached second call", func(t *testing.T) {
		d, counter := newTestDenormalizer(t, testState())
		coll := &denorm.Collection{
			IDs: []any{"5", "4"},
			Status: &status.Status{
				Schema: "user", Kind: status.KindCollection, Tag: "leaves", ModifiedAt: 300,
			},
		}

		got, err := d.DenormalizeCollection(coll)
		require.NoError(t, err)
		require.Len(t, got.Items, 2)
		assert.Equal(t, "5", got.Items[0]["id"])
		assert.Equal(t, "4", got.Items[1]["id"])
		require.NotNil(t, got.Status)
		assert.Equal(t, "leaves", got.Status.Tag)
		assert.NotSame(t, coll.Status, got.Status)

		calls := counter.calls
		again, err := d.DenormalizeCollection(coll)
		require.NoError(t, err)
		assert.Equal(t, calls, counter.calls)
		assert.Same(t, got, again)
	})

	t.Run("member change invalidates", func(t *testing.T) {
		state := testState()
		d, counter := newTestDenormalizer(t, state)
		coll := &denorm.Collection{
			IDs:    []any{"4"},
			Status: &status.Status{Schema: "user", Kind: status.KindCollection, ModifiedAt: 300},
		}
		_, err := d.DenormalizeCollection(coll)
		require.NoError(t, err)

		state["users"].(map[string]any)["4"] = userRecord("4", "", 131)
		calls := counter.calls
		_, err = d.DenormalizeCollection(coll)
		require.NoError(t, err)
		assert.Greater(t, counter.calls, calls)
	})

	t.Run("plain id slice with schema", func(t *testing.T) {
		d, _ := newTestDenormalizer(t, testState())
		got, err := d.DenormalizeCollection([]string{"4", "5"}, denorm.WithSchema("user"))
		require.NoError(t, err)
		require.Len(t, got.Items, 2)
		assert.Nil(t, got.Status)
	})

	t.Run("without schema", func(t *testing.T) {
		d, _ := newTestDenormalizer(t, testState())
		_, err := d.DenormalizeCollection([]any{"4"})
		assert.True(t, descriptor.IsMissingSchema(err))
	})

	t.Run("cyclic member is not cached", func(t *testing.T) {
		d, counter := newTestDenormalizer(t, testState())
		coll := &denorm.Collection{
			IDs:    []any{"3"},
			Status: &status.Status{Schema: "user", Kind: status.KindCollection, ModifiedAt: 310},
		}
		got, err := d.DenormalizeCollection(coll)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": "3", "type": "user"}, got.Items[0]["friend"])

		calls := counter.calls
		_, err = d.DenormalizeCollection(coll)
		require.NoError(t, err)
		assert.Greater(t, counter.calls, calls)
	})
}

func TestProvideStorageMode(t *testing.T) {
	d, err := denorm.New()
	require.NoError(t, err)

	_, err = d.DenormalizeItem(descUser4)
	assert.ErrorIs(t, err, denorm.ErrNoSchemaMap)

	sm := schemamap.Map{"user": map[string]any{"4": userRecord("4", "", 130)}}
	got, err := d.DenormalizeItem(descUser4, denorm.WithSchemaMap(sm))
	require.NoError(t, err)
	assert.Equal(t, "user-4", got["name"])
}

func TestFlushCache(t *testing.T) {
	d, counter := newTestDenormalizer(t, testState())

	_, err := d.DenormalizeItem(descUser4)
	require.NoError(t, err)
	d.FlushCache()

	calls := counter.calls
	_, err = d.DenormalizeItem(descUser4)
	require.NoError(t, err)
	assert.Greater(t, counter.calls, calls)
}

func TestSetNestingDepthLimit(t *testing.T) {
	d, _ := newTestDenormalizer(t, testState())
	d.SetNestingDepthLimit(0)

	got, err := d.DenormalizeItem(descPost)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "4", "type": "user"}, got["author"])
}

func TestInvalidateSchemaMap(t *testing.T) {
	state := testState()
	d, _ := newTestDenormalizer(t, state)

	_, err := d.DenormalizeItem(descUser4)
	require.NoError(t, err)

	// Swapping the users container in place is invisible to the memoized
	// schema map until it is invalidated.
	replaced := userRecord("4", "", 131)
	replaced["attributes"].(map[string]any)["name"] = "rebuilt"
	state["users"] = map[string]any{"4": replaced}
	d.InvalidateSchemaMap()

	got, err := d.DenormalizeItem(descUser4)
	require.NoError(t, err)
	assert.Equal(t, "rebuilt", got["name"])
}
