/*
 * Copyright 2025 The Pagekeep Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ranges_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pagekeep-io/pagekeep/pkg/cfi"
	"github.com/pagekeep-io/pagekeep/pkg/ranges"
)

// span renders a numeric character span as a canonical range marker.
func span(start, end int) string {
	return fmt.Sprintf("/2:%d~/2:%d", start, end)
}

func TestMerge(t *testing.T) {
	t.Run("insert into empty set test", func(t *testing.T) {
		out, err := ranges.Merge(nil, span(0, 10))
		assert.NoError(t, err)
		assert.Equal(t, []string{span(0, 10)}, out)
	})

	t.Run("overlap extends and fast append test", func(t *testing.T) {
		set := []string{span(0, 10), span(20, 30)}

		out, err := ranges.Merge(set, span(25, 35))
		assert.NoError(t, err)
		assert.Equal(t, []string{span(0, 10), span(20, 35)}, out)

		out, err = ranges.Merge(out, span(40, 50))
		assert.NoError(t, err)
		assert.Equal(t, []string{span(0, 10), span(20, 35), span(40, 50)}, out)
	})

	t.Run("touching ranges fuse test", func(t *testing.T) {
		out, err := ranges.Merge([]string{span(0, 10)}, span(10, 20))
		assert.NoError(t, err)
		assert.Equal(t, []string{span(0, 20)}, out)
	})

	t.Run("duplicate insertion is a no-op test", func(t *testing.T) {
		set := []string{span(0, 10), span(20, 30)}
		out, err := ranges.Merge(set, span(20, 30))
		assert.NoError(t, err)
		assert.Equal(t, set, out)
	})

	t.Run("contained insertion is a no-op test", func(t *testing.T) {
		set := []string{span(0, 10), span(20, 50)}
		out, err := ranges.Merge(set, span(25, 35))
		assert.NoError(t, err)
		assert.Equal(t, set, out)

		out, err = ranges.Merge(set, span(2, 8))
		assert.NoError(t, err)
		assert.Equal(t, set, out)
	})

	t.Run("bridging fuses several ranges test", func(t *testing.T) {
		set := []string{span(0, 10), span(20, 30), span(40, 50), span(60, 70)}
		out, err := ranges.Merge(set, span(5, 45))
		assert.NoError(t, err)
		assert.Equal(t, []string{span(0, 50), span(60, 70)}, out)
	})

	t.Run("backward insertion test", func(t *testing.T) {
		set := []string{span(40, 50)}
		out, err := ranges.Merge(set, span(0, 10))
		assert.NoError(t, err)
		assert.Equal(t, []string{span(0, 10), span(40, 50)}, out)

		out, err = ranges.Merge(out, span(20, 30))
		assert.NoError(t, err)
		assert.Equal(t, []string{span(0, 10), span(20, 30), span(40, 50)}, out)
	})

	t.Run("unparsable marker test", func(t *testing.T) {
		_, err := ranges.Merge(nil, "not a marker")
		assert.Error(t, err)
	})

	t.Run("stored-set invariant holds for random insertions test", func(t *testing.T) {
		r := rand.New(rand.NewSource(42))
		var set []string
		var err error
		for i := 0; i < 200; i++ {
			start := r.Intn(1000)
			end := start + 1 + r.Intn(50)
			set, err = ranges.Merge(set, span(start, end))
			assert.NoError(t, err)
			assertInvariant(t, set)
		}
	})
}

// assertInvariant checks the stored set is sorted, non-overlapping and
// non-touching.
func assertInvariant(t *testing.T, set []string) {
	t.Helper()
	for i := 0; i < len(set)-1; i++ {
		a, err := cfi.ParseRange(set[i])
		assert.NoError(t, err)
		b, err := cfi.ParseRange(set[i+1])
		assert.NoError(t, err)
		assert.True(t, a.End.Before(b.Start), "%s then %s", set[i], set[i+1])
	}
}

func TestNormalize(t *testing.T) {
	t.Run("rebuilds overlapping historical data test", func(t *testing.T) {
		out := ranges.Normalize([]string{
			span(20, 30),
			span(0, 10),
			"garbage",
			span(5, 25),
		})
		assert.Equal(t, []string{span(0, 30)}, out)
	})

	t.Run("already minimal set is unchanged test", func(t *testing.T) {
		set := []string{span(0, 10), span(20, 30)}
		assert.Equal(t, set, ranges.Normalize(set))
	})
}

func TestCovered(t *testing.T) {
	set := []string{span(0, 10), span(20, 50)}

	covered, err := ranges.Covered(set, span(25, 35))
	assert.NoError(t, err)
	assert.True(t, covered)

	covered, err = ranges.Covered(set, span(5, 25))
	assert.NoError(t, err)
	assert.False(t, covered)
}
