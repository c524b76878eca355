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

// Package ranges merges position-range markers into a minimal sorted set of
// non-overlapping, non-touching spans. It is the algorithm behind the
// completedRanges field of a progress entry.
package ranges

import (
	"sort"

	"github.com/pagekeep-io/pagekeep/pkg/cfi"
)

// Merge inserts the given marker into an existing sorted, non-overlapping
// marker set and returns a new minimal set covering the union. The existing
// set must hold the stored-set invariant; the inserted marker may arrive in
// any order relative to previous insertions.
//
// The common "reading forward" case, where the new range lands at or after
// the last stored range, is handled in O(1). Everything else falls back to
// a binary search over the affected neighborhood.
func Merge(existing []string, marker string) ([]string, error) {
	in, err := cfi.ParseRange(marker)
	if err != nil {
		return nil, err
	}

	if len(existing) == 0 {
		return []string{in.Marker()}, nil
	}

	last, err := cfi.ParseRange(existing[len(existing)-1])
	if err != nil {
		return nil, err
	}

	// Fast path: insertion at or after the tail.
	if last.End.Compare(in.Start) < 0 {
		out := make([]string, len(existing), len(existing)+1)
		copy(out, existing)
		return append(out, in.Marker()), nil
	}
	if last.Start.Compare(in.Start) <= 0 && (last.Overlaps(in) || last.Touches(in)) {
		if last.Contains(in) {
			return existing, nil
		}
		out := make([]string, len(existing))
		copy(out, existing)
		out[len(out)-1] = last.Union(in).Marker()
		return out, nil
	}

	// Slow path: locate the affected neighborhood and fuse every range that
	// overlaps or touches the insertion, possibly bridging several spans.
	parsed := make([]cfi.Range, len(existing))
	for i, m := range existing {
		if parsed[i], err = cfi.ParseRange(m); err != nil {
			return nil, err
		}
	}

	lo := sort.Search(len(parsed), func(i int) bool {
		return parsed[i].End.Compare(in.Start) >= 0
	})

	merged := in
	hi := lo
	for hi < len(parsed) && (parsed[hi].Overlaps(merged) || parsed[hi].Touches(merged)) {
		merged = merged.Union(parsed[hi])
		hi++
	}

	if lo == hi {
		// No neighbor fuses with the insertion; splice it in.
		out := make([]string, 0, len(existing)+1)
		out = append(out, existing[:lo]...)
		out = append(out, in.Marker())
		return append(out, existing[lo:]...), nil
	}

	if hi-lo == 1 && parsed[lo].Contains(in) {
		return existing, nil
	}

	out := make([]string, 0, len(existing)-(hi-lo)+1)
	out = append(out, existing[:lo]...)
	out = append(out, merged.Marker())
	return append(out, existing[hi:]...), nil
}

// Normalize rebuilds an arbitrary marker set into the minimal sorted,
// non-overlapping form, dropping markers that fail to parse. Used by schema
// migrations to repair historical data.
func Normalize(markers []string) []string {
	out := []string{}
	for _, m := range markers {
		next, err := Merge(out, m)
		if err != nil {
			continue
		}
		out = next
	}
	return out
}

// Covered reports whether the marker set fully covers the given range.
func Covered(markers []string, marker string) (bool, error) {
	in, err := cfi.ParseRange(marker)
	if err != nil {
		return false, err
	}
	for _, m := range markers {
		r, err := cfi.ParseRange(m)
		if err != nil {
			return false, err
		}
		if r.Contains(in) {
			return true, nil
		}
	}
	return false, nil
}
