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

package migration

import (
	"sort"

	"github.com/yorkie-team/yorkie/pkg/document/json"
	"github.com/yorkie-team/yorkie/pkg/document/yson"

	"github.com/pagekeep-io/pagekeep/pkg/progress"
	"github.com/pagekeep-io/pagekeep/pkg/ranges"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

// step is one schema upgrade. Every apply function is idempotent: a crash
// between a step and the version write only means the step reruns.
type step struct {
	description string
	subtrees    []string
	apply       func(root *json.Object) error
}

var steps = map[int]step{
	2: {
		description: "drop malformed progress entries",
		subtrees:    []string{replica.SubtreeProgress},
		apply:       dropMalformedProgress,
	},
	3: {
		description: "normalize completed ranges",
		subtrees:    []string{replica.SubtreeProgress},
		apply:       normalizeCompletedRanges,
	},
	4: {
		description: "synthesize reading-list records",
		subtrees:    []string{replica.SubtreeReadingList},
		apply:       synthesizeReadingList,
	},
}

// dropMalformedProgress removes progress sub-records that predate field
// validation: entries that are not objects, lack a device key, or carry a
// percentage outside [0, 1].
func dropMalformedProgress(root *json.Object) error {
	prog := root.GetObject(replica.SubtreeProgress)
	if prog == nil {
		return nil
	}
	for _, bookID := range memberKeys(prog) {
		bookData, ok := memberObject(prog, bookID)
		if !ok {
			prog.Delete(bookID)
			continue
		}
		book := prog.GetObject(bookID)
		for deviceID := range bookData {
			entry, ok := bookData[deviceID].(yson.Object)
			if !ok || replica.StringOf(entry, "deviceId") == "" {
				book.Delete(deviceID)
				continue
			}
			if pct, ok := replica.FloatOf(entry, "percentage"); ok && (pct < 0 || pct > 1) {
				book.Delete(deviceID)
			}
		}
	}
	return nil
}

// normalizeCompletedRanges re-merges every stored completedRanges set so
// that it is sorted, non-overlapping and non-touching. Markers that no
// longer parse are dropped.
func normalizeCompletedRanges(root *json.Object) error {
	prog := root.GetObject(replica.SubtreeProgress)
	if prog == nil {
		return nil
	}
	for _, bookID := range memberKeys(prog) {
		bookData, ok := memberObject(prog, bookID)
		if !ok {
			continue
		}
		book := prog.GetObject(bookID)
		for deviceID := range bookData {
			entryData, ok := bookData[deviceID].(yson.Object)
			if !ok {
				continue
			}
			stored := replica.StringsOf(entryData, "completedRanges")
			if len(stored) == 0 {
				continue
			}
			normalized := ranges.Normalize(stored)
			if slicesEqual(stored, normalized) {
				continue
			}
			entry := book.GetObject(deviceID)
			entry.Delete("completedRanges")
			entry.SetNewArray("completedRanges").AddString(normalized...)
		}
	}
	return nil
}

// synthesizeReadingList backfills reading-list records for books that
// accumulated progress before the reading list existed. The freshest
// entry's percentage decides the status; library metadata fills title and
// author when present.
func synthesizeReadingList(root *json.Object) error {
	prog := root.GetObject(replica.SubtreeProgress)
	if prog == nil {
		return nil
	}
	rl := root.GetObject(replica.SubtreeReadingList)
	if rl == nil {
		rl = root.SetNewObject(replica.SubtreeReadingList)
	}
	lib := root.GetObject(replica.SubtreeLibrary)

	for _, bookID := range memberKeys(prog) {
		if rl.Has(bookID) {
			continue
		}
		bookData, ok := memberObject(prog, bookID)
		if !ok {
			continue
		}

		var pct float64
		var freshest int64
		var updated int64
		for _, v := range bookData {
			entry, ok := v.(yson.Object)
			if !ok {
				continue
			}
			lastRead, _ := replica.Int64Of(entry, "lastRead")
			if lastRead >= freshest {
				freshest = lastRead
				pct, _ = replica.FloatOf(entry, "percentage")
			}
			if lastRead > updated {
				updated = lastRead
			}
		}

		rec := rl.SetNewObject(bookID)
		if lib != nil && lib.Has(bookID) {
			if meta, ok := memberObject(lib, bookID); ok {
				rec.SetString("title", replica.StringOf(meta, "title"))
				rec.SetString("author", replica.StringOf(meta, "author"))
			}
		}
		rec.SetDouble("percentage", pct)
		rec.SetString("status", progress.StatusOf(pct))
		rec.SetLong("updated", updated)
	}
	return nil
}

// memberKeys snapshots the live member keys of an object so that entries
// can be deleted while iterating.
func memberKeys(obj *json.Object) []string {
	members := obj.Members()
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// memberObject reads a member as plain data without mutating it.
func memberObject(obj *json.Object, key string) (yson.Object, bool) {
	elem := obj.Get(key)
	if elem == nil {
		return nil, false
	}
	data, err := yson.FromCRDT(elem)
	if err != nil {
		return nil, false
	}
	o, ok := data.(yson.Object)
	return o, ok
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
