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

package rewind

import (
	"sort"
	gotime "time"

	"github.com/yorkie-team/yorkie/pkg/document/crdt"
	"github.com/yorkie-team/yorkie/pkg/document/json"
	"github.com/yorkie-team/yorkie/pkg/document/time"
	"github.com/yorkie-team/yorkie/pkg/document/yson"

	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

// restoreVector rebuilds the historical document at vv and deep-applies
// every tracked subtree onto the live document in a single
// restore-origin transaction. Materialization happens before any live
// mutation; a failure there leaves the document untouched.
func restoreVector(h *replica.Handle, vv time.VersionVector, message string) error {
	historical, err := h.MaterializeAt(vv)
	if err != nil {
		return err
	}

	return h.Update(
		replica.OriginRestore,
		TrackedSubtrees,
		message,
		func(root *json.Object) error {
			for _, name := range TrackedSubtrees {
				var data yson.Object
				if v, ok := historical[name]; ok {
					data, _ = v.(yson.Object)
				}
				applySubtree(root, name, data)
			}
			return nil
		},
	)
}

// applySubtree overwrites one live top-level subtree with its historical
// contents. A nil history means the subtree did not exist yet; its live
// members are cleared rather than the subtree removed, so the scaffolding
// other stores rely on stays in place.
func applySubtree(root *json.Object, name string, data yson.Object) {
	live := root.GetObject(name)
	if live == nil {
		live = root.SetNewObject(name)
	}
	if data == nil {
		data = yson.Object{}
	}
	applyObject(live, data)
}

// applyObject recursively reconciles a live map with historical data.
// Keys absent historically are deleted; nested maps recurse; sequences
// and primitives are replaced wholesale.
func applyObject(live *json.Object, data yson.Object) {
	for _, k := range liveKeys(live) {
		if _, ok := data[k]; !ok {
			live.Delete(k)
		}
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := data[k].(type) {
		case yson.Object:
			child := liveChildObject(live, k)
			applyObject(child, v)
		case yson.Array:
			if live.Has(k) {
				live.Delete(k)
			}
			applyArray(live.SetNewArray(k), v)
		default:
			applyPrimitive(live, k, v)
		}
	}
}

// liveChildObject returns the live nested map at k, replacing whatever
// non-map element occupies the key.
func liveChildObject(live *json.Object, k string) *json.Object {
	if elem := live.Get(k); elem != nil {
		if _, ok := elem.(*crdt.Object); ok {
			return live.GetObject(k)
		}
		live.Delete(k)
	}
	return live.SetNewObject(k)
}

func applyArray(arr *json.Array, items yson.Array) {
	for _, item := range items {
		switch v := item.(type) {
		case string:
			arr.AddString(v)
		case bool:
			arr.AddBool(v)
		case int32:
			arr.AddInteger(int(v))
		case int64:
			arr.AddLong(v)
		case float64:
			arr.AddDouble(v)
		case gotime.Time:
			arr.AddDate(v)
		case []byte:
			arr.AddBytes(v)
		case nil:
			arr.AddNull()
		}
	}
}

func applyPrimitive(live *json.Object, k string, v interface{}) {
	switch pv := v.(type) {
	case string:
		live.SetString(k, pv)
	case bool:
		live.SetBool(k, pv)
	case int32:
		live.SetInteger(k, int(pv))
	case int64:
		live.SetLong(k, pv)
	case float64:
		live.SetDouble(k, pv)
	case gotime.Time:
		live.SetDate(k, pv)
	case []byte:
		live.SetBytes(k, pv)
	case nil:
		live.SetNull(k)
	}
}

// liveKeys snapshots member keys so deletion during iteration is safe.
func liveKeys(live *json.Object) []string {
	members := live.Members()
	keys := make([]string, 0, len(members))
	for k := range members {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
