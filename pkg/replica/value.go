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

package replica

import (
	"github.com/yorkie-team/yorkie/pkg/document/yson"
)

// Decoding helpers for plain nested data returned by Root, SubtreeData and
// MaterializeAt. Numeric primitives may come back as any integer or float
// width depending on how they were written.

// StringOf returns the string value under the key, or "" if absent.
func StringOf(obj yson.Object, key string) string {
	s, _ := obj[key].(string)
	return s
}

// FloatOf returns the numeric value under the key as a float64.
func FloatOf(obj yson.Object, key string) (float64, bool) {
	switch v := obj[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int64Of returns the numeric value under the key as an int64.
func Int64Of(obj yson.Object, key string) (int64, bool) {
	switch v := obj[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// IntOf returns the numeric value under the key as an int.
func IntOf(obj yson.Object, key string) (int, bool) {
	v, ok := Int64Of(obj, key)
	return int(v), ok
}

// BoolOf returns the boolean value under the key.
func BoolOf(obj yson.Object, key string) bool {
	b, _ := obj[key].(bool)
	return b
}

// ObjectOf returns the nested object under the key, or nil.
func ObjectOf(obj yson.Object, key string) yson.Object {
	o, _ := obj[key].(yson.Object)
	return o
}

// StringsOf returns the array under the key as a string slice, skipping
// non-string members.
func StringsOf(obj yson.Object, key string) []string {
	arr, ok := obj[key].(yson.Array)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
