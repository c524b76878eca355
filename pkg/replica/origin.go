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

// Origin identifies what caused a transaction on the document. It is a
// closed set carried explicitly with every transaction so observers can
// tell local user edits apart from replication noise.
type Origin int

const (
	// OriginLocal marks a transaction triggered by a local user action.
	OriginLocal Origin = iota

	// OriginRemote marks changes merged from a remote replica.
	OriginRemote

	// OriginStorage marks hydration from the local durable replica.
	OriginStorage

	// OriginRestore marks a transaction generated by time travel or undo.
	OriginRestore
)

// String returns the textual form of the origin.
func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginRemote:
		return "remote"
	case OriginStorage:
		return "storage"
	case OriginRestore:
		return "restore"
	default:
		return "unknown"
	}
}
