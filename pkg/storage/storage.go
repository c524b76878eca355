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

// Package storage defines the durable local byte-store the replicated
// document persists to. The engine treats the stored bytes as opaque; the
// encoding is owned by the replication dependency.
package storage

// Store is a durable local replica of the document.
type Store interface {
	// Load returns the last persisted snapshot, or nil if none exists.
	Load() ([]byte, error)

	// Save durably persists the given snapshot. A write rejected for
	// capacity returns a ResourceExhausted error carrying CodeStorageFull.
	Save(snapshot []byte) error

	// Synced is closed once the store is ready to serve loads.
	Synced() <-chan struct{}

	// Close releases the store.
	Close() error
}
