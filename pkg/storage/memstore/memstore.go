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

// Package memstore provides an in-memory Store for tests and ephemeral use.
package memstore

import (
	"sync"
)

// Store is an in-memory durable store. It supports failure injection so
// tests can exercise storage-full handling.
type Store struct {
	mu       sync.Mutex
	snapshot []byte
	saveErr  error
	synced   chan struct{}
	saves    int
}

// New creates an in-memory store that is immediately synced.
func New() *Store {
	s := &Store{synced: make(chan struct{})}
	close(s.synced)
	return s
}

// Load returns the last saved snapshot.
func (s *Store) Load() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil, nil
	}
	out := make([]byte, len(s.snapshot))
	copy(out, s.snapshot)
	return out, nil
}

// Save stores the snapshot, or fails with the injected error.
func (s *Store) Save(snapshot []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshot = make([]byte, len(snapshot))
	copy(s.snapshot, snapshot)
	s.saves++
	return nil
}

// Synced reports store readiness; an in-memory store is always ready.
func (s *Store) Synced() <-chan struct{} {
	return s.synced
}

// Close releases the store.
func (s *Store) Close() error {
	return nil
}

// FailSaves makes every subsequent Save return the given error.
func (s *Store) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// Saves returns how many saves have been persisted.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
