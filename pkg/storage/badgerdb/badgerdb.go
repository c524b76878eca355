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

// Package badgerdb provides a Badger-backed durable store for the local
// document replica.
package badgerdb

import (
	"errors"

	"github.com/dgraph-io/badger/v4"

	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
)

var snapshotKey = []byte("replica/snapshot")

// Store persists document snapshots in an embedded Badger database.
type Store struct {
	db     *badger.DB
	synced chan struct{}
}

// Open opens or creates the store under the given directory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, pkerrors.Unavailable("open durable store: " + err.Error())
	}

	s := &Store{db: db, synced: make(chan struct{})}
	close(s.synced)
	return s, nil
}

// Load returns the last persisted snapshot, or nil if none exists.
func (s *Store) Load() ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkerrors.Unavailable("load snapshot: " + err.Error())
	}
	return out, nil
}

// Save durably persists the snapshot.
func (s *Store) Save(snapshot []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey, snapshot)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrTxnTooBig) {
		return pkerrors.ResourceExhausted("durable store rejected write: " + err.Error()).
			WithCode(pkerrors.CodeStorageFull)
	}
	return pkerrors.Unavailable("save snapshot: " + err.Error())
}

// Synced reports store readiness.
func (s *Store) Synced() <-chan struct{} {
	return s.synced
}

// Close releases the store.
func (s *Store) Close() error {
	return s.db.Close()
}
