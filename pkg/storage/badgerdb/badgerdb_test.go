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

package badgerdb_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pagekeep-io/pagekeep/pkg/storage/badgerdb"
)

func TestStore(t *testing.T) {
	t.Run("save and load test", func(t *testing.T) {
		store, err := badgerdb.Open(t.TempDir())
		assert.NoError(t, err)
		defer func() { assert.NoError(t, store.Close()) }()

		<-store.Synced()

		// Empty store loads nil without error.
		snapshot, err := store.Load()
		assert.NoError(t, err)
		assert.Nil(t, snapshot)

		assert.NoError(t, store.Save([]byte("snap-1")))
		assert.NoError(t, store.Save([]byte("snap-2")))

		snapshot, err = store.Load()
		assert.NoError(t, err)
		assert.Equal(t, []byte("snap-2"), snapshot)
	})

	t.Run("snapshot survives reopen test", func(t *testing.T) {
		dir := t.TempDir()

		store, err := badgerdb.Open(dir)
		assert.NoError(t, err)
		assert.NoError(t, store.Save([]byte("durable")))
		assert.NoError(t, store.Close())

		store, err = badgerdb.Open(dir)
		assert.NoError(t, err)
		defer func() { assert.NoError(t, store.Close()) }()

		snapshot, err := store.Load()
		assert.NoError(t, err)
		assert.Equal(t, []byte("durable"), snapshot)
	})
}
