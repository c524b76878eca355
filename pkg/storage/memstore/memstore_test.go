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

package memstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/storage/memstore"
)

func TestStore(t *testing.T) {
	t.Run("save and load test", func(t *testing.T) {
		store := memstore.New()
		<-store.Synced()

		snapshot, err := store.Load()
		assert.NoError(t, err)
		assert.Nil(t, snapshot)

		assert.NoError(t, store.Save([]byte("snap")))
		assert.Equal(t, 1, store.Saves())

		snapshot, err = store.Load()
		assert.NoError(t, err)
		assert.Equal(t, []byte("snap"), snapshot)
	})

	t.Run("failure injection test", func(t *testing.T) {
		store := memstore.New()
		assert.NoError(t, store.Save([]byte("snap")))

		full := pkerrors.ResourceExhausted("store is full").WithCode(pkerrors.CodeStorageFull)
		store.FailSaves(full)

		err := store.Save([]byte("rejected"))
		assert.True(t, pkerrors.IsCode(err, pkerrors.CodeStorageFull))

		// The last good snapshot is untouched.
		snapshot, err := store.Load()
		assert.NoError(t, err)
		assert.Equal(t, []byte("snap"), snapshot)
	})
}
