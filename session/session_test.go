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

package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yorkie-team/yorkie/pkg/document/json"

	"github.com/pagekeep-io/pagekeep/internal/config"
	"github.com/pagekeep-io/pagekeep/pkg/device"
	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/library"
	"github.com/pagekeep-io/pagekeep/pkg/migration"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
	"github.com/pagekeep-io/pagekeep/pkg/storage/memstore"
	"github.com/pagekeep-io/pagekeep/session"
)

var testFP = device.Fingerprint{
	Platform:  "macOS",
	Browser:   "Safari",
	UserAgent: "test-agent",
}

func TestOpen(t *testing.T) {
	t.Run("offline session lifecycle test", func(t *testing.T) {
		store := memstore.New()
		s, err := session.Open(context.Background(), nil, session.Deps{
			Store:       store,
			DeviceID:    "device-a",
			Fingerprint: testFP,
		})
		assert.NoError(t, err)
		defer func() { assert.NoError(t, s.Close()) }()

		assert.Nil(t, s.Syncer)
		assert.False(t, s.Quarantined())
		assert.Equal(t, migration.StateUpToDate, s.Migration.State())

		// The running device registered itself during Open.
		dev, err := s.Devices.GetDevice("device-a")
		assert.NoError(t, err)
		assert.Equal(t, "macOS", dev.Platform)

		// The stores are wired to the same document.
		assert.NoError(t, s.Library.AddBook(library.Book{ID: "b1", Title: "Dune"}))
		book, err := s.Library.GetBook("b1")
		assert.NoError(t, err)
		assert.Equal(t, "Dune", book.Title)

		_, err = s.Lexicon.AddRule("Dr.", "Doctor")
		assert.NoError(t, err)
		rules, err := s.Lexicon.ListRules()
		assert.NoError(t, err)
		assert.Len(t, rules, 1)

		// Local edits land in the rewind history and the undo log.
		assert.NotEmpty(t, s.Rewind.History())
		assert.True(t, s.Undo.CanUndo())
	})

	t.Run("quarantined document yields locked session test", func(t *testing.T) {
		store := memstore.New()
		s, err := session.Open(context.Background(), nil, session.Deps{
			Store:       store,
			DeviceID:    "device-a",
			Fingerprint: testFP,
		})
		assert.NoError(t, err)

		// A newer client bumps the schema past what this build supports.
		err = s.Handle.Update(
			replica.OriginRemote,
			[]string{replica.SubtreeSettings},
			"bump schema",
			func(root *json.Object) error {
				root.GetObject(replica.SubtreeSettings).SetLong("schemaVersion", 99)
				return nil
			},
		)
		assert.NoError(t, err)
		assert.NoError(t, s.Close())

		var obsolete int
		s, err = session.Open(context.Background(), nil, session.Deps{
			Store:       store,
			DeviceID:    "device-a",
			Fingerprint: testFP,
			OnObsolete:  func(incoming int) { obsolete = incoming },
		})
		assert.NoError(t, err)
		defer func() { assert.NoError(t, s.Close()) }()

		assert.True(t, s.Quarantined())
		assert.Equal(t, 99, obsolete)

		// Writes are rejected until the client upgrades.
		err = s.Library.AddBook(library.Book{ID: "b2", Title: "Emma"})
		assert.True(t, pkerrors.IsCode(err, pkerrors.CodeQuarantined))
	})

	t.Run("quarantine precedes scaffolding test", func(t *testing.T) {
		store := memstore.New()

		// A document written by a newer client: settings only, no other
		// collections this build would know to create.
		seed, err := replica.New(config.DefaultDocumentKey, replica.WithStore(store))
		assert.NoError(t, err)
		assert.NoError(t, seed.Load(context.Background()))
		err = seed.Update(
			replica.OriginRemote,
			[]string{replica.SubtreeSettings},
			"bump schema",
			func(root *json.Object) error {
				root.SetNewObject(replica.SubtreeSettings).SetLong("schemaVersion", 99)
				return nil
			},
		)
		assert.NoError(t, err)
		saves := store.Saves()

		s, err := session.Open(context.Background(), nil, session.Deps{
			Store:       store,
			DeviceID:    "device-a",
			Fingerprint: testFP,
		})
		assert.NoError(t, err)
		defer func() { assert.NoError(t, s.Close()) }()

		// Nothing was persisted after the quarantine engaged, not even
		// subtree scaffolding.
		assert.True(t, s.Quarantined())
		assert.Equal(t, saves, store.Saves())

		root, err := s.Handle.Root()
		assert.NoError(t, err)
		_, ok := root[replica.SubtreeLibrary]
		assert.False(t, ok)
	})

	t.Run("invalid config test", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.HistoryCap = -1
		_, err := session.Open(context.Background(), cfg, session.Deps{Store: memstore.New()})
		assert.Error(t, err)
	})
}
