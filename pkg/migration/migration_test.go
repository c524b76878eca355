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

package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yorkie-team/yorkie/pkg/document/json"

	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/migration"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

type fakeSync struct {
	disconnected bool
}

func (f *fakeSync) Disconnect() { f.disconnected = true }

func newHandle(t *testing.T) *replica.Handle {
	t.Helper()
	handle, err := replica.New("test-doc")
	assert.NoError(t, err)
	assert.NoError(t, handle.EnsureSubtrees(replica.Subtrees))
	return handle
}

func setStoredVersion(t *testing.T, handle *replica.Handle, v int64) {
	t.Helper()
	err := handle.Update(
		replica.OriginStorage,
		[]string{replica.SubtreeSettings},
		"seed version",
		func(root *json.Object) error {
			root.GetObject(replica.SubtreeSettings).SetLong("schemaVersion", v)
			return nil
		},
	)
	assert.NoError(t, err)
}

func storedVersion(t *testing.T, handle *replica.Handle) int {
	t.Helper()
	settings, err := handle.SubtreeData(replica.SubtreeSettings)
	assert.NoError(t, err)
	v, ok := replica.IntOf(settings, "schemaVersion")
	if !ok {
		return 1
	}
	return v
}

func TestQuarantine(t *testing.T) {
	t.Run("stored version newer than supported test", func(t *testing.T) {
		handle := newHandle(t)
		setStoredVersion(t, handle, 3)

		sync := &fakeSync{}
		var obsolete int
		runner := migration.NewRunner(handle, sync, migration.Options{
			SchemaVersion: 2,
			OnObsolete:    func(incoming int) { obsolete = incoming },
		})

		err := runner.Run()
		assert.Error(t, err)
		assert.True(t, pkerrors.IsCode(err, pkerrors.CodeObsoleteClient))
		assert.Equal(t, migration.StateQuarantined, runner.State())
		assert.Equal(t, 3, obsolete)
		assert.True(t, sync.disconnected)
		assert.True(t, handle.Locked())

		// No migration ran and the stored version is untouched.
		assert.Equal(t, 3, storedVersion(t, handle))

		// Further writes are rejected.
		werr := handle.Update(replica.OriginLocal, nil, "edit", func(root *json.Object) error {
			root.SetString("k", "v")
			return nil
		})
		assert.True(t, pkerrors.IsCode(werr, pkerrors.CodeQuarantined))
	})
}

func TestMigrate(t *testing.T) {
	t.Run("up-to-date document test", func(t *testing.T) {
		handle := newHandle(t)
		setStoredVersion(t, handle, migration.SupportedVersion)

		runner := migration.NewRunner(handle, nil, migration.Options{})
		assert.NoError(t, runner.Run())
		assert.Equal(t, migration.StateUpToDate, runner.State())
	})

	t.Run("missing version means version one test", func(t *testing.T) {
		handle := newHandle(t)

		runner := migration.NewRunner(handle, nil, migration.Options{})
		assert.NoError(t, runner.Run())
		assert.Equal(t, migration.StateUpToDate, runner.State())
		assert.Equal(t, migration.SupportedVersion, storedVersion(t, handle))
	})

	t.Run("steps repair historical data test", func(t *testing.T) {
		handle := newHandle(t)
		seedLegacyData(t, handle)

		runner := migration.NewRunner(handle, nil, migration.Options{})
		assert.NoError(t, runner.Run())
		assert.Equal(t, migration.SupportedVersion, storedVersion(t, handle))
		assertRepaired(t, handle)
	})

	t.Run("steps are idempotent test", func(t *testing.T) {
		handle := newHandle(t)
		seedLegacyData(t, handle)

		runner := migration.NewRunner(handle, nil, migration.Options{})
		assert.NoError(t, runner.Run())

		// Simulate a crash between the steps and the version write.
		setStoredVersion(t, handle, 1)
		again := migration.NewRunner(handle, nil, migration.Options{})
		assert.NoError(t, again.Run())

		assert.Equal(t, migration.SupportedVersion, storedVersion(t, handle))
		assertRepaired(t, handle)
	})
}

// seedLegacyData writes a version-one document: a malformed progress
// entry, overlapping completed ranges, and a book with progress but no
// reading-list record.
func seedLegacyData(t *testing.T, handle *replica.Handle) {
	t.Helper()
	err := handle.Update(
		replica.OriginStorage,
		[]string{replica.SubtreeLibrary, replica.SubtreeProgress},
		"seed legacy",
		func(root *json.Object) error {
			lib := root.GetObject(replica.SubtreeLibrary)
			meta := lib.SetNewObject("b1")
			meta.SetString("title", "Dune")
			meta.SetString("author", "Herbert")

			prog := root.GetObject(replica.SubtreeProgress)
			book := prog.SetNewObject("b1")

			good := book.SetNewObject("dev-1")
			good.SetString("bookId", "b1")
			good.SetString("deviceId", "dev-1")
			good.SetDouble("percentage", 0.5)
			good.SetLong("lastRead", 1000)
			good.SetNewArray("completedRanges").
				AddString("/2:20~/2:30", "/2:0~/2:10", "/2:5~/2:25")

			// Percentage out of range; must be dropped by v2.
			bad := book.SetNewObject("dev-2")
			bad.SetString("bookId", "b1")
			bad.SetString("deviceId", "dev-2")
			bad.SetDouble("percentage", 3.2)

			// No device key; must be dropped by v2.
			anon := book.SetNewObject("dev-3")
			anon.SetDouble("percentage", 0.2)
			return nil
		},
	)
	assert.NoError(t, err)
}

func assertRepaired(t *testing.T, handle *replica.Handle) {
	t.Helper()

	prog, err := handle.SubtreeData(replica.SubtreeProgress)
	assert.NoError(t, err)
	book := replica.ObjectOf(prog, "b1")
	assert.NotNil(t, replica.ObjectOf(book, "dev-1"))
	assert.Nil(t, replica.ObjectOf(book, "dev-2"))
	assert.Nil(t, replica.ObjectOf(book, "dev-3"))

	entry := replica.ObjectOf(book, "dev-1")
	assert.Equal(t, []string{"/2:0~/2:30"}, replica.StringsOf(entry, "completedRanges"))

	rl, err := handle.SubtreeData(replica.SubtreeReadingList)
	assert.NoError(t, err)
	rec := replica.ObjectOf(rl, "b1")
	assert.Equal(t, "Dune", replica.StringOf(rec, "title"))
	assert.Equal(t, "reading", replica.StringOf(rec, "status"))
	pct, _ := replica.FloatOf(rec, "percentage")
	assert.Equal(t, 0.5, pct)
}
