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

package lexicon_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/lexicon"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

func newStore(t *testing.T) *lexicon.Store {
	t.Helper()
	handle, err := replica.New("test-doc")
	assert.NoError(t, err)
	return lexicon.NewStore(handle)
}

func originals(rules []lexicon.Rule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.Original)
	}
	return out
}

func TestLexicon(t *testing.T) {
	t.Run("rules keep insertion order test", func(t *testing.T) {
		store := newStore(t)

		_, err := store.AddRule("Apple", "A")
		assert.NoError(t, err)
		_, err = store.AddRule("Banana", "B")
		assert.NoError(t, err)

		rules, err := store.ListRules()
		assert.NoError(t, err)
		assert.Equal(t, []string{"Apple", "Banana"}, originals(rules))
	})

	t.Run("blank original is rejected test", func(t *testing.T) {
		store := newStore(t)
		_, err := store.AddRule("   ", "A")
		assert.True(t, pkerrors.IsStatus(err, pkerrors.ErrCodeInvalidArgument))
	})

	t.Run("move rule test", func(t *testing.T) {
		store := newStore(t)

		apple, err := store.AddRule("Apple", "A")
		assert.NoError(t, err)
		_, err = store.AddRule("Banana", "B")
		assert.NoError(t, err)
		_, err = store.AddRule("Cherry", "C")
		assert.NoError(t, err)

		assert.NoError(t, store.MoveRule(apple, 1))

		rules, err := store.ListRules()
		assert.NoError(t, err)
		assert.Equal(t, []string{"Banana", "Apple", "Cherry"}, originals(rules))

		err = store.MoveRule(apple, 3)
		assert.True(t, pkerrors.IsStatus(err, pkerrors.ErrCodeInvalidArgument))
		err = store.MoveRule("nope", 0)
		assert.True(t, pkerrors.IsStatus(err, pkerrors.ErrCodeNotFound))
	})

	t.Run("update and remove rule test", func(t *testing.T) {
		store := newStore(t)

		id, err := store.AddRule("Dr.", "Doctor")
		assert.NoError(t, err)

		assert.NoError(t, store.UpdateRule(id, "Dr.", "Drive"))
		rules, err := store.ListRules()
		assert.NoError(t, err)
		assert.Equal(t, "Drive", rules[0].Replacement)

		assert.NoError(t, store.RemoveRule(id))
		rules, err = store.ListRules()
		assert.NoError(t, err)
		assert.Empty(t, rules)

		err = store.RemoveRule(id)
		assert.True(t, pkerrors.IsStatus(err, pkerrors.ErrCodeNotFound))
		err = store.UpdateRule(id, "Dr.", "Doctor")
		assert.True(t, pkerrors.IsStatus(err, pkerrors.ErrCodeNotFound))
	})

	t.Run("apply substitutes in precedence order test", func(t *testing.T) {
		store := newStore(t)

		_, err := store.AddRule("GIF", "jif")
		assert.NoError(t, err)
		_, err = store.AddRule("jif file", "jif image")
		assert.NoError(t, err)

		spoken, err := store.Apply("open the GIF file")
		assert.NoError(t, err)
		assert.Equal(t, "open the jif image", spoken)
	})
}
