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

// Package annotations is the highlight/note store, a projection over the
// annotations subtree of the shared document, keyed
// annotations[bookId][annotationId].
package annotations

import (
	"sort"
	gotime "time"

	"github.com/rs/xid"
	"github.com/yorkie-team/yorkie/pkg/document/json"
	"github.com/yorkie-team/yorkie/pkg/document/yson"

	"github.com/pagekeep-io/pagekeep/pkg/cfi"
	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

// Annotation is one highlight or note anchored to a position range.
type Annotation struct {
	ID      string
	BookID  string
	CFI     string
	Text    string
	Note    string
	Color   string
	Created int64
}

// Store exposes the annotation actions.
type Store struct {
	handle *replica.Handle
	now    func() gotime.Time
}

// NewStore creates an annotation store over the given handle.
func NewStore(handle *replica.Handle) *Store {
	return &Store{handle: handle, now: gotime.Now}
}

// Add creates an annotation and returns its id.
func (s *Store) Add(a Annotation) (string, error) {
	if a.BookID == "" {
		return "", pkerrors.InvalidArgument("annotation book id must not be empty")
	}
	if a.ID == "" {
		a.ID = xid.New().String()
	}
	if a.Created == 0 {
		a.Created = s.now().UnixMilli()
	}

	err := s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeAnnotations},
		"add annotation",
		func(root *json.Object) error {
			anns := ensureObject(root, replica.SubtreeAnnotations)
			book := anns.GetObject(a.BookID)
			if book == nil {
				book = anns.SetNewObject(a.BookID)
			}
			entry := book.SetNewObject(a.ID)
			entry.SetString("id", a.ID)
			entry.SetString("bookId", a.BookID)
			entry.SetString("cfi", a.CFI)
			entry.SetString("text", a.Text)
			entry.SetString("note", a.Note)
			entry.SetString("color", a.Color)
			entry.SetLong("created", a.Created)
			return nil
		},
	)
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

// SetNote updates the note text of an annotation.
func (s *Store) SetNote(bookID, id, note string) error {
	return s.setField(bookID, id, "note", note)
}

// SetColor updates the highlight color of an annotation.
func (s *Store) SetColor(bookID, id, color string) error {
	return s.setField(bookID, id, "color", color)
}

func (s *Store) setField(bookID, id, field, value string) error {
	return s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeAnnotations},
		"update annotation",
		func(root *json.Object) error {
			anns := root.GetObject(replica.SubtreeAnnotations)
			if anns == nil {
				return pkerrors.NotFound("annotation not found: " + id)
			}
			book := anns.GetObject(bookID)
			if book == nil || !book.Has(id) {
				return pkerrors.NotFound("annotation not found: " + id)
			}
			book.GetObject(id).SetString(field, value)
			return nil
		},
	)
}

// Remove deletes an annotation.
func (s *Store) Remove(bookID, id string) error {
	return s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeAnnotations},
		"remove annotation",
		func(root *json.Object) error {
			anns := root.GetObject(replica.SubtreeAnnotations)
			if anns == nil {
				return nil
			}
			book := anns.GetObject(bookID)
			if book != nil && book.Has(id) {
				book.Delete(id)
			}
			return nil
		},
	)
}

// List returns the annotations of a book, in document order of their
// position locators.
func (s *Store) List(bookID string) ([]Annotation, error) {
	anns, err := s.handle.SubtreeData(replica.SubtreeAnnotations)
	if err != nil {
		return nil, err
	}
	book := replica.ObjectOf(anns, bookID)

	out := make([]Annotation, 0, len(book))
	for id, v := range book {
		entry, ok := v.(yson.Object)
		if !ok {
			continue
		}
		created, _ := replica.Int64Of(entry, "created")
		out = append(out, Annotation{
			ID:      id,
			BookID:  bookID,
			CFI:     replica.StringOf(entry, "cfi"),
			Text:    replica.StringOf(entry, "text"),
			Note:    replica.StringOf(entry, "note"),
			Color:   replica.StringOf(entry, "color"),
			Created: created,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		ri, erri := cfi.ParseRange(out[i].CFI)
		rj, errj := cfi.ParseRange(out[j].CFI)
		if erri != nil || errj != nil {
			return out[i].CFI < out[j].CFI
		}
		if c := ri.Compare(rj); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func ensureObject(root *json.Object, name string) *json.Object {
	if obj := root.GetObject(name); obj != nil {
		return obj
	}
	return root.SetNewObject(name)
}
