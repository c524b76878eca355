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

// Package library is the book metadata store, a projection over the
// library subtree of the shared document.
package library

import (
	"sort"
	gotime "time"

	"github.com/yorkie-team/yorkie/pkg/document/json"
	"github.com/yorkie-team/yorkie/pkg/document/yson"

	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

// Book is one library record.
type Book struct {
	ID     string
	Title  string
	Author string
	Added  int64
}

// Store exposes the library actions. External code must not mutate the
// subtree by any other path.
type Store struct {
	handle *replica.Handle
	now    func() gotime.Time
}

// NewStore creates a library store over the given handle.
func NewStore(handle *replica.Handle) *Store {
	return &Store{handle: handle, now: gotime.Now}
}

// AddBook upserts a book record.
func (s *Store) AddBook(book Book) error {
	if book.ID == "" {
		return pkerrors.InvalidArgument("book id must not be empty")
	}
	added := book.Added
	if added == 0 {
		added = s.now().UnixMilli()
	}

	return s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeLibrary},
		"add book",
		func(root *json.Object) error {
			lib := ensureObject(root, replica.SubtreeLibrary)
			entry := lib.GetObject(book.ID)
			if entry == nil {
				entry = lib.SetNewObject(book.ID)
				entry.SetLong("added", added)
			}
			entry.SetString("id", book.ID)
			entry.SetString("title", book.Title)
			entry.SetString("author", book.Author)
			return nil
		},
	)
}

// GetBook returns the book record, or nil if unknown.
func (s *Store) GetBook(bookID string) (*Book, error) {
	lib, err := s.handle.SubtreeData(replica.SubtreeLibrary)
	if err != nil {
		return nil, err
	}
	entry := replica.ObjectOf(lib, bookID)
	if entry == nil {
		return nil, nil
	}
	book := decodeBook(bookID, entry)
	return &book, nil
}

// ListBooks returns every book, sorted by title.
func (s *Store) ListBooks() ([]Book, error) {
	lib, err := s.handle.SubtreeData(replica.SubtreeLibrary)
	if err != nil {
		return nil, err
	}

	books := make([]Book, 0, len(lib))
	for id, v := range lib {
		entry, ok := v.(yson.Object)
		if !ok {
			continue
		}
		books = append(books, decodeBook(id, entry))
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].Title != books[j].Title {
			return books[i].Title < books[j].Title
		}
		return books[i].ID < books[j].ID
	})
	return books, nil
}

// RemoveBook deletes the book and cascades to its progress entries and
// reading-list record. This is the only path that removes progress.
func (s *Store) RemoveBook(bookID string) error {
	return s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeLibrary, replica.SubtreeProgress, replica.SubtreeReadingList},
		"remove book",
		func(root *json.Object) error {
			for _, name := range []string{
				replica.SubtreeLibrary,
				replica.SubtreeProgress,
				replica.SubtreeReadingList,
			} {
				sub := root.GetObject(name)
				if sub != nil && sub.Has(bookID) {
					sub.Delete(bookID)
				}
			}
			return nil
		},
	)
}

func decodeBook(id string, entry yson.Object) Book {
	added, _ := replica.Int64Of(entry, "added")
	return Book{
		ID:     id,
		Title:  replica.StringOf(entry, "title"),
		Author: replica.StringOf(entry, "author"),
		Added:  added,
	}
}

func ensureObject(root *json.Object, name string) *json.Object {
	if obj := root.GetObject(name); obj != nil {
		return obj
	}
	return root.SetNewObject(name)
}
