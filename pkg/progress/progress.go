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

// Package progress stores per-device reading progress and reconciles a
// single progress value per book on the read side. Entries live at
// progress[bookId][deviceId]; a device only ever writes under its own
// identifier.
package progress

import (
	gotime "time"

	"github.com/yorkie-team/yorkie/pkg/document/json"
	"github.com/yorkie-team/yorkie/pkg/document/yson"

	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/ranges"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

// ValidThreshold is the percentage above which a progress entry counts as
// real reading progress rather than an accidental open.
const ValidThreshold = 0.005

// FinishedThreshold is the percentage at or above which the reading-list
// status flips to finished.
const FinishedThreshold = 0.995

// Reading-list status values.
const (
	StatusUnstarted = "unstarted"
	StatusReading   = "reading"
	StatusFinished  = "finished"
)

// DeviceIDProvider returns a stable identifier of the running device.
type DeviceIDProvider interface {
	DeviceID() string
}

// Entry is the progress of one book on one device.
type Entry struct {
	BookID          string
	DeviceID        string
	Percentage      float64
	CurrentCFI      string
	LastRead        int64
	CompletedRanges []string
	LastPlayedCFI   string
	QueueIndex      int
	SectionIndex    int
}

// Valid reports whether the entry counts as real progress.
func (e *Entry) Valid() bool {
	return e != nil && e.Percentage > ValidThreshold
}

// Store exposes the progress actions and the read-side reconciliation
// policy.
type Store struct {
	handle *replica.Handle
	ids    DeviceIDProvider
	now    func() gotime.Time
}

// NewStore creates a progress store over the given handle.
func NewStore(handle *replica.Handle, ids DeviceIDProvider) *Store {
	return &Store{handle: handle, ids: ids, now: gotime.Now}
}

// UpdateLocation records the current reading position of this device and
// keeps the user-facing reading list in step with it.
func (s *Store) UpdateLocation(bookID, cfi string, percentage float64) error {
	if bookID == "" {
		return pkerrors.InvalidArgument("book id must not be empty")
	}
	deviceID := s.ids.DeviceID()
	now := s.now().UnixMilli()

	// The reading list derives title/author from library metadata; read it
	// before opening the transaction.
	lib, err := s.handle.SubtreeData(replica.SubtreeLibrary)
	if err != nil {
		return err
	}
	meta := replica.ObjectOf(lib, bookID)

	return s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeProgress, replica.SubtreeReadingList},
		"update location",
		func(root *json.Object) error {
			entry := ensureEntry(root, bookID, deviceID)
			entry.SetString("currentCfi", cfi)
			entry.SetDouble("percentage", percentage)
			entry.SetLong("lastRead", now)

			upsertReadingList(root, bookID, meta, percentage, now)
			return nil
		},
	)
}

// AddCompletedRange merges a finished span into this device's completed
// ranges. The stored set stays sorted, non-overlapping and non-touching;
// it is replaced wholesale since it is small.
func (s *Store) AddCompletedRange(bookID, marker string) error {
	deviceID := s.ids.DeviceID()
	now := s.now().UnixMilli()

	existing, err := s.completedRanges(bookID, deviceID)
	if err != nil {
		return err
	}
	merged, err := ranges.Merge(existing, marker)
	if err != nil {
		return err
	}

	return s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeProgress},
		"add completed range",
		func(root *json.Object) error {
			entry := ensureEntry(root, bookID, deviceID)
			if entry.Has("completedRanges") {
				entry.Delete("completedRanges")
			}
			entry.SetNewArray("completedRanges").AddString(merged...)
			entry.SetLong("lastRead", now)
			return nil
		},
	)
}

// UpdatePlaybackPosition records the audio/TTS playback position.
func (s *Store) UpdatePlaybackPosition(bookID, cfi string, queueIndex, sectionIndex int) error {
	deviceID := s.ids.DeviceID()
	now := s.now().UnixMilli()

	return s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeProgress},
		"update playback position",
		func(root *json.Object) error {
			entry := ensureEntry(root, bookID, deviceID)
			entry.SetString("lastPlayedCfi", cfi)
			entry.SetInteger("queueIndex", queueIndex)
			entry.SetInteger("sectionIndex", sectionIndex)
			entry.SetLong("lastRead", now)
			return nil
		},
	)
}

// UpdateTTSProgress records spoken-word progress: the playback position
// advances the reading position as well.
func (s *Store) UpdateTTSProgress(bookID, cfi string, percentage float64) error {
	deviceID := s.ids.DeviceID()
	now := s.now().UnixMilli()

	return s.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeProgress},
		"update tts progress",
		func(root *json.Object) error {
			entry := ensureEntry(root, bookID, deviceID)
			entry.SetString("lastPlayedCfi", cfi)
			entry.SetString("currentCfi", cfi)
			entry.SetDouble("percentage", percentage)
			entry.SetLong("lastRead", now)
			return nil
		},
	)
}

// GetProgress picks the progress entry for a book:
//  1. this device's entry if it is valid, even when another device has a
//     fresher one, so reopening a book mid-session never jumps;
//  2. otherwise the valid entry with the greatest lastRead;
//  3. otherwise this device's entry even if invalid;
//  4. otherwise nil.
func (s *Store) GetProgress(bookID string) (*Entry, error) {
	entries, err := s.entriesFor(bookID)
	if err != nil {
		return nil, err
	}
	deviceID := s.ids.DeviceID()

	if local, ok := entries[deviceID]; ok && local.Valid() {
		return local, nil
	}

	var freshest *Entry
	for _, e := range entries {
		if !e.Valid() {
			continue
		}
		if freshest == nil || e.LastRead > freshest.LastRead ||
			(e.LastRead == freshest.LastRead && e.DeviceID < freshest.DeviceID) {
			freshest = e
		}
	}
	if freshest != nil {
		return freshest, nil
	}

	if local, ok := entries[deviceID]; ok {
		return local, nil
	}
	return nil, nil
}

// CompletedRanges returns this device's completed ranges for a book.
func (s *Store) CompletedRanges(bookID string) ([]string, error) {
	return s.completedRanges(bookID, s.ids.DeviceID())
}

func (s *Store) completedRanges(bookID, deviceID string) ([]string, error) {
	entries, err := s.entriesFor(bookID)
	if err != nil {
		return nil, err
	}
	entry, ok := entries[deviceID]
	if !ok {
		return nil, nil
	}
	return entry.CompletedRanges, nil
}

func (s *Store) entriesFor(bookID string) (map[string]*Entry, error) {
	prog, err := s.handle.SubtreeData(replica.SubtreeProgress)
	if err != nil {
		return nil, err
	}
	book := replica.ObjectOf(prog, bookID)

	out := make(map[string]*Entry, len(book))
	for deviceID, v := range book {
		data, ok := v.(yson.Object)
		if !ok {
			continue
		}
		out[deviceID] = decodeEntry(bookID, deviceID, data)
	}
	return out, nil
}

func decodeEntry(bookID, deviceID string, data yson.Object) *Entry {
	percentage, _ := replica.FloatOf(data, "percentage")
	lastRead, _ := replica.Int64Of(data, "lastRead")
	queueIndex, _ := replica.IntOf(data, "queueIndex")
	sectionIndex, _ := replica.IntOf(data, "sectionIndex")
	return &Entry{
		BookID:          bookID,
		DeviceID:        deviceID,
		Percentage:      percentage,
		CurrentCFI:      replica.StringOf(data, "currentCfi"),
		LastRead:        lastRead,
		CompletedRanges: replica.StringsOf(data, "completedRanges"),
		LastPlayedCFI:   replica.StringOf(data, "lastPlayedCfi"),
		QueueIndex:      queueIndex,
		SectionIndex:    sectionIndex,
	}
}

// ensureEntry returns the progress entry of the device, creating the
// two-level path as needed.
func ensureEntry(root *json.Object, bookID, deviceID string) *json.Object {
	prog := root.GetObject(replica.SubtreeProgress)
	if prog == nil {
		prog = root.SetNewObject(replica.SubtreeProgress)
	}
	book := prog.GetObject(bookID)
	if book == nil {
		book = prog.SetNewObject(bookID)
	}
	entry := book.GetObject(deviceID)
	if entry == nil {
		entry = book.SetNewObject(deviceID)
		entry.SetString("bookId", bookID)
		entry.SetString("deviceId", deviceID)
	}
	return entry
}

// upsertReadingList keeps the user-facing reading list consistent with
// device progress. The record is keyed by book only, not by device.
func upsertReadingList(root *json.Object, bookID string, meta yson.Object, percentage float64, now int64) {
	rl := root.GetObject(replica.SubtreeReadingList)
	if rl == nil {
		rl = root.SetNewObject(replica.SubtreeReadingList)
	}
	rec := rl.GetObject(bookID)
	if rec == nil {
		rec = rl.SetNewObject(bookID)
	}

	if meta != nil {
		rec.SetString("title", replica.StringOf(meta, "title"))
		rec.SetString("author", replica.StringOf(meta, "author"))
	}
	rec.SetDouble("percentage", percentage)
	rec.SetString("status", StatusOf(percentage))
	rec.SetLong("updated", now)
}

// StatusOf maps a percentage to a reading-list status.
func StatusOf(percentage float64) string {
	switch {
	case percentage >= FinishedThreshold:
		return StatusFinished
	case percentage > ValidThreshold:
		return StatusReading
	default:
		return StatusUnstarted
	}
}
