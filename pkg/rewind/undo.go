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

package rewind

import (
	"fmt"
	"sync"
	gotime "time"

	"github.com/yorkie-team/yorkie/pkg/document/time"

	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

// UndoCap bounds the undo log; the oldest step is evicted past it.
const UndoCap = 100

// UndoDebounce groups edits landing within this window into one step, so
// rapid successive writes such as a dragged slider undo as a unit.
const UndoDebounce = 500 * gotime.Millisecond

// Step is one undoable unit: the document versions on either side of a
// group of edits.
type Step struct {
	Before    time.VersionVector
	After     time.VersionVector
	Timestamp int64
}

// UndoLog is the grouped undo/redo log. It runs beside the snapshot
// history and is independent of it; undoing never consumes or prunes
// snapshots.
type UndoLog struct {
	mu          sync.Mutex
	handle      *replica.Handle
	cap         int
	debounce    gotime.Duration
	steps       []*Step
	cursor      int
	lastEdit    gotime.Time
	unsubscribe func()
	now         func() gotime.Time
}

// UndoOption configures an undo log.
type UndoOption func(*UndoLog)

// WithUndoCap overrides the step cap.
func WithUndoCap(n int) UndoOption {
	return func(u *UndoLog) { u.cap = n }
}

// WithDebounce overrides the grouping window.
func WithDebounce(d gotime.Duration) UndoOption {
	return func(u *UndoLog) { u.debounce = d }
}

// NewUndoLog creates an undo log over the given handle.
func NewUndoLog(handle *replica.Handle, opts ...UndoOption) *UndoLog {
	u := &UndoLog{
		handle:   handle,
		cap:      UndoCap,
		debounce: UndoDebounce,
		now:      gotime.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Start installs the document observer. The same origin filter as the
// snapshot history applies, so remote merges and restores never become
// undo steps.
func (u *UndoLog) Start() {
	u.mu.Lock()
	if u.unsubscribe != nil {
		u.unsubscribe()
	}
	u.mu.Unlock()

	unsubscribe := u.handle.Subscribe(func(ev replica.TxEvent) {
		if !ShouldCapture(ev) {
			return
		}
		u.record(ev)
	})

	u.mu.Lock()
	u.unsubscribe = unsubscribe
	u.mu.Unlock()
}

// Stop removes the document observer.
func (u *UndoLog) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.unsubscribe != nil {
		u.unsubscribe()
		u.unsubscribe = nil
	}
}

func (u *UndoLog) record(ev replica.TxEvent) {
	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()

	// A fresh edit invalidates any redo tail.
	if u.cursor < len(u.steps) {
		u.steps = u.steps[:u.cursor]
	}

	if len(u.steps) > 0 && now.Sub(u.lastEdit) <= u.debounce {
		last := u.steps[len(u.steps)-1]
		last.After = ev.After.DeepCopy()
		last.Timestamp = now.UnixMilli()
	} else {
		u.steps = append(u.steps, &Step{
			Before:    ev.Before.DeepCopy(),
			After:     ev.After.DeepCopy(),
			Timestamp: now.UnixMilli(),
		})
		if len(u.steps) > u.cap {
			u.steps = u.steps[len(u.steps)-u.cap:]
		}
	}
	u.cursor = len(u.steps)
	u.lastEdit = now
}

// Len returns the number of steps currently in the log.
func (u *UndoLog) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.steps)
}

// CanUndo reports whether a step is available to undo.
func (u *UndoLog) CanUndo() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cursor > 0
}

// CanRedo reports whether an undone step is available to redo.
func (u *UndoLog) CanRedo() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.cursor < len(u.steps)
}

// Undo reverts the most recent step.
func (u *UndoLog) Undo() error {
	u.mu.Lock()
	if u.cursor == 0 {
		u.mu.Unlock()
		return pkerrors.FailedPrecond("nothing to undo")
	}
	target := u.steps[u.cursor-1].Before
	next := u.cursor - 1
	u.mu.Unlock()

	if err := restoreVector(u.handle, target, "undo"); err != nil {
		return err
	}

	u.mu.Lock()
	u.cursor = next
	u.mu.Unlock()
	return nil
}

// Redo re-applies the most recently undone step.
func (u *UndoLog) Redo() error {
	u.mu.Lock()
	if u.cursor >= len(u.steps) {
		u.mu.Unlock()
		return pkerrors.FailedPrecond("nothing to redo")
	}
	target := u.steps[u.cursor].After
	next := u.cursor + 1
	u.mu.Unlock()

	if err := restoreVector(u.handle, target, "redo"); err != nil {
		return err
	}

	u.mu.Lock()
	u.cursor = next
	u.mu.Unlock()
	return nil
}

// UndoTo reverts every step at or after the given index in one restore.
// Index 0 undoes the whole log.
func (u *UndoLog) UndoTo(index int) error {
	u.mu.Lock()
	if index < 0 || index >= u.cursor {
		u.mu.Unlock()
		return pkerrors.InvalidArgument(fmt.Sprintf("undo index %d out of range", index))
	}
	target := u.steps[index].Before
	u.mu.Unlock()

	if err := restoreVector(u.handle, target, "undo"); err != nil {
		return err
	}

	u.mu.Lock()
	u.cursor = index
	u.mu.Unlock()
	return nil
}
