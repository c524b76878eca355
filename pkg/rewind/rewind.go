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

// Package rewind captures lightweight version-vector snapshots of the
// replicated document and restores tracked subtrees to any captured point.
package rewind

import (
	"fmt"
	"sync"
	gotime "time"

	"github.com/rs/xid"
	"github.com/yorkie-team/yorkie/pkg/document/time"

	"github.com/pagekeep-io/pagekeep/internal/log"
	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

// HistoryCap bounds the snapshot list. The initial snapshot is kept
// outside the list and never evicted.
const HistoryCap = 50

// InitialSnapshotID addresses the pre-tracking state in Restore.
const InitialSnapshotID = "initial"

// Trigger says why a snapshot was captured.
type Trigger string

// Snapshot triggers.
const (
	TriggerInitial Trigger = "initial"
	TriggerAuto    Trigger = "auto"
	TriggerAction  Trigger = "action"
	TriggerManual  Trigger = "manual"
)

// TrackedSubtrees are the top-level collections whose local edits feed
// snapshot history. Device records and preferences are deliberately not
// tracked; rewinding must never resurrect a deleted device or flip a
// theme.
var TrackedSubtrees = []string{
	replica.SubtreeLibrary,
	replica.SubtreeProgress,
	replica.SubtreeAnnotations,
	replica.SubtreeReadingList,
}

// Snapshot is one history entry. It holds a version-vector capture, not
// document contents, so its size is proportional to the number of
// replicas.
type Snapshot struct {
	ID          string
	Timestamp   int64
	Vector      time.VersionVector
	Trigger     Trigger
	Description string
}

// Engine observes the document and keeps the bounded snapshot history.
type Engine struct {
	mu          sync.Mutex
	handle      *replica.Handle
	cap         int
	initial     *Snapshot
	entries     []*Snapshot
	unsubscribe func()
	watchers    map[int]func()
	nextWatch   int
	now         func() gotime.Time
}

// EngineOption configures an engine.
type EngineOption func(*Engine)

// WithHistoryCap overrides the snapshot cap.
func WithHistoryCap(n int) EngineOption {
	return func(e *Engine) { e.cap = n }
}

// NewEngine creates a rewind engine over the given handle. Tracking does
// not start until StartTracking.
func NewEngine(handle *replica.Handle, opts ...EngineOption) *Engine {
	e := &Engine{
		handle:   handle,
		cap:      HistoryCap,
		watchers: make(map[int]func()),
		now:      gotime.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartTracking records the initial snapshot and installs the document
// observer. Calling it twice restarts tracking from the current state.
func (e *Engine) StartTracking() {
	e.mu.Lock()
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.initial = &Snapshot{
		ID:          InitialSnapshotID,
		Timestamp:   e.now().UnixMilli(),
		Vector:      e.handle.VersionVector(),
		Trigger:     TriggerInitial,
		Description: "session start",
	}
	e.entries = nil
	e.mu.Unlock()

	unsubscribe := e.handle.Subscribe(func(ev replica.TxEvent) {
		if !ShouldCapture(ev) {
			return
		}
		e.captureVector(TriggerAuto, ev.Message, ev.After)
	})

	e.mu.Lock()
	e.unsubscribe = unsubscribe
	e.mu.Unlock()
	e.notify()
}

// StopTracking removes the document observer. History stays readable.
func (e *Engine) StopTracking() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
}

// ShouldCapture reports whether a transaction belongs in snapshot
// history: local origin, touching at least one tracked subtree. Remote
// merges, storage loads and restores are replication noise as far as the
// user's own timeline is concerned.
func ShouldCapture(ev replica.TxEvent) bool {
	if ev.Origin != replica.OriginLocal {
		return false
	}
	for _, touched := range ev.Subtrees {
		for _, tracked := range TrackedSubtrees {
			if touched == tracked {
				return true
			}
		}
	}
	return false
}

// Capture records a snapshot of the current document state and returns
// its ID.
func (e *Engine) Capture(trigger Trigger, description string) string {
	return e.captureVector(trigger, description, e.handle.VersionVector())
}

func (e *Engine) captureVector(trigger Trigger, description string, vv time.VersionVector) string {
	snap := &Snapshot{
		ID:          xid.New().String(),
		Timestamp:   e.now().UnixMilli(),
		Vector:      vv.DeepCopy(),
		Trigger:     trigger,
		Description: description,
	}

	e.mu.Lock()
	e.entries = append(e.entries, snap)
	if len(e.entries) > e.cap {
		e.entries = e.entries[len(e.entries)-e.cap:]
	}
	e.mu.Unlock()

	e.notify()
	return snap.ID
}

// History returns the snapshot list newest-first. The initial snapshot is
// not part of the list; it is addressed by InitialSnapshotID.
func (e *Engine) History() []*Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Snapshot, 0, len(e.entries))
	for i := len(e.entries) - 1; i >= 0; i-- {
		out = append(out, e.entries[i])
	}
	return out
}

// Restore brings every tracked subtree back to the state captured by the
// given snapshot. The historical state materializes fully before the live
// document is touched; a failure there leaves live state as it was. After
// a successful restore the target and everything captured after it are
// discarded, since the live state now equals the target.
func (e *Engine) Restore(id string) error {
	target, position, err := e.find(id)
	if err != nil {
		return err
	}

	if err := restoreVector(e.handle, target.Vector, fmt.Sprintf("restore snapshot %s", id)); err != nil {
		return err
	}

	e.mu.Lock()
	if position < 0 {
		e.entries = nil
	} else {
		e.entries = e.entries[:position]
	}
	e.mu.Unlock()

	e.notify()
	log.Logger.Infof("restored snapshot %s", id)
	return nil
}

// Reset clears the history and re-records the current state as initial.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.initial = &Snapshot{
		ID:          InitialSnapshotID,
		Timestamp:   e.now().UnixMilli(),
		Vector:      e.handle.VersionVector(),
		Trigger:     TriggerInitial,
		Description: "reset",
	}
	e.entries = nil
	e.mu.Unlock()
	e.notify()
}

// Watch registers a history-change callback and returns a cancel func.
func (e *Engine) Watch(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextWatch
	e.nextWatch++
	e.watchers[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.watchers, id)
	}
}

// find resolves a snapshot ID to its entry and list position. The initial
// snapshot reports position -1.
func (e *Engine) find(id string) (*Snapshot, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if id == InitialSnapshotID {
		if e.initial == nil {
			return nil, 0, pkerrors.FailedPrecond("tracking has not started").
				WithCode(pkerrors.CodeSnapshotNotFound)
		}
		return e.initial, -1, nil
	}
	for i, snap := range e.entries {
		if snap.ID == id {
			return snap, i, nil
		}
	}
	return nil, 0, pkerrors.NotFound(fmt.Sprintf("snapshot %q is not in history", id)).
		WithCode(pkerrors.CodeSnapshotNotFound)
}

func (e *Engine) notify() {
	e.mu.Lock()
	fns := make([]func(), 0, len(e.watchers))
	for _, fn := range e.watchers {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
