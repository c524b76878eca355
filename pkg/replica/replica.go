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

// Package replica wraps the replicated CRDT document behind a single
// process-wide handle. All mutations flow through origin-tagged
// transactions; observers receive transaction events on the mutator
// goroutine; historical states can be materialized from version-vector
// snapshots.
package replica

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/rs/xid"
	"github.com/yorkie-team/yorkie/api/converter"
	"github.com/yorkie-team/yorkie/pkg/document"
	"github.com/yorkie-team/yorkie/pkg/document/change"
	"github.com/yorkie-team/yorkie/pkg/document/json"
	"github.com/yorkie-team/yorkie/pkg/key"
	"github.com/yorkie-team/yorkie/pkg/document/presence"
	"github.com/yorkie-team/yorkie/pkg/document/time"
	"github.com/yorkie-team/yorkie/pkg/document/yson"

	"github.com/pagekeep-io/pagekeep/internal/log"
	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/storage"
)

// TxEvent describes one applied transaction. Before and After are the
// document's version vectors around the transaction.
type TxEvent struct {
	Origin   Origin
	Message  string
	Subtrees []string
	Before   time.VersionVector
	After    time.VersionVector
}

// Handle is the process-wide handle of the replicated document. It is
// created once at startup, hydrated from the durable store, optionally
// synchronized with a remote replica, and passed by reference to every
// store.
type Handle struct {
	mu  sync.Mutex
	doc *document.Document
	key key.Key

	store    storage.Store
	baseline []byte

	// changes is the session change log, local and remote, in application
	// order. It is the replay source for historical materialization.
	changes []*change.Change

	subs    map[int]func(TxEvent)
	nextSub int

	locked     bool
	lockReason string
}

// Option configures a Handle.
type Option func(*Handle)

// WithStore attaches the durable local store.
func WithStore(store storage.Store) Option {
	return func(h *Handle) { h.store = store }
}

// New creates the handle for the given document key. The replica's actor
// identity is generated unless one is injected for tests via SetActorHex.
func New(docKey string, opts ...Option) (*Handle, error) {
	h := &Handle{
		key:  key.Key(docKey),
		doc:  document.New(key.Key(docKey)),
		subs: make(map[int]func(TxEvent)),
	}
	for _, opt := range opts {
		opt(h)
	}

	actor, err := time.ActorIDFromHex(hex.EncodeToString(xid.New().Bytes()))
	if err != nil {
		return nil, pkerrors.Internal("generate actor id: " + err.Error())
	}
	h.doc.SetActor(actor)

	return h, nil
}

// SetActorHex overrides the replica's actor identity. Intended for tests
// that need deterministic vectors.
func (h *Handle) SetActorHex(hexID string) error {
	actor, err := time.ActorIDFromHex(hexID)
	if err != nil {
		return pkerrors.InvalidArgument("malformed actor id: " + hexID)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.doc.SetActor(actor)
	return nil
}

// ActorID returns the replica's actor identity.
func (h *Handle) ActorID() time.ActorID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.ActorID()
}

// Key returns the document key.
func (h *Handle) Key() key.Key {
	return h.key
}

// Load hydrates the document from the durable store. It waits for store
// readiness and the load itself only up to the context deadline; on
// timeout the document proceeds with whatever state is available.
func (h *Handle) Load(ctx context.Context) error {
	if h.store == nil {
		return nil
	}

	select {
	case <-h.store.Synced():
	case <-ctx.Done():
		log.Logger.Warnf("durable store not ready before deadline, proceeding without it")
		return nil
	}

	type result struct {
		snapshot []byte
		err      error
	}
	ch := make(chan result, 1)
	go func() {
		snapshot, err := h.store.Load()
		ch <- result{snapshot, err}
	}()

	var snapshot []byte
	select {
	case res := <-ch:
		if res.err != nil {
			return res.err
		}
		snapshot = res.snapshot
	case <-ctx.Done():
		log.Logger.Warnf("hydration exceeded deadline, proceeding without local state")
		return nil
	}

	if len(snapshot) == 0 {
		return nil
	}

	h.mu.Lock()
	before := h.doc.VersionVector().DeepCopy()
	pack := &change.Pack{
		DocumentKey:   h.key,
		Checkpoint:    change.InitialCheckpoint,
		Snapshot:      snapshot,
		VersionVector: time.NewVersionVector(),
	}
	if err := h.doc.ApplyChangePack(pack); err != nil {
		h.mu.Unlock()
		return pkerrors.Internal("apply stored snapshot: " + err.Error())
	}
	h.baseline = snapshot
	after := h.doc.VersionVector().DeepCopy()
	subs := h.subscribers()
	h.mu.Unlock()

	publish(subs, TxEvent{
		Origin:  OriginStorage,
		Message: "hydrate",
		Before:  before,
		After:   after,
	})
	return nil
}

// EnsureSubtrees creates missing top-level collections. Runs with the
// storage origin so observers treat it as scaffolding, not user edits.
func (h *Handle) EnsureSubtrees(names []string) error {
	return h.Update(OriginStorage, names, "ensure collections", func(root *json.Object) error {
		for _, name := range names {
			if !root.Has(name) {
				root.SetNewObject(name)
			}
		}
		return nil
	})
}

// Update runs one transaction against the document. It is the sole
// mutation path: origin tags the transaction, subtrees declares the
// top-level collections it touches, and subscribers observe the result
// synchronously on the calling goroutine.
func (h *Handle) Update(origin Origin, subtrees []string, message string, fn func(root *json.Object) error) error {
	h.mu.Lock()

	if h.locked {
		h.mu.Unlock()
		return pkerrors.FailedPrecond("document is locked: " + h.lockReason).
			WithCode(pkerrors.CodeQuarantined)
	}

	before := h.doc.VersionVector().DeepCopy()
	err := h.doc.Update(func(root *json.Object, p *presence.Presence) error {
		return fn(root)
	}, message)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	after := h.doc.VersionVector().DeepCopy()

	if vvEqual(before, after) {
		// The updater made no edits; nothing to log or publish.
		h.mu.Unlock()
		return nil
	}

	if pending := h.doc.CreateChangePack(); len(pending.Changes) > 0 {
		h.changes = append(h.changes, pending.Changes[len(pending.Changes)-1])
	}

	saveErr := h.persistLocked()
	subs := h.subscribers()
	h.mu.Unlock()

	publish(subs, TxEvent{
		Origin:   origin,
		Message:  message,
		Subtrees: subtrees,
		Before:   before,
		After:    after,
	})
	return saveErr
}

// ApplyRemotePack merges a remote change pack into the document and
// notifies observers with the remote origin.
func (h *Handle) ApplyRemotePack(pack *change.Pack) error {
	h.mu.Lock()

	before := h.doc.VersionVector().DeepCopy()
	if err := h.doc.ApplyChangePack(pack); err != nil {
		h.mu.Unlock()
		return pkerrors.Internal("apply remote pack: " + err.Error())
	}
	h.changes = append(h.changes, pack.Changes...)
	after := h.doc.VersionVector().DeepCopy()

	saveErr := h.persistLocked()
	subs := h.subscribers()
	h.mu.Unlock()

	if saveErr != nil {
		log.Logger.Warnf("persist after remote merge: %v", saveErr)
	}

	publish(subs, TxEvent{
		Origin:  OriginRemote,
		Message: "remote merge",
		Before:  before,
		After:   after,
	})
	return nil
}

// PendingPack returns the local changes not yet acknowledged by the remote.
func (h *Handle) PendingPack() *change.Pack {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.CreateChangePack()
}

// Acknowledge applies the remote's response pack after a successful push,
// clearing acknowledged local changes.
func (h *Handle) Acknowledge(pack *change.Pack) error {
	if pack == nil {
		return nil
	}
	if len(pack.Changes) > 0 {
		return h.ApplyRemotePack(pack)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.doc.ApplyChangePack(pack); err != nil {
		return pkerrors.Internal("apply ack pack: " + err.Error())
	}
	return nil
}

// Subscribe registers a transaction observer and returns its
// unregistration function. Observers run synchronously on the mutator
// goroutine, after the transaction commits.
func (h *Handle) Subscribe(fn func(TxEvent)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSub
	h.nextSub++
	h.subs[id] = fn

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
	}
}

// VersionVector returns a copy of the document's current version vector.
func (h *Handle) VersionVector() time.VersionVector {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.VersionVector().DeepCopy()
}

// Marshal returns the JSON encoding of the live document.
func (h *Handle) Marshal() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.doc.Marshal()
}

// Root returns the live document contents as plain nested data.
func (h *Handle) Root() (yson.Object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rootLocked()
}

func (h *Handle) rootLocked() (yson.Object, error) {
	data, err := yson.FromCRDT(h.doc.RootObject())
	if err != nil {
		return nil, pkerrors.Internal("materialize root: " + err.Error())
	}
	obj, ok := data.(yson.Object)
	if !ok {
		return nil, pkerrors.Internal("document root is not an object")
	}
	return obj, nil
}

// SubtreeData returns one top-level collection as plain nested data, or an
// empty object if the collection does not exist yet.
func (h *Handle) SubtreeData(name string) (yson.Object, error) {
	root, err := h.Root()
	if err != nil {
		return nil, err
	}
	sub, ok := root[name].(yson.Object)
	if !ok {
		return yson.Object{}, nil
	}
	return sub, nil
}

// MaterializeAt reconstructs the document contents at the given version
// vector: the load-time baseline plus every session change the vector
// covers. The live document is never touched; failure returns an error
// and no partial state.
func (h *Handle) MaterializeAt(vv time.VersionVector) (yson.Object, error) {
	h.mu.Lock()
	baseline := h.baseline
	covered := make([]*change.Change, 0, len(h.changes))
	for _, c := range h.changes {
		if vv.VersionOf(c.ID().ActorID()) >= c.ID().Lamport() {
			covered = append(covered, c)
		}
	}
	h.mu.Unlock()

	historical := document.New(h.key)
	if len(baseline) > 0 {
		pack := &change.Pack{
			DocumentKey:   h.key,
			Checkpoint:    change.InitialCheckpoint,
			Snapshot:      baseline,
			VersionVector: time.NewVersionVector(),
		}
		if err := historical.ApplyChangePack(pack); err != nil {
			return nil, pkerrors.Internal("replay baseline: " + err.Error())
		}
	}
	if len(covered) > 0 {
		pack := &change.Pack{
			DocumentKey:   h.key,
			Checkpoint:    change.InitialCheckpoint,
			Changes:       covered,
			VersionVector: time.NewVersionVector(),
		}
		if err := historical.ApplyChangePack(pack); err != nil {
			return nil, pkerrors.Internal("replay changes: " + err.Error())
		}
	}

	data, err := yson.FromCRDT(historical.RootObject())
	if err != nil {
		return nil, pkerrors.Internal("materialize historical root: " + err.Error())
	}
	obj, ok := data.(yson.Object)
	if !ok {
		return nil, pkerrors.Internal("historical root is not an object")
	}
	return obj, nil
}

// Lock rejects every subsequent transaction with a failed-precondition
// error. Used by the schema quarantine; there is deliberately no unlock
// short of restarting with an upgraded client.
func (h *Handle) Lock(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.locked = true
	h.lockReason = reason
}

// Locked reports whether the handle rejects writes.
func (h *Handle) Locked() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.locked
}

// persistLocked saves a snapshot of the live document to the durable
// store. The in-memory document keeps the change either way; a rejected
// write surfaces so the UI can warn, and the next successful transaction
// persists the full state again.
func (h *Handle) persistLocked() error {
	if h.store == nil {
		return nil
	}
	snapshot, err := converter.SnapshotToBytes(h.doc.RootObject(), nil)
	if err != nil {
		return pkerrors.Internal("encode snapshot: " + err.Error())
	}
	return h.store.Save(snapshot)
}

func (h *Handle) subscribers() []func(TxEvent) {
	out := make([]func(TxEvent), 0, len(h.subs))
	for _, fn := range h.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(TxEvent), evt TxEvent) {
	for _, fn := range subs {
		fn(evt)
	}
}

func vvEqual(a, b time.VersionVector) bool {
	return a.AfterOrEqual(b) && b.AfterOrEqual(a)
}
