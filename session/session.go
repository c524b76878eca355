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

// Package session wires the document handle, the stores and the engines
// into one lifecycle. Open brings the system up in dependency order;
// Close tears it down in reverse.
package session

import (
	"context"

	"github.com/pagekeep-io/pagekeep/internal/config"
	"github.com/pagekeep-io/pagekeep/internal/log"
	"github.com/pagekeep-io/pagekeep/pkg/annotations"
	"github.com/pagekeep-io/pagekeep/pkg/device"
	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/lexicon"
	"github.com/pagekeep-io/pagekeep/pkg/library"
	"github.com/pagekeep-io/pagekeep/pkg/migration"
	"github.com/pagekeep-io/pagekeep/pkg/progress"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
	"github.com/pagekeep-io/pagekeep/pkg/rewind"
	"github.com/pagekeep-io/pagekeep/pkg/storage"
	"github.com/pagekeep-io/pagekeep/pkg/transport"
)

// Deps are the external collaborators the session runs against. Store is
// required; everything else is optional.
type Deps struct {
	Store       storage.Store
	Transport   transport.Transport
	DeviceID    string
	Fingerprint device.Fingerprint
	Profile     device.Profile
	Voices      device.VoiceProvider
	Notifier    device.Notifier

	// OnObsolete is forwarded to the migration runner.
	OnObsolete func(incoming int)
}

// Session is a running instance of the engine and its stores.
type Session struct {
	Handle      *replica.Handle
	Syncer      *replica.Syncer
	Library     *library.Store
	Annotations *annotations.Store
	Progress    *progress.Store
	Lexicon     *lexicon.Store
	Devices     *device.Registry
	Rewind      *rewind.Engine
	Undo        *rewind.UndoLog
	Migration   *migration.Runner

	cancel context.CancelFunc
}

type deviceID string

func (d deviceID) DeviceID() string { return string(d) }

// Open hydrates the document from the durable store, reconciles the
// schema, registers the running device and starts tracking and
// synchronization. A quarantined document still yields a usable session;
// it is read-only and disconnected until the client upgrades.
func Open(ctx context.Context, cfg *config.Config, deps Deps) (*Session, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	handle, err := replica.New(cfg.DocumentKey, replica.WithStore(deps.Store))
	if err != nil {
		return nil, err
	}

	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.LoadTimeout)
	defer cancelLoad()
	if err := handle.Load(loadCtx); err != nil {
		return nil, err
	}

	var syncer *replica.Syncer
	if deps.Transport != nil {
		syncer = replica.NewSyncer(handle, deps.Transport, cfg.SyncInterval)
		// Authorization and the first pull are best effort; local state
		// is already serviceable and the loop retries later.
		if err := deps.Transport.Authorize(ctx); err != nil {
			log.Logger.Warnf("authorize failed, continuing offline: %v", err)
		} else if err := syncer.PullOnce(ctx); err != nil {
			log.Logger.Warnf("initial pull failed, continuing with local state: %v", err)
		}
	}

	ids := deviceID(deps.DeviceID)
	s := &Session{
		Handle:      handle,
		Syncer:      syncer,
		Library:     library.NewStore(handle),
		Annotations: annotations.NewStore(handle),
		Progress:    progress.NewStore(handle, ids),
		Lexicon:     lexicon.NewStore(handle),
		Devices: device.NewRegistry(handle, ids,
			device.WithThrottle(cfg.HeartbeatThrottle),
			device.WithVoices(deps.Voices),
			device.WithNotifier(deps.Notifier),
		),
		Rewind: rewind.NewEngine(handle, rewind.WithHistoryCap(cfg.HistoryCap)),
		Undo: rewind.NewUndoLog(handle,
			rewind.WithUndoCap(cfg.UndoCap),
			rewind.WithDebounce(cfg.UndoDebounce),
		),
	}

	// The document has settled; the schema check runs exactly here, after
	// any inbound historical state and before anything writes to the
	// document, scaffolding included. An obsolete client must not touch a
	// schema it does not understand.
	var sync migration.Disconnector
	if syncer != nil {
		sync = syncer
	}
	s.Migration = migration.NewRunner(handle, sync, migration.Options{
		OnObsolete: deps.OnObsolete,
	})
	if err := s.Migration.Run(); err != nil {
		if pkerrors.IsCode(err, pkerrors.CodeObsoleteClient) {
			return s, nil
		}
		// Step failures are logged by the runner; startup continues and
		// the un-advanced version retries on next load.
	}

	if err := handle.EnsureSubtrees(replica.Subtrees); err != nil {
		return nil, err
	}

	if err := s.Devices.RegisterCurrentDevice(deps.Fingerprint, deps.Profile, ""); err != nil {
		return nil, err
	}

	s.Rewind.StartTracking()
	s.Undo.Start()

	if syncer != nil {
		syncCtx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		syncer.Start(syncCtx)
	}
	return s, nil
}

// Quarantined reports whether the session is locked by an obsolete-client
// schema mismatch.
func (s *Session) Quarantined() bool {
	return s.Migration != nil && s.Migration.State() == migration.StateQuarantined
}

// Close stops tracking and synchronization and releases the store.
func (s *Session) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.Syncer != nil {
		s.Syncer.Stop()
	}
	if s.Undo != nil {
		s.Undo.Stop()
	}
	if s.Rewind != nil {
		s.Rewind.StopTracking()
	}
	return nil
}
