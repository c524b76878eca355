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

package replica

import (
	"context"
	"sync"
	gotime "time"

	"github.com/pagekeep-io/pagekeep/internal/log"
	"github.com/pagekeep-io/pagekeep/pkg/transport"
)

// Syncer exchanges change packs with the remote replica in the
// background. Local reads and writes never wait on it; remote changes
// become visible only once the merge applies them.
type Syncer struct {
	mu        sync.Mutex
	handle    *Handle
	transport transport.Transport
	interval  gotime.Duration

	cancel       context.CancelFunc
	done         chan struct{}
	disconnected bool
}

// NewSyncer creates a syncer over the given transport.
func NewSyncer(handle *Handle, tr transport.Transport, interval gotime.Duration) *Syncer {
	return &Syncer{
		handle:    handle,
		transport: tr,
		interval:  interval,
	}
}

// Start launches the background push/pull loop. It is a no-op if the
// syncer was disconnected.
func (s *Syncer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected || s.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		ticker := gotime.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if err := s.SyncOnce(loopCtx); err != nil {
					log.Logger.Warnf("background sync: %v", err)
				}
			}
		}
	}()
}

// SyncOnce performs one pull followed by one push.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if err := s.PullOnce(ctx); err != nil {
		return err
	}
	return s.PushOnce(ctx)
}

// PullOnce fetches and merges remote change packs.
func (s *Syncer) PullOnce(ctx context.Context) error {
	packs, err := s.transport.Pull(ctx)
	if err != nil {
		return err
	}
	for _, pack := range packs {
		if err := s.handle.ApplyRemotePack(pack); err != nil {
			return err
		}
	}
	return nil
}

// PushOnce sends pending local changes and applies the acknowledgement.
func (s *Syncer) PushOnce(ctx context.Context) error {
	pack := s.handle.PendingPack()
	if len(pack.Changes) == 0 {
		return nil
	}

	ack, err := s.transport.Push(ctx, pack)
	if err != nil {
		return err
	}
	return s.handle.Acknowledge(ack)
}

// Disconnect severs the synchronization channel permanently. Used when
// the client is quarantined by an obsolete schema.
func (s *Syncer) Disconnect() {
	s.mu.Lock()
	s.disconnected = true
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Connected reports whether the syncer may exchange deltas.
func (s *Syncer) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.disconnected
}

// Stop halts the background loop without severing future syncs.
func (s *Syncer) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
