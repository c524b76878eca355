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

// Package migration upgrades the replicated document schema in place and
// quarantines clients that are older than the document they loaded.
package migration

import (
	"fmt"

	"github.com/yorkie-team/yorkie/pkg/document/json"

	"github.com/pagekeep-io/pagekeep/internal/log"
	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

// SupportedVersion is the highest schema version this build understands.
const SupportedVersion = 4

// versionKey is where the schema version lives inside the settings
// subtree. A document without it is version 1.
const versionKey = "schemaVersion"

// State is the runner's lifecycle position.
type State int

// Runner states.
const (
	StateUnknown State = iota
	StateChecking
	StateQuarantined
	StateMigrating
	StateUpToDate
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateQuarantined:
		return "quarantined"
	case StateMigrating:
		return "migrating"
	case StateUpToDate:
		return "up-to-date"
	default:
		return "unknown"
	}
}

// Disconnector severs replication permanently. Satisfied by
// replica.Syncer.
type Disconnector interface {
	Disconnect()
}

// Options configures a runner.
type Options struct {
	// SchemaVersion is the version this build targets. Zero means
	// SupportedVersion.
	SchemaVersion int

	// OnObsolete is called with the stored version when the document is
	// newer than this build. Optional.
	OnObsolete func(incoming int)
}

// Runner checks the stored schema version against the supported one and
// either upgrades the document or quarantines the client.
type Runner struct {
	handle *replica.Handle
	sync   Disconnector
	opts   Options
	state  State
}

// NewRunner creates a migration runner. sync may be nil when the session
// runs offline.
func NewRunner(handle *replica.Handle, sync Disconnector, opts Options) *Runner {
	if opts.SchemaVersion == 0 {
		opts.SchemaVersion = SupportedVersion
	}
	return &Runner{handle: handle, sync: sync, opts: opts, state: StateUnknown}
}

// State returns the runner's current state.
func (r *Runner) State() State {
	return r.state
}

// Run inspects the stored schema version once the document has settled
// after load.
//
// Stored newer than supported: the client is obsolete. Replication is
// severed and the handle write-locked before any local change can leak
// into a schema this build does not understand; the returned error carries
// CodeObsoleteClient. Stored older: each pending step runs in its own
// transaction and the version advances only after all steps succeed, so a
// failed step leaves the version unadvanced and the next startup retries.
// Step failure is not fatal to startup.
func (r *Runner) Run() error {
	r.state = StateChecking

	stored, err := r.storedVersion()
	if err != nil {
		r.state = StateUnknown
		return err
	}
	target := r.opts.SchemaVersion

	if stored > target {
		r.state = StateQuarantined
		if r.sync != nil {
			r.sync.Disconnect()
		}
		r.handle.Lock(fmt.Sprintf("document schema v%d is newer than supported v%d", stored, target))
		if r.opts.OnObsolete != nil {
			r.opts.OnObsolete(stored)
		}
		log.Logger.Warnf("quarantined: document schema v%d, supported v%d", stored, target)
		return pkerrors.FailedPrecond(
			fmt.Sprintf("document schema v%d requires a newer client (supported v%d)", stored, target),
		).WithCode(pkerrors.CodeObsoleteClient)
	}

	if stored == target {
		r.state = StateUpToDate
		return nil
	}

	r.state = StateMigrating
	for v := stored + 1; v <= target; v++ {
		step, ok := steps[v]
		if !ok {
			// A gap in the step table means the version bump carried no
			// data change.
			continue
		}
		log.Logger.Infof("migrating schema to v%d: %s", v, step.description)
		if err := r.handle.Update(
			replica.OriginStorage,
			step.subtrees,
			fmt.Sprintf("migrate schema to v%d", v),
			step.apply,
		); err != nil {
			r.state = StateUnknown
			log.Logger.Errorf("schema migration to v%d failed: %v", v, err)
			return pkerrors.Internal(
				fmt.Sprintf("schema migration to v%d: %v", v, err),
			).WithCode(pkerrors.CodeMigrationStep)
		}
	}

	if err := r.writeVersion(target); err != nil {
		r.state = StateUnknown
		return err
	}
	r.state = StateUpToDate
	log.Logger.Infof("document schema at v%d", target)
	return nil
}

func (r *Runner) storedVersion() (int, error) {
	settings, err := r.handle.SubtreeData(replica.SubtreeSettings)
	if err != nil {
		return 0, err
	}
	if v, ok := replica.IntOf(settings, versionKey); ok {
		return v, nil
	}
	return 1, nil
}

func (r *Runner) writeVersion(v int) error {
	return r.handle.Update(
		replica.OriginStorage,
		[]string{replica.SubtreeSettings},
		fmt.Sprintf("record schema v%d", v),
		func(root *json.Object) error {
			settings := root.GetObject(replica.SubtreeSettings)
			if settings == nil {
				settings = root.SetNewObject(replica.SubtreeSettings)
			}
			settings.SetLong(versionKey, int64(v))
			return nil
		},
	)
}
