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

// Package transport defines the remote delta source/sink the engine
// synchronizes with. Wire format and authentication are owned by the
// implementation; the engine only exchanges change packs.
package transport

import (
	"context"

	"github.com/yorkie-team/yorkie/pkg/document/change"
)

// Transport exchanges document deltas with a remote replica.
type Transport interface {
	// Authorize establishes or refreshes the remote session.
	Authorize(ctx context.Context) error

	// Pull fetches remote change packs not yet applied locally.
	Pull(ctx context.Context) ([]*change.Pack, error)

	// Push sends local changes and returns the server's acknowledgement
	// pack, which may carry further remote changes.
	Push(ctx context.Context, pack *change.Pack) (*change.Pack, error)
}
