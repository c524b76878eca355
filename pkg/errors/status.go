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

package errors

// StatusCode represents the error codes used throughout the engine.
// The numbering follows the Connect/gRPC status code space so errors can
// cross a transport boundary unchanged.
type StatusCode int

const (
	// ErrCodeOK indicates the absence of an error.
	ErrCodeOK StatusCode = 0

	// ErrCodeInvalidArgument indicates that the caller specified an invalid argument.
	ErrCodeInvalidArgument StatusCode = 3

	// ErrCodeNotFound indicates that some requested entity was not found.
	ErrCodeNotFound StatusCode = 5

	// ErrCodeAlreadyExists indicates that the entity a caller attempted to create already exists.
	ErrCodeAlreadyExists StatusCode = 6

	// ErrCodeResourceExhausted indicates that some resource has been exhausted.
	ErrCodeResourceExhausted StatusCode = 8

	// ErrCodeFailedPrecondition indicates that the operation was rejected because
	// the system is not in a state required for the operation's execution.
	ErrCodeFailedPrecondition StatusCode = 9

	// ErrCodeInternal indicates that some invariants expected by the underlying
	// system have been broken.
	ErrCodeInternal StatusCode = 13

	// ErrCodeUnavailable indicates that a resource is currently unavailable.
	ErrCodeUnavailable StatusCode = 14
)

// Pagekeep-specific string codes attached to StatusErrors via WithCode.
// They identify the handful of conditions the UI layer is expected to
// branch on.
const (
	// CodeStorageFull marks a durable replica write rejected for capacity.
	// The operation is aborted and state is unchanged.
	CodeStorageFull = "ErrStorageFull"

	// CodeObsoleteClient marks a document whose stored schema version is
	// newer than this client supports. The client is quarantined.
	CodeObsoleteClient = "ErrObsoleteClient"

	// CodeSnapshotNotFound marks a restore whose target snapshot is missing.
	CodeSnapshotNotFound = "ErrSnapshotNotFound"

	// CodeMigrationStep marks a failed schema migration step. The stored
	// version is not advanced and the step is retried on next load.
	CodeMigrationStep = "ErrMigrationStep"

	// CodeQuarantined marks a write rejected because the client is
	// quarantined by an obsolete schema.
	CodeQuarantined = "ErrQuarantined"
)
