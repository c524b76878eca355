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

// Package main is the entry point of the Pagekeep CLI.
package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pagekeep-io/pagekeep/internal/config"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
	"github.com/pagekeep-io/pagekeep/pkg/storage/badgerdb"
)

var (
	dataDir     string
	documentKey string
)

var rootCmd = &cobra.Command{
	Use:   "pagekeep",
	Short: "Consistency and versioning engine for a local-first e-book library",
}

// Run executes CLI.
func Run() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}

	return 0
}

// openHandle hydrates a document handle from the local durable replica.
// The caller must invoke the returned closer.
func openHandle(ctx context.Context) (*replica.Handle, func() error, error) {
	store, err := badgerdb.Open(dataDir)
	if err != nil {
		return nil, nil, err
	}

	handle, err := replica.New(documentKey, replica.WithStore(store))
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	loadCtx, cancel := context.WithTimeout(ctx, config.DefaultLoadTimeout)
	defer cancel()
	if err := handle.Load(loadCtx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	return handle, store.Close, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&dataDir,
		"data-dir",
		config.DefaultDataDir,
		"Directory of the local durable replica",
	)
	rootCmd.PersistentFlags().StringVar(
		&documentKey,
		"document-key",
		config.DefaultDocumentKey,
		"Key of the shared replicated document",
	)
}
