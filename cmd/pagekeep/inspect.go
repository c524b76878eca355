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

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Dump the local replicated document as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, closer, err := openHandle(context.Background())
			if err != nil {
				return err
			}
			defer func() {
				_ = closer()
			}()

			settings, err := handle.SubtreeData(replica.SubtreeSettings)
			if err != nil {
				return err
			}
			schema, ok := replica.IntOf(settings, "schemaVersion")
			if !ok {
				schema = 1
			}

			cmd.Printf("schema version: v%d\n", schema)
			cmd.Printf("%s\n", handle.Marshal())
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newInspectCmd())
}
