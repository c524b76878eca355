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
	gotime "time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pagekeep-io/pagekeep/pkg/device"
)

type noDevice struct{}

func (noDevice) DeviceID() string { return "" }

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List the devices registered in the local replica",
		RunE: func(cmd *cobra.Command, args []string) error {
			handle, closer, err := openHandle(context.Background())
			if err != nil {
				return err
			}
			defer func() {
				_ = closer()
			}()

			registry := device.NewRegistry(handle, noDevice{})
			records, err := registry.ListDevices()
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.Style().Options.DrawBorder = false
			tw.Style().Options.SeparateColumns = false
			tw.Style().Options.SeparateFooter = false
			tw.Style().Options.SeparateHeader = false
			tw.Style().Options.SeparateRows = false
			tw.AppendHeader(table.Row{
				"ID",
				"NAME",
				"PLATFORM",
				"BROWSER",
				"LAST ACTIVE",
			})
			for _, rec := range records {
				tw.AppendRow(table.Row{
					rec.ID,
					rec.Name,
					rec.Platform,
					rec.Browser,
					gotime.UnixMilli(rec.LastActive).Format(gotime.RFC3339),
				})
			}
			cmd.Printf("%s\n", tw.Render())
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newDevicesCmd())
}
