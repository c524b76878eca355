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

// Package config provides the configuration of the sync engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Below are the default values of the Pagekeep engine config.
const (
	DefaultDocumentKey = "pagekeep"
	DefaultDataDir     = ".pagekeep"

	DefaultHistoryCap   = 50
	DefaultUndoCap      = 100
	DefaultUndoDebounce = 500 * time.Millisecond

	DefaultHeartbeatThrottle = 5 * time.Minute

	DefaultLoadTimeout  = 10 * time.Second
	DefaultSyncInterval = 30 * time.Second
)

// Config is the configuration for creating a Pagekeep engine instance.
type Config struct {
	// DocumentKey is the key of the shared replicated document.
	DocumentKey string `yaml:"DocumentKey"`

	// DataDir is the directory of the local durable replica.
	DataDir string `yaml:"DataDir"`

	// HistoryCap is the maximum number of rewind snapshots retained.
	HistoryCap int `yaml:"HistoryCap"`

	// UndoCap is the maximum number of undo steps retained.
	UndoCap int `yaml:"UndoCap"`

	// UndoDebounce is the window within which successive local edits
	// collapse into one undo step.
	UndoDebounce time.Duration `yaml:"UndoDebounce"`

	// HeartbeatThrottle bounds how often a device heartbeat is persisted.
	HeartbeatThrottle time.Duration `yaml:"HeartbeatThrottle"`

	// LoadTimeout bounds the initial hydration from the durable replica.
	// On timeout the engine proceeds with whatever state is available.
	LoadTimeout time.Duration `yaml:"LoadTimeout"`

	// SyncInterval is the period of the background push/pull loop.
	SyncInterval time.Duration `yaml:"SyncInterval"`
}

// NewConfig returns a Config struct that contains reasonable defaults
// for most of the configurations.
func NewConfig() *Config {
	conf := &Config{}
	conf.ensureDefaultValue()
	return conf
}

// NewConfigFromFile returns a Config struct for the given conf file.
func NewConfigFromFile(path string) (*Config, error) {
	conf := &Config{}
	bytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(bytes, conf); err != nil {
		return nil, fmt.Errorf("unmarshal config file: %w", err)
	}

	conf.ensureDefaultValue()
	return conf, nil
}

// Validate returns an error if the provided Config is invalidated.
func (c *Config) Validate() error {
	if c.DocumentKey == "" {
		return fmt.Errorf("document key must not be empty")
	}

	if c.HistoryCap <= 0 {
		return fmt.Errorf("history cap %d must be positive", c.HistoryCap)
	}

	if c.UndoCap <= 0 {
		return fmt.Errorf("undo cap %d must be positive", c.UndoCap)
	}

	if c.UndoDebounce < 0 {
		return fmt.Errorf("undo debounce %s must not be negative", c.UndoDebounce)
	}

	if c.HeartbeatThrottle < 0 {
		return fmt.Errorf("heartbeat throttle %s must not be negative", c.HeartbeatThrottle)
	}

	if c.LoadTimeout <= 0 {
		return fmt.Errorf("load timeout %s must be positive", c.LoadTimeout)
	}

	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync interval %s must be positive", c.SyncInterval)
	}

	return nil
}

// ensureDefaultValue sets the value of the option to which the default value
// should be applied when the user does not input it.
func (c *Config) ensureDefaultValue() {
	if c.DocumentKey == "" {
		c.DocumentKey = DefaultDocumentKey
	}

	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}

	if c.HistoryCap == 0 {
		c.HistoryCap = DefaultHistoryCap
	}

	if c.UndoCap == 0 {
		c.UndoCap = DefaultUndoCap
	}

	if c.UndoDebounce == 0 {
		c.UndoDebounce = DefaultUndoDebounce
	}

	if c.HeartbeatThrottle == 0 {
		c.HeartbeatThrottle = DefaultHeartbeatThrottle
	}

	if c.LoadTimeout == 0 {
		c.LoadTimeout = DefaultLoadTimeout
	}

	if c.SyncInterval == 0 {
		c.SyncInterval = DefaultSyncInterval
	}
}
