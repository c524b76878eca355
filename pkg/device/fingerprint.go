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

package device

import (
	"fmt"

	"github.com/mileusna/useragent"
)

// Fingerprint describes the environment the client currently runs in. It
// is captured on every registration; only the synthesized name survives
// fingerprint changes.
type Fingerprint struct {
	Platform   string
	Browser    string
	Model      string
	UserAgent  string
	AppVersion string
}

// ParseFingerprint builds a fingerprint from a raw user-agent string and
// the application version.
func ParseFingerprint(rawUA, appVersion string) Fingerprint {
	ua := useragent.Parse(rawUA)
	return Fingerprint{
		Platform:   ua.OS,
		Browser:    ua.Name,
		Model:      ua.Device,
		UserAgent:  rawUA,
		AppVersion: appVersion,
	}
}

// SynthesizeName derives a human-readable device name from the
// fingerprint. It runs once per device; renames stick afterwards.
func (f Fingerprint) SynthesizeName() string {
	switch {
	case f.Browser != "" && f.Platform != "" && f.Model != "":
		return fmt.Sprintf("%s on %s (%s)", f.Browser, f.Platform, f.Model)
	case f.Browser != "" && f.Platform != "":
		return fmt.Sprintf("%s on %s", f.Browser, f.Platform)
	case f.Browser != "":
		return f.Browser
	case f.Platform != "":
		return f.Platform
	default:
		return "Unknown device"
	}
}
