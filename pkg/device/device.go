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

// Package device keeps the roster of devices that share the replicated
// document, one record per device under devices[deviceId].
package device

import (
	"fmt"
	"sort"
	gotime "time"

	"github.com/yorkie-team/yorkie/pkg/document/json"
	"github.com/yorkie-team/yorkie/pkg/document/yson"

	"github.com/pagekeep-io/pagekeep/internal/validation"
	pkerrors "github.com/pagekeep-io/pagekeep/pkg/errors"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

// HeartbeatThrottle is the minimum interval between persisted lastActive
// updates for a device.
const HeartbeatThrottle = 5 * gotime.Minute

// IDProvider returns a stable identifier of the running device.
type IDProvider interface {
	DeviceID() string
}

// VoiceProvider reports whether a TTS voice is installed locally.
type VoiceProvider interface {
	HasVoice(uri string) bool
}

// Notifier receives non-blocking user-facing notices.
type Notifier interface {
	Notify(message string)
}

// Profile holds the preferences a device carries and can lend to others.
type Profile struct {
	Theme       string
	FontSize    int
	TTSVoiceURI string
	TTSRate     float64
	TTSPitch    float64
}

// Record is one device's entry in the roster.
type Record struct {
	ID         string
	Name       string
	Platform   string
	Browser    string
	Model      string
	UserAgent  string
	AppVersion string
	Created    int64
	LastActive int64
	Profile    Profile
}

// Registry exposes the device roster operations.
type Registry struct {
	handle   *replica.Handle
	ids      IDProvider
	voices   VoiceProvider
	notifier Notifier
	throttle gotime.Duration
	now      func() gotime.Time
}

// RegistryOption configures a registry.
type RegistryOption func(*Registry)

// WithThrottle overrides the heartbeat throttle interval.
func WithThrottle(d gotime.Duration) RegistryOption {
	return func(r *Registry) { r.throttle = d }
}

// WithVoices wires the local voice inventory used by CloneProfile.
func WithVoices(v VoiceProvider) RegistryOption {
	return func(r *Registry) { r.voices = v }
}

// WithNotifier wires the notification sink for soft failures.
func WithNotifier(n Notifier) RegistryOption {
	return func(r *Registry) { r.notifier = n }
}

// NewRegistry creates a device registry over the given handle.
func NewRegistry(handle *replica.Handle, ids IDProvider, opts ...RegistryOption) *Registry {
	r := &Registry{
		handle:   handle,
		ids:      ids,
		throttle: HeartbeatThrottle,
		now:      gotime.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterCurrentDevice upserts the record of the running device. It is
// idempotent: created survives re-registration, and a name is synthesized
// from the fingerprint only when the record never had one and none is
// supplied. Fingerprint fields and lastActive always refresh.
func (r *Registry) RegisterCurrentDevice(fp Fingerprint, profile Profile, name string) error {
	deviceID := r.ids.DeviceID()
	now := r.now().UnixMilli()

	existing, err := r.GetDevice(deviceID)
	if err != nil {
		return err
	}

	created := now
	if existing != nil && existing.Created > 0 {
		created = existing.Created
	}
	finalName := name
	if finalName == "" {
		if existing != nil && existing.Name != "" {
			finalName = existing.Name
		} else {
			finalName = fp.SynthesizeName()
		}
	}

	return r.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeDevices},
		"register device",
		func(root *json.Object) error {
			rec := ensureRecord(root, deviceID)
			rec.SetString("id", deviceID)
			rec.SetString("name", finalName)
			rec.SetString("platform", fp.Platform)
			rec.SetString("browser", fp.Browser)
			rec.SetString("model", fp.Model)
			rec.SetString("userAgent", fp.UserAgent)
			rec.SetString("appVersion", fp.AppVersion)
			rec.SetLong("created", created)
			rec.SetLong("lastActive", now)
			setProfile(rec, profile)
			return nil
		},
	)
}

// TouchDevice refreshes the device's lastActive timestamp. Heartbeats
// inside the throttle window are dropped without opening a transaction.
func (r *Registry) TouchDevice(deviceID string) error {
	existing, err := r.GetDevice(deviceID)
	if err != nil {
		return err
	}
	if existing == nil {
		return pkerrors.NotFound(fmt.Sprintf("device %q is not registered", deviceID))
	}

	now := r.now().UnixMilli()
	if now-existing.LastActive < r.throttle.Milliseconds() {
		return nil
	}

	return r.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeDevices},
		"device heartbeat",
		func(root *json.Object) error {
			rec := ensureRecord(root, deviceID)
			rec.SetLong("lastActive", now)
			return nil
		},
	)
}

// RenameDevice sets a user-chosen device name. A renamed device is never
// re-synthesized.
func (r *Registry) RenameDevice(deviceID, name string) error {
	if err := validation.ValidateDeviceName(name); err != nil {
		return err
	}
	existing, err := r.GetDevice(deviceID)
	if err != nil {
		return err
	}
	if existing == nil {
		return pkerrors.NotFound(fmt.Sprintf("device %q is not registered", deviceID))
	}

	return r.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeDevices},
		"rename device",
		func(root *json.Object) error {
			ensureRecord(root, deviceID).SetString("name", name)
			return nil
		},
	)
}

// DeleteDevice removes a device record. Progress written by the device
// stays; it still feeds reconciliation on other devices.
func (r *Registry) DeleteDevice(deviceID string) error {
	existing, err := r.GetDevice(deviceID)
	if err != nil {
		return err
	}
	if existing == nil {
		return pkerrors.NotFound(fmt.Sprintf("device %q is not registered", deviceID))
	}

	return r.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeDevices},
		"delete device",
		func(root *json.Object) error {
			devices := root.GetObject(replica.SubtreeDevices)
			if devices != nil && devices.Has(deviceID) {
				devices.Delete(deviceID)
			}
			return nil
		},
	)
}

// CloneProfile copies the source device's profile onto the target device.
// A voice identifier that is not installed locally is skipped with a soft
// notice; every other field still transfers.
func (r *Registry) CloneProfile(fromID, toID string) error {
	src, err := r.GetDevice(fromID)
	if err != nil {
		return err
	}
	if src == nil {
		return pkerrors.NotFound(fmt.Sprintf("device %q is not registered", fromID))
	}
	dst, err := r.GetDevice(toID)
	if err != nil {
		return err
	}
	if dst == nil {
		return pkerrors.NotFound(fmt.Sprintf("device %q is not registered", toID))
	}

	cloned := src.Profile
	if cloned.TTSVoiceURI != "" && (r.voices == nil || !r.voices.HasVoice(cloned.TTSVoiceURI)) {
		if r.notifier != nil {
			r.notifier.Notify("voice " + cloned.TTSVoiceURI + " is not available on this device")
		}
		cloned.TTSVoiceURI = dst.Profile.TTSVoiceURI
	}

	return r.handle.Update(
		replica.OriginLocal,
		[]string{replica.SubtreeDevices},
		"clone profile",
		func(root *json.Object) error {
			setProfile(ensureRecord(root, toID), cloned)
			return nil
		},
	)
}

// GetDevice returns a device record, or nil when none exists.
func (r *Registry) GetDevice(deviceID string) (*Record, error) {
	devices, err := r.handle.SubtreeData(replica.SubtreeDevices)
	if err != nil {
		return nil, err
	}
	data := replica.ObjectOf(devices, deviceID)
	if data == nil {
		return nil, nil
	}
	return decodeRecord(deviceID, data), nil
}

// ListDevices returns every registered device sorted by name, then ID.
func (r *Registry) ListDevices() ([]*Record, error) {
	devices, err := r.handle.SubtreeData(replica.SubtreeDevices)
	if err != nil {
		return nil, err
	}

	out := make([]*Record, 0, len(devices))
	for id, v := range devices {
		data, ok := v.(yson.Object)
		if !ok {
			continue
		}
		out = append(out, decodeRecord(id, data))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func decodeRecord(deviceID string, data yson.Object) *Record {
	created, _ := replica.Int64Of(data, "created")
	lastActive, _ := replica.Int64Of(data, "lastActive")
	rec := &Record{
		ID:         deviceID,
		Name:       replica.StringOf(data, "name"),
		Platform:   replica.StringOf(data, "platform"),
		Browser:    replica.StringOf(data, "browser"),
		Model:      replica.StringOf(data, "model"),
		UserAgent:  replica.StringOf(data, "userAgent"),
		AppVersion: replica.StringOf(data, "appVersion"),
		Created:    created,
		LastActive: lastActive,
	}
	if prof := replica.ObjectOf(data, "profile"); prof != nil {
		fontSize, _ := replica.IntOf(prof, "fontSize")
		rate, _ := replica.FloatOf(prof, "ttsRate")
		pitch, _ := replica.FloatOf(prof, "ttsPitch")
		rec.Profile = Profile{
			Theme:       replica.StringOf(prof, "theme"),
			FontSize:    fontSize,
			TTSVoiceURI: replica.StringOf(prof, "ttsVoiceUri"),
			TTSRate:     rate,
			TTSPitch:    pitch,
		}
	}
	return rec
}

func ensureRecord(root *json.Object, deviceID string) *json.Object {
	devices := root.GetObject(replica.SubtreeDevices)
	if devices == nil {
		devices = root.SetNewObject(replica.SubtreeDevices)
	}
	rec := devices.GetObject(deviceID)
	if rec == nil {
		rec = devices.SetNewObject(deviceID)
	}
	return rec
}

func setProfile(rec *json.Object, profile Profile) {
	prof := rec.GetObject("profile")
	if prof == nil {
		prof = rec.SetNewObject("profile")
	}
	prof.SetString("theme", profile.Theme)
	prof.SetInteger("fontSize", profile.FontSize)
	prof.SetString("ttsVoiceUri", profile.TTSVoiceURI)
	prof.SetDouble("ttsRate", profile.TTSRate)
	prof.SetDouble("ttsPitch", profile.TTSPitch)
}
