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

package device_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pagekeep-io/pagekeep/pkg/device"
	"github.com/pagekeep-io/pagekeep/pkg/replica"
)

type deviceID string

func (d deviceID) DeviceID() string { return string(d) }

type fakeVoices struct {
	available map[string]bool
}

func (f fakeVoices) HasVoice(uri string) bool { return f.available[uri] }

type fakeNotifier struct {
	messages []string
}

func (f *fakeNotifier) Notify(message string) { f.messages = append(f.messages, message) }

func newHandle(t *testing.T) *replica.Handle {
	t.Helper()
	handle, err := replica.New("test-doc")
	assert.NoError(t, err)
	return handle
}

var testFP = device.Fingerprint{
	Platform:   "macOS",
	Browser:    "Chrome",
	UserAgent:  "Mozilla/5.0 test",
	AppVersion: "1.2.3",
}

func TestRegisterCurrentDevice(t *testing.T) {
	t.Run("first registration synthesizes a name test", func(t *testing.T) {
		registry := device.NewRegistry(newHandle(t), deviceID("dev-1"))

		assert.NoError(t, registry.RegisterCurrentDevice(testFP, device.Profile{Theme: "dark"}, ""))

		rec, err := registry.GetDevice("dev-1")
		assert.NoError(t, err)
		assert.Equal(t, "Chrome on macOS", rec.Name)
		assert.Equal(t, "dark", rec.Profile.Theme)
		assert.NotZero(t, rec.Created)
		assert.NotZero(t, rec.LastActive)
	})

	t.Run("re-registration preserves created and name test", func(t *testing.T) {
		registry := device.NewRegistry(newHandle(t), deviceID("dev-1"))

		assert.NoError(t, registry.RegisterCurrentDevice(testFP, device.Profile{}, ""))
		assert.NoError(t, registry.RenameDevice("dev-1", "My Mac"))

		first, err := registry.GetDevice("dev-1")
		assert.NoError(t, err)

		newFP := testFP
		newFP.AppVersion = "1.3.0"
		assert.NoError(t, registry.RegisterCurrentDevice(newFP, device.Profile{}, ""))

		rec, err := registry.GetDevice("dev-1")
		assert.NoError(t, err)
		assert.Equal(t, "My Mac", rec.Name)
		assert.Equal(t, first.Created, rec.Created)
		assert.Equal(t, "1.3.0", rec.AppVersion)
	})

	t.Run("explicit name wins over synthesis test", func(t *testing.T) {
		registry := device.NewRegistry(newHandle(t), deviceID("dev-1"))

		assert.NoError(t, registry.RegisterCurrentDevice(testFP, device.Profile{}, "Study Tablet"))

		rec, err := registry.GetDevice("dev-1")
		assert.NoError(t, err)
		assert.Equal(t, "Study Tablet", rec.Name)
	})
}

func TestTouchDevice(t *testing.T) {
	t.Run("heartbeat inside the throttle window is dropped test", func(t *testing.T) {
		handle := newHandle(t)
		registry := device.NewRegistry(handle, deviceID("dev-1"))
		assert.NoError(t, registry.RegisterCurrentDevice(testFP, device.Profile{}, ""))

		heartbeats := 0
		cancel := handle.Subscribe(func(ev replica.TxEvent) {
			if ev.Message == "device heartbeat" {
				heartbeats++
			}
		})
		defer cancel()

		assert.NoError(t, registry.TouchDevice("dev-1"))
		assert.NoError(t, registry.TouchDevice("dev-1"))
		assert.Equal(t, 0, heartbeats)
	})

	t.Run("zero throttle always persists test", func(t *testing.T) {
		handle := newHandle(t)
		registry := device.NewRegistry(handle, deviceID("dev-1"), device.WithThrottle(0))
		assert.NoError(t, registry.RegisterCurrentDevice(testFP, device.Profile{}, ""))

		heartbeats := 0
		cancel := handle.Subscribe(func(ev replica.TxEvent) {
			if ev.Message == "device heartbeat" {
				heartbeats++
			}
		})
		defer cancel()

		assert.NoError(t, registry.TouchDevice("dev-1"))
		assert.Equal(t, 1, heartbeats)
	})

	t.Run("unknown device test", func(t *testing.T) {
		registry := device.NewRegistry(newHandle(t), deviceID("dev-1"))
		assert.Error(t, registry.TouchDevice("ghost"))
	})
}

func TestRenameDevice(t *testing.T) {
	registry := device.NewRegistry(newHandle(t), deviceID("dev-1"))
	assert.NoError(t, registry.RegisterCurrentDevice(testFP, device.Profile{}, ""))

	assert.NoError(t, registry.RenameDevice("dev-1", "Bedside Reader"))
	rec, err := registry.GetDevice("dev-1")
	assert.NoError(t, err)
	assert.Equal(t, "Bedside Reader", rec.Name)

	assert.Error(t, registry.RenameDevice("dev-1", ""))
	assert.Error(t, registry.RenameDevice("dev-1", "   "))
	assert.Error(t, registry.RenameDevice("ghost", "Name"))
}

func TestDeleteDevice(t *testing.T) {
	registry := device.NewRegistry(newHandle(t), deviceID("dev-1"))
	assert.NoError(t, registry.RegisterCurrentDevice(testFP, device.Profile{}, ""))

	assert.NoError(t, registry.DeleteDevice("dev-1"))

	rec, err := registry.GetDevice("dev-1")
	assert.NoError(t, err)
	assert.Nil(t, rec)

	assert.Error(t, registry.DeleteDevice("dev-1"))
}

func TestCloneProfile(t *testing.T) {
	t.Run("available voice transfers test", func(t *testing.T) {
		handle := newHandle(t)
		notifier := &fakeNotifier{}
		voices := fakeVoices{available: map[string]bool{"voice://en-gb": true}}

		src := device.NewRegistry(handle, deviceID("src"))
		assert.NoError(t, src.RegisterCurrentDevice(testFP, device.Profile{
			Theme:       "sepia",
			FontSize:    18,
			TTSVoiceURI: "voice://en-gb",
			TTSRate:     1.25,
			TTSPitch:    0.9,
		}, ""))

		dst := device.NewRegistry(handle, deviceID("dst"),
			device.WithVoices(voices), device.WithNotifier(notifier))
		assert.NoError(t, dst.RegisterCurrentDevice(testFP, device.Profile{Theme: "light"}, ""))

		assert.NoError(t, dst.CloneProfile("src", "dst"))

		rec, err := dst.GetDevice("dst")
		assert.NoError(t, err)
		assert.Equal(t, "sepia", rec.Profile.Theme)
		assert.Equal(t, 18, rec.Profile.FontSize)
		assert.Equal(t, "voice://en-gb", rec.Profile.TTSVoiceURI)
		assert.Equal(t, 1.25, rec.Profile.TTSRate)
		assert.Empty(t, notifier.messages)
	})

	t.Run("missing voice fails softly test", func(t *testing.T) {
		handle := newHandle(t)
		notifier := &fakeNotifier{}

		src := device.NewRegistry(handle, deviceID("src"))
		assert.NoError(t, src.RegisterCurrentDevice(testFP, device.Profile{
			Theme:       "sepia",
			TTSVoiceURI: "voice://exotic",
		}, ""))

		dst := device.NewRegistry(handle, deviceID("dst"),
			device.WithVoices(fakeVoices{}), device.WithNotifier(notifier))
		assert.NoError(t, dst.RegisterCurrentDevice(testFP, device.Profile{
			TTSVoiceURI: "voice://local",
		}, ""))

		assert.NoError(t, dst.CloneProfile("src", "dst"))

		rec, err := dst.GetDevice("dst")
		assert.NoError(t, err)
		assert.Equal(t, "sepia", rec.Profile.Theme)
		assert.Equal(t, "voice://local", rec.Profile.TTSVoiceURI)
		assert.Len(t, notifier.messages, 1)
	})

	t.Run("unknown source test", func(t *testing.T) {
		registry := device.NewRegistry(newHandle(t), deviceID("dev-1"))
		assert.NoError(t, registry.RegisterCurrentDevice(testFP, device.Profile{}, ""))
		assert.Error(t, registry.CloneProfile("ghost", "dev-1"))
	})
}

func TestSynthesizeName(t *testing.T) {
	cases := []struct {
		fp       device.Fingerprint
		expected string
	}{
		{device.Fingerprint{Browser: "Firefox", Platform: "Linux"}, "Firefox on Linux"},
		{device.Fingerprint{Browser: "Safari", Platform: "iOS", Model: "iPad"}, "Safari on iOS (iPad)"},
		{device.Fingerprint{Browser: "Edge"}, "Edge"},
		{device.Fingerprint{Platform: "Windows"}, "Windows"},
		{device.Fingerprint{}, "Unknown device"},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, c.fp.SynthesizeName())
	}
}

func TestParseFingerprint(t *testing.T) {
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	fp := device.ParseFingerprint(ua, "2.0.0")

	assert.Equal(t, "Chrome", fp.Browser)
	assert.NotEmpty(t, fp.Platform)
	assert.Equal(t, ua, fp.UserAgent)
	assert.Equal(t, "2.0.0", fp.AppVersion)
}
