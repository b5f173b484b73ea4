// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

// Package geostate tracks the host's geolocation state. A Tracker owns one GeoState
// aggregate (coordinates, accuracy, last error, loading flag, support flag), acquires
// positions through an injected platform capability and forwards them to the remote
// persistence API.
//
// Concurrent one-shot fetches and watch callbacks are intentionally not serialized:
// each terminal outcome writes the shared state atomically, and interleaved operations
// resolve last-writer-wins. Field-level locking guarantees snapshot consistency, not
// operation ordering.
package geostate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agrisense/fieldagent/internal/api"
	"github.com/agrisense/fieldagent/internal/logger"
	"github.com/agrisense/fieldagent/internal/notify"
	"github.com/agrisense/fieldagent/internal/platform"
	"github.com/agrisense/fieldagent/internal/vartype"
)

// User-facing messages for every terminal outcome of the position operations.
const (
	MsgUnsupported         = "geolocation is not supported on this host"
	MsgPermissionDenied    = "location access denied by user"
	MsgPositionUnavailable = "location information is unavailable"
	MsgTimeout             = "location request timed out"
	MsgUnknown             = "an unknown error occurred while retrieving location"
	MsgNoLocationData      = "no location data available"
	MsgLocationUpdated     = "location updated successfully"
)

// SyncClient forwards an acquired position to the remote persistence endpoint.
type SyncClient interface {
	UpdateLocation(ctx context.Context, lat, lon float64) (*api.UpdateLocationResponse, error)
}

// Config holds the Tracker's acquisition knobs.
type Config struct {
	// RequestOptions are passed to every platform position request.
	RequestOptions platform.Options
	// AutoSync forwards every successful one-shot fix to the remote API.
	AutoSync bool
}

// State is an immutable snapshot of the GeoState aggregate for the presentation layer.
type State struct {
	Latitude  vartype.VarFloat64
	Longitude vartype.VarFloat64
	Accuracy  vartype.VarFloat64
	Error     vartype.VarString
	Loading   bool
	Supported bool
}

// Tracker is the geolocation state container. One Tracker is owned by one consumer,
// created on startup and discarded on shutdown; its state is never persisted.
type Tracker struct {
	platform platform.Capability
	sync     SyncClient
	notifier notify.Notifier
	logger   *logger.Logger

	conf      Config
	supported bool

	mu        sync.RWMutex
	latitude  vartype.VarFloat64
	longitude vartype.VarFloat64
	accuracy  vartype.VarFloat64
	lastError vartype.VarString
	loading   bool
}

// New returns a new Tracker. Capability support is detected once here and is
// immutable for the Tracker's lifetime.
func New(capability platform.Capability, syncClient SyncClient, notifier notify.Notifier,
	log *logger.Logger, conf Config,
) *Tracker {
	conf.RequestOptions = conf.RequestOptions.Normalized()
	return &Tracker{
		platform:  capability,
		sync:      syncClient,
		notifier:  notifier,
		logger:    log,
		conf:      conf,
		supported: capability != nil && capability.Supported(),
	}
}

// Supported reports whether the platform capability was available at construction time.
func (t *Tracker) Supported() bool {
	return t.supported
}

// Loading reports whether a one-shot fetch is currently in flight.
func (t *Tracker) Loading() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loading
}

// HasLocation reports whether both coordinates are present.
func (t *Tracker) HasLocation() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.latitude.IsSet() && t.longitude.IsSet()
}

// Snapshot returns a consistent copy of the current GeoState.
func (t *Tracker) Snapshot() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return State{
		Latitude:  t.latitude,
		Longitude: t.longitude,
		Accuracy:  t.accuracy,
		Error:     t.lastError,
		Loading:   t.loading,
		Supported: t.supported,
	}
}

// GetCurrentPosition performs a single one-shot position acquisition. On success the
// coordinates are updated atomically and, if auto-sync is enabled, forwarded to the
// remote API as a fire-and-forget side effect. On failure the classified message is
// stored, previously acquired coordinates stay untouched and no retry is attempted.
func (t *Tracker) GetCurrentPosition(ctx context.Context) error {
	if !t.supported {
		t.mu.Lock()
		t.lastError.Set(MsgUnsupported)
		t.mu.Unlock()
		t.notifier.Error(MsgUnsupported)
		return errors.New(MsgUnsupported)
	}

	t.mu.Lock()
	t.loading = true
	t.lastError.Reset()
	t.mu.Unlock()

	pos, err := t.platform.CurrentPosition(ctx, t.conf.RequestOptions)
	if err != nil {
		message := failureMessage(platform.CodeOf(err))
		t.mu.Lock()
		t.lastError.Set(message)
		t.loading = false
		t.mu.Unlock()
		t.logger.Debug("position acquisition failed", logger.Err(err))
		t.notifier.Error(message)
		return fmt.Errorf("%s: %w", message, err)
	}

	t.mu.Lock()
	t.latitude.Set(pos.Lat)
	t.longitude.Set(pos.Lon)
	t.accuracy.Set(pos.Accuracy)
	t.lastError.Reset()
	t.loading = false
	t.mu.Unlock()

	if t.conf.AutoSync {
		// The fetch's terminal state is fixed before the sync resolves. Its outcome
		// is reported separately through the notifier.
		go func() {
			if err := t.UpdateLocationOnServer(context.WithoutCancel(ctx)); err != nil {
				t.logger.Debug("automatic location sync failed", logger.Err(err))
			}
		}()
	}
	return nil
}

// UpdateLocationOnServer forwards the stored coordinates to the remote persistence
// endpoint. Every outcome triggers exactly one user-facing notification.
func (t *Tracker) UpdateLocationOnServer(ctx context.Context) error {
	t.mu.RLock()
	lat, lon := t.latitude, t.longitude
	t.mu.RUnlock()

	if !lat.IsSet() || !lon.IsSet() {
		t.notifier.Error(MsgNoLocationData)
		return errors.New(MsgNoLocationData)
	}

	resp, err := t.sync.UpdateLocation(ctx, lat.Value(), lon.Value())
	if err != nil {
		t.notifier.Error(err.Error())
		return err
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "location update rejected by server"
		}
		t.notifier.Error(reason)
		return errors.New(reason)
	}

	message := resp.Message
	if message == "" {
		message = MsgLocationUpdated
	}
	t.notifier.Success(message)
	return nil
}

// WatchPosition registers a continuous position subscription. Every update stores the
// new coordinates and clears the error, every watch error stores the platform message
// verbatim. Watch mode never touches the loading flag. Returns false when the
// capability is unsupported or the watch could not be started.
func (t *Tracker) WatchPosition() (platform.WatchHandle, bool) {
	if !t.supported {
		return "", false
	}

	handle, err := t.platform.WatchPosition(t.conf.RequestOptions,
		func(pos platform.Position) {
			t.mu.Lock()
			t.latitude.Set(pos.Lat)
			t.longitude.Set(pos.Lon)
			t.accuracy.Set(pos.Accuracy)
			t.lastError.Reset()
			t.mu.Unlock()
		},
		func(watchErr error) {
			t.mu.Lock()
			t.lastError.Set(watchErr.Error())
			t.mu.Unlock()
		})
	if err != nil {
		t.logger.Error("failed to start position watch", logger.Err(err))
		return "", false
	}
	return handle, true
}

// ClearWatch cancels the subscription identified by handle. The platform is only
// contacted when the capability is supported. There is no double-stop guard, tracking
// stale handles is the caller's responsibility.
func (t *Tracker) ClearWatch(handle platform.WatchHandle) {
	if !t.supported {
		return
	}
	t.platform.ClearWatch(handle)
}

// RequestPermission queries the platform's permission state for the geolocation
// capability. The probe fails open: on unsupported platforms or query errors it
// reports absence instead of failing.
func (t *Tracker) RequestPermission(ctx context.Context) (platform.PermissionState, bool) {
	if !t.supported {
		return "", false
	}
	state, err := t.platform.QueryPermission(ctx)
	if err != nil {
		t.logger.Debug("permission query failed", logger.Err(err))
		return "", false
	}
	return state, true
}

// failureMessage maps a position error code to its user-facing message.
func failureMessage(code platform.ErrorCode) string {
	switch code {
	case platform.CodePermissionDenied:
		return MsgPermissionDenied
	case platform.CodePositionUnavailable:
		return MsgPositionUnavailable
	case platform.CodeTimeout:
		return MsgTimeout
	default:
		return MsgUnknown
	}
}
