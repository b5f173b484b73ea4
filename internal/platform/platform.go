// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

// Package platform abstracts the host's geolocation capabilities behind an injectable
// interface: a one-shot position query, a continuous position watch with cancel-by-handle
// and a permission-state query. Implementations exist for gpsd and for wifi-based
// positioning; tests inject a mock implementing the same three operations.
package platform

import (
	"context"
	"time"
)

const (
	// DefaultTimeout is the default upper bound for a one-shot position request.
	DefaultTimeout = time.Second * 10
	// DefaultMaximumAge is the default staleness tolerance. A previously cached fix
	// up to this age is acceptable and served without a new platform request.
	DefaultMaximumAge = time.Minute * 5
)

// Options holds the three knobs of a position request.
type Options struct {
	// HighAccuracy requests the most accurate fix the capability can deliver.
	HighAccuracy bool
	// Timeout is the maximum duration a one-shot request may take.
	Timeout time.Duration
	// MaximumAge is the staleness tolerance for serving a cached fix.
	MaximumAge time.Duration
}

// Normalized returns a copy of the Options with unset knobs replaced by their defaults.
func (o Options) Normalized() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaximumAge < 0 {
		o.MaximumAge = DefaultMaximumAge
	}
	return o
}

// Position is a single geolocation fix.
type Position struct {
	Lat      float64
	Lon      float64
	Accuracy float64
	At       time.Time
}

// Coordinate returns the position's coordinate for validation purposes.
func (p Position) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lon: p.Lon, Acc: p.Accuracy}
}

// PermissionState represents the host's permission state for the geolocation capability.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// WatchHandle is an opaque identifier for an active continuous position subscription.
// The owner must clear it explicitly to release the underlying platform resources.
type WatchHandle string

// Capability is the injectable host geolocation interface.
type Capability interface {
	// Supported reports whether the capability is available on this host. It is
	// determined once at construction time.
	Supported() bool
	// CurrentPosition performs a single one-shot position acquisition. It blocks until
	// the platform resolves or the configured timeout elapses.
	CurrentPosition(ctx context.Context, opts Options) (Position, error)
	// WatchPosition registers a continuous subscription. Every new fix is delivered to
	// onPosition, every platform error to onError, until the handle is cleared.
	WatchPosition(opts Options, onPosition func(Position), onError func(error)) (WatchHandle, error)
	// ClearWatch cancels the subscription identified by handle.
	ClearWatch(handle WatchHandle)
	// QueryPermission returns the current permission state for the capability.
	QueryPermission(ctx context.Context) (PermissionState, error)
}
