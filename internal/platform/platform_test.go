// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package platform

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestOptions_Normalized(t *testing.T) {
	t.Run("zero options get defaults", func(t *testing.T) {
		opts := Options{}.Normalized()
		if opts.Timeout != DefaultTimeout {
			t.Errorf("expected timeout to be %s, got %s", DefaultTimeout, opts.Timeout)
		}
		if opts.MaximumAge != 0 {
			t.Errorf("expected maximum age to stay 0, got %s", opts.MaximumAge)
		}
	})
	t.Run("negative maximum age gets default", func(t *testing.T) {
		opts := Options{MaximumAge: -1}.Normalized()
		if opts.MaximumAge != DefaultMaximumAge {
			t.Errorf("expected maximum age to be %s, got %s", DefaultMaximumAge, opts.MaximumAge)
		}
	})
	t.Run("set options are preserved", func(t *testing.T) {
		opts := Options{HighAccuracy: true, Timeout: time.Second, MaximumAge: time.Minute}.Normalized()
		if !opts.HighAccuracy {
			t.Error("expected high accuracy to be preserved")
		}
		if opts.Timeout != time.Second {
			t.Errorf("expected timeout to be 1s, got %s", opts.Timeout)
		}
		if opts.MaximumAge != time.Minute {
			t.Errorf("expected maximum age to be 1m, got %s", opts.MaximumAge)
		}
	})
}

func TestCoordinate_Valid(t *testing.T) {
	tests := []struct {
		name  string
		lat   float64
		lon   float64
		valid bool
	}{
		{"valid coordinate", 12.9, 77.6, true},
		{"latitude too low", -91, 0, false},
		{"latitude too high", 91, 0, false},
		{"longitude too low", 0, -181, false},
		{"longitude too high", 0, 181, false},
		{"boundary values", -90, 180, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Coordinate{Lat: tc.lat, Lon: tc.lon}
			if c.Valid() != tc.valid {
				t.Errorf("expected valid to be %t for (%f, %f)", tc.valid, tc.lat, tc.lon)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate(12.987654, TruncPrecision); got != 12.9876 {
		t.Errorf("expected 12.9876, got %f", got)
	}
	if got := Truncate(-77.654321, TruncPrecision); got != -77.6543 {
		t.Errorf("expected -77.6543, got %f", got)
	}
}

func TestCodeOf(t *testing.T) {
	t.Run("position errors carry their code", func(t *testing.T) {
		tests := []struct {
			name string
			code ErrorCode
		}{
			{"permission denied", CodePermissionDenied},
			{"position unavailable", CodePositionUnavailable},
			{"timeout", CodeTimeout},
			{"unknown", CodeUnknown},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				err := NewPositionError(tc.code, "test failure")
				if CodeOf(err) != tc.code {
					t.Errorf("expected code %d, got %d", tc.code, CodeOf(err))
				}
			})
		}
	})
	t.Run("wrapped position errors keep their code", func(t *testing.T) {
		inner := WrapPositionError(CodeTimeout, context.DeadlineExceeded)
		outer := errors.Join(errors.New("outer"), inner)
		if CodeOf(outer) != CodeTimeout {
			t.Errorf("expected code %d, got %d", CodeTimeout, CodeOf(outer))
		}
		if !errors.Is(inner, context.DeadlineExceeded) {
			t.Error("expected wrapped error to match context.DeadlineExceeded")
		}
	})
	t.Run("plain errors classify as unknown", func(t *testing.T) {
		if CodeOf(errors.New("plain")) != CodeUnknown {
			t.Errorf("expected code %d, got %d", CodeUnknown, CodeOf(errors.New("plain")))
		}
	})
}

func TestClassifyGPSDError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"deadline exceeded maps to timeout", context.DeadlineExceeded, CodeTimeout},
		{"io deadline maps to timeout", os.ErrDeadlineExceeded, CodeTimeout},
		{"dial failure maps to unavailable", errors.New("connection refused"), CodePositionUnavailable},
		{"position errors pass through", NewPositionError(CodePositionUnavailable, "no fix"), CodePositionUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(classifyGPSDError(tc.err)); got != tc.want {
				t.Errorf("expected code %d, got %d", tc.want, got)
			}
		})
	}
}

func TestClassifyWiFiError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"permission error maps to denied", os.ErrPermission, CodePermissionDenied},
		{"deadline maps to timeout", context.DeadlineExceeded, CodeTimeout},
		{"lookup failure maps to unavailable", errors.New("api unreachable"), CodePositionUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CodeOf(classifyWiFiError(tc.err)); got != tc.want {
				t.Errorf("expected code %d, got %d", tc.want, got)
			}
		})
	}
}
