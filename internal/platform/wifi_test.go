// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package platform

import (
	"context"
	"errors"
	"io"
	"log/slog"
	stdhttp "net/http"
	"os"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"github.com/agrisense/fieldagent/internal/http"
	"github.com/agrisense/fieldagent/internal/logger"
	"github.com/agrisense/fieldagent/internal/testhelper"
)

const geolocateResponse = `{"location":{"lat":12.9716,"lng":77.5946},"accuracy":25.0}`

func newTestWiFi(rtFn func(req *stdhttp.Request) (*stdhttp.Response, error)) *WiFi {
	client := http.New(logger.New(slog.LevelInfo))
	if rtFn != nil {
		client.Transport = testhelper.MockRoundTripper{Fn: rtFn}
	}
	w := &WiFi{
		endpoint:  DefaultGeolocateEndpoint,
		http:      client,
		logger:    logger.New(slog.LevelInfo),
		period:    defaultWatchPeriod,
		supported: true,
		watches:   make(map[WatchHandle]*wifiWatch),
	}
	w.locateFn = w.locate
	w.scanFn = func() ([]wirelessNetwork, error) {
		return []wirelessNetwork{{MACAddress: "00:11:22:33:44:55", SignalStrength: -42}}, nil
	}
	return w
}

func jsonResponse(body string) func(req *stdhttp.Request) (*stdhttp.Response, error) {
	return func(req *stdhttp.Request) (*stdhttp.Response, error) {
		return &stdhttp.Response{
			StatusCode: 200,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(stdhttp.Header),
		}, nil
	}
}

func TestWiFi_CurrentPosition(t *testing.T) {
	t.Run("successful lookup returns the fix", func(t *testing.T) {
		w := newTestWiFi(jsonResponse(geolocateResponse))
		pos, err := w.CurrentPosition(t.Context(), Options{})
		if err != nil {
			t.Fatalf("failed to get current position: %s", err)
		}
		if pos.Lat != 12.9716 || pos.Lon != 77.5946 {
			t.Errorf("expected position (12.9716, 77.5946), got (%f, %f)", pos.Lat, pos.Lon)
		}
		if pos.Accuracy != 25.0 {
			t.Errorf("expected accuracy 25.0, got %f", pos.Accuracy)
		}
	})
	t.Run("lookup without usable position fails", func(t *testing.T) {
		w := newTestWiFi(jsonResponse(`{"location":{"lat":0,"lng":0},"accuracy":0}`))
		_, err := w.CurrentPosition(t.Context(), Options{})
		if err == nil {
			t.Fatal("expected current position to fail")
		}
		if CodeOf(err) != CodePositionUnavailable {
			t.Errorf("expected code %d, got %d", CodePositionUnavailable, CodeOf(err))
		}
	})
	t.Run("scan permission error maps to permission denied", func(t *testing.T) {
		w := newTestWiFi(nil)
		w.scanFn = func() ([]wirelessNetwork, error) {
			return nil, os.ErrPermission
		}
		_, err := w.CurrentPosition(t.Context(), Options{})
		if err == nil {
			t.Fatal("expected current position to fail")
		}
		if CodeOf(err) != CodePermissionDenied {
			t.Errorf("expected code %d, got %d", CodePermissionDenied, CodeOf(err))
		}
	})
	t.Run("api failure maps to position unavailable", func(t *testing.T) {
		w := newTestWiFi(func(req *stdhttp.Request) (*stdhttp.Response, error) {
			return nil, errors.New("intentionally failing")
		})
		_, err := w.CurrentPosition(t.Context(), Options{})
		if err == nil {
			t.Fatal("expected current position to fail")
		}
		if CodeOf(err) != CodePositionUnavailable {
			t.Errorf("expected code %d, got %d", CodePositionUnavailable, CodeOf(err))
		}
	})
	t.Run("cached fix within maximum age skips the lookup", func(t *testing.T) {
		w := newTestWiFi(nil)
		w.storeFix(Position{Lat: 1, Lon: 2, Accuracy: 3, At: time.Now()})
		looked := false
		w.locateFn = func(ctx context.Context, opts Options) (Position, error) {
			looked = true
			return Position{}, errors.New("should not be called")
		}
		pos, err := w.CurrentPosition(t.Context(), Options{MaximumAge: time.Minute})
		if err != nil {
			t.Fatalf("failed to get current position: %s", err)
		}
		if looked {
			t.Error("expected cached fix to be served without a lookup")
		}
		if pos.Lat != 1 {
			t.Errorf("expected cached latitude 1, got %f", pos.Lat)
		}
	})
	t.Run("unsupported capability fails", func(t *testing.T) {
		w := newTestWiFi(nil)
		w.supported = false
		_, err := w.CurrentPosition(t.Context(), Options{})
		if err == nil {
			t.Fatal("expected current position to fail")
		}
	})
}

func TestWiFi_WatchPosition(t *testing.T) {
	t.Run("watch emits changed fixes until cleared", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			w := newTestWiFi(nil)
			lat := 10.0
			w.locateFn = func(ctx context.Context, opts Options) (Position, error) {
				lat++
				return Position{Lat: lat, Lon: 20, Accuracy: 30, At: time.Now()}, nil
			}

			posChan := make(chan Position, 8)
			handle, err := w.WatchPosition(Options{}, func(p Position) {
				posChan <- p
			}, func(err error) {
				t.Errorf("unexpected watch error: %s", err)
			})
			if err != nil {
				t.Fatalf("failed to start watch: %s", err)
			}

			synctest.Wait()
			time.Sleep(w.period + time.Second)
			synctest.Wait()

			w.ClearWatch(handle)
			synctest.Wait()

			if len(posChan) < 2 {
				t.Fatalf("expected at least 2 positions, got %d", len(posChan))
			}
			first := <-posChan
			if first.Lat != 11 {
				t.Errorf("expected first latitude 11, got %f", first.Lat)
			}
		})
	})
	t.Run("watch reports lookup errors and keeps running", func(t *testing.T) {
		synctest.Test(t, func(t *testing.T) {
			w := newTestWiFi(nil)
			calls := 0
			w.locateFn = func(ctx context.Context, opts Options) (Position, error) {
				calls++
				if calls == 1 {
					return Position{}, errors.New("intentionally failing")
				}
				return Position{Lat: 1, Lon: 2, Accuracy: 3, At: time.Now()}, nil
			}

			errChan := make(chan error, 8)
			posChan := make(chan Position, 8)
			handle, err := w.WatchPosition(Options{}, func(p Position) {
				posChan <- p
			}, func(err error) {
				errChan <- err
			})
			if err != nil {
				t.Fatalf("failed to start watch: %s", err)
			}

			synctest.Wait()
			time.Sleep(w.period + time.Second)
			synctest.Wait()
			w.ClearWatch(handle)
			synctest.Wait()

			if len(errChan) != 1 {
				t.Fatalf("expected 1 watch error, got %d", len(errChan))
			}
			if len(posChan) != 1 {
				t.Fatalf("expected 1 position after recovery, got %d", len(posChan))
			}
		})
	})
	t.Run("unsupported capability fails to start a watch", func(t *testing.T) {
		w := newTestWiFi(nil)
		w.supported = false
		_, err := w.WatchPosition(Options{}, func(Position) {}, func(error) {})
		if err == nil {
			t.Fatal("expected watch to fail")
		}
	})
}

func TestWiFi_QueryPermission(t *testing.T) {
	t.Run("successful scan reports granted", func(t *testing.T) {
		w := newTestWiFi(nil)
		state, err := w.QueryPermission(t.Context())
		if err != nil {
			t.Fatalf("failed to query permission: %s", err)
		}
		if state != PermissionGranted {
			t.Errorf("expected state %s, got %s", PermissionGranted, state)
		}
	})
	t.Run("netlink permission error reports denied", func(t *testing.T) {
		w := newTestWiFi(nil)
		w.scanFn = func() ([]wirelessNetwork, error) {
			return nil, os.ErrPermission
		}
		state, err := w.QueryPermission(t.Context())
		if err != nil {
			t.Fatalf("failed to query permission: %s", err)
		}
		if state != PermissionDenied {
			t.Errorf("expected state %s, got %s", PermissionDenied, state)
		}
	})
	t.Run("unsupported capability reports denied", func(t *testing.T) {
		w := newTestWiFi(nil)
		w.supported = false
		state, err := w.QueryPermission(t.Context())
		if err != nil {
			t.Fatalf("failed to query permission: %s", err)
		}
		if state != PermissionDenied {
			t.Errorf("expected state %s, got %s", PermissionDenied, state)
		}
	})
	t.Run("other scan errors fail the query", func(t *testing.T) {
		w := newTestWiFi(nil)
		w.scanFn = func() ([]wirelessNetwork, error) {
			return nil, errors.New("intentionally failing")
		}
		if _, err := w.QueryPermission(t.Context()); err == nil {
			t.Fatal("expected permission query to fail")
		}
	})
}
