// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package platform

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mdlayher/wifi"

	"github.com/agrisense/fieldagent/internal/http"
	"github.com/agrisense/fieldagent/internal/logger"
)

const (
	// DefaultGeolocateEndpoint is the default Ichnaea-compatible geolocate API endpoint.
	DefaultGeolocateEndpoint = "https://api.beacondb.net/v1/geolocate"

	wifiLookupTimeout  = time.Second * 5
	defaultWatchPeriod = time.Minute * 2
)

// wirelessNetwork is a scanned access point in the Ichnaea geolocate request format.
type wirelessNetwork struct {
	LastSeen       int64  `json:"age"`
	MACAddress     string `json:"macAddress"`
	SignalStrength int32  `json:"signalStrength"`
}

// geolocateResult matches the Ichnaea geolocate API response.
type geolocateResult struct {
	Location struct {
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"`
}

// wifiWatch tracks a single active watch subscription.
type wifiWatch struct {
	stop chan struct{}
}

// WiFi is a Capability implementation that scans nearby wireless access points and
// resolves them into a position via an Ichnaea-compatible geolocate API. Scanning
// requires netlink access, which gives this capability a real permission model.
type WiFi struct {
	endpoint  string
	http      *http.Client
	wlan      *wifi.Client
	logger    *logger.Logger
	period    time.Duration
	supported bool

	fixMu   sync.RWMutex
	lastFix Position
	haveFix bool

	watchMu sync.Mutex
	watches map[WatchHandle]*wifiWatch

	locateFn func(ctx context.Context, opts Options) (Position, error)
	scanFn   func() ([]wirelessNetwork, error)
}

// NewWiFi constructs a new wifi-positioning Capability. Capability support is detected
// once at construction time by creating the netlink client.
func NewWiFi(httpClient *http.Client, endpoint string, log *logger.Logger) *WiFi {
	if endpoint == "" {
		endpoint = DefaultGeolocateEndpoint
	}
	w := &WiFi{
		endpoint: endpoint,
		http:     httpClient,
		logger:   log,
		period:   defaultWatchPeriod,
		watches:  make(map[WatchHandle]*wifiWatch),
	}
	w.locateFn = w.locate
	w.scanFn = w.scanAccessPoints

	wlan, err := wifi.New()
	if err != nil {
		log.Debug("wifi positioning not available", logger.Err(err))
		return w
	}
	w.wlan = wlan
	w.supported = true
	return w
}

// Supported reports whether a netlink wifi client could be created at construction time.
func (w *WiFi) Supported() bool {
	return w.supported
}

// CurrentPosition scans nearby access points and resolves them into a position. A cached
// fix no older than the staleness tolerance is served without scanning.
func (w *WiFi) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	opts = opts.Normalized()
	if !w.supported {
		return Position{}, NewPositionError(CodePositionUnavailable, "wifi positioning is not available on this host")
	}
	if pos, ok := w.cachedFix(opts.MaximumAge); ok {
		return pos, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	pos, err := w.locateFn(ctx, opts)
	if err != nil {
		return Position{}, classifyWiFiError(err)
	}
	w.storeFix(pos)
	return pos, nil
}

// WatchPosition registers a continuous subscription that re-resolves the position
// periodically until the handle is cleared. Only changed fixes are forwarded.
func (w *WiFi) WatchPosition(opts Options, onPosition func(Position), onError func(error)) (WatchHandle, error) {
	if !w.supported {
		return "", NewPositionError(CodePositionUnavailable, "wifi positioning is not available on this host")
	}

	opts = opts.Normalized()
	watch := &wifiWatch{stop: make(chan struct{})}
	go func() {
		firstRun := true
		var last Position
		haveLast := false

		for {
			if !firstRun {
				select {
				case <-watch.stop:
					return
				case <-time.After(w.period):
				}
			}
			firstRun = false

			ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
			pos, err := w.locateFn(ctx, opts)
			cancel()
			if err != nil {
				onError(classifyWiFiError(err))
				continue
			}
			if haveLast && last.Lat == pos.Lat && last.Lon == pos.Lon {
				continue
			}
			last, haveLast = pos, true
			w.storeFix(pos)
			onPosition(pos)
		}
	}()

	handle := WatchHandle(uuid.NewString())
	w.watchMu.Lock()
	w.watches[handle] = watch
	w.watchMu.Unlock()
	return handle, nil
}

// ClearWatch cancels the watch subscription identified by handle.
func (w *WiFi) ClearWatch(handle WatchHandle) {
	w.watchMu.Lock()
	defer w.watchMu.Unlock()
	if watch, ok := w.watches[handle]; ok {
		close(watch.stop)
		delete(w.watches, handle)
	}
}

// QueryPermission reports whether the process may scan wireless networks. A netlink
// permission error maps to a denied state, any other scan failure is a query error.
func (w *WiFi) QueryPermission(_ context.Context) (PermissionState, error) {
	if !w.supported {
		return PermissionDenied, nil
	}
	if _, err := w.scanFn(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return PermissionDenied, nil
		}
		return "", fmt.Errorf("failed to query wifi scan permission: %w", err)
	}
	return PermissionGranted, nil
}

// locate scans nearby access points and posts them to the geolocate API.
func (w *WiFi) locate(ctx context.Context, _ Options) (Position, error) {
	aps, err := w.scanFn()
	if err != nil {
		return Position{}, fmt.Errorf("failed to scan wifi access points: %w", err)
	}

	type request struct {
		ConsiderIP   bool              `json:"considerIp"`
		Accesspoints []wirelessNetwork `json:"wifiAccessPoints,omitempty"`
	}
	req := request{
		ConsiderIP:   true,
		Accesspoints: aps,
	}

	ctxHTTP, cancelHTTP := context.WithTimeout(ctx, wifiLookupTimeout)
	defer cancelHTTP()

	result := new(geolocateResult)
	if _, err = w.http.PostJSON(ctxHTTP, w.endpoint, result, req, nil); err != nil {
		return Position{}, fmt.Errorf("failed to get geolocation data from API: %w", err)
	}
	if result.Accuracy <= 0 {
		return Position{}, NewPositionError(CodePositionUnavailable, "geolocate API returned no usable position")
	}

	return Position{
		Lat:      Truncate(result.Location.Latitude, TruncPrecision),
		Lon:      Truncate(result.Location.Longitude, TruncPrecision),
		Accuracy: Truncate(result.Accuracy, TruncPrecision),
		At:       time.Now(),
	}, nil
}

// scanAccessPoints lists the visible access points on all station interfaces. Hidden
// networks and networks opting out of mapping (_nomap) are skipped.
func (w *WiFi) scanAccessPoints() ([]wirelessNetwork, error) {
	var list []wirelessNetwork

	ifaces, err := w.wlan.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Type != wifi.InterfaceTypeStation {
			continue
		}
		aps, err := w.wlan.AccessPoints(iface)
		if err != nil {
			if errors.Is(err, os.ErrPermission) {
				return nil, err
			}
			continue
		}
		for _, ap := range aps {
			if ap.SSID == "" || ap.SSID[0] == '\x00' || strings.HasSuffix(ap.SSID, "_nomap") {
				continue
			}
			list = append(list, wirelessNetwork{
				SignalStrength: ap.Signal / 100,
				MACAddress:     ap.BSSID.String(),
				LastSeen:       ap.LastSeen.Milliseconds(),
			})
		}
	}

	return list, nil
}

// cachedFix returns the last stored fix if it is no older than maxAge.
func (w *WiFi) cachedFix(maxAge time.Duration) (Position, bool) {
	if maxAge <= 0 {
		return Position{}, false
	}
	w.fixMu.RLock()
	defer w.fixMu.RUnlock()
	if !w.haveFix || time.Since(w.lastFix.At) > maxAge {
		return Position{}, false
	}
	return w.lastFix, true
}

func (w *WiFi) storeFix(pos Position) {
	w.fixMu.Lock()
	w.lastFix = pos
	w.haveFix = true
	w.fixMu.Unlock()
}

// classifyWiFiError maps scan and lookup failures onto the position error taxonomy.
func classifyWiFiError(err error) error {
	var posErr *PositionError
	if errors.As(err, &posErr) {
		return err
	}
	switch {
	case errors.Is(err, os.ErrPermission):
		return WrapPositionError(CodePermissionDenied, err)
	case errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err):
		return WrapPositionError(CodeTimeout, err)
	default:
		return WrapPositionError(CodePositionUnavailable, err)
	}
}
