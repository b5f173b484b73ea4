// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package platform

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	gpsd "github.com/stratoberry/go-gpsd"

	"github.com/agrisense/fieldagent/internal/logger"
)

const (
	// DefaultGPSDHost is the default host a gpsd daemon listens on.
	DefaultGPSDHost = "localhost"
	// DefaultGPSDPort is the default port a gpsd daemon listens on.
	DefaultGPSDPort = "2947"

	gpsdProbeTimeout = time.Second * 2
)

// gpsdSession is the subset of the go-gpsd session used by the watch subscription.
type gpsdSession interface {
	AddFilter(class string, f gpsd.Filter)
	Watch() chan bool
}

// gpsdWatch tracks a single active watch subscription.
type gpsdWatch struct {
	stop chan struct{}
}

// GPSD is a Capability implementation backed by a local gpsd daemon. One-shot requests
// use a short-lived TCP POLL-style connection, continuous watches use a go-gpsd session.
type GPSD struct {
	addr      string
	logger    *logger.Logger
	supported bool

	fixMu   sync.RWMutex
	lastFix Position
	haveFix bool

	watchMu sync.Mutex
	watches map[WatchHandle]*gpsdWatch

	pollFn func(ctx context.Context, opts Options) (Position, error)
	dialFn func(addr string) (gpsdSession, error)
}

// gpsdTPVResponse matches the subset of gpsd's TPV response we care about.
type gpsdTPVResponse struct {
	Class string  `json:"class"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Mode  int     `json:"mode"`
	Epx   float64 `json:"epx"`
	Epy   float64 `json:"epy"`
	Eph   float64 `json:"eph"`
}

// NewGPSD constructs a new gpsd-backed Capability for the given host and port. Capability
// support is detected once at construction time by probing the daemon's TCP port.
func NewGPSD(host, port string, log *logger.Logger) *GPSD {
	g := &GPSD{
		addr:    net.JoinHostPort(host, port),
		logger:  log,
		watches: make(map[WatchHandle]*gpsdWatch),
	}
	g.pollFn = g.poll
	g.dialFn = func(addr string) (gpsdSession, error) {
		return gpsd.Dial(addr)
	}
	g.supported = g.probe()
	return g
}

// Supported reports whether a gpsd daemon was reachable at construction time.
func (g *GPSD) Supported() bool {
	return g.supported
}

// CurrentPosition performs a single one-shot position acquisition against gpsd. A cached
// fix no older than the staleness tolerance is served without contacting the daemon.
func (g *GPSD) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	opts = opts.Normalized()
	if !g.supported {
		return Position{}, NewPositionError(CodePositionUnavailable, "gpsd is not available on this host")
	}
	if pos, ok := g.cachedFix(opts.MaximumAge); ok {
		return pos, nil
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	pos, err := g.pollFn(ctx, opts)
	if err != nil {
		return Position{}, classifyGPSDError(err)
	}
	g.storeFix(pos)
	return pos, nil
}

// WatchPosition registers a continuous TPV subscription on a dedicated gpsd session.
// Each adequate fix is forwarded to onPosition, a lost daemon connection to onError.
func (g *GPSD) WatchPosition(opts Options, onPosition func(Position), onError func(error)) (WatchHandle, error) {
	if !g.supported {
		return "", NewPositionError(CodePositionUnavailable, "gpsd is not available on this host")
	}
	session, err := g.dialFn(g.addr)
	if err != nil {
		return "", fmt.Errorf("failed to connect to gpsd at %q: %w", g.addr, err)
	}

	opts = opts.Normalized()
	watch := &gpsdWatch{stop: make(chan struct{})}
	required := requiredFixMode(opts.HighAccuracy)

	session.AddFilter("TPV", func(r interface{}) {
		tpv, ok := r.(*gpsd.TPVReport)
		if !ok {
			return
		}
		select {
		case <-watch.stop:
			return
		default:
		}
		if tpv.Mode < required {
			return
		}

		pos := Position{
			Lat:      Truncate(tpv.Lat, TruncPrecision),
			Lon:      Truncate(tpv.Lon, TruncPrecision),
			Accuracy: tpvAccuracyMeters(tpv),
			At:       time.Now(),
		}
		g.storeFix(pos)
		onPosition(pos)
	})

	done := session.Watch()
	go func() {
		select {
		case <-watch.stop:
		case <-done:
			// gpsd connection ended while the watch was still active
			select {
			case <-watch.stop:
			default:
				onError(errors.New("gpsd connection ended"))
			}
		}
	}()

	handle := WatchHandle(uuid.NewString())
	g.watchMu.Lock()
	g.watches[handle] = watch
	g.watchMu.Unlock()
	return handle, nil
}

// ClearWatch cancels the watch subscription identified by handle.
func (g *GPSD) ClearWatch(handle WatchHandle) {
	g.watchMu.Lock()
	defer g.watchMu.Unlock()
	if watch, ok := g.watches[handle]; ok {
		close(watch.stop)
		delete(g.watches, handle)
	}
}

// QueryPermission reports the capability's permission state. gpsd has no prompt-based
// permission model, reachability of the daemon is the effective grant.
func (g *GPSD) QueryPermission(ctx context.Context) (PermissionState, error) {
	dialer := &net.Dialer{Timeout: gpsdProbeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		return "", fmt.Errorf("failed to query gpsd at %q: %w", g.addr, err)
	}
	_ = conn.Close()
	return PermissionGranted, nil
}

// probe checks whether a gpsd daemon is reachable.
func (g *GPSD) probe() bool {
	conn, err := net.DialTimeout("tcp", g.addr, gpsdProbeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// poll connects to gpsd, requests a WATCH and returns the first TPV entry with an
// adequate fix mode. The connection is closed before returning.
func (g *GPSD) poll(ctx context.Context, opts Options) (Position, error) {
	var zero Position

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", g.addr)
	if err != nil {
		return zero, fmt.Errorf("failed to dial gpsd: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	// Respect the context deadline if present, otherwise we add a safety net so we
	// don't hang forever if ctx has no deadline.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(opts.Timeout))
	}

	if _, err = fmt.Fprint(conn, `?WATCH={"enable":true,"json":true}`+"\n"); err != nil {
		return zero, fmt.Errorf("failed to write WATCH request: %w", err)
	}

	required := int(requiredFixMode(opts.HighAccuracy))
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var resp gpsdTPVResponse

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		if err = json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			continue
		}
		if resp.Class != "TPV" || resp.Mode < required {
			continue
		}

		return Position{
			Lat:      Truncate(resp.Lat, TruncPrecision),
			Lon:      Truncate(resp.Lon, TruncPrecision),
			Accuracy: horizontalAccuracyMeters(resp),
			At:       time.Now(),
		}, nil
	}

	if err = scanner.Err(); err != nil {
		return zero, fmt.Errorf("failed to scan gpsd response: %w", err)
	}
	return zero, NewPositionError(CodePositionUnavailable, "no adequate TPV response received from gpsd")
}

// cachedFix returns the last stored fix if it is no older than maxAge.
func (g *GPSD) cachedFix(maxAge time.Duration) (Position, bool) {
	if maxAge <= 0 {
		return Position{}, false
	}
	g.fixMu.RLock()
	defer g.fixMu.RUnlock()
	if !g.haveFix || time.Since(g.lastFix.At) > maxAge {
		return Position{}, false
	}
	return g.lastFix, true
}

func (g *GPSD) storeFix(pos Position) {
	g.fixMu.Lock()
	g.lastFix = pos
	g.haveFix = true
	g.fixMu.Unlock()
}

// requiredFixMode maps the high-accuracy knob to the minimum gpsd fix mode.
func requiredFixMode(highAccuracy bool) gpsd.Mode {
	if highAccuracy {
		return gpsd.Mode3D
	}
	return gpsd.Mode2D
}

// classifyGPSDError maps poll failures onto the position error taxonomy.
func classifyGPSDError(err error) error {
	var posErr *PositionError
	if errors.As(err, &posErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || os.IsTimeout(err) {
		return WrapPositionError(CodeTimeout, err)
	}
	return WrapPositionError(CodePositionUnavailable, err)
}

func horizontalAccuracyMeters(tpv gpsdTPVResponse) float64 {
	switch {
	case tpv.Eph > 0:
		return tpv.Eph
	case tpv.Epx > 0 && tpv.Epy > 0:
		// sqrt(epx² + epy²)
		return math.Hypot(tpv.Epx, tpv.Epy)
	default:
		return fixModeAccuracyFallback(tpv.Mode)
	}
}

func tpvAccuracyMeters(tpv *gpsd.TPVReport) float64 {
	if tpv.Epx > 0 && tpv.Epy > 0 {
		return math.Hypot(tpv.Epx, tpv.Epy)
	}
	return fixModeAccuracyFallback(int(tpv.Mode))
}

func fixModeAccuracyFallback(mode int) float64 {
	switch mode {
	case 3:
		return fallbackAccuracy3DFix
	case 2:
		return fallbackAccuracy2DFix
	default:
		return fallbackAccuracyNoFix
	}
}
