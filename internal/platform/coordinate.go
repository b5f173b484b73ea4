// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

package platform

import (
	"math"
)

const (
	// TruncPrecision is the decimal precision coordinates are truncated to before
	// they leave the platform layer (~11m resolution, plenty for field work).
	TruncPrecision = 4

	fallbackAccuracy3DFix = 10  // ~10 m typical consumer GPS in open sky
	fallbackAccuracy2DFix = 25  // worse than 3D, but still accurate enough
	fallbackAccuracyNoFix = 1e6 // effectively unusable
)

// Coordinate represents a geographic coordinate with an accuracy radius in meters.
type Coordinate struct {
	Lat float64
	Lon float64
	Acc float64
}

// Valid checks if the coordinate is valid according to the EPSG logic
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Truncate cuts a float down to the given decimal precision.
func Truncate(x float64, precision int) float64 {
	p := math.Pow(10, float64(precision))
	return math.Trunc(x*p) / p
}
