// Package geodesy converts between geodetic coordinates and a local planar
// grid (meters east and north of an origin).
package geodesy

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidOrigin is returned for an origin outside the valid lat/lon range
var ErrInvalidOrigin = errors.New("invalid geodetic origin")

// Geodesy projects around a fixed origin using the local meters-per-degree
// scale at the origin latitude. It is accurate to well under a meter over
// the few kilometers a contact manager cares about.
type Geodesy struct {
	latOrigin float64
	lonOrigin float64
	mPerLat   float64
	mPerLon   float64
}

// New creates a projection around the given origin
func New(latOrigin, lonOrigin float64) (*Geodesy, error) {
	if math.IsNaN(latOrigin) || math.IsNaN(lonOrigin) ||
		latOrigin < -90 || latOrigin > 90 || lonOrigin < -180 || lonOrigin > 180 {
		return nil, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidOrigin, latOrigin, lonOrigin)
	}
	// The longitude scale vanishes at the poles
	if math.Abs(latOrigin) > 89.9 {
		return nil, fmt.Errorf("%w: origin too close to a pole", ErrInvalidOrigin)
	}

	phi := latOrigin * math.Pi / 180
	return &Geodesy{
		latOrigin: latOrigin,
		lonOrigin: lonOrigin,
		mPerLat: 111132.92 - 559.82*math.Cos(2*phi) + 1.175*math.Cos(4*phi) -
			0.0023*math.Cos(6*phi),
		mPerLon: 111412.84*math.Cos(phi) - 93.5*math.Cos(3*phi) + 0.118*math.Cos(5*phi),
	}, nil
}

// Origin returns the origin latitude and longitude
func (g *Geodesy) Origin() (float64, float64) {
	return g.latOrigin, g.lonOrigin
}

// LatLonToLocal converts a geodetic position into local x (east) and
// y (north) meters
func (g *Geodesy) LatLonToLocal(lat, lon float64) (x, y float64) {
	x = (lon - g.lonOrigin) * g.mPerLon
	y = (lat - g.latOrigin) * g.mPerLat
	return x, y
}

// LocalToLatLon converts local x/y meters back into a geodetic position
func (g *Geodesy) LocalToLatLon(x, y float64) (lat, lon float64) {
	lat = g.latOrigin + y/g.mPerLat
	lon = g.lonOrigin + x/g.mPerLon
	return lat, lon
}
