// Package kinematics holds the constant-velocity motion models used for
// range estimation: a decaying dead-reckoning projector and a closest point
// of approach predictor. Headings are degrees clockwise from north, so a
// heading of 0 moves along +y and 90 moves along +x.
package kinematics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Velocity converts a speed (m/s) and heading (degrees) into a planar vector
func Velocity(speed, heading float64) r2.Vec {
	rad := heading * math.Pi / 180
	return r2.Vec{X: speed * math.Sin(rad), Y: speed * math.Cos(rad)}
}

// DecayWeight returns the confidence given to a projection of the given age.
// It is 1 up to decayStart, falls linearly to 0 at decayEnd and stays 0.
func DecayWeight(age, decayStart, decayEnd float64) float64 {
	switch {
	case age <= decayStart:
		return 1
	case age >= decayEnd:
		return 0
	}
	return (decayEnd - age) / (decayEnd - decayStart)
}

// Project dead-reckons a reported position forward to now along its last
// heading and speed. The displacement is scaled by DecayWeight so stale
// reports fade back toward the last reported point. ok is false when the
// decay window is invalid or any input is not finite.
func Project(x, y, speed, heading, reportTime, decayStart, decayEnd, now float64) (float64, float64, bool) {
	if decayStart < 0 || decayStart > decayEnd {
		return x, y, false
	}
	for _, v := range []float64{x, y, speed, heading, reportTime, decayEnd, now} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return x, y, false
		}
	}

	age := now - reportTime
	if age <= 0 {
		return x, y, true
	}

	w := DecayWeight(age, decayStart, decayEnd)
	disp := r2.Scale(w*age, Velocity(speed, heading))
	p := r2.Add(r2.Vec{X: x, Y: y}, disp)
	return p.X, p.Y, true
}

// ClosestApproach returns the minimum separation between a contact and
// ownship over [0, horizon] seconds, both holding constant velocity from
// their current positions.
func ClosestApproach(cnY, cnX, cnHdg, cnSpd, osY, osX, osHdg, osSpd, horizon float64) float64 {
	// Relative position and velocity of the contact seen from ownship
	r0 := r2.Sub(r2.Vec{X: cnX, Y: cnY}, r2.Vec{X: osX, Y: osY})
	dv := r2.Sub(Velocity(cnSpd, cnHdg), Velocity(osSpd, osHdg))

	dv2 := r2.Dot(dv, dv)
	if dv2 < 1e-12 || horizon <= 0 {
		return r2.Norm(r0)
	}

	t := -r2.Dot(r0, dv) / dv2
	t = math.Max(0, math.Min(t, horizon))

	return r2.Norm(r2.Add(r0, r2.Scale(t, dv)))
}

// TimeToCPA returns the time in [0, horizon] at which the separation is
// smallest. It is 0 for diverging or co-moving tracks.
func TimeToCPA(cnY, cnX, cnHdg, cnSpd, osY, osX, osHdg, osSpd, horizon float64) float64 {
	r0 := r2.Sub(r2.Vec{X: cnX, Y: cnY}, r2.Vec{X: osX, Y: osY})
	dv := r2.Sub(Velocity(cnSpd, cnHdg), Velocity(osSpd, osHdg))

	dv2 := r2.Dot(dv, dv)
	if dv2 < 1e-12 || horizon <= 0 {
		return 0
	}
	return math.Max(0, math.Min(-r2.Dot(r0, dv)/dv2, horizon))
}
