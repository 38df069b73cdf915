package engine

import (
	"math"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
)

// ProjectFunc dead-reckons a reported position to now with decaying
// confidence. ok is false when no projection could be made.
type ProjectFunc func(x, y, speed, heading, reportTime, decayStart, decayEnd, now float64) (x2, y2 float64, ok bool)

// CPAFunc returns the minimum separation between a contact and ownship over
// the horizon, both holding constant velocity.
type CPAFunc func(cnY, cnX, cnHdg, cnSpd, osY, osX, osHdg, osSpd, horizon float64) float64

// Ranges holds the three range estimates for one contact
type Ranges struct {
	Actual       float64 `json:"actual"`
	Extrapolated float64 `json:"extrapolated"`
	CPA          float64 `json:"cpa"`
}

// RangeEstimator computes range estimates between ownship and a contact
type RangeEstimator struct {
	Project    ProjectFunc
	CPA        CPAFunc
	Horizon    float64
	DecayStart float64
	DecayEnd   float64
}

// Estimate computes the actual, extrapolated and CPA ranges at now. When
// the projector fails the extrapolated range equals the actual range. The
// CPA is taken from the extrapolated contact position.
func (r *RangeEstimator) Estimate(c model.Contact, own Pose, now float64) Ranges {
	cnx, cny := c.X(), c.Y()
	cnh, cns := c.Heading(), c.Speed()

	actual := math.Hypot(own.X-cnx, own.Y-cny)
	out := Ranges{Actual: actual, Extrapolated: actual}

	if r.Project != nil {
		if x, y, ok := r.Project(cnx, cny, cns, cnh, c.TimeStamp(), r.DecayStart, r.DecayEnd, now); ok {
			cnx, cny = x, y
			out.Extrapolated = math.Hypot(own.X-cnx, own.Y-cny)
		}
	}

	out.CPA = out.Extrapolated
	if r.CPA != nil {
		out.CPA = r.CPA(cny, cnx, cnh, cns, own.Y, own.X, own.Heading, own.Speed, r.Horizon)
	}
	return out
}

// SelectRange picks the range used for alerting. The extrapolated range is
// used, except when it lies strictly between the inner and CPA thresholds,
// in which case the CPA range is used so that a closing contact is caught
// before it enters the inner radius.
func SelectRange(extrapolated, cpa, inner, cpaThreshold float64) float64 {
	if extrapolated > inner && extrapolated < cpaThreshold {
		return cpa
	}
	return extrapolated
}
