package engine

import (
	"strconv"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
)

// Circle describes one alert radius centered on ownship
type Circle struct {
	X         float64
	Y         float64
	Radius    float64
	Label     string
	EdgeColor string
	Active    bool
}

// Spec renders the circle in the viewer's flat key=value format
func (c Circle) Spec() string {
	return "x=" + model.FormatFloat(c.X, 2) +
		",y=" + model.FormatFloat(c.Y, 2) +
		",radius=" + model.FormatFloat(c.Radius, 2) +
		",active=" + strconv.FormatBool(c.Active) +
		",label=" + c.Label +
		",edge_color=" + c.EdgeColor +
		",vertex_size=0,edge_size=1"
}

// Radii returns the circles for every alert rule: the inner range, and the
// CPA range when it is larger
func (e *Engine) Radii(active bool) []Circle {
	var circles []Circle
	d := e.settings.Defaults

	for _, id := range e.ruleIDs() {
		rule := e.rules[id]
		inner := rule.AlertRange(d)
		circles = append(circles, Circle{
			X:         e.pose.X,
			Y:         e.pose.Y,
			Radius:    inner,
			Label:     id + "_in",
			EdgeColor: rule.AlertRangeColor(d),
			Active:    active,
		})

		if cpa := rule.AlertRangeCPA(d); cpa > inner {
			circles = append(circles, Circle{
				X:         e.pose.X,
				Y:         e.pose.Y,
				Radius:    cpa,
				Label:     id + "_out",
				EdgeColor: rule.AlertRangeCPAColor(d),
				Active:    active,
			})
		}
	}
	return circles
}

func (e *Engine) postRadii(out *Output, active bool) {
	for _, c := range e.Radii(active) {
		out.post(VarViewCircle, c.Spec())
	}
}
