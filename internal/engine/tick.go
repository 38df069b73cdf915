package engine

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/rules"
)

// Tick runs one iteration at the given time: evict stale contacts (when
// configured), refresh ranges, fire alerts, publish change-gated summaries
// and the interval-gated recap, then draw radii when display is on.
func (e *Engine) Tick(now time.Time) Output {
	var out Output
	e.setTime(now)

	e.evictContacts()
	e.updateRanges()
	e.postAlerts(&out)
	e.postSummaries(&out)
	if e.settings.DisplayRadii {
		e.postRadii(&out, true)
	}

	return out
}

// evictContacts drops contacts retired for longer than contact_evict_age.
// An evict age of zero keeps every contact forever.
func (e *Engine) evictContacts() {
	if e.settings.EvictAge <= 0 {
		return
	}

	limit := e.settings.MaxAge + e.settings.EvictAge
	for _, name := range e.ContactNames() {
		cs := e.contacts[name]
		if age := e.currTime - cs.record.TimeStamp(); age > limit {
			delete(e.contacts, name)
			// Another contact may share the case-folded matrix row
			if _, shared := e.findContact(name); !shared {
				e.matrix.RemoveVehicle(name)
			}
			delete(e.collisionWarned, name)
			e.recordEvent("Evicted: " + name)
			e.logger.Info("Contact evicted", "contact", name, "age", age)
		}
	}
}

// updateRanges refreshes the range estimates of every contact and the
// effective range against every alert rule
func (e *Engine) updateRanges() {
	ids := e.ruleIDs()

	for _, name := range e.ContactNames() {
		cs := e.contacts[name]
		r := e.estimator.Estimate(cs.record, e.pose, e.currTime)
		cs.ranges = r

		inner, cpa := e.thresholds(e.lookup.ThresholdKey(name, ""))
		cs.used = SelectRange(r.Extrapolated, r.CPA, inner, cpa)

		clear(cs.pair)
		for _, id := range ids {
			inner, cpa := e.thresholds(e.lookup.ThresholdKey(name, id))
			cs.pair[id] = SelectRange(r.Extrapolated, r.CPA, inner, cpa)
		}

		e.checkNameCollision(name)
	}
}

// postAlerts fires every unarmed (contact, rule) pair whose effective range
// is within the rule's inner range
func (e *Engine) postAlerts(out *Output) {
	ids := e.ruleIDs()

	for _, name := range e.ContactNames() {
		cs := e.contacts[name]
		if e.retired(cs) {
			continue
		}

		for _, id := range ids {
			rule := e.rules[id]
			if !rule.CanFire() || e.matrix.Get(name, id) {
				continue
			}

			// NaN ranges never fire
			rng := cs.pair[id]
			inner := rule.AlertRange(e.settings.Defaults)
			if !(rng <= inner) {
				continue
			}

			e.fire(out, cs, rule, rng)
		}
	}
}

// fire publishes one alert and arms its matrix cell
func (e *Engine) fire(out *Output, cs *contactState, rule rules.AlertRule, rng float64) {
	name := cs.record.Name()
	varname := rules.Render(rule.Var, cs.record)
	msg := rules.Render(rule.Pattern, cs.record)

	out.post(varname, msg)
	e.matrix.Set(name, rule.ID, true)
	cs.alertsTotal++
	cs.alertsActive++

	out.Alerts = append(out.Alerts, model.AlertEvent{
		ID:      e.newID(),
		Contact: name,
		AlertID: rule.ID,
		Var:     varname,
		Value:   msg,
		Range:   rng,
		Time:    timeOf(e.currTime),
	})
	e.recordEvent(varname + " = " + msg)
	e.logger.Info("Alert fired",
		"contact", name,
		"alert_id", rule.ID,
		"var", varname,
		"range", rng)

	if e.settings.AlertVerbose {
		d := e.settings.Defaults
		out.post(VarAlertVerbose, "contact="+name+
			",config_alert_range="+fixed(rule.AlertRange(d), 1)+
			",config_alert_range_cpa="+fixed(rule.AlertRangeCPA(d), 1)+
			",range_used="+fixed(rng, 1)+
			",range_actual="+fixed(cs.ranges.Actual, 1)+
			",range_extrap="+fixed(cs.ranges.Extrapolated, 1)+
			",range_cpa="+fixed(cs.ranges.CPA, 1))
	}
}

// summaries holds the serialized status lists of one tick
type summaries struct {
	list      string
	alerted   string
	unalerted string
	retired   string
	recap     string
}

// buildSummaries serializes the contact lists. Pairs of retired contacts
// are left out of the alerted and unalerted groups.
func (e *Engine) buildSummaries() summaries {
	var s summaries
	var list, retired, recap []string
	retiredRows := make(map[string]bool)

	for _, name := range e.ContactNames() {
		cs := e.contacts[name]
		list = append(list, name)

		key := strings.ToLower(name)
		age := e.currTime - cs.record.TimeStamp()
		if age > e.settings.MaxAge {
			retired = append(retired, name)
			if _, seen := retiredRows[key]; !seen {
				retiredRows[key] = true
			}
			continue
		}
		// A live contact keeps its matrix row visible
		retiredRows[key] = false
		recap = append(recap, "vname="+name+",range="+fixed(cs.used, 2)+",age="+fixed(age, 2))
	}

	s.list = strings.Join(list, ",")
	s.retired = strings.Join(retired, ",")
	s.recap = strings.Join(recap, " # ")
	s.alerted = joinPairs(e.matrix.AlertedGroup(true), retiredRows)
	s.unalerted = joinPairs(e.matrix.AlertedGroup(false), retiredRows)
	return s
}

// postSummaries publishes each summary whose value changed since the last
// tick, and the recap whenever its interval has elapsed
func (e *Engine) postSummaries(out *Output) {
	s := e.buildSummaries()

	if s.list != e.prevList {
		out.post(VarContactsList, s.list)
		e.prevList = s.list
	}
	if s.alerted != e.prevAlerted {
		out.post(VarContactsAlerted, s.alerted)
		e.prevAlerted = s.alerted
	}
	if s.unalerted != e.prevUnalerted {
		out.post(VarContactsUnalerted, s.unalerted)
		e.prevUnalerted = s.unalerted
	}
	if s.retired != e.prevRetired {
		out.post(VarContactsRetired, s.retired)
		e.prevRetired = s.retired
	}

	if e.currTime-e.recapPosted > e.settings.RecapInterval {
		e.recapPosted = e.currTime
		out.post(VarContactsRecap, s.recap)
		e.prevRecap = s.recap
	}
}

func joinPairs(pairs []rules.Pair, retired map[string]bool) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if retired[p.Vehicle] {
			continue
		}
		parts = append(parts, p.String())
	}
	return strings.Join(parts, ",")
}

// fixed formats v with exactly prec decimals
func fixed(v float64, prec int) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// timeOf converts engine seconds back into a wall-clock time
func timeOf(seconds float64) time.Time {
	sec, frac := math.Modf(seconds)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
