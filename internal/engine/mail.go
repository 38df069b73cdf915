package engine

import (
	"strconv"
	"strings"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/rules"
)

// OnMail processes one batch of inbound messages in delivery order. Mail
// times come from the sender and never move the engine clock; only Tick does.
func (e *Engine) OnMail(batch []model.Mail) Output {
	var out Output

	for _, m := range batch {
		key := strings.ToUpper(strings.TrimSpace(m.Key))

		switch key {
		case VarNavX, VarNavY, VarNavHeading, VarNavSpeed:
			e.handleNav(&out, key, m)
		case VarNodeReport:
			e.handleNodeReport(&out, m)
		case VarDisplayRadii:
			e.handleDisplayRadii(&out, m.Value())
		case VarAlertRequest:
			e.handleAlertRequest(&out, m.Str)
		case VarContactResolved:
			e.handleResolved(&out, m.Str)
		default:
			e.runWarning(&out, "Unhandled Mail: "+m.Key, false)
		}
	}

	return out
}

// handleNav updates one component of the ownship pose
func (e *Engine) handleNav(out *Output, key string, m model.Mail) {
	v := m.Num
	if !m.IsNum {
		f, err := strconv.ParseFloat(strings.TrimSpace(m.Str), 64)
		if err != nil {
			e.runWarning(out, key+" is not a number: "+m.Str, false)
			return
		}
		v = f
	}

	switch key {
	case VarNavX:
		e.pose.X = v
	case VarNavY:
		e.pose.Y = v
	case VarNavHeading:
		e.pose.Heading = v
	case VarNavSpeed:
		e.pose.Speed = v
	}
}

// handleNodeReport creates or replaces the record of one contact
func (e *Engine) handleNodeReport(out *Output, m model.Mail) {
	record := model.ParseNodeReport(m.Str)

	vname := record.Name()
	if vname == "" {
		e.runWarning(out, "Node report without NAME: "+m.Str, false)
		return
	}
	// Reports about ownship are expected on the bus and ignored
	if strings.EqualFold(vname, e.ownship) {
		return
	}

	if e.overrideXY(record) {
		x, y := e.geo.LatLonToLocal(record.Lat(), record.Lon())
		record.SetX(x)
		record.SetY(y)
	}

	if !record.IsSetTimeStamp() {
		stamp := e.currTime
		if !m.Time.IsZero() {
			stamp = model.Seconds(m.Time)
		}
		record.SetTimeStamp(stamp)
	}

	cs, known := e.contacts[vname]
	if !known {
		cs = &contactState{pair: make(map[string]float64)}
		e.contacts[vname] = cs
		e.matrix.AddVehicle(vname)
		e.logger.Info("New contact", "contact", vname, "type", record.Type())
	}
	cs.record = record

	e.logger.Debug("Node report", "contact", vname, "x", record.X(), "y", record.Y(), "time", record.TimeStamp())
}

// overrideXY decides whether a report's x/y is replaced by its lat/lon
func (e *Engine) overrideXY(record model.Contact) bool {
	if !e.useGeo || e.geo == nil || !record.HasLatLon() {
		return false
	}
	switch e.settings.LocalCoords {
	case CoordsForceLatLon:
		return true
	case CoordsLazyLatLon:
		return !record.HasXY()
	}
	return false
}

// handleDisplayRadii toggles the radius display. Turning it off retracts
// every drawn radius.
func (e *Engine) handleDisplayRadii(out *Output, value string) {
	b, ok := parseBool(value)
	if !ok {
		msg := "Failed attempt to set DISPLAY_RADII to: " + value
		e.recordEvent(msg)
		e.runWarning(out, msg, false)
		return
	}

	e.settings.DisplayRadii = b
	e.recordEvent("DISPLAY_RADII set to " + strconv.FormatBool(b))

	if !b {
		e.postRadii(out, false)
	}
}

// handleAlertRequest upserts an alert rule from a one-line definition
func (e *Engine) handleAlertRequest(out *Output, spec string) {
	rule, err := rules.ParseAlertSpec(spec)
	if err == nil {
		err = e.UpsertRule(rule)
	}
	if err != nil {
		e.runWarning(out, "Unhandled Alert Request: "+spec+": "+err.Error(), false)
		return
	}
	e.recordEvent("Alert request: " + rule.ID)
}

// handleResolved clears fired alerts named by "<vehicle>[,<alertid>]". An
// omitted alert id resolves every alert for the vehicle.
func (e *Engine) handleResolved(out *Output, value string) {
	vehicle, alertID, _ := strings.Cut(value, ",")
	vehicle = strings.ToLower(strings.TrimSpace(vehicle))
	alertID = strings.TrimSpace(alertID)
	if alertID == "" || strings.EqualFold(alertID, rules.AllAlerts) {
		alertID = rules.AllAlerts
	}

	e.recordEvent("TryResolve: (" + vehicle + "," + alertID + ")")

	// Check the vehicle is known
	if !e.matrix.ContainsVehicle(vehicle) {
		e.runWarning(out, "Resolution failed. Nothing known about vehicle: "+vehicle, true)
		return
	}

	// Check the alert id is known
	if alertID != rules.AllAlerts && !e.matrix.ContainsAlertID(alertID) {
		e.runWarning(out, "Resolution failed. Nothing known about alertid: "+alertID, true)
		return
	}

	cleared := e.matrix.Set(vehicle, alertID, false)
	contact := vehicle
	if cs, ok := e.findContact(vehicle); ok {
		cs.alertsActive = max(cs.alertsActive-cleared, 0)
		cs.alertsResolved += cleared
		contact = cs.record.Name()
	}

	out.Alerts = append(out.Alerts, model.AlertEvent{
		ID:       e.newID(),
		Contact:  contact,
		AlertID:  alertID,
		Var:      VarContactResolved,
		Value:    value,
		Resolved: true,
		Time:     timeOf(e.currTime),
	})

	e.recordEvent("Resolved: (" + vehicle + "," + alertID + ")")
	e.logger.Info("Alert resolved", "contact", contact, "alert_id", alertID, "cleared", cleared)
}
