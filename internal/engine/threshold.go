package engine

// ThresholdLookup decides which key the (inner, CPA) range thresholds are
// looked up by when selecting the effective range of a contact against one
// alert rule. A key matching no alert id yields the default thresholds.
type ThresholdLookup interface {
	ThresholdKey(vehicle, alertID string) string
	Name() string
}

// AlertIDLookup keys thresholds by the alert being evaluated
type AlertIDLookup struct{}

func (AlertIDLookup) ThresholdKey(_, alertID string) string { return alertID }
func (AlertIDLookup) Name() string                          { return "alert_id" }

// VehicleNameLookup keys thresholds by the contact's own name. A contact
// only gets non-default thresholds when its name happens to equal an alert
// id. Kept for compatibility with deployments that rely on it.
type VehicleNameLookup struct{}

func (VehicleNameLookup) ThresholdKey(vehicle, _ string) string { return vehicle }
func (VehicleNameLookup) Name() string                          { return "vehicle_name" }

// LookupByName returns the strategy with the given name
func LookupByName(name string) (ThresholdLookup, bool) {
	switch name {
	case "", "alert_id":
		return AlertIDLookup{}, true
	case "vehicle_name":
		return VehicleNameLookup{}, true
	}
	return nil, false
}

// thresholds returns the (inner, CPA) thresholds for a key
func (e *Engine) thresholds(key string) (float64, float64) {
	return e.alertRange(key), e.alertRangeCPA(key)
}

// checkNameCollision logs once per contact when its name equals a
// configured alert id and keying by name would select different thresholds
// than keying by alert id for some rule.
func (e *Engine) checkNameCollision(name string) {
	if e.collisionWarned[name] {
		return
	}
	if _, ok := e.rules[name]; !ok {
		return
	}

	nameInner, nameCPA := e.thresholds(name)
	for _, id := range e.ruleIDs() {
		inner, cpa := e.thresholds(id)
		if inner != nameInner || cpa != nameCPA {
			e.collisionWarned[name] = true
			e.logger.Warn("Contact name collides with alert id; name-keyed thresholds differ",
				"contact", name,
				"alert_id", id,
				"lookup", e.lookup.Name(),
				"name_inner", nameInner,
				"name_cpa", nameCPA,
				"alert_inner", inner,
				"alert_cpa", cpa)
			return
		}
	}
}
