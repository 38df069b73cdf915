package engine

import (
	"strconv"
	"strings"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/rules"
)

// Configure applies startup parameters given as "key = value" lines. Every
// problem is returned as a *ConfigWarning; the offending setting is ignored
// and its default kept. Configure never fails outright.
func (e *Engine) Configure(lines []string) []error {
	var warnings []error
	warn := func(param, value, reason string) {
		w := &ConfigWarning{Param: param, Value: value, Reason: reason}
		e.logger.Warn("Config warning", "param", param, "value", value, "reason", reason)
		warnings = append(warnings, w)
	}

	s := &e.settings
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		param, value, _ := strings.Cut(line, "=")
		param = strings.ToLower(strings.TrimSpace(param))
		value = strings.TrimSpace(value)

		switch param {
		case "alert":
			rule, err := rules.ParseAlertSpec(value)
			if err == nil {
				err = e.UpsertRule(rule)
			}
			if err != nil {
				warn(param, value, "failed alert config: "+err.Error())
			}

		case "decay":
			left, right, _ := strings.Cut(value, ",")
			start, err1 := strconv.ParseFloat(strings.TrimSpace(left), 64)
			end, err2 := strconv.ParseFloat(strings.TrimSpace(right), 64)
			if err1 != nil || err2 != nil || start < 0 || start > end {
				warn(param, value, "decay must be <start>,<end> with 0 <= start <= end")
				continue
			}
			s.DecayStart, s.DecayEnd = start, end
			e.estimator.DecayStart, e.estimator.DecayEnd = start, end

		case "display_radii":
			b, ok := parseBool(value)
			if !ok {
				warn(param, value, "must be either true or false")
				continue
			}
			s.DisplayRadii = b

		case "contact_local_coords":
			lval := strings.ToLower(value)
			switch lval {
			case CoordsVerbatim, CoordsLazyLatLon, CoordsForceLatLon:
				s.LocalCoords = lval
			default:
				warn(param, value, "illegal contact_local_coords configuration")
			}

		case "alert_range", "default_alert_range":
			if v, ok := parsePositive(value); ok {
				s.Defaults.Range = v
			} else {
				warn(param, value, "alert_range must be > zero")
			}

		case "alert_cpa_range", "default_cpa_range":
			if v, ok := parsePositive(value); ok {
				s.Defaults.CPARange = v
			} else {
				warn(param, value, "default_cpa_range must be > zero")
			}

		case "contacts_recap_interval":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil || v < 0 {
				warn(param, value, "contacts_recap_interval must be >= zero")
				continue
			}
			s.RecapInterval = v

		case "alert_cpa_time":
			warn(param, value, "alert_cpa_time parameter has been deprecated")

		case "alert_verbose":
			b, ok := parseBool(value)
			if !ok {
				warn(param, value, "alert_verbose must be either true or false")
				continue
			}
			s.AlertVerbose = b

		case "default_alert_range_color":
			if rules.IsColor(value) {
				s.Defaults.RangeColor = value
			} else {
				warn(param, value, "not a color")
			}

		case "default_cpa_range_color":
			if rules.IsColor(value) {
				s.Defaults.CPARangeColor = value
			} else {
				warn(param, value, "not a color")
			}

		case "contact_max_age":
			if v, ok := parsePositive(value); ok {
				s.MaxAge = v
			} else {
				warn(param, value, "contact_max_age must be > zero")
			}

		case "contact_evict_age":
			v, err := strconv.ParseFloat(value, 64)
			if err != nil || v < 0 {
				warn(param, value, "contact_evict_age must be >= zero")
				continue
			}
			s.EvictAge = v

		default:
			warn(param, value, "unhandled config parameter")
		}
	}

	// Deriving x/y from lat/lon needs a geodetic origin
	e.useGeo = false
	if s.LocalCoords != CoordsVerbatim {
		if e.geo == nil {
			warn("contact_local_coords", s.LocalCoords,
				"no lat/lon origin; will not derive x/y from lat/lon in node reports")
		} else {
			e.useGeo = true
			e.logger.Info("Geodesy init ok: will derive x/y from lat/lon in node reports",
				"mode", s.LocalCoords)
		}
	}

	e.logger.Info("Contact manager configured",
		"ownship", e.ownship,
		"alerts", len(e.rules),
		"default_alert_range", s.Defaults.Range,
		"default_cpa_range", s.Defaults.CPARange,
		"decay_start", s.DecayStart,
		"decay_end", s.DecayEnd,
		"contact_max_age", s.MaxAge,
		"warnings", len(warnings))

	return warnings
}

func parsePositive(value string) (float64, bool) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func parseBool(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "yes", "on":
		return true, true
	case "false", "no", "off":
		return false, true
	}
	return false, false
}
