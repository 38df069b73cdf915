package model

import (
	"math"
	"strconv"
	"strings"
)

// ParseNodeReport builds a Contact from a flat NODE_REPORT string such as
//
//	NAME=alpha,TYPE=KAYAK,UTC_TIME=1267294386.51,X=29.66,Y=-23.49,
//	LAT=43.825089,LON=-70.330030,SPD=2.00,HDG=119.06,DEPTH=0.00,LENGTH=4.0
//
// Keys are case-insensitive. Numeric keys carrying a non-numeric or
// non-finite value are ignored. Keys that are not recognized are kept in the property bag. The
// type is normalized and the length defaulted by type when not reported.
func ParseNodeReport(report string) Contact {
	var c Contact

	for _, part := range strings.Split(report, ",") {
		key, value, _ := strings.Cut(part, "=")
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		switch key {
		case "NAME":
			c.SetName(value)
			continue
		case "TYPE":
			c.SetType(value)
			continue
		case "GROUP":
			c.SetGroup(value)
			continue
		case "MODE":
			c.SetMode(value)
			continue
		case "MODE_AUX":
			c.SetModeAux(value)
			continue
		case "ALLSTOP":
			c.SetAllStop(value)
			continue
		case "LOAD_WARNING":
			c.SetLoadWarning(value)
			continue
		case "INDEX":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				c.SetIndex(int(f))
			}
			continue
		case "THRUST_MODE_REVERSE":
			c.SetThrustModeReverse(strings.EqualFold(value, "true"))
			continue
		}

		f, err := strconv.ParseFloat(value, 64)
		numeric := err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
		if !numeric {
			if !isNumericKey(key) {
				c.SetProperty(strings.ToLower(key), value)
			}
			continue
		}

		switch key {
		case "UTC_TIME", "TIME":
			c.SetTimeStamp(f)
		case "X":
			c.SetX(f)
		case "Y":
			c.SetY(f)
		case "LAT":
			c.SetLat(f)
		case "LON":
			c.SetLon(f)
		case "SPD", "SPEED":
			c.SetSpeed(f)
		case "SPD_OG":
			c.SetSpeedOG(f)
		case "HDG", "HEADING":
			c.SetHeading(f)
		case "HDG_OG":
			c.SetHeadingOG(f)
		case "YAW":
			c.SetYaw(f)
		case "PITCH":
			c.SetPitch(f)
		case "DEP", "DEPTH":
			c.SetDepth(f)
		case "ALT", "ALTITUDE":
			c.SetAltitude(f)
		case "LENGTH", "LEN":
			c.SetLength(f)
		default:
			c.SetProperty(strings.ToLower(key), value)
		}
	}

	c.vtype = NormalizeType(c.vtype)
	if !c.lengthSet || c.length == 0 {
		c.SetLength(DefaultLength(c.vtype))
	}
	return c
}

// isNumericKey reports whether the report key expects a number
func isNumericKey(key string) bool {
	switch key {
	case "UTC_TIME", "TIME", "X", "Y", "LAT", "LON", "SPD", "SPEED",
		"SPD_OG", "HDG", "HEADING", "HDG_OG", "YAW", "PITCH",
		"DEP", "DEPTH", "ALT", "ALTITUDE", "LENGTH", "LEN":
		return true
	}
	return false
}
