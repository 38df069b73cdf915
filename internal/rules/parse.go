package rules

import (
	"strconv"
	"strings"
)

// ParseAlertSpec parses one alert definition of the form
//
//	id=avd,var=CONTACT_INFO,val="name=avd_$[VNAME] # contact=$[VNAME]",
//	alert_range=80,cpa_range=95,alert_range_color=green
//
// Commas inside double quotes do not split. The line is accepted whole or
// rejected whole: any unknown key or invalid value returns an error and no
// rule.
func ParseAlertSpec(spec string) (AlertRule, error) {
	rule := AlertRule{ID: DefaultAlertID}

	for _, part := range SplitQuoted(spec, ',') {
		left, right, _ := strings.Cut(part, "=")
		left = strings.ToLower(strings.TrimSpace(left))
		right = stripQuotes(strings.TrimSpace(right))

		switch left {
		case "":
			continue
		case "id":
			if right != "" {
				rule.ID = right
			}
		case "var":
			rule.Var = right
		case "val", "pattern":
			rule.Pattern = right
		case "alert_range", "range":
			v, err := parseRange(left, right)
			if err != nil {
				return AlertRule{}, err
			}
			rule.Range = &v
		case "cpa_range":
			v, err := parseRange(left, right)
			if err != nil {
				return AlertRule{}, err
			}
			rule.CPARange = &v
		case "alert_range_color":
			if !IsColor(right) {
				return AlertRule{}, &ValidationError{Field: left, Message: right + " is not a color"}
			}
			rule.RangeColor = right
		case "cpa_range_color":
			if !IsColor(right) {
				return AlertRule{}, &ValidationError{Field: left, Message: right + " is not a color"}
			}
			rule.CPARangeColor = right
		default:
			return AlertRule{}, &ValidationError{Field: left, Message: "unhandled alert config component"}
		}
	}

	return rule, nil
}

// parseRange parses a non-negative range value
func parseRange(field, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Message: "not a number: " + value}
	}
	if v < 0 {
		return 0, &ValidationError{Field: field, Message: "must be >= 0: " + value}
	}
	return v, nil
}

// SplitQuoted splits s on sep, ignoring separators inside double quotes
func SplitQuoted(s string, sep rune) []string {
	var parts []string
	var b strings.Builder
	inQuotes := false

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			b.WriteRune(r)
		case r == sep && !inQuotes:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	parts = append(parts, b.String())
	return parts
}

func stripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
