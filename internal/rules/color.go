package rules

import (
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// extraColors are accepted color names that are not SVG 1.1 names
var extraColors = map[string]bool{
	"invisible": true,
	"macbeige":  true,
	"macpurple": true,
}

// IsColor reports whether s names a color the viewer understands. Accepted
// forms are a color name (case and underscores ignored, plus grayNN and
// greyNN shades), "hex:rr,gg,bb", and a decimal triplet in [0,1] separated
// by one of , % $ # or :. A triplet that parses to pure black is only
// accepted when spelled "black".
func IsColor(s string) bool {
	str := strings.ToLower(strings.TrimSpace(s))
	if str == "" {
		return false
	}

	if strings.HasPrefix(str, "hex:") {
		return isHexColor(strings.TrimPrefix(str, "hex:"))
	}
	if strings.ContainsAny(str, ",%$#:") {
		return isDecColor(str)
	}

	name := strings.ReplaceAll(str, "_", "")
	if extraColors[name] || isGrayShade(name) {
		return true
	}
	_, ok := colornames.Map[name]
	return ok
}

func isHexColor(s string) bool {
	s = strings.NewReplacer(" ", "", "\t", "").Replace(s)
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return false
	}

	sum := 0
	for _, p := range parts {
		if len(p) != 2 {
			return false
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return false
		}
		sum += int(v)
	}
	return sum > 0
}

func isDecColor(s string) bool {
	sep := ""
	for _, c := range []string{",", "%", "$", "#", ":"} {
		if strings.Contains(s, c) {
			sep = c
			break
		}
	}

	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return false
	}

	sum := 0.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return false
		}
		sum += min(max(v, 0), 1)
	}
	return sum > 0
}

// isGrayShade matches gray05 .. gray95 and grey05 .. grey95 in steps of 5
func isGrayShade(name string) bool {
	var digits string
	switch {
	case strings.HasPrefix(name, "gray"):
		digits = strings.TrimPrefix(name, "gray")
	case strings.HasPrefix(name, "grey"):
		digits = strings.TrimPrefix(name, "grey")
	default:
		return false
	}
	if len(digits) != 2 {
		return false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return false
	}
	return n >= 5 && n <= 95 && n%5 == 0
}
