package rules

import (
	"strings"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
)

// Render substitutes contact fields into an alert variable name or message
// pattern. Recognized placeholders are $[X] $[Y] $[LAT] $[LON] $[SPD]
// $[HDG] $[DEP] $[VNAME] $[VTYPE] $[UTIME] and the lower-cased forms
// %[VNAME] %[VTYPE].
func Render(template string, c model.Contact) string {
	if !strings.ContainsAny(template, "$%") {
		return template
	}

	r := strings.NewReplacer(
		"$[X]", c.StringValue("x"),
		"$[Y]", c.StringValue("y"),
		"$[LAT]", c.StringValue("lat"),
		"$[LON]", c.StringValue("lon"),
		"$[SPD]", c.StringValue("speed"),
		"$[HDG]", c.StringValue("heading"),
		"$[DEP]", c.StringValue("depth"),
		"$[VNAME]", c.Name(),
		"$[VTYPE]", c.Type(),
		"$[UTIME]", c.StringValue("time"),
		"%[VNAME]", strings.ToLower(c.Name()),
		"%[VTYPE]", strings.ToLower(c.Type()),
	)
	return r.Replace(template)
}
