package model

import (
	"sort"
	"strconv"
	"strings"
)

// Contact types recognized by the contact manager. Anything else is
// normalized to TypeShip.
const (
	TypeAUV    = "auv"
	TypeGlider = "glider"
	TypeShip   = "ship"
	TypeKayak  = "kayak"
	TypeWAMV   = "wamv"
)

// defaultLengths holds the hull length (meters) assumed for a contact type
// when a report carries no usable LENGTH.
var defaultLengths = map[string]float64{
	TypeAUV:    4,
	TypeGlider: 2,
	TypeShip:   10,
	TypeKayak:  3,
	TypeWAMV:   5,
}

var typeAliases = map[string]string{
	"uuv":    TypeAUV,
	"auv":    TypeAUV,
	"glider": TypeGlider,
	"ship":   TypeShip,
	"kayak":  TypeKayak,
	"heron":  TypeKayak,
	"wamv":   TypeWAMV,
}

// NormalizeType maps a reported vehicle type onto the known set
func NormalizeType(vtype string) string {
	if t, ok := typeAliases[strings.ToLower(strings.TrimSpace(vtype))]; ok {
		return t
	}
	return TypeShip
}

// DefaultLength returns the assumed hull length for a normalized type
func DefaultLength(vtype string) float64 {
	if l, ok := defaultLengths[vtype]; ok {
		return l
	}
	return defaultLengths[TypeShip]
}

// Contact is a snapshot of one peer vehicle as of its latest position
// report. Every numeric field carries an explicit is-set flag so that a
// reported zero can be told apart from a missing value.
type Contact struct {
	name     string
	group    string
	vtype    string
	mode     string
	modeAux  string
	allStop  string
	loadWarn string
	index    int
	reverse  bool

	x, y            float64
	lat, lon        float64
	speed, speedOG  float64
	heading, hdgOG  float64
	yaw, pitch      float64
	depth, altitude float64
	length          float64
	timestamp       float64

	xSet, ySet            bool
	latSet, lonSet        bool
	speedSet, speedOGSet  bool
	headingSet, hdgOGSet  bool
	yawSet, pitchSet      bool
	depthSet, altitudeSet bool
	lengthSet, timeSet    bool

	properties map[string]string
}

// NewContact creates an empty record for the given name and type
func NewContact(name, vtype string) Contact {
	return Contact{name: name, vtype: vtype}
}

func (c *Contact) SetName(s string)            { c.name = s }
func (c *Contact) SetGroup(s string)           { c.group = s }
func (c *Contact) SetType(s string)            { c.vtype = s }
func (c *Contact) SetMode(s string)            { c.mode = s }
func (c *Contact) SetModeAux(s string)         { c.modeAux = s }
func (c *Contact) SetAllStop(s string)         { c.allStop = s }
func (c *Contact) SetLoadWarning(s string)     { c.loadWarn = s }
func (c *Contact) SetIndex(i int)              { c.index = i }
func (c *Contact) SetThrustModeReverse(v bool) { c.reverse = v }

func (c *Contact) SetX(v float64)         { c.x, c.xSet = v, true }
func (c *Contact) SetY(v float64)         { c.y, c.ySet = v, true }
func (c *Contact) SetLat(v float64)       { c.lat, c.latSet = v, true }
func (c *Contact) SetLon(v float64)       { c.lon, c.lonSet = v, true }
func (c *Contact) SetSpeed(v float64)     { c.speed, c.speedSet = v, true }
func (c *Contact) SetSpeedOG(v float64)   { c.speedOG, c.speedOGSet = v, true }
func (c *Contact) SetHeading(v float64)   { c.heading, c.headingSet = v, true }
func (c *Contact) SetHeadingOG(v float64) { c.hdgOG, c.hdgOGSet = v, true }
func (c *Contact) SetYaw(v float64)       { c.yaw, c.yawSet = v, true }
func (c *Contact) SetPitch(v float64)     { c.pitch, c.pitchSet = v, true }
func (c *Contact) SetDepth(v float64)     { c.depth, c.depthSet = v, true }
func (c *Contact) SetAltitude(v float64)  { c.altitude, c.altitudeSet = v, true }
func (c *Contact) SetLength(v float64)    { c.length, c.lengthSet = v, true }
func (c *Contact) SetTimeStamp(v float64) { c.timestamp, c.timeSet = v, true }

// SetProperty stores a free-form key/value pair on the record
func (c *Contact) SetProperty(key, value string) {
	if c.properties == nil {
		c.properties = make(map[string]string)
	}
	c.properties[key] = value
}

func (c Contact) Name() string        { return c.name }
func (c Contact) Group() string       { return c.group }
func (c Contact) Type() string        { return c.vtype }
func (c Contact) Mode() string        { return c.mode }
func (c Contact) ModeAux() string     { return c.modeAux }
func (c Contact) AllStop() string     { return c.allStop }
func (c Contact) LoadWarning() string { return c.loadWarn }
func (c Contact) Index() int          { return c.index }

func (c Contact) X() float64         { return c.x }
func (c Contact) Y() float64         { return c.y }
func (c Contact) Lat() float64       { return c.lat }
func (c Contact) Lon() float64       { return c.lon }
func (c Contact) Speed() float64     { return c.speed }
func (c Contact) SpeedOG() float64   { return c.speedOG }
func (c Contact) Heading() float64   { return c.heading }
func (c Contact) HeadingOG() float64 { return c.hdgOG }
func (c Contact) Yaw() float64       { return c.yaw }
func (c Contact) Pitch() float64     { return c.pitch }
func (c Contact) Depth() float64     { return c.depth }
func (c Contact) Altitude() float64  { return c.altitude }
func (c Contact) Length() float64    { return c.length }
func (c Contact) TimeStamp() float64 { return c.timestamp }

func (c Contact) IsSetX() bool         { return c.xSet }
func (c Contact) IsSetY() bool         { return c.ySet }
func (c Contact) IsSetLat() bool       { return c.latSet }
func (c Contact) IsSetLon() bool       { return c.lonSet }
func (c Contact) IsSetSpeed() bool     { return c.speedSet }
func (c Contact) IsSetHeading() bool   { return c.headingSet }
func (c Contact) IsSetDepth() bool     { return c.depthSet }
func (c Contact) IsSetAltitude() bool  { return c.altitudeSet }
func (c Contact) IsSetLength() bool    { return c.lengthSet }
func (c Contact) IsSetTimeStamp() bool { return c.timeSet }

// HasLatLon reports whether both geodetic coordinates were reported
func (c Contact) HasLatLon() bool {
	return c.latSet && c.lonSet
}

// HasXY reports whether both local coordinates were reported
func (c Contact) HasXY() bool {
	return c.xSet && c.ySet
}

// Property returns a free-form property, or "" when absent
func (c Contact) Property(key string) string {
	return c.properties[key]
}

// HasProperty reports whether a free-form property is present
func (c Contact) HasProperty(key string) bool {
	_, ok := c.properties[key]
	return ok
}

// Age returns the seconds elapsed between the report time and now, or -1
// when the record carries no timestamp.
func (c Contact) Age(now float64) float64 {
	if !c.timeSet {
		return -1
	}
	return now - c.timestamp
}

// Valid checks that every field named in the comma-separated list has been
// set. The missing field names are returned in list order.
func (c Contact) Valid(fields string) (bool, []string) {
	var missing []string
	for _, raw := range strings.Split(fields, ",") {
		field := strings.ToLower(strings.TrimSpace(raw))
		if field == "" {
			continue
		}
		if !c.isSet(field) {
			missing = append(missing, field)
		}
	}
	return len(missing) == 0, missing
}

func (c Contact) isSet(field string) bool {
	switch field {
	case "name":
		return c.name != ""
	case "type":
		return c.vtype != ""
	case "group":
		return c.group != ""
	case "mode":
		return c.mode != ""
	case "mode_aux":
		return c.modeAux != ""
	case "allstop":
		return c.allStop != ""
	case "load_warning":
		return c.loadWarn != ""
	case "x":
		return c.xSet
	case "y":
		return c.ySet
	case "lat":
		return c.latSet
	case "lon":
		return c.lonSet
	case "speed":
		return c.speedSet
	case "heading":
		return c.headingSet
	case "depth":
		return c.depthSet
	case "altitude":
		return c.altitudeSet
	case "time":
		return c.timeSet
	case "length":
		return c.lengthSet
	case "yaw":
		return c.yawSet
	case "pitch":
		return c.pitchSet
	}
	// Unknown field names are looked up in the property bag
	return c.HasProperty(field)
}

// StringValue renders a field for template substitution. Numeric fields are
// formatted at a fixed precision with trailing zeros trimmed; any other key
// is looked up among the free-form properties.
func (c Contact) StringValue(key string) string {
	switch strings.ToLower(key) {
	case "name", "vname":
		return c.name
	case "type", "vtype":
		return c.vtype
	case "group":
		return c.group
	case "x":
		return FormatFloat(c.x, 2)
	case "y":
		return FormatFloat(c.y, 2)
	case "lat":
		return FormatFloat(c.lat, 8)
	case "lon":
		return FormatFloat(c.lon, 8)
	case "speed", "spd":
		return FormatFloat(c.speed, 2)
	case "speed_og", "spd_og":
		return FormatFloat(c.speedOG, 2)
	case "heading", "hdg":
		return FormatFloat(c.heading, 2)
	case "heading_og", "hdg_og":
		return FormatFloat(c.hdgOG, 2)
	case "yaw":
		return FormatFloat(c.yaw, 4)
	case "pitch":
		return FormatFloat(c.pitch, 4)
	case "depth", "dep":
		return FormatFloat(c.depth, 2)
	case "altitude", "alt":
		return FormatFloat(c.altitude, 2)
	case "length", "len":
		return FormatFloat(c.length, 2)
	case "timestamp", "time", "utime":
		return FormatFloat(c.timestamp, 2)
	}
	return c.properties[key]
}

// Spec serializes every set field into the flat NODE_REPORT wire format
func (c Contact) Spec() string {
	var b strings.Builder
	b.WriteString("NAME=" + c.name)

	add := func(key, val string) {
		b.WriteString("," + key + "=" + val)
	}
	if c.xSet {
		add("X", FormatFloat(c.x, 2))
	}
	if c.ySet {
		add("Y", FormatFloat(c.y, 2))
	}
	if c.speedSet {
		add("SPD", FormatFloat(c.speed, 2))
	}
	if c.headingSet {
		add("HDG", FormatFloat(c.heading, 2))
	}
	if c.depthSet {
		add("DEP", FormatFloat(c.depth, 2))
	}
	if c.latSet {
		add("LAT", FormatFloat(c.lat, 8))
	}
	if c.lonSet {
		add("LON", FormatFloat(c.lon, 8))
	}
	if c.vtype != "" {
		add("TYPE", c.vtype)
	}
	if c.group != "" {
		add("GROUP", c.group)
	}
	if c.mode != "" {
		add("MODE", c.mode)
	}
	if c.modeAux != "" {
		add("MODE_AUX", c.modeAux)
	}
	if c.allStop != "" {
		add("ALLSTOP", c.allStop)
	}
	if c.loadWarn != "" {
		add("LOAD_WARNING", c.loadWarn)
	}
	if c.altitudeSet {
		add("ALTITUDE", FormatFloat(c.altitude, 2))
	}
	if c.speedOGSet {
		add("SPD_OG", FormatFloat(c.speedOG, 2))
	}
	if c.hdgOGSet {
		add("HDG_OG", FormatFloat(c.hdgOG, 2))
	}
	if c.index != 0 {
		add("INDEX", strconv.Itoa(c.index))
	}
	if c.reverse {
		add("THRUST_MODE_REVERSE", "true")
	}
	if c.yawSet {
		add("YAW", FormatFloat(c.yaw, 4))
	}
	if c.pitchSet {
		add("PITCH", FormatFloat(c.pitch, 4))
	}
	if c.timeSet {
		add("TIME", FormatFloat(c.timestamp, 2))
	}
	if c.lengthSet {
		add("LENGTH", FormatFloat(c.length, 2))
	}

	keys := make([]string, 0, len(c.properties))
	for k := range c.properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		add(k, c.properties[k])
	}
	return b.String()
}

// FormatFloat formats v with prec decimals and trims trailing zeros
func FormatFloat(v float64, prec int) string {
	s := strconv.FormatFloat(v, 'f', prec, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}
