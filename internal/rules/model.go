package rules

import (
	"strings"
)

// DefaultAlertID is the id given to an alert configured without one
const DefaultAlertID = "no_id"

// AllAlerts is the wildcard alert id accepted by resolution requests
const AllAlerts = "all_alerts"

// AlertRule represents one named alerting policy. Unset ranges and colors
// fall back to the process-wide defaults when the rule is evaluated.
type AlertRule struct {
	ID            string   `yaml:"id" json:"id"`
	Var           string   `yaml:"var" json:"var,omitempty"`
	Pattern       string   `yaml:"pattern" json:"pattern,omitempty"`
	Range         *float64 `yaml:"alert_range" json:"alert_range,omitempty"`
	CPARange      *float64 `yaml:"cpa_range" json:"cpa_range,omitempty"`
	RangeColor    string   `yaml:"alert_range_color" json:"alert_range_color,omitempty"`
	CPARangeColor string   `yaml:"cpa_range_color" json:"cpa_range_color,omitempty"`
	Enabled       *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	SourceFile    string   `yaml:"-" json:"source_file,omitempty"`
}

// Defaults holds the process-wide values an AlertRule falls back to
type Defaults struct {
	Range         float64 `json:"alert_range"`
	CPARange      float64 `json:"cpa_range"`
	RangeColor    string  `json:"alert_range_color"`
	CPARangeColor string  `json:"cpa_range_color"`
}

// DefaultDefaults returns the built-in fallback values
func DefaultDefaults() Defaults {
	return Defaults{
		Range:         1000,
		CPARange:      1000,
		RangeColor:    "gray65",
		CPARangeColor: "gray35",
	}
}

// RuleSnapshot represents a point-in-time set of alert rules
type RuleSnapshot struct {
	Rules   []AlertRule `json:"rules"`
	Version int64       `json:"version"`
}

// Validate checks if the rule is valid
func (r *AlertRule) Validate() error {
	// Check required fields
	if strings.TrimSpace(r.ID) == "" {
		return &ValidationError{Field: "id", Message: "alert ID is required"}
	}
	if strings.EqualFold(r.ID, AllAlerts) {
		return &ValidationError{Field: "id", Message: "all_alerts is reserved"}
	}

	// Validate ranges
	if r.Range != nil && *r.Range < 0 {
		return &ValidationError{Field: "alert_range", Message: "alert range must be >= 0"}
	}
	if r.CPARange != nil && *r.CPARange < 0 {
		return &ValidationError{Field: "cpa_range", Message: "cpa range must be >= 0"}
	}

	// Validate colors
	if r.RangeColor != "" && !IsColor(r.RangeColor) {
		return &ValidationError{Field: "alert_range_color", Message: r.RangeColor + " is not a color"}
	}
	if r.CPARangeColor != "" && !IsColor(r.CPARangeColor) {
		return &ValidationError{Field: "cpa_range_color", Message: r.CPARangeColor + " is not a color"}
	}

	return nil
}

// IsEnabled checks if the rule is enabled. Rules are enabled unless
// explicitly switched off.
func (r *AlertRule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// CanFire reports whether the rule names a variable to post on
func (r *AlertRule) CanFire() bool {
	return r.Var != ""
}

// Merge overlays the fields set in other onto a copy of r
func (r AlertRule) Merge(other AlertRule) AlertRule {
	if other.Var != "" {
		r.Var = other.Var
	}
	if other.Pattern != "" {
		r.Pattern = other.Pattern
	}
	if other.Range != nil {
		v := *other.Range
		r.Range = &v
	}
	if other.CPARange != nil {
		v := *other.CPARange
		r.CPARange = &v
	}
	if other.RangeColor != "" {
		r.RangeColor = other.RangeColor
	}
	if other.CPARangeColor != "" {
		r.CPARangeColor = other.CPARangeColor
	}
	if other.Enabled != nil {
		v := *other.Enabled
		r.Enabled = &v
	}
	if other.SourceFile != "" {
		r.SourceFile = other.SourceFile
	}
	return r
}

// AlertRange returns the inner range, or the default when unset
func (r *AlertRule) AlertRange(d Defaults) float64 {
	if r.Range != nil {
		return *r.Range
	}
	return d.Range
}

// AlertRangeCPA returns the CPA range, or the default when unset
func (r *AlertRule) AlertRangeCPA(d Defaults) float64 {
	if r.CPARange != nil {
		return *r.CPARange
	}
	return d.CPARange
}

// AlertRangeColor returns the inner range color, or the default when unset
func (r *AlertRule) AlertRangeColor(d Defaults) string {
	if r.RangeColor != "" {
		return r.RangeColor
	}
	return d.RangeColor
}

// AlertRangeCPAColor returns the CPA range color, or the default when unset
func (r *AlertRule) AlertRangeCPAColor(d Defaults) string {
	if r.CPARangeColor != "" {
		return r.CPARangeColor
	}
	return d.CPARangeColor
}

// Float returns a pointer to v, for building rules in code
func Float(v float64) *float64 {
	return &v
}

// ValidationError represents a rule validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
