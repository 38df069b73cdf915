package engine

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/rules"
)

// ContactStatus is the reportable state of one contact
type ContactStatus struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	Group          string   `json:"group,omitempty"`
	X              float64  `json:"x"`
	Y              float64  `json:"y"`
	Lat            float64  `json:"lat,omitempty"`
	Lon            float64  `json:"lon,omitempty"`
	Speed          float64  `json:"speed"`
	Heading        float64  `json:"heading"`
	Age            float64  `json:"age"`
	Retired        bool     `json:"retired"`
	Range          float64  `json:"range"`
	Ranges         Ranges   `json:"ranges"`
	AlertsTotal    int      `json:"alerts_total"`
	AlertsActive   int      `json:"alerts_active"`
	AlertsResolved int      `json:"alerts_resolved"`
	Alerted        []string `json:"alerted,omitempty"`
	Report         string   `json:"report"`
}

// RuleStatus is an alert rule with its defaults applied
type RuleStatus struct {
	ID            string  `json:"id"`
	Var           string  `json:"var"`
	Pattern       string  `json:"pattern"`
	Range         float64 `json:"alert_range"`
	CPARange      float64 `json:"cpa_range"`
	RangeColor    string  `json:"alert_range_color"`
	CPARangeColor string  `json:"cpa_range_color"`
	SourceFile    string  `json:"source_file,omitempty"`
}

// Status is a point-in-time view of the engine
type Status struct {
	Ownship      string          `json:"ownship"`
	Time         float64         `json:"time"`
	Pose         Pose            `json:"pose"`
	Settings     Settings        `json:"settings"`
	UsingGeodesy bool            `json:"using_geodesy"`
	Lookup       string          `json:"threshold_lookup"`
	Rules        []RuleStatus    `json:"rules"`
	Contacts     []ContactStatus `json:"contacts"`
	List         string          `json:"contacts_list"`
	Alerted      string          `json:"contacts_alerted"`
	Unalerted    string          `json:"contacts_unalerted"`
	Retired      string          `json:"contacts_retired"`
	Recap        string          `json:"contacts_recap"`
	Pending      bool            `json:"alerts_pending"`
	Events       []Event         `json:"events"`
	Warnings     int             `json:"warnings"`
}

// Snapshot captures the engine state. Contact ages are computed at now;
// ranges are those of the last tick.
func (e *Engine) Snapshot(now time.Time) Status {
	t := e.currTime
	if !now.IsZero() {
		t = model.Seconds(now)
	}

	st := Status{
		Ownship:      e.ownship,
		Time:         t,
		Pose:         e.pose,
		Settings:     e.settings,
		UsingGeodesy: e.useGeo,
		Lookup:       e.lookup.Name(),
		List:         e.prevList,
		Alerted:      e.prevAlerted,
		Unalerted:    e.prevUnalerted,
		Retired:      e.prevRetired,
		Recap:        e.prevRecap,
		Pending:      e.matrix.Pending(),
		Events:       append([]Event(nil), e.events...),
		Warnings:     e.warningCount,
	}

	for _, rule := range e.Rules() {
		st.Rules = append(st.Rules, e.ruleStatus(rule))
	}
	for _, name := range e.ContactNames() {
		st.Contacts = append(st.Contacts, e.contactStatus(name, t))
	}
	return st
}

// ContactStatus returns the status of a single contact
func (e *Engine) ContactStatus(name string, now time.Time) (ContactStatus, bool) {
	if _, ok := e.contacts[name]; !ok {
		return ContactStatus{}, false
	}
	t := e.currTime
	if !now.IsZero() {
		t = model.Seconds(now)
	}
	return e.contactStatus(name, t), true
}

func (e *Engine) contactStatus(name string, t float64) ContactStatus {
	cs := e.contacts[name]
	rec := cs.record
	age := t - rec.TimeStamp()

	return ContactStatus{
		Name:           name,
		Type:           rec.Type(),
		Group:          rec.Group(),
		X:              rec.X(),
		Y:              rec.Y(),
		Lat:            rec.Lat(),
		Lon:            rec.Lon(),
		Speed:          rec.Speed(),
		Heading:        rec.Heading(),
		Age:            age,
		Retired:        age > e.settings.MaxAge,
		Range:          cs.used,
		Ranges:         cs.ranges,
		AlertsTotal:    cs.alertsTotal,
		AlertsActive:   cs.alertsActive,
		AlertsResolved: cs.alertsResolved,
		Alerted:        e.matrix.AlertsFor(name),
		Report:         rec.Spec(),
	}
}

func (e *Engine) ruleStatus(rule rules.AlertRule) RuleStatus {
	d := e.settings.Defaults
	return RuleStatus{
		ID:            rule.ID,
		Var:           rule.Var,
		Pattern:       rule.Pattern,
		Range:         rule.AlertRange(d),
		CPARange:      rule.AlertRangeCPA(d),
		RangeColor:    rule.AlertRangeColor(d),
		CPARangeColor: rule.AlertRangeCPAColor(d),
		SourceFile:    rule.SourceFile,
	}
}

// Report renders the status as a human-readable text report
func (e *Engine) Report(now time.Time) string {
	st := e.Snapshot(now)
	var b strings.Builder

	fmt.Fprintf(&b, "Ownship:                   %s\n", st.Ownship)
	fmt.Fprintf(&b, "DisplayRadii:              %t\n", st.Settings.DisplayRadii)
	fmt.Fprintf(&b, "Deriving X/Y from Lat/Lon: %t\n", st.UsingGeodesy)
	fmt.Fprintf(&b, "Threshold lookup:          %s\n\n", st.Lookup)

	fmt.Fprintf(&b, "Alert Configurations (%d):\n", len(st.Rules))
	b.WriteString("---------------------\n")
	for _, r := range st.Rules {
		fmt.Fprintf(&b, "Alert ID = %s\n", r.ID)
		fmt.Fprintf(&b, "  VARNAME   = %s\n", r.Var)
		fmt.Fprintf(&b, "  PATTERN   = %s\n", r.Pattern)
		fmt.Fprintf(&b, "  RANGE     = %s, %s\n", model.FormatFloat(r.Range, 2), r.RangeColor)
		fmt.Fprintf(&b, "  CPA_RANGE = %s, %s\n", model.FormatFloat(r.CPARange, 2), r.CPARangeColor)
	}
	b.WriteString("\n")

	b.WriteString("Alert Status Summary:\n")
	b.WriteString("----------------------\n")
	fmt.Fprintf(&b, "       List: %s\n", st.List)
	fmt.Fprintf(&b, "    Alerted: %s\n", st.Alerted)
	fmt.Fprintf(&b, "  UnAlerted: %s\n", st.Unalerted)
	fmt.Fprintf(&b, "    Retired: %s\n", st.Retired)
	fmt.Fprintf(&b, "      Recap: %s\n", st.Recap)
	fmt.Fprintf(&b, "    Pending: %t\n\n", st.Pending)

	b.WriteString("Contact Status Summary:\n")
	b.WriteString("-----------------------\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Contact\tRange\tAlerts\tAlerts\tAlerts\t")
	fmt.Fprintln(tw, "\t\tTotal\tActive\tResolved\t")
	fmt.Fprintln(tw, "-------\t-----\t------\t------\t--------\t")
	for _, c := range st.Contacts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t\n",
			c.Name, fixed(c.Range, 1), c.AlertsTotal, c.AlertsActive, c.AlertsResolved)
	}
	tw.Flush()

	if len(st.Events) > 0 {
		fmt.Fprintf(&b, "\nEvents (Last %d):\n", len(st.Events))
		b.WriteString("---------------------\n")
		for i := len(st.Events) - 1; i >= 0; i-- {
			ev := st.Events[i]
			fmt.Fprintf(&b, "%.1f  %s\n", ev.Time, ev.Text)
		}
	}

	return b.String()
}
