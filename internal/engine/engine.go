// Package engine implements the contact manager: a registry of peer
// vehicles built from node reports, range estimation against ownship, and
// rule-driven alerts that fire once per (contact, alert) until resolved.
//
// An Engine is not safe for concurrent use. OnMail, Tick and every read
// must be called from a single goroutine; see package node for a runner
// that serializes them.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/geodesy"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/kinematics"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/rules"
)

// Bus variables consumed and produced by the engine
const (
	VarNodeReport      = "NODE_REPORT"
	VarDisplayRadii    = "BCM_DISPLAY_RADII"
	VarAlertRequest    = "BCM_ALERT_REQUEST"
	VarContactResolved = "CONTACT_RESOLVED"
	VarNavX            = "NAV_X"
	VarNavY            = "NAV_Y"
	VarNavHeading      = "NAV_HEADING"
	VarNavSpeed        = "NAV_SPEED"

	VarContactsList      = "CONTACTS_LIST"
	// CONTACTS_ALERTED and CONTACTS_UNALERTED carry comma-joined
	// (vehicle,alertid) pairs, e.g. "(gilda,avd),(henry,avd)"
	VarContactsAlerted   = "CONTACTS_ALERTED"
	VarContactsUnalerted = "CONTACTS_UNALERTED"
	VarContactsRetired   = "CONTACTS_RETIRED"
	VarContactsRecap     = "CONTACTS_RECAP"
	VarAlertVerbose      = "ALERT_VERBOSE"
	VarViewCircle        = "VIEW_CIRCLE"
	VarWarning           = "CONTACT_MGR_WARNING"
)

// Subscriptions lists every variable the engine consumes
var Subscriptions = []string{
	VarNodeReport, VarContactResolved, VarDisplayRadii, VarAlertRequest,
	VarNavX, VarNavY, VarNavSpeed, VarNavHeading,
}

// Coordinate handling modes for node reports carrying lat/lon
const (
	CoordsVerbatim    = "verbatim"
	CoordsLazyLatLon  = "lazy_lat_lon"
	CoordsForceLatLon = "force_lat_lon"
)

// cpaHorizon is the look-ahead used for closest point of approach (10 hours)
const cpaHorizon = 36000

// maxEvents bounds the event history kept for the status report
const maxEvents = 8

// ErrNoOwnship is returned when the engine is created without an identity
var ErrNoOwnship = errors.New("ownship name not provided")

// Pose is the ownship navigation state
type Pose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	Speed   float64 `json:"speed"`
}

// Output collects the effects of one OnMail or Tick call
type Output struct {
	Postings []model.Posting    `json:"postings"`
	Alerts   []model.AlertEvent `json:"alerts"`
	Warnings []error            `json:"-"`
}

// Empty reports whether the call produced nothing
func (o *Output) Empty() bool {
	return len(o.Postings) == 0 && len(o.Alerts) == 0 && len(o.Warnings) == 0
}

func (o *Output) post(name, value string) {
	o.Postings = append(o.Postings, model.Posting{Name: name, Value: value})
}

// Settings holds the startup configuration of the engine
type Settings struct {
	Defaults      rules.Defaults `json:"defaults"`
	DecayStart    float64        `json:"decay_start"`
	DecayEnd      float64        `json:"decay_end"`
	DisplayRadii  bool           `json:"display_radii"`
	LocalCoords   string         `json:"contact_local_coords"`
	RecapInterval float64        `json:"contacts_recap_interval"`
	AlertVerbose  bool           `json:"alert_verbose"`
	MaxAge        float64        `json:"contact_max_age"`
	EvictAge      float64        `json:"contact_evict_age"`
}

// DefaultSettings returns the built-in configuration
func DefaultSettings() Settings {
	return Settings{
		Defaults:      rules.DefaultDefaults(),
		DecayStart:    15,
		DecayEnd:      30,
		LocalCoords:   CoordsVerbatim,
		RecapInterval: 0,
		MaxAge:        600,
	}
}

// contactState is the engine-side bookkeeping for one known contact
type contactState struct {
	record model.Contact
	ranges Ranges
	// used is the contact range under the contact-level thresholds
	used float64
	// pair holds the effective range per alert id
	pair map[string]float64

	alertsTotal    int
	alertsActive   int
	alertsResolved int
}

// Event is one line of engine history
type Event struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

// Engine is the contact manager state machine
type Engine struct {
	ownship  string
	logger   *slog.Logger
	settings Settings

	estimator *RangeEstimator
	lookup    ThresholdLookup
	geo       *geodesy.Geodesy
	useGeo    bool
	newID     func() string

	pose     Pose
	currTime float64

	contacts map[string]*contactState
	rules    map[string]rules.AlertRule
	matrix   *rules.Matrix

	prevList      string
	prevAlerted   string
	prevUnalerted string
	prevRetired   string
	prevRecap     string
	recapPosted   float64

	collisionWarned map[string]bool
	events          []Event
	warningCount    int
}

// Option configures an Engine
type Option func(*Engine)

// WithProjector replaces the dead-reckoning projector
func WithProjector(fn ProjectFunc) Option {
	return func(e *Engine) {
		e.estimator.Project = fn
	}
}

// WithCPA replaces the closest point of approach predictor
func WithCPA(fn CPAFunc) Option {
	return func(e *Engine) {
		e.estimator.CPA = fn
	}
}

// WithThresholdLookup selects how range thresholds are keyed
func WithThresholdLookup(l ThresholdLookup) Option {
	return func(e *Engine) {
		e.lookup = l
	}
}

// WithGeodesy supplies the lat/lon origin used to derive contact x/y
func WithGeodesy(g *geodesy.Geodesy) Option {
	return func(e *Engine) {
		e.geo = g
	}
}

// WithIDGenerator replaces the alert event id generator
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New creates an engine for the named ownship
func New(ownship string, logger *slog.Logger, opts ...Option) (*Engine, error) {
	ownship = strings.TrimSpace(ownship)
	if ownship == "" {
		return nil, ErrNoOwnship
	}
	if logger == nil {
		logger = slog.Default()
	}

	settings := DefaultSettings()
	e := &Engine{
		ownship:  ownship,
		logger:   logger,
		settings: settings,
		estimator: &RangeEstimator{
			Project:    kinematics.Project,
			CPA:        kinematics.ClosestApproach,
			Horizon:    cpaHorizon,
			DecayStart: settings.DecayStart,
			DecayEnd:   settings.DecayEnd,
		},
		lookup:          AlertIDLookup{},
		newID:           newEventID,
		contacts:        make(map[string]*contactState),
		rules:           make(map[string]rules.AlertRule),
		matrix:          rules.NewMatrix(),
		collisionWarned: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Ownship returns the name of the hosting vehicle
func (e *Engine) Ownship() string {
	return e.ownship
}

// Settings returns the active configuration
func (e *Engine) Settings() Settings {
	return e.settings
}

// Pose returns the latest ownship navigation state
func (e *Engine) Pose() Pose {
	return e.pose
}

// UsingGeodesy reports whether contact x/y may be derived from lat/lon
func (e *Engine) UsingGeodesy() bool {
	return e.useGeo
}

// UpsertRule adds an alert rule or merges the set fields into an existing
// rule with the same id
func (e *Engine) UpsertRule(rule rules.AlertRule) error {
	if rule.ID == "" {
		rule.ID = rules.DefaultAlertID
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid alert rule %q: %w", rule.ID, err)
	}

	if existing, ok := e.rules[rule.ID]; ok {
		rule = existing.Merge(rule)
		e.logger.Debug("Alert rule updated", "alert_id", rule.ID)
	} else {
		e.logger.Info("Alert rule added", "alert_id", rule.ID, "var", rule.Var)
	}

	e.rules[rule.ID] = rule
	e.matrix.AddAlertID(rule.ID)
	return nil
}

// Rules returns the configured alert rules sorted by id
func (e *Engine) Rules() []rules.AlertRule {
	out := make([]rules.AlertRule, 0, len(e.rules))
	for _, id := range e.ruleIDs() {
		out = append(out, e.rules[id])
	}
	return out
}

// Contact returns the latest record for a contact name
func (e *Engine) Contact(name string) (model.Contact, bool) {
	cs, ok := e.contacts[name]
	if !ok {
		return model.Contact{}, false
	}
	return cs.record, true
}

// ContactNames returns every known contact name sorted
func (e *Engine) ContactNames() []string {
	names := make([]string, 0, len(e.contacts))
	for name := range e.contacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Matrix exposes the arming table for inspection
func (e *Engine) Matrix() *rules.Matrix {
	return e.matrix
}

func (e *Engine) ruleIDs() []string {
	ids := make([]string, 0, len(e.rules))
	for id := range e.rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// alertRange returns the inner range keyed by key, defaulted when no rule
// has that id
func (e *Engine) alertRange(key string) float64 {
	if r, ok := e.rules[key]; ok {
		return r.AlertRange(e.settings.Defaults)
	}
	return e.settings.Defaults.Range
}

// alertRangeCPA returns the CPA range keyed by key, defaulted when no rule
// has that id
func (e *Engine) alertRangeCPA(key string) float64 {
	if r, ok := e.rules[key]; ok {
		return r.AlertRangeCPA(e.settings.Defaults)
	}
	return e.settings.Defaults.CPARange
}

// findContact resolves a case-folded vehicle name to a contact
func (e *Engine) findContact(vehicle string) (*contactState, bool) {
	if cs, ok := e.contacts[vehicle]; ok {
		return cs, true
	}
	for _, name := range e.ContactNames() {
		if strings.EqualFold(name, vehicle) {
			return e.contacts[name], true
		}
	}
	return nil, false
}

func (e *Engine) retired(cs *contactState) bool {
	return e.currTime-cs.record.TimeStamp() > e.settings.MaxAge
}

func (e *Engine) recordEvent(text string) {
	e.events = append(e.events, Event{Time: e.currTime, Text: text})
	if len(e.events) > maxEvents {
		e.events = e.events[len(e.events)-maxEvents:]
	}
}

// runWarning logs a non-fatal run-time problem and adds it to out
func (e *Engine) runWarning(out *Output, msg string, post bool) {
	e.warningCount++
	e.logger.Warn("Run warning", "warning", msg)
	out.Warnings = append(out.Warnings, &RunWarning{Message: msg})
	if post {
		out.post(VarWarning, msg)
	}
}

// setTime advances the engine clock; it never moves backwards
func (e *Engine) setTime(now time.Time) {
	if t := model.Seconds(now); t > e.currTime {
		e.currTime = t
	}
}
