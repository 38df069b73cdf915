package rules

import (
	"sort"
	"strings"
)

// Pair identifies one (vehicle, alert id) cell of the matrix
type Pair struct {
	Vehicle string `json:"vehicle"`
	AlertID string `json:"alert_id"`
}

func (p Pair) String() string {
	return "(" + p.Vehicle + "," + p.AlertID + ")"
}

// Matrix is the (vehicle x alert id) arming table. A true cell means the
// alert has fired for that vehicle and has not been resolved. Vehicle names
// are case-folded; alert ids are kept as given. Reads of unknown cells
// return false and writes to unknown cells are ignored.
//
// Matrix is not safe for concurrent use; it is owned by one engine.
type Matrix struct {
	cells    map[string]map[string]bool
	alertIDs map[string]struct{}
}

// NewMatrix creates an empty matrix
func NewMatrix() *Matrix {
	return &Matrix{
		cells:    make(map[string]map[string]bool),
		alertIDs: make(map[string]struct{}),
	}
}

// AddVehicle adds a row with every known alert id unset
func (m *Matrix) AddVehicle(vehicle string) {
	vehicle = strings.ToLower(vehicle)
	if _, exists := m.cells[vehicle]; exists {
		return
	}

	row := make(map[string]bool, len(m.alertIDs))
	for id := range m.alertIDs {
		row[id] = false
	}
	m.cells[vehicle] = row
}

// AddAlertID adds a column with every known vehicle unset
func (m *Matrix) AddAlertID(alertID string) {
	if alertID == "" || alertID == AllAlerts {
		return
	}
	if _, exists := m.alertIDs[alertID]; exists {
		return
	}

	m.alertIDs[alertID] = struct{}{}
	for _, row := range m.cells {
		row[alertID] = false
	}
}

// RemoveVehicle drops a vehicle row
func (m *Matrix) RemoveVehicle(vehicle string) {
	delete(m.cells, strings.ToLower(vehicle))
}

// ContainsVehicle checks if a vehicle row exists
func (m *Matrix) ContainsVehicle(vehicle string) bool {
	_, ok := m.cells[strings.ToLower(vehicle)]
	return ok
}

// ContainsAlertID checks if an alert id column exists
func (m *Matrix) ContainsAlertID(alertID string) bool {
	_, ok := m.alertIDs[alertID]
	return ok
}

// Get returns the cell value, false when either key is unknown
func (m *Matrix) Get(vehicle, alertID string) bool {
	row, ok := m.cells[strings.ToLower(vehicle)]
	if !ok {
		return false
	}
	return row[alertID]
}

// Set assigns a cell. The wildcard alert id AllAlerts assigns every cell of
// the vehicle's row. It returns the number of cells whose value changed.
func (m *Matrix) Set(vehicle, alertID string, value bool) int {
	if alertID != AllAlerts && !m.ContainsAlertID(alertID) {
		return 0
	}
	row, ok := m.cells[strings.ToLower(vehicle)]
	if !ok {
		return 0
	}

	changed := 0
	if alertID != AllAlerts {
		if row[alertID] != value {
			changed++
		}
		row[alertID] = value
		return changed
	}

	for id, v := range row {
		if v != value {
			changed++
		}
		row[id] = value
	}
	return changed
}

// AlertedGroup returns every pair whose cell equals alerted, sorted by
// vehicle then alert id
func (m *Matrix) AlertedGroup(alerted bool) []Pair {
	var pairs []Pair
	for vehicle, row := range m.cells {
		for id, v := range row {
			if v == alerted {
				pairs = append(pairs, Pair{Vehicle: vehicle, AlertID: id})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Vehicle != pairs[j].Vehicle {
			return pairs[i].Vehicle < pairs[j].Vehicle
		}
		return pairs[i].AlertID < pairs[j].AlertID
	})
	return pairs
}

// AlertsFor returns the armed alert ids of one vehicle, sorted
func (m *Matrix) AlertsFor(vehicle string) []string {
	var ids []string
	for id, v := range m.cells[strings.ToLower(vehicle)] {
		if v {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Pending reports whether any cell is still unset
func (m *Matrix) Pending() bool {
	for _, row := range m.cells {
		for _, v := range row {
			if !v {
				return true
			}
		}
	}
	return false
}

// Vehicles returns the known (case-folded) vehicle names, sorted
func (m *Matrix) Vehicles() []string {
	names := make([]string, 0, len(m.cells))
	for v := range m.cells {
		names = append(names, v)
	}
	sort.Strings(names)
	return names
}

// AlertIDs returns the known alert ids, sorted
func (m *Matrix) AlertIDs() []string {
	ids := make([]string, 0, len(m.alertIDs))
	for id := range m.alertIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
