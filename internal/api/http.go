package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/engine"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/metrics"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/node"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/rules"
	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/store"
)

const requestTimeout = 5 * time.Second

// ReadinessCheck is one dependency consulted by /readyz
type ReadinessCheck struct {
	Name  string
	Ready func() bool
}

// HTTPAPI provides HTTP endpoints for the contact manager
type HTTPAPI struct {
	r       *chi.Mux
	runner  *node.Runner
	store   *store.MemoryStore
	metrics *metrics.Metrics
	checks  []ReadinessCheck
	logger  *slog.Logger
}

// NewHTTPAPI creates a new HTTP API instance
func NewHTTPAPI(runner *node.Runner, store *store.MemoryStore, metrics *metrics.Metrics, logger *slog.Logger, checks ...ReadinessCheck) *HTTPAPI {
	api := &HTTPAPI{
		r:       chi.NewRouter(),
		runner:  runner,
		store:   store,
		metrics: metrics,
		checks:  checks,
		logger:  logger,
	}

	api.r.Use(middleware.RequestID)
	api.r.Use(middleware.Recoverer)

	api.routes()
	return api
}

func (api *HTTPAPI) routes() {
	api.r.Get("/healthz", api.handleHealth)
	api.r.Get("/readyz", api.handleReady)
	if api.metrics != nil {
		api.r.Handle("/metrics", api.metrics.Handler())
	}

	// Engine state
	api.r.Get("/status", api.handleStatus)
	api.r.Get("/contacts", api.handleContacts)
	api.r.Get("/contacts/{name}", api.handleContact)
	api.r.Get("/rules", api.handleRules)
	api.r.Get("/report", api.handleReport)

	// Alert history
	api.r.Get("/alerts", api.handleAlerts)
	api.r.Post("/alerts/reset", api.handleResetAlerts)

	// Writes go through the bus mailbox
	api.r.Post("/resolve", api.handleResolve)
	api.r.Post("/alerts/request", api.handleAlertRequest)
}

// Handler returns the router
func (api *HTTPAPI) Handler() http.Handler { return api.r }

// handleHealth handles GET /healthz
func (api *HTTPAPI) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"stats":     api.store.GetStats(),
	})
}

// handleReady handles GET /readyz
func (api *HTTPAPI) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{"runner": api.runner.Ready()}
	for _, c := range api.checks {
		checks[c.Name] = c.Ready()
	}

	// Determine readiness
	status := "ready"
	statusCode := http.StatusOK
	for _, ok := range checks {
		if !ok {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// handleStatus handles GET /status
func (api *HTTPAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	var st engine.Status
	if !api.do(w, r, func(e *engine.Engine) { st = e.Snapshot(time.Now()) }) {
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleContacts handles GET /contacts
func (api *HTTPAPI) handleContacts(w http.ResponseWriter, r *http.Request) {
	var contacts []engine.ContactStatus
	if !api.do(w, r, func(e *engine.Engine) { contacts = e.Snapshot(time.Now()).Contacts }) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"contacts":  contacts,
		"count":     len(contacts),
		"timestamp": time.Now().UTC(),
	})
}

// handleContact handles GET /contacts/{name}
func (api *HTTPAPI) handleContact(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var cs engine.ContactStatus
	var found bool
	if !api.do(w, r, func(e *engine.Engine) { cs, found = e.ContactStatus(name, time.Now()) }) {
		return
	}

	if !found {
		writeError(w, http.StatusNotFound, "contact not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// handleRules handles GET /rules
func (api *HTTPAPI) handleRules(w http.ResponseWriter, r *http.Request) {
	var list []engine.RuleStatus
	if !api.do(w, r, func(e *engine.Engine) { list = e.Snapshot(time.Now()).Rules }) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": list,
		"count": len(list),
	})
}

// handleReport handles GET /report
func (api *HTTPAPI) handleReport(w http.ResponseWriter, r *http.Request) {
	var report string
	if !api.do(w, r, func(e *engine.Engine) { report = e.Report(time.Now()) }) {
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, report)
}

// handleAlerts handles GET /alerts with optional contact and limit
func (api *HTTPAPI) handleAlerts(w http.ResponseWriter, r *http.Request) {
	contact := r.URL.Query().Get("contact")
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: "+limitStr)
			return
		}
		limit = n
	}

	var events []model.AlertEvent
	if contact != "" {
		events = api.store.ByContact(contact, limit)
	} else {
		events = api.store.Recent(limit)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts":    events,
		"count":     len(events),
		"timestamp": time.Now().UTC(),
	})
}

// handleResetAlerts handles POST /alerts/reset
func (api *HTTPAPI) handleResetAlerts(w http.ResponseWriter, r *http.Request) {
	api.store.Clear()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Alert history cleared successfully",
		"timestamp": time.Now().UTC(),
	})
}

type resolveRequest struct {
	Contact string `json:"contact"`
	AlertID string `json:"alert_id"`
}

// handleResolve handles POST /resolve
func (api *HTTPAPI) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	req.Contact = strings.TrimSpace(req.Contact)
	if req.Contact == "" {
		writeError(w, http.StatusBadRequest, "contact is required")
		return
	}

	value := req.Contact
	if req.AlertID != "" {
		value += "," + req.AlertID
	}

	api.deliver(w, r, model.StringMail(engine.VarContactResolved, value, time.Now()))
}

// handleAlertRequest handles POST /alerts/request with a one-line alert spec
func (api *HTTPAPI) handleAlertRequest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	spec := strings.TrimSpace(string(body))
	if _, err := rules.ParseAlertSpec(spec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	api.deliver(w, r, model.StringMail(engine.VarAlertRequest, spec, time.Now()))
}

// do runs fn on the runner and writes an error response on failure
func (api *HTTPAPI) do(w http.ResponseWriter, r *http.Request, fn func(*engine.Engine)) bool {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := api.runner.Do(ctx, fn); err != nil {
		api.logger.Warn("Engine read failed", "path", r.URL.Path, "error", err)
		writeError(w, statusFor(err), err.Error())
		return false
	}
	return true
}

func (api *HTTPAPI) deliver(w http.ResponseWriter, r *http.Request, m model.Mail) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := api.runner.Deliver(ctx, m); err != nil {
		api.logger.Warn("Mail delivery failed", "key", m.Key, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "queued",
		"key":     m.Key,
		"value":   m.Str,
	})
}

func statusFor(err error) int {
	if errors.Is(err, node.ErrStopped) {
		return http.StatusServiceUnavailable
	}
	return http.StatusGatewayTimeout
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
