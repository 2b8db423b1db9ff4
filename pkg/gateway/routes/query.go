package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/codemonkeychris/sysmcp-sub003/pkg/anonymizer"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/audit"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/logger"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/common/models"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/eventlog"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/fileindex"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/gateway/middleware"
	"github.com/codemonkeychris/sysmcp-sub003/pkg/policy"
)

type QueryHandler struct {
	events  *eventlog.Service
	files   *fileindex.Service
	engine  *anonymizer.Engine
	checker policy.Checker
	auditor *audit.Service
}

func NewQueryHandler(events *eventlog.Service, files *fileindex.Service, engine *anonymizer.Engine, checker policy.Checker, auditor *audit.Service) *QueryHandler {
	return &QueryHandler{
		events:  events,
		files:   files,
		engine:  engine,
		checker: checker,
		auditor: auditor,
	}
}

func (h *QueryHandler) Register(r *mux.Router) {
	r.HandleFunc("/events/query", h.handleEventQuery).Methods(http.MethodPost)
	r.HandleFunc("/files/search", h.handleFileSearch).Methods(http.MethodPost)
	r.HandleFunc("/mapping/stats", h.handleMappingStats).Methods(http.MethodGet)
}

func (h *QueryHandler) handleEventQuery(w http.ResponseWriter, r *http.Request) {
	subject := middleware.Subject(r)
	if err := h.checker.Authorize(r.Context(), subject, "eventlog.query"); err != nil {
		writeDenied(w, err)
		return
	}

	var filter models.EventLogFilter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	resp, err := h.events.Query(r.Context(), filter)
	if err != nil {
		logger.Log.WithError(err).Error("event log query failed")
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	h.auditor.Record(r.Context(), subject, "eventlog.query", filterParams(filter), resp.Count)
	writeJSON(w, resp)
}

func (h *QueryHandler) handleFileSearch(w http.ResponseWriter, r *http.Request) {
	subject := middleware.Subject(r)
	if err := h.checker.Authorize(r.Context(), subject, "fileindex.search"); err != nil {
		writeDenied(w, err)
		return
	}

	var query models.FileSearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	resp, err := h.files.Search(r.Context(), query)
	if err != nil {
		logger.Log.WithError(err).Error("file index search failed")
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	h.auditor.Record(r.Context(), subject, "fileindex.search", queryParams(query), resp.Count)
	writeJSON(w, resp)
}

func (h *QueryHandler) handleMappingStats(w http.ResponseWriter, r *http.Request) {
	subject := middleware.Subject(r)
	if err := h.checker.Authorize(r.Context(), subject, "mapping.stats"); err != nil {
		writeDenied(w, err)
		return
	}
	writeJSON(w, h.engine.Stats())
}

func writeDenied(w http.ResponseWriter, err error) {
	if errors.Is(err, policy.ErrDenied) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	http.Error(w, "authorization failed", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Error("failed to encode response")
	}
}

func filterParams(filter models.EventLogFilter) map[string]interface{} {
	data, _ := json.Marshal(filter)
	var params map[string]interface{}
	json.Unmarshal(data, &params)
	return params
}

func queryParams(query models.FileSearchQuery) map[string]interface{} {
	data, _ := json.Marshal(query)
	var params map[string]interface{}
	json.Unmarshal(data, &params)
	return params
}
