package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// Handlers provides HTTP handlers for the decision record API
type Handlers struct {
	store Store
}

// NewHandlers creates new audit handlers
func NewHandlers(store Store) *Handlers {
	return &Handlers{
		store: store,
	}
}

// RegisterRoutes registers decision record routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit/decisions", h.listDecisions).Methods("GET")
	router.HandleFunc("/audit/decisions/{id}", h.getDecision).Methods("GET")
	router.HandleFunc("/audit/export", h.exportDecisions).Methods("GET")
	router.HandleFunc("/audit/stats", h.getStats).Methods("GET")
}

// listDecisions handles GET /audit/decisions
func (h *Handlers) listDecisions(w http.ResponseWriter, r *http.Request) {
	filter := h.parseFilter(r)

	records, err := h.store.Search(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"decisions": records,
		"count":     len(records),
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})
}

// getDecision handles GET /audit/decisions/{id}
func (h *Handlers) getDecision(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	record, err := h.store.Get(r.Context(), vars["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if record == nil {
		http.Error(w, "decision not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(record)
}

// exportDecisions handles GET /audit/export
func (h *Handlers) exportDecisions(w http.ResponseWriter, r *http.Request) {
	filter := h.parseFilter(r)

	formatStr := r.URL.Query().Get("format")
	format := ExportFormat(formatStr)
	if format == "" {
		format = ExportFormatJSON
	}

	data, err := h.store.Export(r.Context(), filter, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Set appropriate content type and headers
	switch format {
	case ExportFormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=decisions.csv")
	case ExportFormatNDJSON:
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", "attachment; filename=decisions.ndjson")
	default:
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", "attachment; filename=decisions.json")
	}

	w.Write(data)
}

// getStats handles GET /audit/stats
func (h *Handlers) getStats(w http.ResponseWriter, r *http.Request) {
	var startTime, endTime *time.Time

	if startStr := r.URL.Query().Get("start_time"); startStr != "" {
		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			startTime = &t
		}
	}

	if endStr := r.URL.Query().Get("end_time"); endStr != "" {
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			endTime = &t
		}
	}

	stats, err := h.store.GetStats(r.Context(), startTime, endTime)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// parseFilter parses a search filter from query parameters
func (h *Handlers) parseFilter(r *http.Request) SearchFilter {
	query := r.URL.Query()
	filter := SearchFilter{}

	// Parse time range
	if startStr := query.Get("start_time"); startStr != "" {
		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			filter.StartTime = &t
		}
	}

	if endStr := query.Get("end_time"); endStr != "" {
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			filter.EndTime = &t
		}
	}

	// Parse actor filters
	filter.UserID = query.Get("user_id")
	filter.OrganizationID = query.Get("organization_id")
	filter.MemberID = query.Get("member_id")

	// Parse decision filters
	if decisionsStr := query.Get("decisions"); decisionsStr != "" {
		for _, decStr := range parseCommaSeparated(decisionsStr) {
			filter.Decisions = append(filter.Decisions, Decision(decStr))
		}
	}
	filter.Reason = query.Get("reason")

	// Parse check filters
	filter.Action = query.Get("action")
	filter.ResourceType = query.Get("resource_type")
	filter.ResourceID = query.Get("resource_id")

	if sensitiveStr := query.Get("sensitive"); sensitiveStr != "" {
		if sensitive, err := strconv.ParseBool(sensitiveStr); err == nil {
			filter.Sensitive = &sensitive
		}
	}

	// Parse request context filters
	filter.IPAddress = query.Get("ip_address")

	// Parse pagination
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	} else {
		filter.Limit = 100 // Default limit
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	// Parse sorting
	filter.SortBy = query.Get("sort_by")
	filter.SortOrder = query.Get("sort_order")
	if filter.SortOrder == "" {
		filter.SortOrder = "desc"
	}

	return filter
}

// parseCommaSeparated parses a comma-separated string into a slice
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	for _, part := range strings.Split(s, ",") {
		if val := strings.TrimSpace(part); val != "" {
			result = append(result, val)
		}
	}

	return result
}
