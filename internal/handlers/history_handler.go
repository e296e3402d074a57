package handlers

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cesdefin/backend/internal/middleware"
	"github.com/cesdefin/backend/internal/models"
	"github.com/cesdefin/backend/internal/services"
)

// HistoryHandler serves read-only movement log queries for the
// authenticated account.
type HistoryHandler struct {
	history *services.HistoryService
}

func NewHistoryHandler(history *services.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// List returns a filtered, paginated page of the account's history.
// Query params: kind, from, to (RFC 3339), limit, offset, sort (asc|desc).
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	page, err := h.history.List(r.Context(), accountID, filter)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    page,
	})
}

// Recent returns the newest movements, default 10.
func (h *HistoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, err := h.history.Recent(r.Context(), accountID, limit)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    page,
	})
}

// Search matches free text against movement details, kinds and methods.
func (h *HistoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	text := r.URL.Query().Get("q")
	if text == "" {
		services.SendErrorResponse(w, "Query parameter 'q' is required", http.StatusBadRequest, nil)
		return
	}

	result, err := h.history.Search(r.Context(), accountID, text)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    result,
	})
}

// Statistics aggregates the whole log for the account.
func (h *HistoryHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	stats, err := h.history.Statistics(r.Context(), accountID)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    stats,
	})
}

// Export streams the account statement as CSV, newest first.
func (h *HistoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := h.history.ExportRows(r.Context(), accountID)
	if err != nil {
		writeOperationError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="statement.csv"`)

	cw := csv.NewWriter(w)
	cw.Write([]string{"time", "kind", "gross", "commission", "net", "method", "detail"})
	for _, row := range rows {
		cw.Write([]string{
			row.Time.Format(time.RFC3339),
			row.Kind,
			strconv.FormatInt(row.Gross, 10),
			strconv.FormatInt(row.Commission, 10),
			strconv.FormatInt(row.Net, 10),
			row.Method,
			row.Detail,
		})
	}
	cw.Flush()
}

func parseFilter(r *http.Request) (services.Filter, error) {
	q := r.URL.Query()
	filter := services.Filter{
		Kind:      models.MovementKind(q.Get("kind")),
		SortOrder: q.Get("sort"),
	}

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, &queryError{"'from' must be an RFC 3339 timestamp"}
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, &queryError{"'to' must be an RFC 3339 timestamp"}
		}
		filter.To = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, &queryError{"'limit' must be a non-negative integer"}
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, &queryError{"'offset' must be a non-negative integer"}
		}
		filter.Offset = n
	}
	return filter, nil
}

type queryError struct{ msg string }

func (e *queryError) Error() string { return e.msg }
