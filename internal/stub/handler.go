package stub

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/dashclient/internal/dashboard"
	"github.com/odyssey-erp/dashclient/internal/filters"
	"github.com/odyssey-erp/dashclient/internal/platform/httpx"
)

// DefaultLimit is the page size when the request carries no usable limit.
const DefaultLimit = 50

// MaxLimit caps the page size a client may ask for.
const MaxLimit = 500

// Handler serves the config and widget data endpoints.
type Handler struct {
	fixture Fixture
	logger  *slog.Logger
}

// NewHandler constructs the stub handler.
func NewHandler(fixture Fixture, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{fixture: fixture, logger: logger}
}

// MountRoutes registers the API routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/api/config", h.handleConfig)
	r.Get("/api/widgets/{id}", h.handleWidgetData)
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.fixture.Config)
}

func (h *Handler) handleWidgetData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	widget, ok := h.fixture.Config.FindWidget(id)
	if !ok {
		httpx.RespondError(w, fmt.Errorf("widget %q: %w", id, httpx.ErrNotFound))
		return
	}
	dataset, ok := h.fixture.Datasets[id]
	if !ok {
		httpx.RespondError(w, fmt.Errorf("dataset %q: %w", id, httpx.ErrNotFound))
		return
	}

	query := r.URL.Query()
	conds, err := parseConditions(widget.Filters(), query)
	if err != nil {
		h.logger.Warn("reject widget query",
			slog.String("widget", id),
			slog.String("query", r.URL.RawQuery),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := page(dataset, conds, parseLimit(query.Get(filters.ParamLimit)), query.Get(filters.ParamOffset))
	h.logger.Debug("serve widget data",
		slog.String("widget", id),
		slog.Int("rows", len(resp.Data)),
		slog.Bool("has_more", resp.More()))
	httpx.JSON(w, http.StatusOK, resp)
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}

// page applies conds and returns up to limit rows after the row whose
// cursor column equals cursor. An unknown cursor starts from the top.
func page(ds Dataset, conds []condition, limit int, cursor string) dashboard.DataResponse {
	matched := make([]dashboard.Row, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		if matchAll(row, conds) {
			matched = append(matched, row)
		}
	}

	start := 0
	if cursor != "" {
		for i, row := range matched {
			if cursorValue(row[ds.Cursor]) == cursor {
				start = i + 1
				break
			}
		}
	}

	end := min(start+limit+1, len(matched))
	slice := matched[start:end]
	hasMore := len(slice) > limit
	if hasMore {
		slice = slice[:limit]
	}

	next := ""
	if len(slice) > 0 {
		next = cursorValue(slice[len(slice)-1][ds.Cursor])
	}
	return dashboard.DataResponse{
		Data:       slice,
		Total:      len(slice),
		NextCursor: &next,
		HasMore:    &hasMore,
	}
}
