package market

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/finwise-app/finwise/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the market-data proxy.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers market routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/quote/{symbol}", h.handleQuote)
	r.Get("/historical/{symbol}", h.handleHistorical)
	r.Get("/search", h.handleSearch)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := h.service.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		h.logUpstream("quote", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) handleHistorical(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.RespondError(w, fmt.Errorf("%w: days must be a positive integer", httpx.ErrValidation))
			return
		}
		days = parsed
	}
	candles, err := h.service.Historical(r.Context(), chi.URLParam(r, "symbol"), days)
	if err != nil {
		h.logUpstream("historical", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, candles)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	matches, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logUpstream("search", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, matches)
}

// logUpstream records provider failures with their detail, which never
// reaches the response body.
func (h *Handler) logUpstream(op string, err error) {
	if errors.Is(err, httpx.ErrUpstream) {
		h.logger.Warn("market "+op, slog.Any("error", err))
	}
}
