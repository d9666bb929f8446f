package sync

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumina-clinic/lumina-clinic/internal/catalog"
	"github.com/lumina-clinic/lumina-clinic/internal/platform/httpx"
	"github.com/lumina-clinic/lumina-clinic/internal/shared"
)

// TriggerAPI is the trigger surface the handler needs.
type TriggerAPI interface {
	NeedsSync(ctx context.Context) bool
	RunIfNeeded(ctx context.Context, force bool) (Result, error)
}

// StatsSource provides the catalog snapshot for the status endpoint.
type StatsSource interface {
	GetStats(ctx context.Context) (catalog.Stats, error)
}

// Handler exposes the sync trigger and status endpoints.
type Handler struct {
	logger        *slog.Logger
	trigger       TriggerAPI
	tracker       Tracker
	stats         StatsSource
	adminPassword string
	cronSecret    string
	validate      *validator.Validate
}

// NewHandler constructs the sync HTTP handler.
func NewHandler(logger *slog.Logger, trigger TriggerAPI, tracker Tracker, stats StatsSource, adminPassword, cronSecret string) *Handler {
	return &Handler{
		logger:        logger,
		trigger:       trigger,
		tracker:       tracker,
		stats:         stats,
		adminPassword: adminPassword,
		cronSecret:    cronSecret,
		validate:      validator.New(),
	}
}

// MountRoutes attaches the sync routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sync", h.manualSync)
	r.Get("/cron/sync", h.cronSync)
	r.Get("/sync/status", h.status)
}

type syncRequest struct {
	Password string `json:"password" validate:"required"`
	Force    bool   `json:"force"`
}

type syncStatsBody struct {
	Categories Stats `json:"categories"`
	Products   Stats `json:"products"`
}

type syncResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Skipped  bool           `json:"skipped,omitempty"`
	Duration float64        `json:"duration"`
	Stats    *syncStatsBody `json:"stats,omitempty"`
	LastSync *time.Time     `json:"last_sync,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func (h *Handler) manualSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "password is required")
		return
	}
	if !shared.SecretMatches(h.adminPassword, req.Password) {
		httpx.Error(w, http.StatusUnauthorized, "invalid password")
		return
	}

	h.logger.Info("manual sync triggered", slog.Bool("force", req.Force))
	h.runAndRespond(w, r, req.Force)
}

func (h *Handler) cronSync(w http.ResponseWriter, r *http.Request) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || !shared.SecretMatches(h.cronSecret, token) {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	h.logger.Info("cron sync triggered")
	h.runAndRespond(w, r, false)
}

func (h *Handler) runAndRespond(w http.ResponseWriter, r *http.Request, force bool) {
	result, err := h.trigger.RunIfNeeded(r.Context(), force)
	resp := syncResponse{
		Success:  result.Success,
		Message:  result.Message,
		Skipped:  result.Skipped,
		Duration: result.Duration,
		LastSync: result.LastSync,
		Error:    result.Error,
	}
	if !result.Skipped {
		resp.Stats = &syncStatsBody{Categories: result.Categories, Products: result.Products}
	}

	if err != nil {
		if resp.Error == "" {
			resp.Error = err.Error()
		}
		httpx.JSON(w, http.StatusInternalServerError, resp)
		return
	}
	if resp.Message == "" {
		resp.Message = "sync completed"
	}
	httpx.JSON(w, http.StatusOK, resp)
}

type statusResponse struct {
	Success   bool          `json:"success"`
	NeedsSync bool          `json:"needs_sync"`
	Catalog   catalog.Stats `json:"catalog"`
	LastSync  *time.Time    `json:"last_sync,omitempty"`
	Recent    []Run         `json:"recent_syncs"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.stats.GetStats(ctx)
	if err != nil {
		h.logger.Error("catalog stats", slog.Any("error", err))
		httpx.Error(w, http.StatusInternalServerError, "failed to load status")
		return
	}

	resp := statusResponse{
		Success:   true,
		NeedsSync: h.trigger.NeedsSync(ctx),
		Catalog:   stats,
	}
	if last, err := h.tracker.LastSuccessful(ctx); err == nil && last != nil {
		resp.LastSync = last.CompletedAt
	}
	if recent, err := h.tracker.RecentRuns(ctx, 5); err == nil {
		resp.Recent = recent
	}
	if resp.Recent == nil {
		resp.Recent = []Run{}
	}

	httpx.JSON(w, http.StatusOK, resp)
}
