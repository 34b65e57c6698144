// Package web serves the setup form, the plan page and the completion toggle.
package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/thomasfsr/triplan/internal/database"
	"github.com/thomasfsr/triplan/internal/plan"
	"github.com/thomasfsr/triplan/internal/session"
)

// PlanService is the part of plan.Service the handlers use.
type PlanService interface {
	Setup(ctx context.Context, input plan.SetupInput) (int64, error)
	Plan(ctx context.Context, userID int64) (*database.User, []database.Workout, error)
	Toggle(ctx context.Context, workoutID, userID int64) error
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all handler dependencies.
type Handler struct {
	plans     PlanService
	sessions  session.Store
	health    Pinger
	templates *Templates
	log       zerolog.Logger
}

func NewHandler(plans PlanService, sessions session.Store, health Pinger, templates *Templates, logger zerolog.Logger) *Handler {
	return &Handler{
		plans:     plans,
		sessions:  sessions,
		health:    health,
		templates: templates,
		log:       logger.With().Str("component", "web").Logger(),
	}
}

// Routes returns the mux wrapped in access logging.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.handleHome)
	mux.HandleFunc("GET /setup", h.handleSetupForm)
	mux.HandleFunc("POST /setup", h.handleSetup)
	mux.HandleFunc("GET /plan", h.handlePlan)
	mux.HandleFunc("POST /complete/{id}", h.handleComplete)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	return accessLog(h.log, mux)
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/setup", http.StatusFound)
}

func (h *Handler) handleSetupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "setup.html", setupPage{
		Days:           plan.AllowedDays,
		MinDescription: plan.MinDescriptionLength,
	})
}

func (h *Handler) handleSetup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, http.StatusBadRequest, "Could not read the submitted form.", "/setup")
		return
	}

	userID, err := h.plans.Setup(r.Context(), plan.SetupInput{
		Description: r.PostForm.Get("description"),
		Days:        r.PostForm.Get("days"),
	})
	var verr *plan.ValidationError
	switch {
	case errors.As(err, &verr):
		h.renderError(w, http.StatusBadRequest, verr.Message, "/setup")
		return
	case err != nil:
		h.log.Error().Err(err).Msg("setup failed")
		h.renderError(w, http.StatusInternalServerError, "Database error. Please try again.", "/setup")
		return
	}

	if err := h.sessions.Save(w, r, userID); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to save session")
		h.renderError(w, http.StatusInternalServerError, "Could not start your session. Please try again.", "/setup")
		return
	}
	http.Redirect(w, r, "/plan", http.StatusSeeOther)
}

func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.sessions.UserID(r)
	if !ok {
		http.Redirect(w, r, "/setup", http.StatusFound)
		return
	}

	user, workouts, err := h.plans.Plan(r.Context(), userID)
	switch {
	case errors.Is(err, plan.ErrUserNotFound):
		h.log.Info().Int64("user_id", userID).Msg("session points at a missing profile")
		h.sessions.Clear(w, r)
		http.Redirect(w, r, "/setup", http.StatusFound)
		return
	case errors.Is(err, plan.ErrGeneration):
		h.renderError(w, http.StatusServiceUnavailable, "Could not generate training plan. Please try again in a moment.", "/plan")
		return
	case err != nil:
		h.log.Error().Err(err).Int64("user_id", userID).Msg("failed to load plan")
		h.renderError(w, http.StatusInternalServerError, "Failed to load your plan. Please try again.", "/plan")
		return
	}

	h.render(w, http.StatusOK, "plan.html", buildPlanPage(user, workouts))
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.sessions.UserID(r)
	if !ok {
		http.Redirect(w, r, "/setup", http.StatusFound)
		return
	}

	workoutID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.log.Debug().Str("id", r.PathValue("id")).Msg("ignoring toggle with malformed id")
		http.Redirect(w, r, "/plan", http.StatusSeeOther)
		return
	}

	if err := h.plans.Toggle(r.Context(), workoutID, userID); err != nil {
		h.log.Error().Err(err).Int64("user_id", userID).Int64("workout_id", workoutID).Msg("toggle failed")
	}
	http.Redirect(w, r, "/plan", http.StatusSeeOther)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.health.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable\n"))
		return
	}
	_, _ = w.Write([]byte("ok\n"))
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// Buffer so a failing template never leaves a half-written page.
	var buf bytes.Buffer
	if err := h.templates.Render(&buf, name, data); err != nil {
		h.log.Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) renderError(w http.ResponseWriter, status int, message, back string) {
	h.render(w, status, "error.html", errorPage{Message: message, Back: back})
}
