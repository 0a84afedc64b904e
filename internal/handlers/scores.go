package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/clickrush/apiserver/internal/auth"
	"github.com/clickrush/apiserver/internal/scoring"
	"github.com/clickrush/apiserver/internal/services"
	"github.com/clickrush/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// ScoreHandler serves score submission and score queries.
type ScoreHandler struct {
	scoreService *services.ScoreService
}

func NewScoreHandler(scoreService *services.ScoreService) *ScoreHandler {
	return &ScoreHandler{scoreService: scoreService}
}

// ScoreRouter registers score routes. The leaderboard is public; every
// other route acts on the authenticated caller.
func ScoreRouter(r chi.Router, scoreService *services.ScoreService, users UserResolver, tokens *auth.Issuer) {
	handler := NewScoreHandler(scoreService)

	r.Get("/leaderboard", handler.Leaderboard)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(tokens, users))
		r.Post("/", handler.Create)
		r.Get("/me", handler.ListMine)
		r.Get("/me/best", handler.BestMine)
		r.Get("/me/personal-bests", handler.PersonalBests)
		r.Get("/me/stats", handler.StatsMine)
	})
}

type CreateScoreRequest struct {
	Mode          string   `json:"mode"`
	ModeValue     int      `json:"mode_value"`
	TotalClicks   int      `json:"total_clicks"`
	CorrectClicks int      `json:"correct_clicks"`
	Duration      float64  `json:"duration"`
	Consistency   *float64 `json:"consistency"`
}

func (h *ScoreHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	mode, ok := types.ParseMode(req.Mode)
	if !ok {
		mode = types.Mode(req.Mode)
	}
	score, err := h.scoreService.CreateScore(r.Context(), userID, scoring.Submission{
		Mode:          mode,
		ModeValue:     req.ModeValue,
		TotalClicks:   req.TotalClicks,
		CorrectClicks: req.CorrectClicks,
		Duration:      req.Duration,
		Consistency:   req.Consistency,
	})
	if err != nil {
		writeScoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, score)
}

func (h *ScoreHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	modeValue, err := queryInt(r, "mode_value")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	scores, err := h.scoreService.GetUserScores(r.Context(), userID, r.URL.Query().Get("mode"), modeValue, limit)
	if err != nil {
		writeScoreError(w, err)
		return
	}
	if scores == nil {
		scores = []types.Score{}
	}

	writeJSON(w, http.StatusOK, scores)
}

// BestMine returns the caller's best score, or null when none exists.
func (h *ScoreHandler) BestMine(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	mode, modeValue, ok := requiredModeQuery(w, r)
	if !ok {
		return
	}

	best, err := h.scoreService.GetUserBestScore(r.Context(), userID, mode, modeValue)
	if err != nil {
		writeScoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, best)
}

func (h *ScoreHandler) PersonalBests(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	bests, err := h.scoreService.GetUserPersonalBests(r.Context(), userID)
	if err != nil {
		writeScoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bests)
}

func (h *ScoreHandler) StatsMine(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	mode, modeValue, ok := requiredModeQuery(w, r)
	if !ok {
		return
	}
	days, err := queryInt(r, "days")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.scoreService.GetUserAverageStats(r.Context(), userID, mode, modeValue, days)
	if err != nil {
		writeScoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *ScoreHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	mode, modeValue, ok := requiredModeQuery(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.scoreService.GetLeaderboard(r.Context(), mode, modeValue, limit)
	if err != nil {
		writeScoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// requiredModeQuery reads the mode and mode_value query parameters and
// writes a 400 when either is missing.
func requiredModeQuery(w http.ResponseWriter, r *http.Request) (string, int, bool) {
	query := r.URL.Query()
	mode := query.Get("mode")
	if mode == "" {
		writeError(w, http.StatusBadRequest, "mode is required")
		return "", 0, false
	}
	if query.Get("mode_value") == "" {
		writeError(w, http.StatusBadRequest, "mode_value is required")
		return "", 0, false
	}
	modeValue, err := queryInt(r, "mode_value")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", 0, false
	}
	return mode, modeValue, true
}

// writeScoreError maps score errors to responses. Persistence causes are
// never rendered.
func writeScoreError(w http.ResponseWriter, err error) {
	var se *scoring.Error
	if !errors.As(err, &se) {
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	switch {
	case se.Kind.Validation():
		writeError(w, http.StatusBadRequest, se.Error())
	case se.Kind == scoring.KindRateLimited:
		seconds := int(math.Ceil(se.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeError(w, http.StatusTooManyRequests, se.Error())
	default:
		writeError(w, http.StatusInternalServerError, se.Error())
	}
}
