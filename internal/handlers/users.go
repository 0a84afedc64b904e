package handlers

import (
	"errors"
	"net/http"

	"github.com/clickrush/apiserver/internal/auth"
	"github.com/clickrush/apiserver/internal/services"
	"github.com/clickrush/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserHandler serves profile endpoints.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRouter registers profile routes. All of them require an access token.
func UserRouter(r chi.Router, userService *services.UserService, tokens *auth.Issuer) {
	handler := NewUserHandler(userService)

	r.Use(RequireAuth(tokens, userService))
	r.Get("/", handler.List)
	r.Put("/me", handler.UpdateMe)
	r.Delete("/me", handler.DeleteMe)
	r.Get("/{id}", handler.Get)
}

// List returns a page of users. Query parameters limit (default 50,
// at most 100) and offset.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := h.userService.List(r.Context(), limit, offset)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPage) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateMe replaces the caller's email and username and, when given, password.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, req.Email, req.Username, req.Password)
	if err != nil {
		writeUserError(w, err, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// DeleteMe removes the caller's account together with their scores.
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.userService.Delete(r.Context(), userID); err != nil {
		writeUserError(w, err, "failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type UpdateUserRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}
