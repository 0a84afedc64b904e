package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func withUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, contextSubjectKey, userID)
}

func userIDFromContext(ctx context.Context) (uuid.UUID, error) {
	switch subject := ctx.Value(contextSubjectKey).(type) {
	case uuid.UUID:
		if subject == uuid.Nil {
			return uuid.Nil, errors.New("invalid subject")
		}
		return subject, nil
	case string:
		parsed, err := uuid.Parse(strings.TrimSpace(subject))
		if err != nil {
			return uuid.Nil, errors.New("invalid subject")
		}
		return parsed, nil
	default:
		return uuid.Nil, errors.New("missing subject")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// queryInt parses an optional integer query parameter. Missing values
// yield zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	return value, nil
}

// writeJSON encodes value before writing the status. Encoding failures
// are reported as 500.
func writeJSON(w http.ResponseWriter, status int, value any) {
	body, err := json.Marshal(value)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
