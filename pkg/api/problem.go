package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stefanpenner/horizon/pkg/store"
)

// ProblemDetail is an RFC 7807 error body.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Kind mirrors store.ErrorKind so clients can classify the failure.
	Kind store.ErrorKind `json:"kind,omitempty"`
}

func (p *ProblemDetail) Error() string {
	if p.Detail == "" {
		return p.Title
	}
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// ProblemContentType is the media type of problem responses.
const ProblemContentType = "application/problem+json"

func writeProblem(w http.ResponseWriter, r *http.Request, status int, kind store.ErrorKind, detail string) {
	p := &ProblemDetail{
		Type:   fmt.Sprintf("https://horizon.dev/errors/%d", status),
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
		Kind:   kind,
	}
	if r != nil {
		p.Instance = r.URL.Path
	}
	w.Header().Set("Content-Type", ProblemContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}

// writeStoreError maps a typed store error to its HTTP status. Anything
// unrecognised is logged and reported without detail.
func writeStoreError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	d := store.Describe(err)
	switch {
	case errors.Is(err, store.ErrValidation):
		writeProblem(w, r, http.StatusBadRequest, d.Kind, err.Error())
	case errors.Is(err, store.ErrDuplicateGoal):
		writeProblem(w, r, http.StatusConflict, d.Kind, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, d.Kind, err.Error())
	default:
		log.Error("internal server error", "path", r.URL.Path, "error", err)
		writeProblem(w, r, http.StatusInternalServerError, store.KindInternal, "An unexpected error occurred. Please try again later.")
	}
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	writeProblem(w, r, http.StatusTooManyRequests, "", "Rate limit exceeded. Retry after the specified interval.")
}
