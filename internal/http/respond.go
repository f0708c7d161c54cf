package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/JeremyJS20/PersonalFinanceManagement/internal/core"
	applog "github.com/JeremyJS20/PersonalFinanceManagement/internal/log"
)

// isAJAX reports whether the client asked for a JSON response instead
// of the standard redirect flow.
func isAJAX(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondMutationSuccess shapes a successful mutation. AJAX clients get
// a JSON envelope carrying the entity's display fields; everyone else
// is redirected back to the listing page.
func (s *Server) respondMutationSuccess(w http.ResponseWriter, r *http.Request, redirectTo, entityKey string, payload any) {
	if isAJAX(r) {
		body := map[string]any{"status": "success"}
		if entityKey != "" {
			body[entityKey] = payload
		}
		writeJSON(w, http.StatusOK, body)
		return
	}
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

// respondMutationError maps domain errors onto the transport. rerender,
// when non-nil, re-renders the originating page with inline errors for
// standard form submissions.
func (s *Server) respondMutationError(w http.ResponseWriter, r *http.Request, err error, redirectTo string, rerender func(w http.ResponseWriter, r *http.Request, verr *core.ValidationError)) {
	if verr, ok := core.AsValidationError(err); ok {
		if isAJAX(r) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"status": "error",
				"errors": verr.Fields,
			})
			return
		}
		if rerender != nil {
			rerender(w, r, verr)
			return
		}
		http.Redirect(w, r, redirectTo, http.StatusFound)
		return
	}

	status := http.StatusInternalServerError
	message := "An unexpected error occurred."
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		status = http.StatusForbidden
		message = "You do not have permission to perform this action."
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
		message = "Not found."
	case errors.Is(err, core.ErrCategoryInUse):
		status = http.StatusConflict
		message = "This item has transactions associated with it and cannot be deleted."
	default:
		applog.FromContext(r.Context()).Error("Mutation failed", "error", err, applog.FieldPath, r.URL.Path)
	}

	if isAJAX(r) {
		writeJSON(w, status, map[string]any{
			"status":  "error",
			"message": message,
		})
		return
	}
	http.Error(w, message, status)
}
