package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/assignment"
	auth "github.com/JiskaLaaksovirta/athena-ai-lab/internal/auth/middleware"
)

// POST /assignments/{assignmentID}/complete-game  {"score": n}
//
// Runs the game scoring state machine. The response status is one of
// success, retry or already_completed; "completed" reports whether this
// attempt (or an earlier one) cleared the assignment.
func CompleteGameHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := auth.SubjectFromContext(r.Context())
		if student == "" {
			completionError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		var req struct {
			Score *float64 `json:"score"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil {
			completionError(w, http.StatusBadRequest, "numeric score required")
			return
		}

		id := chi.URLParam(r, "assignmentID")
		res, err := store.CompleteGame(r.Context(), id, student, *req.Score)
		switch {
		case errors.Is(err, assignment.ErrNotFound):
			completionError(w, http.StatusNotFound, "assignment not found")
			return
		case errors.Is(err, assignment.ErrInvalidContent), errors.Is(err, assignment.ErrUnknownGameType):
			completionError(w, http.StatusBadRequest, "material has no playable game content")
			return
		case err != nil:
			completionError(w, http.StatusInternalServerError, "completion failed")
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// POST /assignments/{assignmentID}/autosave  (form field "response")
//
// Idempotent draft persistence; the first non-empty draft moves the
// assignment from ASSIGNED to IN_PROGRESS.
func AutosaveHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := auth.SubjectFromContext(r.Context())
		if student == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "unauthorized"})
			return
		}

		draft := draftFromRequest(r)
		id := chi.URLParam(r, "assignmentID")
		savedAt, err := store.SaveDraft(r.Context(), id, student, draft)
		switch {
		case errors.Is(err, assignment.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
			return
		case errors.Is(err, assignment.ErrForbidden):
			writeJSON(w, http.StatusForbidden, map[string]interface{}{"ok": false, "error": "forbidden"})
			return
		case errors.Is(err, assignment.ErrLocked):
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "locked"})
			return
		case err != nil:
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": "save failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":       true,
			"saved_at": savedAt.UTC().Format(time.RFC3339),
		})
	}
}

// draftFromRequest reads the draft from a JSON body or a form field, so both
// the game client (JSON) and the plain editor (form post) can autosave.
func draftFromRequest(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var body struct {
			Response string `json:"response"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		return body.Response
	}
	return r.FormValue("response")
}
