package http

import (
	"net/http"
	"strconv"

	syncx "github.com/JiskaLaaksovirta/athena-ai-lab/internal/sync"
)

// GET /ops/events?after=&limit=
//
// Tail of the append-only event log, for sync agents and debugging.
func EventsHandler(repo *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		after, _ := strconv.ParseInt(q.Get("after"), 10, 64)
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil || limit <= 0 || limit > 1000 {
			limit = 100
		}
		events, err := repo.Since(r.Context(), after, limit)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "event log read failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
	}
}
