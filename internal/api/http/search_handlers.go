package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/search"
)

const defaultSearchK = 8

// GET /ops/search?q=...&k=...&subject=...&grade=...&ctype=...
// Filter params repeat; a missing or malformed k falls back to 8.
func SearchHandler(svc search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := search.Query{
			Q:        q.Get("q"),
			K:        parseK(q.Get("k")),
			Subjects: q["subject"],
			Grades:   q["grade"],
			CTypes:   q["ctype"],
		}
		results, err := svc.Search(r.Context(), query)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "search failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
	}
}

// GET /ops/facets
func FacetsHandler(svc search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := svc.Facets(r.Context())
		if err != nil {
			apiError(w, http.StatusInternalServerError, "facets failed")
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

// POST /ops/chunks — ingest a piece of content into the searchable library.
func PutChunkHandler(svc search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c search.Chunk
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			apiError(w, http.StatusBadRequest, "bad json")
			return
		}
		if strings.TrimSpace(c.Body) == "" {
			apiError(w, http.StatusBadRequest, "text required")
			return
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if err := svc.PutChunk(r.Context(), c); err != nil {
			apiError(w, http.StatusInternalServerError, "store chunk")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": c.ID})
	}
}

func parseK(raw string) int {
	k, err := strconv.Atoi(raw)
	if err != nil || k <= 0 {
		return defaultSearchK
	}
	return k
}
