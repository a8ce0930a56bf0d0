package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/ai"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/assignment"
	auth "github.com/JiskaLaaksovirta/athena-ai-lab/internal/auth/middleware"
)

// POST /materials
//
// The game type is decided here, once, from the structured content and
// stored on the material. Missing title/subject are filled in by the
// metadata generator when one is configured.
func CreateMaterialHandler(store assignment.Store, meta ai.MetadataGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name              string          `json:"name"`
			Topic             string          `json:"topic"`
			Title             string          `json:"title"`
			Subject           string          `json:"subject"`
			Content           string          `json:"content"`
			StructuredContent json.RawMessage `json:"structured_content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apiError(w, http.StatusBadRequest, "bad json")
			return
		}

		gt := assignment.GameNone
		if len(req.StructuredContent) > 0 {
			var err error
			gt, err = assignment.DetectGameType(req.StructuredContent)
			if err != nil {
				apiError(w, http.StatusBadRequest, "unrecognized game content")
				return
			}
		}

		if (req.Title == "" || req.Subject == "") && meta != nil {
			md := meta.GenerateMetadata(r.Context(), req.Name, req.Topic)
			if req.Title == "" {
				req.Title = md.Title
			}
			if req.Subject == "" {
				req.Subject = md.Subject
			}
		}

		m := assignment.Material{
			ID:                uuid.NewString(),
			Title:             req.Title,
			Subject:           req.Subject,
			Content:           req.Content,
			StructuredContent: req.StructuredContent,
			GameType:          gt,
			CreatedBy:         auth.SubjectFromContext(r.Context()),
			CreatedAt:         time.Now().Unix(),
		}
		if err := store.PutMaterial(r.Context(), m); err != nil {
			apiError(w, http.StatusInternalServerError, "store material")
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

// GET /materials/{materialID}
func GetMaterialHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := store.GetMaterial(r.Context(), chi.URLParam(r, "materialID"))
		if errors.Is(err, assignment.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}
