package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/ai"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/assignment"
)

var validate = validator.New()

type generateGameRequest struct {
	Name       string `json:"name"`
	Topic      string `json:"topic" validate:"required"`
	GameType   string `json:"game_type" validate:"required,oneof=quiz hangman memory"`
	Difficulty string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

// POST /materials/generate
//
// Produces game content and metadata for a topic without persisting
// anything; the teacher reviews the result and saves it via POST /materials.
func GenerateGameHandler(gen ai.ContentGenerator, meta ai.MetadataGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gen == nil {
			apiError(w, http.StatusServiceUnavailable, "content generation not configured")
			return
		}
		var req generateGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apiError(w, http.StatusBadRequest, "bad json")
			return
		}
		if err := validate.Struct(req); err != nil {
			apiError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Difficulty == "" {
			req.Difficulty = "medium"
		}

		content, err := gen.GenerateGame(r.Context(), req.Topic, assignment.GameType(req.GameType), req.Difficulty)
		if err != nil {
			apiError(w, http.StatusBadGateway, "generation failed: "+err.Error())
			return
		}

		resp := map[string]interface{}{
			"structured_content": content,
			"game_type":          req.GameType,
		}
		if meta != nil {
			md := meta.GenerateMetadata(r.Context(), req.Name, req.Topic)
			resp["title"] = md.Title
			resp["subject"] = md.Subject
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
