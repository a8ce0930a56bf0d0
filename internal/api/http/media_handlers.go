package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/assignment"
	auth "github.com/JiskaLaaksovirta/athena-ai-lab/internal/auth/middleware"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/media"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/rbac"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/storage"
)

// POST /assignments/{assignmentID}/tts
//
// Reads the assignment's material aloud. Markdown image references are
// stripped before synthesis; a material with no remaining text is a 400.
func TTSHandler(store assignment.Store, speech media.SpeechGenerator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if speech == nil {
			apiError(w, http.StatusServiceUnavailable, "tts not configured")
			return
		}
		a, err := store.GetAssignment(r.Context(), chi.URLParam(r, "assignmentID"))
		if errors.Is(err, assignment.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		if rbac.RoleFromContext(r.Context()) == "student" && a.StudentID != auth.SubjectFromContext(r.Context()) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		m, err := store.GetMaterial(r.Context(), a.MaterialID)
		if err != nil {
			http.Error(w, "material lookup failed", http.StatusInternalServerError)
			return
		}

		text := media.StripMarkdownImages(m.Content)
		if strings.TrimSpace(text) == "" {
			apiError(w, http.StatusBadRequest, "material has no readable text")
			return
		}
		audio, err := speech.Synthesize(r.Context(), text)
		if err != nil {
			apiError(w, http.StatusBadGateway, "speech synthesis failed: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}
}

// POST /media/images  {"prompt": "..."}
//
// Generates an illustration, stores it as a blob and returns its public URL.
func GenerateImageHandler(images media.ImageGenerator, blobs storage.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if images == nil {
			apiError(w, http.StatusServiceUnavailable, "image generation not configured")
			return
		}
		prompt := promptFromRequest(r)
		if strings.TrimSpace(prompt) == "" {
			apiError(w, http.StatusBadRequest, "prompt required")
			return
		}

		img, err := images.GenerateImage(r.Context(), prompt)
		if err != nil {
			apiError(w, http.StatusBadGateway, "image generation failed: "+err.Error())
			return
		}

		key := "ai_images/" + strings.ReplaceAll(uuid.NewString(), "-", "") + ".png"
		if _, err := blobs.Put(r.Context(), key, bytes.NewReader(img)); err != nil {
			apiError(w, http.StatusInternalServerError, "store image")
			return
		}
		url, err := blobs.PublicURL(key)
		if err != nil {
			apiError(w, http.StatusInternalServerError, "resolve image url")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"image_url": url})
	}
}

func promptFromRequest(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		var body struct {
			Prompt string `json:"prompt"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		return body.Prompt
	}
	return r.FormValue("prompt")
}
