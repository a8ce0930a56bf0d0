package http

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/storage"
)

// MountAssets serves stored blobs (AI images, TTS clips, uploads) and
// accepts teacher uploads attached to a material.
func MountAssets(r chi.Router, bs storage.BlobStore) {
	// POST /assets/{materialID}
	r.Post("/{materialID}", func(w http.ResponseWriter, req *http.Request) {
		materialID := chi.URLParam(req, "materialID")
		f, hdr, err := req.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()

		ext := strings.ToLower(path.Ext(hdr.Filename))
		key := "materials/" + materialID + "/" + uuid.NewString() + ext
		if _, err := bs.Put(req.Context(), key, f); err != nil {
			http.Error(w, "store error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		url, err := bs.PublicURL(key)
		if err != nil {
			http.Error(w, "resolve url: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"key": key, "url": url})
	})

	// GET /assets/*  -> the blob at whatever follows /assets/
	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		key := strings.TrimPrefix(chi.URLParam(req, "*"), "/")
		rc, err := bs.Get(req.Context(), key)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		ct := mime.TypeByExtension(path.Ext(key))
		if ct == "" {
			ct = "application/octet-stream"
		}
		w.Header().Set("Content-Type", ct)
		_, _ = io.Copy(w, rc)
	})
}
