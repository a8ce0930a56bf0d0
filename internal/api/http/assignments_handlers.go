package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/assignment"
	auth "github.com/JiskaLaaksovirta/athena-ai-lab/internal/auth/middleware"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/rbac"
)

// POST /assignments  {"material_id": "...", "student_id": "..."}
func CreateAssignmentHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MaterialID string `json:"material_id"`
			StudentID  string `json:"student_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apiError(w, http.StatusBadRequest, "bad json")
			return
		}
		if req.MaterialID == "" || req.StudentID == "" {
			apiError(w, http.StatusBadRequest, "material_id and student_id required")
			return
		}
		a := assignment.Assignment{
			ID:         uuid.NewString(),
			MaterialID: req.MaterialID,
			StudentID:  req.StudentID,
			Status:     assignment.StatusAssigned,
			CreatedAt:  time.Now().Unix(),
			UpdatedAt:  time.Now().Unix(),
		}
		if err := store.CreateAssignment(r.Context(), a); err != nil {
			if errors.Is(err, assignment.ErrNotFound) {
				apiError(w, http.StatusNotFound, "material not found")
				return
			}
			apiError(w, http.StatusInternalServerError, "create assignment")
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// GET /assignments/{assignmentID}
//
// Students see only their own assignments; a foreign id reads as absent.
func GetAssignmentHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /assignments?status=&limit=&offset=   (+student_id for teachers)
func ListAssignmentsHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := assignment.ListOpts{
			StudentID: q.Get("student_id"),
			Status:    q.Get("status"),
		}
		if n, err := strconv.Atoi(q.Get("limit")); err == nil {
			opts.Limit = n
		}
		if n, err := strconv.Atoi(q.Get("offset")); err == nil {
			opts.Offset = n
		}
		// Students are pinned to their own rows regardless of query params.
		if rbac.RoleFromContext(r.Context()) == "student" {
			opts.StudentID = auth.SubjectFromContext(r.Context())
		}
		list, err := store.ListAssignments(r.Context(), opts)
		if err != nil {
			http.Error(w, "list failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /assignments/{assignmentID}/submit
func SubmitResponseHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		student := auth.SubjectFromContext(r.Context())
		sub, err := store.SubmitResponse(r.Context(), chi.URLParam(r, "assignmentID"), student)
		switch {
		case errors.Is(err, assignment.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
			return
		case errors.Is(err, assignment.ErrLocked):
			apiError(w, http.StatusBadRequest, "locked")
			return
		case err != nil:
			http.Error(w, "submit failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}

// POST /assignments/{assignmentID}/grade  {"score": n, "feedback": "..."}
func GradeHandler(store assignment.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Score    *float64 `json:"score"`
			Feedback string   `json:"feedback"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Score == nil {
			apiError(w, http.StatusBadRequest, "numeric score required")
			return
		}
		sub, err := store.GradeLatest(r.Context(), chi.URLParam(r, "assignmentID"), *req.Score, req.Feedback)
		switch {
		case errors.Is(err, assignment.ErrNotFound):
			http.Error(w, "not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, "grade failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, sub)
	}
}
