package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/ai"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/assignment"
	auth "github.com/JiskaLaaksovirta/athena-ai-lab/internal/auth/middleware"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/rbac"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/search"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/storage"
)

// stubAuth fakes what JWTMiddleware would attach for the given identity.
func stubAuth(sub, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithSubject(r.Context(), sub)
			ctx = rbac.WithRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func seedStore(t *testing.T, structured string) assignment.Store {
	t.Helper()
	s := assignment.NewInMemoryStore()
	ctx := context.Background()
	m := assignment.Material{ID: "mat-1", Title: "Kertolasku", Content: "Kertolasku on toistettua yhteenlaskua."}
	if structured != "" {
		m.StructuredContent = json.RawMessage(structured)
		gt, err := assignment.DetectGameType(m.StructuredContent)
		if err != nil {
			t.Fatalf("detect: %v", err)
		}
		m.GameType = gt
	}
	if err := s.PutMaterial(ctx, m); err != nil {
		t.Fatalf("put material: %v", err)
	}
	a := assignment.Assignment{ID: "asg-1", MaterialID: "mat-1", StudentID: "student-1", Status: assignment.StatusAssigned}
	if err := s.CreateAssignment(ctx, a); err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	return s
}

const quizContent = `{"difficulty":"easy","levels":[{"question":"2*3?","options":["5","6"],"answer":"6"}]}`

func gameRouter(store assignment.Store, sub, role string) http.Handler {
	r := chi.NewRouter()
	r.Use(stubAuth(sub, role))
	r.Post("/assignments/{assignmentID}/complete-game", CompleteGameHandler(store))
	r.Post("/assignments/{assignmentID}/autosave", AutosaveHandler(store))
	return r
}

func TestCompleteGameHandlerSuccess(t *testing.T) {
	store := seedStore(t, quizContent)
	r := gameRouter(store, "student-1", "student")

	req := httptest.NewRequest("POST", "/assignments/asg-1/complete-game", strings.NewReader(`{"score": 90}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var res assignment.CompletionResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != assignment.ResultSuccess || !res.Completed || res.Score != 90 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCompleteGameHandlerRetryBelowThreshold(t *testing.T) {
	store := seedStore(t, quizContent)
	r := gameRouter(store, "student-1", "student")

	req := httptest.NewRequest("POST", "/assignments/asg-1/complete-game", strings.NewReader(`{"score": 50}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var res assignment.CompletionResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// First attempt always reports success even under the pass mark.
	if res.Status != assignment.ResultSuccess || res.Completed {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCompleteGameHandlerRejectsMissingScore(t *testing.T) {
	store := seedStore(t, quizContent)
	r := gameRouter(store, "student-1", "student")

	req := httptest.NewRequest("POST", "/assignments/asg-1/complete-game", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "error" {
		t.Fatalf("error shape: %s", w.Body.String())
	}
}

func TestCompleteGameHandlerForeignAssignmentIsNotFound(t *testing.T) {
	store := seedStore(t, quizContent)
	r := gameRouter(store, "student-2", "student")

	req := httptest.NewRequest("POST", "/assignments/asg-1/complete-game", strings.NewReader(`{"score": 90}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestAutosaveHandlerSavesAndReportsTimestamp(t *testing.T) {
	store := seedStore(t, "")
	r := gameRouter(store, "student-1", "student")

	form := url.Values{"response": {"  ensimmäinen luonnos  "}}
	req := httptest.NewRequest("POST", "/assignments/asg-1/autosave", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body struct {
		OK      bool   `json:"ok"`
		SavedAt string `json:"saved_at"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK {
		t.Fatalf("expected ok, got %s", w.Body.String())
	}
	if _, err := time.Parse(time.RFC3339, body.SavedAt); err != nil {
		t.Fatalf("saved_at not RFC3339: %q", body.SavedAt)
	}

	a, _ := store.GetAssignment(context.Background(), "asg-1")
	if a.Status != assignment.StatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", a.Status)
	}
	if a.DraftResponse != "ensimmäinen luonnos" {
		t.Fatalf("draft not trimmed: %q", a.DraftResponse)
	}
}

func TestAutosaveHandlerForeignOwnerForbidden(t *testing.T) {
	store := seedStore(t, "")
	r := gameRouter(store, "student-2", "student")

	req := httptest.NewRequest("POST", "/assignments/asg-1/autosave", strings.NewReader(`{"response":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["ok"] != false || body["error"] != "forbidden" {
		t.Fatalf("error shape: %s", w.Body.String())
	}
}

func TestAutosaveHandlerLockedAfterSubmit(t *testing.T) {
	store := seedStore(t, "")
	ctx := context.Background()
	if _, err := store.SaveDraft(ctx, "asg-1", "student-1", "valmis"); err != nil {
		t.Fatalf("draft: %v", err)
	}
	if _, err := store.SubmitResponse(ctx, "asg-1", "student-1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	r := gameRouter(store, "student-1", "student")

	req := httptest.NewRequest("POST", "/assignments/asg-1/autosave", strings.NewReader(`{"response":"liian myöhään"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != "locked" {
		t.Fatalf("error shape: %s", w.Body.String())
	}
}

// ---- generation ----

type fakeContentGen struct {
	content json.RawMessage
	err     error
}

func (f *fakeContentGen) GenerateGame(_ context.Context, _ string, _ assignment.GameType, _ string) (json.RawMessage, error) {
	return f.content, f.err
}

type fakeMetaGen struct{ md ai.Metadata }

func (f *fakeMetaGen) GenerateMetadata(_ context.Context, _, _ string) ai.Metadata { return f.md }

func TestGenerateGameHandlerValidatesRequest(t *testing.T) {
	h := GenerateGameHandler(&fakeContentGen{}, nil)

	for _, body := range []string{
		`{"game_type":"quiz"}`,                                        // missing topic
		`{"topic":"kertolasku","game_type":"sudoku"}`,                 // unknown game
		`{"topic":"kertolasku","game_type":"quiz","difficulty":"x7"}`, // bad difficulty
	} {
		req := httptest.NewRequest("POST", "/materials/generate", strings.NewReader(body))
		w := httptest.NewRecorder()
		h(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d", body, w.Code)
		}
	}
}

func TestGenerateGameHandlerReturnsContentAndMetadata(t *testing.T) {
	h := GenerateGameHandler(
		&fakeContentGen{content: json.RawMessage(quizContent)},
		&fakeMetaGen{md: ai.Metadata{Title: "Kertolasku: perusteet", Subject: "Matematiikka"}},
	)

	req := httptest.NewRequest("POST", "/materials/generate",
		strings.NewReader(`{"topic":"kertolasku","game_type":"quiz"}`))
	w := httptest.NewRecorder()
	h(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		GameType string          `json:"game_type"`
		Title    string          `json:"title"`
		Subject  string          `json:"subject"`
		Content  json.RawMessage `json:"structured_content"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.GameType != "quiz" || resp.Title == "" || resp.Subject != "Matematiikka" || len(resp.Content) == 0 {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}
}

// ---- media ----

type fakeImages struct {
	img []byte
	err error
}

func (f *fakeImages) GenerateImage(_ context.Context, _ string) ([]byte, error) {
	return f.img, f.err
}

func TestGenerateImageHandlerStoresBlobAndReturnsURL(t *testing.T) {
	blobs, err := storage.NewFSStore(t.TempDir(), "https://athena.example")
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	h := GenerateImageHandler(&fakeImages{img: []byte{0x89, 'P', 'N', 'G'}}, blobs)

	req := httptest.NewRequest("POST", "/media/images", strings.NewReader(`{"prompt":"aurinkokunta"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	u := body["image_url"]
	if !strings.HasPrefix(u, "https://athena.example/assets/ai_images/") || !strings.HasSuffix(u, ".png") {
		t.Fatalf("image_url = %q", u)
	}

	key := strings.TrimPrefix(u, "https://athena.example/assets/")
	rc, err := blobs.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("stored blob missing: %v", err)
	}
	defer rc.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil || buf.Len() != 4 {
		t.Fatalf("stored blob: %v, %d bytes", err, buf.Len())
	}
}

func TestGenerateImageHandlerRequiresPrompt(t *testing.T) {
	blobs, _ := storage.NewFSStore(t.TempDir(), "")
	h := GenerateImageHandler(&fakeImages{}, blobs)

	req := httptest.NewRequest("POST", "/media/images", strings.NewReader(`{"prompt":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

type fakeSpeech struct {
	audio []byte
	err   error
}

func (f *fakeSpeech) Synthesize(_ context.Context, _ string) ([]byte, error) {
	return f.audio, f.err
}

func TestTTSHandlerReturnsAudio(t *testing.T) {
	store := seedStore(t, "")
	r := chi.NewRouter()
	r.Use(stubAuth("student-1", "student"))
	r.Post("/assignments/{assignmentID}/tts", TTSHandler(store, &fakeSpeech{audio: []byte("mp3")}))

	req := httptest.NewRequest("POST", "/assignments/asg-1/tts", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestTTSHandlerRejectsImageOnlyMaterial(t *testing.T) {
	s := assignment.NewInMemoryStore()
	ctx := context.Background()
	_ = s.PutMaterial(ctx, assignment.Material{ID: "mat-img", Content: "![kuva](https://example.com/a.png)"})
	_ = s.CreateAssignment(ctx, assignment.Assignment{ID: "asg-img", MaterialID: "mat-img", StudentID: "student-1", Status: assignment.StatusAssigned})

	r := chi.NewRouter()
	r.Use(stubAuth("student-1", "student"))
	r.Post("/assignments/{assignmentID}/tts", TTSHandler(s, &fakeSpeech{audio: []byte("mp3")}))

	req := httptest.NewRequest("POST", "/assignments/asg-img/tts", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestAssetsTraversalKeyIsNotServed(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "secret.txt"), []byte("top-secret"), 0o644); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	blobs, err := storage.NewFSStore(filepath.Join(root, "blobs"), "")
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}
	if _, err := blobs.Put(context.Background(), "public.txt", strings.NewReader("fine")); err != nil {
		t.Fatalf("put: %v", err)
	}

	r := chi.NewRouter()
	r.Route("/assets", func(ar chi.Router) { MountAssets(ar, blobs) })

	req := httptest.NewRequest("GET", "/assets/../secret.txt", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("traversal key: status = %d, body %q", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "top-secret") {
		t.Fatalf("file outside blob base was served")
	}

	req = httptest.NewRequest("GET", "/assets/public.txt", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "fine" {
		t.Fatalf("stored blob: status = %d, body %q", w.Code, w.Body.String())
	}
}

// ---- search ----

type fakeSearch struct {
	gotQuery search.Query
	results  []search.Chunk
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) ([]search.Chunk, error) {
	f.gotQuery = q
	return f.results, nil
}
func (f *fakeSearch) Facets(_ context.Context) (search.Facets, error) { return search.Facets{}, nil }
func (f *fakeSearch) PutChunk(_ context.Context, _ search.Chunk) error {
	return nil
}

func TestSearchHandlerParsesParams(t *testing.T) {
	svc := &fakeSearch{results: []search.Chunk{}}
	h := SearchHandler(svc)

	req := httptest.NewRequest("GET",
		"/ops/search?q=kertolasku&k=3&subject=Matematiikka&subject=Historia&grade=4&ctype=exercise", nil)
	w := httptest.NewRecorder()
	h(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	q := svc.gotQuery
	if q.Q != "kertolasku" || q.K != 3 {
		t.Fatalf("q/k: %+v", q)
	}
	if len(q.Subjects) != 2 || q.Subjects[1] != "Historia" {
		t.Fatalf("subjects: %+v", q.Subjects)
	}
	if len(q.Grades) != 1 || len(q.CTypes) != 1 {
		t.Fatalf("filters: %+v", q)
	}
}

func TestSearchHandlerDefaultsBadK(t *testing.T) {
	svc := &fakeSearch{results: []search.Chunk{}}
	h := SearchHandler(svc)

	for _, target := range []string{"/ops/search?q=x", "/ops/search?q=x&k=abc", "/ops/search?q=x&k=-2"} {
		req := httptest.NewRequest("GET", target, nil)
		w := httptest.NewRecorder()
		h(w, req)
		if svc.gotQuery.K != defaultSearchK {
			t.Fatalf("%s: k = %d, want %d", target, svc.gotQuery.K, defaultSearchK)
		}
	}
}

func TestSearchHandlerEmptyResultsShape(t *testing.T) {
	h := SearchHandler(&fakeSearch{results: []search.Chunk{}})

	req := httptest.NewRequest("GET", "/ops/search?q=none", nil)
	w := httptest.NewRecorder()
	h(w, req)

	if strings.TrimSpace(w.Body.String()) != `{"results":[]}` {
		t.Fatalf("body = %s", w.Body.String())
	}
}

// ---- materials ----

func TestCreateMaterialTagsGameType(t *testing.T) {
	store := assignment.NewInMemoryStore()
	r := chi.NewRouter()
	r.Use(stubAuth("teacher-1", "teacher"))
	r.Post("/materials", CreateMaterialHandler(store, &fakeMetaGen{md: ai.Metadata{Title: "Eläimet", Subject: "Biologia"}}))

	body := `{"name":"Hirvieläimet","topic":"hirvet","structured_content":{"topic":"hirvet","words":["HIRVI"]}}`
	req := httptest.NewRequest("POST", "/materials", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var m assignment.Material
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.GameType != assignment.GameHangman {
		t.Fatalf("game type = %q", m.GameType)
	}
	if m.Title != "Eläimet" || m.Subject != "Biologia" {
		t.Fatalf("metadata not applied: %+v", m)
	}
	if m.CreatedBy != "teacher-1" {
		t.Fatalf("created_by = %q", m.CreatedBy)
	}
}

func TestCreateMaterialRejectsUnknownGameShape(t *testing.T) {
	store := assignment.NewInMemoryStore()
	r := chi.NewRouter()
	r.Use(stubAuth("teacher-1", "teacher"))
	r.Post("/materials", CreateMaterialHandler(store, nil))

	req := httptest.NewRequest("POST", "/materials",
		strings.NewReader(`{"structured_content":{"board":"chess"}}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

// ---- assignment listing ----

func TestListAssignmentsPinsStudentsToOwnRows(t *testing.T) {
	store := seedStore(t, "")
	_ = store.CreateAssignment(context.Background(),
		assignment.Assignment{ID: "asg-2", MaterialID: "mat-1", StudentID: "student-2", Status: assignment.StatusAssigned})

	r := chi.NewRouter()
	r.Use(stubAuth("student-1", "student"))
	r.Get("/assignments", ListAssignmentsHandler(store))

	// The student_id param is ignored for students.
	req := httptest.NewRequest("GET", "/assignments?student_id=student-2", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var list []assignment.Assignment
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].StudentID != "student-1" {
		t.Fatalf("list: %+v", list)
	}
}
