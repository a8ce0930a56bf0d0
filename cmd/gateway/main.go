package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/ai"
	api "github.com/JiskaLaaksovirta/athena-ai-lab/internal/api/http"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/assignment"
	auth "github.com/JiskaLaaksovirta/athena-ai-lab/internal/auth/middleware"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/config"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/db"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/logger"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/media"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/rbac"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/search"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/storage"
	syncx "github.com/JiskaLaaksovirta/athena-ai-lab/internal/sync"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	lg, err := logger.New(string(cfg.Mode))
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		lg.Fatal("db open failed", "err", err)
	}
	store := assignment.NewSQLStore(dbh, cfg.DBDriver)
	events := syncx.NewEventRepo(dbh)

	if err := seedAdmin(ctx, dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		lg.Fatal("seed admin", "err", err)
	}

	// --- Blob storage ---
	var blobs storage.BlobStore
	switch cfg.BlobDriver {
	case "gcs":
		gcsStore, err := storage.NewGCSStore(ctx, cfg.BlobBucket, cfg.BlobCDNBase)
		if err != nil {
			lg.Fatal("gcs blob store", "err", err)
		}
		defer gcsStore.Close()
		blobs = gcsStore
	default:
		fsStore, err := storage.NewFSStore(cfg.BlobBasePath, cfg.PublicURL)
		if err != nil {
			lg.Fatal("fs blob store", "err", err)
		}
		blobs = fsStore
	}

	// --- AI collaborators (optional; endpoints degrade to 503 when unset) ---
	var contentGen ai.ContentGenerator
	var metaGen ai.MetadataGenerator
	if cfg.OpenAIAPIKey != "" {
		chat, err := ai.NewClient(lg, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIChatModel)
		if err != nil {
			lg.Fatal("openai client", "err", err)
		}
		gen := ai.NewGenerator(lg, chat)
		contentGen, metaGen = gen, gen
	}
	var speech media.SpeechGenerator
	if cfg.TTSAPIKey != "" {
		tts, err := media.NewGoogleTTS(lg, cfg.TTSAPIKey, cfg.TTSLanguage, cfg.TTSVoice)
		if err != nil {
			lg.Fatal("tts client", "err", err)
		}
		speech = tts
	}
	var images media.ImageGenerator
	if cfg.OpenAIAPIKey != "" {
		img, err := media.NewOpenAIImages(lg, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIImageModel, cfg.OpenAIImageSize)
		if err != nil {
			lg.Fatal("image client", "err", err)
		}
		images = img
	}

	// --- Content library search ---
	var facetCache search.FacetCache
	if cfg.RedisAddr != "" {
		cache, err := search.NewRedisFacetCache(ctx, lg, cfg.RedisAddr)
		if err != nil {
			lg.Warn("redis unavailable, facet cache disabled", "err", err)
		} else {
			defer cache.Close()
			facetCache = cache
		}
	}
	library := search.NewSQLStore(dbh, facetCache)

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := cfg.CORSOriginsOffline
	if cfg.Mode == config.ModeOnline {
		origins = cfg.CORSOriginsOnline
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	// Assets (protected)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Route("/assets", func(ar chi.Router) {
			api.MountAssets(ar, blobs)
		})
	})

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		// Materials
		pr.With(rbac.Require("material:create")).
			Post("/materials", api.CreateMaterialHandler(store, metaGen))
		pr.With(rbac.Require("material:generate")).
			Post("/materials/generate", api.GenerateGameHandler(contentGen, metaGen))
		pr.With(rbac.Require("material:view")).
			Get("/materials/{materialID}", api.GetMaterialHandler(store))

		// Assignments
		pr.With(rbac.Require("assignment:create")).
			Post("/assignments", api.CreateAssignmentHandler(store))
		pr.With(rbac.RequireAny("assignment:view-own", "assignment:view-all")).
			Get("/assignments", api.ListAssignmentsHandler(store))
		pr.With(rbac.RequireAny("assignment:view-own", "assignment:view-all")).
			Get("/assignments/{assignmentID}", api.GetAssignmentHandler(store))
		pr.With(rbac.Require("assignment:autosave")).
			Post("/assignments/{assignmentID}/autosave", api.AutosaveHandler(store))
		pr.With(rbac.Require("assignment:submit")).
			Post("/assignments/{assignmentID}/submit", api.SubmitResponseHandler(store))
		pr.With(rbac.Require("game:complete")).
			Post("/assignments/{assignmentID}/complete-game", api.CompleteGameHandler(store))
		pr.With(rbac.Require("assignment:grade")).
			Post("/assignments/{assignmentID}/grade", api.GradeHandler(store))

		// Media
		pr.With(rbac.Require("media:tts")).
			Post("/assignments/{assignmentID}/tts", api.TTSHandler(store, speech))
		pr.With(rbac.Require("media:image")).
			Post("/media/images", api.GenerateImageHandler(images, blobs))

		// Content library
		pr.With(rbac.Require("library:search")).
			Get("/ops/search", api.SearchHandler(library))
		pr.With(rbac.Require("library:search")).
			Get("/ops/facets", api.FacetsHandler(library))
		pr.With(rbac.Require("library:ingest")).
			Post("/ops/chunks", api.PutChunkHandler(library))
		pr.With(rbac.Require("ops:events")).
			Get("/ops/events", api.EventsHandler(events))

		// Users (teacher/admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
		pr.With(rbac.Require("users:update_role")).
			Patch("/users/{userID}/role", api.AdminUpdateUserRoleHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	lg.Info("listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "db", cfg.DBDriver, "blob", cfg.BlobDriver)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		lg.Fatal("server exited", "err", err)
	}
}

// seedAdmin provisions the bootstrap admin account on first start so the
// roster upload endpoints are reachable on a fresh database.
func seedAdmin(ctx context.Context, dbh *sql.DB, username, passHash string) error {
	if username == "" || passHash == "" {
		return nil
	}
	var one int
	err := dbh.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=$1`, username).Scan(&one)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = dbh.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
		"admin-"+username, username, passHash, "admin", time.Now().Unix())
	return err
}
