package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	api "github.com/guidedpath/onboard-lms/internal/api/http"
	auth "github.com/guidedpath/onboard-lms/internal/auth/middleware"
	"github.com/guidedpath/onboard-lms/internal/cert"
	"github.com/guidedpath/onboard-lms/internal/config"
	"github.com/guidedpath/onboard-lms/internal/db"
	"github.com/guidedpath/onboard-lms/internal/document"
	"github.com/guidedpath/onboard-lms/internal/extract"
	"github.com/guidedpath/onboard-lms/internal/grading"
	"github.com/guidedpath/onboard-lms/internal/progression"
	"github.com/guidedpath/onboard-lms/internal/rbac"
	"github.com/guidedpath/onboard-lms/internal/storage"
	syncx "github.com/guidedpath/onboard-lms/internal/sync"
	"github.com/guidedpath/onboard-lms/internal/synth"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := progression.NewSQLStore(dbh, cfg.DBDriver)
	events := syncx.NewEventRepo(dbh, "")

	// --- Engine ---
	validator := grading.NewValidator(grading.WithMaxEditDistance(cfg.GradingMaxEditDistance))
	machine := progression.NewMachine(store, validator, events)
	gate := cert.NewGate(store, events, cfg.CredentialValidityDays)
	synthesizer := synth.New(cfg.SynthSeed)

	// --- Documents ---
	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}
	extractor, err := extract.New(extract.NewSniffingDecoder())
	if err != nil {
		log.Fatalf("document decoder: %v", err)
	}
	docs := document.NewService(document.NewSQLStore(dbh), bs, extractor)

	// --- Auth ---
	secret := getenvOr("AUTH_HMAC_SECRET", "supersecret-dev-key")
	authSvc := auth.NewAuthService(secret)
	if cfg.EnableLocalAuth {
		if err := ensureAdminUser(ctx, dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
			log.Fatalf("seed admin user: %v", err)
		}
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

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

	// Protected API (JWT -> role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Authoring
		pr.With(rbac.Require("progression:author")).
			Post("/progressions", api.UpsertProgressionHandler(store))
		pr.With(rbac.Require("document:upload")).
			Post("/documents", api.UploadDocumentHandler(docs))
		pr.With(rbac.Require("document:generate")).
			Post("/documents/{docID}/generate-questions", api.GenerateQuestionsHandler(docs, synthesizer))

		// Learner flow
		pr.With(rbac.Require("progression:view")).
			Get("/progressions/{progressionID}", api.GetProgressionHandler(store))
		pr.With(rbac.Require("submission:start")).
			Post("/progressions/{progressionID}/start", api.StartHandler(machine))
		pr.With(rbac.Require("submission:confirm")).
			Post("/progressions/{progressionID}/steps/{stepID}/confirm", api.ConfirmStepHandler(machine, store))
		pr.With(rbac.Require("submission:complete")).
			Post("/progressions/{progressionID}/complete", api.CompleteHandler(gate, store))
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions/{submissionID}", api.GetSubmissionHandler(machine))
		pr.With(rbac.Require("submission:confirm")).
			Post("/submissions/{submissionID}/retreat", api.RetreatHandler(machine))

		// Staff accounts (author/admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

// ensureAdminUser seeds the local admin account so a fresh offline
// deployment is reachable before any staff roster is loaded.
func ensureAdminUser(ctx context.Context, dbh *sql.DB, username, passHash string) error {
	_, err := dbh.ExecContext(ctx, `INSERT INTO users (id,username,pass_hash,role,name)
		VALUES ($1,$2,$3,'admin',$2)
		ON CONFLICT (username) DO NOTHING`,
		uuid.NewString(), username, passHash)
	return err
}

func getenvOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
