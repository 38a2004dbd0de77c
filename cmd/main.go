package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"nimbusdrive/internal/config"
	"nimbusdrive/internal/handler"
	"nimbusdrive/internal/repository"
	"nimbusdrive/internal/service"
	"nimbusdrive/internal/service/s3"
	"nimbusdrive/internal/session"
)

func connectWithRetry(dsn string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	var db *sqlx.DB
	var err error
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	databaseURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", databaseURL)
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := connectWithRetry(appConfig.Database.GetDSN(), 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}

	sweepInterval, err := time.ParseDuration(appConfig.Server.SweepInterval)
	if err != nil {
		log.Fatalf("Invalid sweep interval %q: %v", appConfig.Server.SweepInterval, err)
	}

	fileRepo := repository.NewFileRepository(db)
	folderRepo := repository.NewFolderRepository(db)
	shareRepo := repository.NewShareRepository(db)
	trashRepo := repository.NewTrashRepository(db)
	planRepo := repository.NewPlanRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	sessions := session.NewMemoryStore()

	quotaService := service.NewQuotaService(profileRepo, planRepo)
	fileService := service.NewFileService(fileRepo, folderRepo, profileRepo, quotaService, s3Client)
	folderService := service.NewFolderService(folderRepo, fileRepo)
	trashService := service.NewTrashService(trashRepo, fileRepo, folderRepo, profileRepo, s3Client)
	shareService := service.NewShareService(shareRepo, fileRepo, folderRepo, s3Client, sessions)

	fileHandler := handler.NewFileHandler(fileService)
	folderHandler := handler.NewFolderHandler(folderService)
	trashHandler := handler.NewTrashHandler(trashService)
	shareHandler := handler.NewShareHandler(shareService)
	quotaHandler := handler.NewQuotaHandler(quotaService)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Owner-ID"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/files", fileHandler.UploadFile)
		r.Get("/files/starred", fileHandler.ListStarred)

		r.Route("/files/{uuid}", func(r chi.Router) {
			r.Get("/", fileHandler.GetFile)
			r.Get("/download", fileHandler.DownloadFile)
			r.Put("/rename", fileHandler.RenameFile)
			r.Put("/move", fileHandler.MoveFile)
			r.Put("/star", fileHandler.ToggleStar)
			r.Put("/visibility", fileHandler.ToggleVisibility)
			r.Delete("/", fileHandler.DeleteFile)
		})

		r.Get("/folders", folderHandler.GetRootContent)
		r.Post("/folders", folderHandler.CreateFolder)
		r.Get("/folders/{id}", folderHandler.GetContent)
		r.Put("/folders/{id}/rename", folderHandler.RenameFolder)
		r.Put("/folders/{id}/move", folderHandler.MoveFolder)
		r.Put("/folders/{id}/star", folderHandler.ToggleStar)
		r.Put("/folders/{id}/visibility", folderHandler.ToggleVisibility)

		r.Route("/trash", func(r chi.Router) {
			r.Get("/", trashHandler.GetTrashItems)
			r.Post("/", trashHandler.MoveToTrash)
			r.Post("/empty", trashHandler.EmptyTrash)
			r.Post("/restore", trashHandler.RestoreItem)
			r.Post("/delete", trashHandler.DeletePermanently)
		})

		r.Route("/quota", func(r chi.Router) {
			r.Get("/", quotaHandler.GetQuotaInfo)
			r.Post("/recompute", quotaHandler.Recompute)
		})

		r.Route("/plans", func(r chi.Router) {
			r.Get("/", quotaHandler.ListPlans)
			r.Post("/", quotaHandler.CreatePlan)
			r.Post("/assign", quotaHandler.AssignPlan)
		})

		r.Route("/shares", func(r chi.Router) {
			r.Post("/", shareHandler.CreateShare)
			r.Get("/", shareHandler.ListMine)

			r.Route("/token/{token}", func(r chi.Router) {
				r.Get("/", shareHandler.ResolveShare)
				r.Post("/verify", shareHandler.VerifyPassword)
				r.Get("/files", shareHandler.FolderFiles)
				r.Get("/download", shareHandler.Download)
				r.Delete("/", shareHandler.DeactivateShare)
			})
		})
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Trash sweeper: purges records past their scheduled time.
	sweepTicker := time.NewTicker(sweepInterval)
	go func() {
		defer sweepTicker.Stop()
		for {
			select {
			case <-sweepTicker.C:
				ctx := context.Background()
				if _, err := trashService.RunScheduledPurge(ctx); err != nil {
					log.Printf("Error during scheduled trash purge: %v", err)
				}
			case <-done:
				return
			}
		}
	}()

	<-quit
	close(done)
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server forced to shutdown: %v", err)
	}

	if err := db.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	}

	log.Println("Server exited properly")
}
