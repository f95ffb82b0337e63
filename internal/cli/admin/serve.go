package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/cognibase/cognibase/internal/api/handlers"
	"github.com/cognibase/cognibase/internal/config"
	"github.com/cognibase/cognibase/internal/database"
	"github.com/cognibase/cognibase/internal/jobs"
	"github.com/cognibase/cognibase/internal/openai"
	"github.com/cognibase/cognibase/internal/repository"
	"github.com/cognibase/cognibase/internal/server"
	"github.com/cognibase/cognibase/internal/service"
	"github.com/cognibase/cognibase/internal/storage"
	"github.com/cognibase/cognibase/internal/telemetry"
	"github.com/cognibase/cognibase/internal/vectorstore"
	"github.com/cognibase/cognibase/internal/vectorstore/chromem"
	"github.com/cognibase/cognibase/internal/vectorstore/pgvector"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the cognibase API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("OPENAI_API_KEY is required to serve the pipeline")
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	encoder := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		EmbeddingDimensions: cfg.EmbeddingDimension,
	})
	generator := openai.NewCompletionClient(cfg.OpenAIAPIKey)
	chunker := service.NewChunker(service.ChunkConfig{
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.ChunkOverlap,
	})

	var store vectorstore.VectorStore
	var docs service.DocumentRepository
	var docStore handlers.DocumentStore
	var enqueueSvc handlers.EnqueueService
	var ingestWorker *jobs.Worker
	var pool *pgxpool.Pool

	if cfg.HasDatabase() {
		pool, err = database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		log.Println("connected to database")

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		store = pgvector.NewStore(pool)
		docRepo := repository.NewDocumentRepository(pool)
		docs = docRepo
		docStore = docRepo
		enqueueSvc = service.NewEnqueueService(repository.NewTxRunner(pool))
	} else {
		log.Println("no DATABASE_URL configured, using embedded vector store")
		chromemStore, err := chromem.NewStore(chromem.Config{})
		if err != nil {
			return fmt.Errorf("failed to open embedded store: %w", err)
		}
		store = chromemStore
		memRepo := repository.NewMemoryDocumentRepository()
		docs = memRepo
		docStore = memRepo
	}

	var archive service.DocumentArchiver
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archive = s3Client
	}

	ingestSvc := service.NewIngestServiceWithRepo(chunker, encoder, store, docs, archive)
	askSvc := service.NewAskService(
		service.NewRetriever(encoder, store),
		service.NewPromptAssembler(),
		generator,
		service.AskConfig{
			TopK:             cfg.TopK,
			MinScore:         cfg.MinScore,
			MaxContextTokens: cfg.MaxContextTokens,
			Timeout:          cfg.GenerationTimeout,
			RetryCount:       cfg.RetryCount,
		},
	)

	if pool != nil {
		jobRepo := repository.NewIngestJobRepository(pool)
		docRepo := repository.NewDocumentRepository(pool)
		processor := jobs.NewIngestWorker(jobRepo, docRepo, ingestSvc)
		ingestWorker = jobs.NewWorker(processor, 10*time.Second)
		go ingestWorker.Start(ctx)
		log.Println("ingest worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc, enqueueSvc, docStore),
		AskHandler:      handlers.NewAskHandler(askSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if ingestWorker != nil {
		ingestWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

func runMigrations(databaseURL string) error {
	// golang-migrate wants a database/sql handle
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
