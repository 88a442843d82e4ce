package main

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/dkoval/facescout/internal/ai"
	"github.com/dkoval/facescout/internal/analysis"
	"github.com/dkoval/facescout/internal/api"
	"github.com/dkoval/facescout/internal/database"
	"github.com/dkoval/facescout/internal/frames"
	"github.com/dkoval/facescout/internal/storage"
)

func main() {
	godotenv.Load()

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLogLevel(os.Getenv("LOG_LEVEL")),
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	maxUploadSize := os.Getenv("MAX_UPLOAD_SIZE")
	if maxUploadSize == "" {
		maxUploadSize = "104857600"
	}
	maxSize, err := strconv.ParseInt(maxUploadSize, 10, 64)
	if err != nil {
		logger.Error("invalid MAX_UPLOAD_SIZE", "error", err)
		os.Exit(1)
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}

	dbConfig := databaseConfig()

	localStorage, err := storage.NewLocalStorage(uploadDir)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	db, err := database.NewDB(dbConfig)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "./migrations"
	}
	if err := db.RunMigrations(migrationsPath); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	analysisRepo := database.NewAnalysisRepository(db)
	snapshotRepo := database.NewSnapshotRepo(db)

	aiConfig := ai.NewConfig()
	aiConfig.APIKey = os.Getenv("MODEL_API_KEY")
	if baseURL := os.Getenv("MODEL_BASE_URL"); baseURL != "" {
		aiConfig.BaseURL = baseURL
	}
	if model := os.Getenv("MODEL_NAME"); model != "" {
		aiConfig.Model = model
	}

	var matchService ai.MatchService
	if aiConfig.APIKey != "" {
		matchService, err = ai.NewClient(aiConfig)
		if err != nil {
			logger.Warn("failed to initialize model client", "error", err)
		}
	} else {
		logger.Warn("model API not configured, set MODEL_API_KEY")
	}

	var extractor analysis.SnapshotExtractor
	frameExtractor, err := frames.NewExtractor(frames.Config{
		SeekTimeout: envDuration("FRAME_SEEK_TIMEOUT", 3*time.Second),
		DrawBoxes:   os.Getenv("DRAW_BOXES") != "false",
	}, logger)
	if err != nil {
		logger.Warn("failed to initialize frame extractor", "error", err)
	} else {
		extractor = frameExtractor
		defer frameExtractor.Cleanup()
	}

	analysisService := analysis.NewService(
		matchService, extractor, analysisRepo, snapshotRepo, localStorage,
		analysis.Config{}, logger,
	)

	app := &api.App{
		Storage:         localStorage,
		DB:              db,
		AnalysisRepo:    analysisRepo,
		SnapshotRepo:    snapshotRepo,
		AnalysisService: analysisService,
		MaxUploadSize:   maxSize,
		Logger:          logger,
	}

	router := api.NewRouter(app)

	logger.Info("server starting",
		"port", port,
		"upload_dir", uploadDir,
		"db_type", dbConfig.Type,
		"max_upload_size", maxSize)

	if err := http.ListenAndServe(":"+port, router); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func databaseConfig() database.Config {
	dbType := os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}

	config := database.Config{Type: dbType}

	if dbType == "postgres" {
		config.Host = envDefault("DB_HOST", "localhost")

		dbPort, err := strconv.Atoi(envDefault("DB_PORT", "5432"))
		if err != nil {
			slog.Error("invalid DB_PORT", "error", err)
			os.Exit(1)
		}
		config.Port = dbPort

		config.User = envDefault("DB_USER", "facescout")
		config.Password = envDefault("DB_PASSWORD", "facescout_dev")
		config.Name = envDefault("DB_NAME", "facescout")
	} else {
		config.SQLitePath = envDefault("DB_PATH", "./facescout.db")
	}

	return config
}

func envDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
