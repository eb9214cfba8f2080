package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/hmallik/taskally/internal/auth"
	"github.com/hmallik/taskally/internal/service"
	"github.com/hmallik/taskally/internal/storage/sqlite"
	"github.com/hmallik/taskally/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	logging.Setup()

	port := getEnv("PORT", "8080")
	dbPath := getEnv("DB_PATH", "./data/taskally.db")
	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	tokenTTL := 24 * time.Hour
	if raw := os.Getenv("JWT_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			slog.Error("Invalid JWT_TTL", "value", raw, "error", err)
			os.Exit(1)
		}
		tokenTTL = parsed
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	provider := auth.NewPasswordProvider(store)
	jwtManager := auth.NewJWTManager(jwtSecret, tokenTTL)

	router := service.New(store, provider, jwtManager, slog.Default()).Router()

	// Wrap with h2c so HTTP/2 works without TLS behind a plain proxy.
	handler := h2c.NewHandler(router, &http2.Server{})

	addr := ":" + port
	slog.Info("Server starting", "address", addr, "url", fmt.Sprintf("http://localhost%s", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
