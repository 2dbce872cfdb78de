package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/alexbrdn/wingmate-api/pkg/api"
	"github.com/alexbrdn/wingmate-api/pkg/auth"
	"github.com/alexbrdn/wingmate-api/pkg/repository/accounts"
	"github.com/alexbrdn/wingmate-api/pkg/service/generate"
)

const defaultJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

func main() {
	// Not an error when absent: production environments set real env vars.
	_ = godotenv.Load()

	log := newLogger()

	// A missing provider key fails provider calls, not startup.
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set; generation requests will fail")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "5801"
	}

	store, err := newStore(log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open accounts store")
	}
	defer store.Close()

	service := generate.NewService(generate.NewOpenAIProvider(apiKey), store, log)

	verifier := newVerifier(log)

	opts := []api.Option{}
	if adminToken := os.Getenv("ADMIN_TOKEN"); adminToken != "" {
		opts = append(opts, api.WithAdminToken(adminToken))
	}
	if raw := os.Getenv("STARTING_TOKEN_BALANCE"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatal().Str("value", raw).Msg("STARTING_TOKEN_BALANCE must be an integer")
		}
		opts = append(opts, api.WithStartingBalance(n))
	}

	handler := api.NewHandler(service, store, verifier, log, opts...)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("port", port).Msg("server starting")
	if err := server.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func newLogger() zerolog.Logger {
	if os.Getenv("ENVIRONMENT") == "production" {
		return zerolog.New(os.Stdout).With().Timestamp().Str("service", "wingmate-api").Logger()
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().Level(zerolog.DebugLevel)
}

func newStore(log zerolog.Logger) (accounts.Store, error) {
	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		log.Warn().Msg("DATABASE_PATH is not set; using in-memory accounts store")
		return accounts.NewMemoryStore(), nil
	}

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "./migrations"
	}

	return accounts.NewSQLiteStore(accounts.Config{
		DatabasePath:   dbPath,
		MigrationsPath: migrationsPath,
	})
}

func newVerifier(log zerolog.Logger) auth.Verifier {
	if devUser := os.Getenv("DEV_USER_ID"); devUser != "" {
		log.Warn().Str("user_id", devUser).Msg("using static dev credential verifier")
		return auth.StaticVerifier{
			os.Getenv("DEV_BEARER_TOKEN"): {UserID: devUser, Email: os.Getenv("DEV_USER_EMAIL")},
		}
	}

	jwksURL := os.Getenv("JWKS_URL")
	if jwksURL == "" {
		jwksURL = defaultJWKSURL
	}
	return auth.NewJWKSVerifier(jwksURL)
}
