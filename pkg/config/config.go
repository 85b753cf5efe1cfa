package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	GeminiAPIKey     string
	GeminiModel      = "gemini-2.0-flash"
	GeminiBaseURL    = "https://generativelanguage.googleapis.com/v1beta"
	AppEnv           = "staging"
	IsStaging        = true
	IsProduction     bool
	IsGeminiEnabled  bool
	GroundingEnabled = true

	JWTSecret = "dev-secret"
	Port      = "5000"

	DBDriver      = "sqlite"
	DatabaseDSN   = "app.db"
	AdminEmail    string
	AdminPassword string

	ProfilePath string
	CORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000", "http://localhost:5173", "http://127.0.0.1:5173"}

	// runtime tunables
	RateLimitWindowSeconds = 10
	RateLimitCapacity      = 5
	SessionTTLSeconds      = 3600
	SessionMaxItems        = 500
	MaxAttachmentBytes     int64 = 20 << 20
	AllowedAttachmentTypes       = []string{"application/pdf", "image/*", "text/plain"}
)

// loadAppEnv loads .env unless running in production. A missing .env is not
// fatal outside production; the process environment is used as-is.
func loadAppEnv() {
	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "production" {
		return
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] .env not loaded: %v", err)
	}
}

// Load reads configuration from the environment into the package variables.
func Load() error {
	loadAppEnv()

	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "" {
		AppEnv = "staging"
	}
	if !slices.Contains([]string{"staging", "production"}, AppEnv) {
		return fmt.Errorf("environment variable APP_ENV must be 'staging' or 'production', got %q", AppEnv)
	}
	IsStaging = AppEnv == "staging"
	IsProduction = AppEnv == "production"

	GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	GeminiModel = stringOr(os.Getenv("GEMINI_MODEL"), "gemini-2.0-flash")
	GeminiBaseURL = strings.TrimRight(stringOr(os.Getenv("GEMINI_BASE_URL"), "https://generativelanguage.googleapis.com/v1beta"), "/")
	IsGeminiEnabled = os.Getenv("IS_GEMINI_ENABLED") == "1"
	GroundingEnabled = os.Getenv("GEMINI_GROUNDING") != "0"

	JWTSecret = os.Getenv("JWT_SECRET_KEY")
	if JWTSecret == "" {
		if IsProduction {
			return errors.New("JWT_SECRET_KEY must be set in production")
		}
		JWTSecret = "dev-secret"
	}
	Port = stringOr(os.Getenv("PORT"), "5000")

	DBDriver = strings.ToLower(stringOr(os.Getenv("DB_DRIVER"), "sqlite"))
	if DBDriver != "sqlite" && DBDriver != "mysql" {
		return fmt.Errorf("DB_DRIVER must be 'sqlite' or 'mysql', got %q", DBDriver)
	}
	DatabaseDSN = stringOr(os.Getenv("DATABASE_DSN"), "app.db")
	AdminEmail = strings.TrimSpace(strings.ToLower(os.Getenv("ADMIN_EMAIL")))
	AdminPassword = os.Getenv("ADMIN_PASSWORD")

	ProfilePath = os.Getenv("PROFILE_PATH")
	if v := splitList(os.Getenv("CORS_ORIGINS")); len(v) > 0 {
		CORSOrigins = v
	}

	RateLimitWindowSeconds = atoiOr(os.Getenv("RATE_LIMIT_WINDOW_SECONDS"), 10)
	RateLimitCapacity = atoiOr(os.Getenv("RATE_LIMIT_CAPACITY"), 5)
	SessionTTLSeconds = atoiOr(os.Getenv("SESSION_TTL_SECONDS"), 3600)
	SessionMaxItems = atoiOr(os.Getenv("SESSION_MAX_ITEMS"), 500)
	MaxAttachmentBytes = int64(atoiOr(os.Getenv("MAX_ATTACHMENT_BYTES"), 20<<20))
	if v := splitList(os.Getenv("ALLOWED_ATTACHMENT_TYPES")); len(v) > 0 {
		AllowedAttachmentTypes = v
	}

	log.Printf("[config] AppEnv=%s IsStaging=%v IsProduction=%v", AppEnv, IsStaging, IsProduction)
	log.Printf("[config] IsGeminiEnabled=%v GeminiAPIKeyPresent=%v GeminiModel=%s grounding=%v",
		IsGeminiEnabled, GeminiAPIKey != "", GeminiModel, GroundingEnabled)
	log.Printf("[config] db=%s rateLimit window=%ds capacity=%d sessionTTL=%ds sessionMax=%d maxAttachment=%d",
		DBDriver, RateLimitWindowSeconds, RateLimitCapacity, SessionTTLSeconds, SessionMaxItems, MaxAttachmentBytes)
	return nil
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func stringOr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
