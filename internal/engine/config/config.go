package config

import (
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	Env        string
	Backend    BackendConfig
	Snapshot   SnapshotConfig
	Extraction ExtractionConfig
	Photo      PhotoConfig
}

// BackendConfig points at the remote marketplace API. In local mode the
// engine substitutes in-process implementations where it can.
type BackendConfig struct {
	BaseURL string
	Token   string
}

// SnapshotConfig selects the wizard snapshot backend: "file", "sqlite" or
// "postgres".
type SnapshotConfig struct {
	Backend string
	Path    string
	DSN     string
}

// ExtractionConfig selects the extraction provider: "gemini" or "openai".
type ExtractionConfig struct {
	Provider    string
	GeminiModel string
	OpenAIKey   string
	OpenAIBase  string
	OpenAIModel string
}

type PhotoConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8082", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port: *port,
		Env:  env,
		Backend: BackendConfig{
			BaseURL: strings.TrimSpace(os.Getenv("MARKETPLACE_BASE_URL")),
			Token:   strings.TrimSpace(os.Getenv("MARKETPLACE_TOKEN")),
		},
		Snapshot:   loadSnapshotConfig(env),
		Extraction: loadExtractionConfig(),
		Photo:      loadPhotoConfig(env),
	}, nil
}

func loadSnapshotConfig(env string) SnapshotConfig {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("SNAPSHOT_BACKEND")))
	dsn := strings.TrimSpace(os.Getenv("SNAPSHOT_PG_DSN"))
	if backend == "" {
		switch {
		case dsn != "":
			backend = "postgres"
		case strings.EqualFold(env, "local"):
			backend = "file"
		default:
			backend = "sqlite"
		}
	}
	return SnapshotConfig{
		Backend: backend,
		Path:    firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_PATH")), "tmp/wizard_snapshots"),
		DSN:     dsn,
	}
}

func loadExtractionConfig() ExtractionConfig {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("EXTRACTION_PROVIDER")))
	if provider == "" {
		if strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) != "" && strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) == "" {
			provider = "openai"
		} else {
			provider = "gemini"
		}
	}
	return ExtractionConfig{
		Provider:    provider,
		GeminiModel: firstNonEmpty(strings.TrimSpace(os.Getenv("EXTRACTION_GEMINI_MODEL")), "gemini-2.0-flash"),
		OpenAIKey:   strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBase:  strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		OpenAIModel: strings.TrimSpace(os.Getenv("EXTRACTION_OPENAI_MODEL")),
	}
}

func loadPhotoConfig(env string) PhotoConfig {
	endpoint := resolvePhotoEndpoint(env)
	return PhotoConfig{
		Enabled:   strings.EqualFold(strings.TrimSpace(env), "local") || endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("PHOTO_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("PHOTO_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("PHOTO_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("PHOTO_S3_BUCKET")), "rentora-listing-photos"),
		UseSSL:    resolvePhotoUseSSL(env),
	}
}

func resolvePhotoEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("PHOTO_MINIO_ENDPOINT")), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv("PHOTO_S3_ENDPOINT"))
}

func resolvePhotoUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("PHOTO_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	return strings.EqualFold(raw, "true") || raw == "1"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
