// Package app assembles the listing engine: config, stores, backend clients,
// services, handlers and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"rentora/internal/draft"
	"rentora/internal/engine/config"
	"rentora/internal/engine/handler"
	"rentora/internal/engine/repository/photostore"
	"rentora/internal/engine/repository/snapshot"
	"rentora/internal/engine/server"
	"rentora/internal/engine/service/intake"
	"rentora/internal/engine/service/listing"
	"rentora/internal/extract"
	"rentora/internal/marketplace"
	"rentora/internal/schema"
	"rentora/internal/segment"
	"rentora/internal/telemetry"
	"rentora/internal/upload"
	"rentora/internal/wizard"
)

type App struct {
	server *server.Server
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	reg := schema.MustLoad()
	acc := draft.NewAccessor(reg)

	registry := prometheus.NewRegistry()
	tel := telemetry.NewRecorder(registry)

	store, err := newSnapshotStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}

	extractor, err := newExtractor(ctx, cfg, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	backend := newBackend(cfg)
	decider := segment.NewDecider(backend.segments)

	listings := listing.New(listing.Deps{
		Accessor: acc,
		Store:    store,
		Drafts:   backend.drafts,
		Fetcher:  backend.fetcher,
		Leads:    backend.leads,
		Decider:  decider,
		Photos:   backend.photos,
		Putter:   backend.putter,
	})
	intakeSvc := intake.New(acc, extractor, tel)

	captureHandler := handler.NewCaptureHandler(intakeSvc, listings)
	wizardHandler := handler.NewWizardHandler(listings, tel)
	uploadHandler := handler.NewUploadHandler(listings, tel)
	segmentHandler := handler.NewSegmentHandler(decider)

	mux := server.NewMux(captureHandler, wizardHandler, uploadHandler, segmentHandler, registry)
	srv := server.New(cfg.Port, mux)

	return &App{server: srv}, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func newSnapshotStore(cfg *config.Config) (*snapshot.Store, error) {
	switch cfg.Snapshot.Backend {
	case "postgres":
		log.Printf("snapshot store: postgres")
		return snapshot.NewPostgres(cfg.Snapshot.DSN)
	case "sqlite":
		log.Printf("snapshot store: sqlite path=%s", cfg.Snapshot.Path)
		return snapshot.NewSQLite(cfg.Snapshot.Path)
	default:
		log.Printf("snapshot store: file path=%s", cfg.Snapshot.Path)
		return snapshot.New(cfg.Snapshot.Path), nil
	}
}

func newExtractor(ctx context.Context, cfg *config.Config, reg *schema.Registry) (extract.Extractor, error) {
	if cfg.Extraction.Provider == "openai" {
		log.Printf("extractor: openai model=%s", cfg.Extraction.OpenAIModel)
		return extract.NewOpenAIExtractor(cfg.Extraction.OpenAIKey, cfg.Extraction.OpenAIBase, cfg.Extraction.OpenAIModel, reg)
	}
	log.Printf("extractor: gemini model=%s", cfg.Extraction.GeminiModel)
	return extract.NewGeminiExtractor(ctx, cfg.Extraction.GeminiModel, reg)
}

type backendSet struct {
	drafts   marketplace.DraftAPI
	fetcher  marketplace.DraftFetcher
	leads    marketplace.LeadAPI
	segments marketplace.SegmentAPI
	photos   marketplace.PhotoAPI
	putter   upload.BlobPutter
}

var _ wizard.SnapshotStore = (*snapshot.Store)(nil)

func newBackend(cfg *config.Config) backendSet {
	if cfg.Backend.BaseURL != "" {
		remote := marketplace.NewHTTPClient(cfg.Backend.BaseURL, cfg.Backend.Token)
		log.Printf("marketplace backend: remote base=%s", cfg.Backend.BaseURL)
		return backendSet{
			drafts:   remote,
			fetcher:  remote,
			leads:    remote,
			segments: remote,
			photos:   newPhotoAPI(cfg, remote),
			putter:   upload.HTTPBlobPutter{},
		}
	}

	local := newLocalBackend()
	log.Printf("marketplace backend: local in-process")
	set := backendSet{
		drafts:  local,
		fetcher: local,
		leads:   local,
		// Threshold-only in local mode; Decide falls back when nil.
		segments: nil,
	}
	if photos := newPhotoAPI(cfg, nil); photos != nil {
		set.photos = photos
		set.putter = upload.HTTPBlobPutter{}
	} else {
		mem := newLocalPhotoBackend()
		set.photos = mem
		set.putter = mem
	}
	return set
}

// newPhotoAPI prefers the object store when one is configured; fallback is
// the remote photo endpoints, or nil when neither exists.
func newPhotoAPI(cfg *config.Config, remote marketplace.PhotoAPI) marketplace.PhotoAPI {
	if cfg.Photo.Enabled && cfg.Photo.Endpoint != "" && cfg.Photo.AccessKey != "" {
		s3, err := photostore.NewS3Store(photostore.S3Config{
			Endpoint:  cfg.Photo.Endpoint,
			Region:    cfg.Photo.Region,
			AccessKey: cfg.Photo.AccessKey,
			SecretKey: cfg.Photo.SecretKey,
			Bucket:    cfg.Photo.Bucket,
			UseSSL:    cfg.Photo.UseSSL,
		})
		if err != nil {
			log.Printf("photo store: s3 init failed, falling back: %v", err)
		} else {
			log.Printf("photo store: s3 bucket=%s endpoint=%s", cfg.Photo.Bucket, cfg.Photo.Endpoint)
			return s3
		}
	}
	return remote
}
