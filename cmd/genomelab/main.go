package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/xtergo/dnaresearch-sub000/internal/access"
	"github.com/xtergo/dnaresearch-sub000/internal/cache"
	"github.com/xtergo/dnaresearch-sub000/internal/compliance"
	"github.com/xtergo/dnaresearch-sub000/internal/config"
	"github.com/xtergo/dnaresearch-sub000/internal/consent"
	"github.com/xtergo/dnaresearch-sub000/internal/evidence"
	"github.com/xtergo/dnaresearch-sub000/internal/genomic"
	"github.com/xtergo/dnaresearch-sub000/internal/identity"
	"github.com/xtergo/dnaresearch-sub000/internal/ledger"
	"github.com/xtergo/dnaresearch-sub000/internal/model"
	"github.com/xtergo/dnaresearch-sub000/internal/ratelimit"
	"github.com/xtergo/dnaresearch-sub000/internal/server"
	"github.com/xtergo/dnaresearch-sub000/internal/telemetry"
	"github.com/xtergo/dnaresearch-sub000/internal/theory"
	"github.com/xtergo/dnaresearch-sub000/internal/upload"
	"github.com/xtergo/dnaresearch-sub000/internal/webhook"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("GENOMELAB_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("genomelab starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Audit ledger, optionally backed by a sqlite block archive. Archived
	// blocks are restored and re-verified before the server takes traffic.
	ledgerOpts := []ledger.Option{ledger.WithBlockThreshold(cfg.BlockThreshold)}
	var archive *ledger.SQLiteArchive
	if cfg.LedgerDBPath != "" {
		archive, err = ledger.OpenArchive(cfg.LedgerDBPath)
		if err != nil {
			return fmt.Errorf("ledger archive: %w", err)
		}
		defer func() { _ = archive.Close() }()
		ledgerOpts = append(ledgerOpts, ledger.WithArchiver(archive))
		logger.Info("ledger archive: sqlite", "path", cfg.LedgerDBPath)
	} else {
		logger.Info("ledger archive: disabled (in-memory only)")
	}
	led := ledger.New(logger, ledgerOpts...)
	if archive != nil {
		archived, err := archive.Blocks()
		if err != nil {
			return fmt.Errorf("ledger archive: load: %w", err)
		}
		if err := led.Restore(archived); err != nil {
			return fmt.Errorf("ledger archive: restore: %w", err)
		}
	}

	// Consent store with the standard research form pre-registered.
	consents := consent.NewStore(led, logger)
	if err := seedConsentForms(consents); err != nil {
		return fmt.Errorf("seed consent forms: %w", err)
	}

	accessCtl := access.NewController(consents, led, logger)
	genomics := genomic.NewStore(logger)
	accumulator := evidence.NewAccumulator(logger)
	theories := theory.NewEngine(accumulator, led, logger)

	// Webhook pipeline; partner seeding is optional so a bare deployment
	// starts without one.
	pipeline := webhook.NewPipeline(logger, webhook.WithQueueSize(cfg.WebhookQueueSize))
	if cfg.WebhookPartnerID != "" && cfg.WebhookPartnerSecret != "" {
		pipeline.RegisterPartner(model.WebhookPartner{
			PartnerID: cfg.WebhookPartnerID,
			Name:      cfg.WebhookPartnerID,
			Secret:    cfg.WebhookPartnerSecret,
			Active:    true,
			SupportedEvents: []model.EventType{
				model.EventSequencingComplete,
				model.EventQCComplete,
				model.EventAnalysisComplete,
				model.EventUploadComplete,
				model.EventErrorNotification,
			},
		})
		logger.Info("webhook partner seeded", "partner_id", cfg.WebhookPartnerID)
	}
	pipeline.Start(ctx)

	// Response cache for read-heavy catalog endpoints.
	responses := cache.New()
	defer responses.Close()

	registry := compliance.NewRegistry(logger)
	uploads := upload.NewCoordinator(cfg.UploadSecret, logger, upload.WithBaseURL(cfg.UploadBaseURL))

	// Session token manager. Empty key paths fall back to an ephemeral
	// keypair, which NewManager logs loudly.
	sessions, err := identity.NewManager(cfg.SessionPrivateKeyPath, cfg.SessionPublicKeyPath, cfg.SessionExpiration)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	limiter := ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer func() { _ = limiter.Close() }()
	logger.Info("rate limiting: memory (in-process token bucket)",
		"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)

	handlers := server.NewHandlers(server.Handlers{
		Ledger:              led,
		Consent:             consents,
		Access:              accessCtl,
		Genomic:             genomics,
		Evidence:            accumulator,
		Theories:            theories,
		Webhooks:            pipeline,
		Cache:               responses,
		Compliance:          registry,
		Uploads:             uploads,
		Logger:              logger,
		Version:             version,
		CacheTTL:            cfg.CacheTTL,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	srv := server.New(server.ServerConfig{
		Handlers:     handlers,
		Identity:     sessions,
		Limiter:      limiter,
		Logger:       logger,
		Port:         cfg.Port,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	err = g.Wait()

	// Drain the webhook consumer after HTTP stops admitting events, then seal
	// whatever the ledger still holds so the archive sees it.
	slog.Info("genomelab shutting down")
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	pipeline.Drain(drainCtx)
	drainCancel()

	if _, _, sealErr := led.ForceCommit(); sealErr != nil {
		slog.Warn("final ledger seal failed", "error", sealErr)
	}

	slog.Info("genomelab stopped")
	return err
}

// seedConsentForms registers the built-in consent forms. Forms are immutable;
// a new wording ships as a new form ID.
func seedConsentForms(store *consent.Store) error {
	forms := []model.ConsentForm{
		{
			FormID:  "genomic_research_v1",
			Version: "1.0",
			Title:   "Genomic analysis and research participation",
			Description: "Covers analysis of submitted genomic data and participation " +
				"in theory-driven research studies.",
			ConsentTypes: []model.ConsentType{
				model.ConsentGenomicAnalysis,
				model.ConsentResearchParticipation,
			},
			RequiredFields: []string{"full_name", "date_of_birth"},
			ConsentText: "I consent to the analysis of my genomic data for research " +
				"purposes and to participation in research studies conducted on this platform.",
			ValidityDays: 365,
		},
		{
			FormID:      "data_sharing_v1",
			Version:     "1.0",
			Title:       "De-identified data sharing",
			Description: "Covers sharing of de-identified data with partner institutions.",
			ConsentTypes: []model.ConsentType{
				model.ConsentDataSharing,
			},
			RequiredFields: []string{"full_name"},
			ConsentText: "I consent to the sharing of my de-identified genomic data " +
				"with approved partner research institutions.",
			ValidityDays: 365,
		},
		{
			FormID:      "long_term_storage_v1",
			Version:     "1.0",
			Title:       "Long-term sample storage",
			Description: "Covers retention of genomic data beyond the active study.",
			ConsentTypes: []model.ConsentType{
				model.ConsentLongTermStorage,
			},
			RequiredFields: []string{"full_name"},
			ConsentText:    "I consent to the long-term storage of my genomic data.",
		},
	}
	for _, f := range forms {
		if err := store.RegisterForm(f); err != nil {
			return err
		}
	}
	return nil
}
