package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/migrations"
	"github.com/nutriscan/nutriscan-engine/pkg/cache"
	"github.com/nutriscan/nutriscan-engine/pkg/config"
	"github.com/nutriscan/nutriscan-engine/pkg/database"
	"github.com/nutriscan/nutriscan-engine/pkg/handlers"
	"github.com/nutriscan/nutriscan-engine/pkg/logging"
	"github.com/nutriscan/nutriscan-engine/pkg/mealoracle"
	"github.com/nutriscan/nutriscan-engine/pkg/middleware"
	"github.com/nutriscan/nutriscan-engine/pkg/ocr"
	"github.com/nutriscan/nutriscan-engine/pkg/openfoodfacts"
	"github.com/nutriscan/nutriscan-engine/pkg/reference"
	"github.com/nutriscan/nutriscan-engine/pkg/repositories"
	"github.com/nutriscan/nutriscan-engine/pkg/services"
	"github.com/nutriscan/nutriscan-engine/pkg/workerpool"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("base_url", cfg.BaseURL),
		zap.String("ocr_provider", cfg.OCR.Provider),
		zap.String("meal_oracle_provider", cfg.MealOracle.Provider),
		zap.Bool("database", cfg.Database.IsConfigured()),
		zap.Bool("redis", cfg.Redis.Host != ""))

	// Reference tables degrade individually: a missing table leaves its feature neutral.
	tables, err := reference.Load(reference.Paths{
		NutrientLimits: cfg.ReferenceData.NutrientLimits,
		Allergens:      cfg.ReferenceData.Allergens,
		Additives:      cfg.ReferenceData.Additives,
		Diseases:       cfg.ReferenceData.Diseases,
	}, logger)
	if err != nil {
		logger.Warn("Some reference data failed to load", zap.Error(err))
	}

	var checks []handlers.HealthCheck
	components := map[string]string{}

	engine, closeEngine, err := newOCREngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeEngine()
	components["ocr"] = engine.Name()

	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis, logger)
	if err != nil {
		return err
	}
	var lookupCache cache.LookupCache = cache.NoopLookupCache{}
	components["lookup_cache"] = "none"
	if redisClient != nil {
		defer redisClient.Close()
		lookupCache = cache.NewLookupCache(redisClient, cfg.Redis.CacheTTL, logger)
		components["lookup_cache"] = "redis"
		checks = append(checks, handlers.HealthCheck{Name: "redis", Check: redisCheck(redisClient)})
	}

	profiles, store, err := newProfileRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()
	components["profile_store"] = store.kind
	if store.db != nil {
		checks = append(checks, handlers.HealthCheck{Name: "database", Check: store.db.Ping})
	}

	oracle, err := newMealOracle(cfg, logger)
	if err != nil {
		return err
	}
	components["meal_oracle"] = oracle.Name()

	offClient := openfoodfacts.NewClient(cfg.ProductLookup.BaseURL, cfg.ProductLookup.UserAgent, cfg.ProductLookup.Timeout, logger)
	pool := workerpool.New(workerpool.Config{MaxConcurrent: cfg.OCR.MaxConcurrent}, logger)

	var alternatives services.AlternativesFinder
	if cfg.ProductLookup.Alternatives {
		alternatives = services.NewAlternativesFinder(offClient, logger)
	}
	grader := services.NewGradeCalculator()

	analysis := services.NewAnalysisService(services.AnalysisDeps{
		Extractor:    services.NewLabelExtractor(engine, pool, logger),
		Lookup:       services.NewProductLookup(offClient, tables.Additives, lookupCache, cfg.ProductLookup.MinBarcodeLength, logger),
		Grader:       grader,
		Risk:         services.NewHealthRiskEvaluator(tables.Limits, logger),
		Allergens:    services.NewAllergenMatcher(tables.Allergens, logger),
		Alternatives: alternatives,
		Profiles:     profiles,
	}, logger)

	planner := services.NewMealPlanner(oracle, services.NewDiseaseMatcher(tables.Diseases), logger)
	profileService := services.NewHealthProfileService(profiles, planner, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, components, checks, logger).RegisterRoutes(mux)
	handlers.NewAnalysisHandler(analysis, grader, alternatives, handlers.UploadLimits{
		MaxBytes:  cfg.MaxUploadMB << 20,
		MaxPixels: cfg.MaxImageMegapixels * 1_000_000,
	}, logger).RegisterRoutes(mux)
	handlers.NewProfileHandler(profileService, logger).RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = middleware.RequestLogger(logger.Named("http"))(handler)
	handler = middleware.Recoverer(logger)(handler)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting nutriscan-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func newOCREngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ocr.Engine, func(), error) {
	switch cfg.OCR.Provider {
	case config.OCRProviderTesseract:
		return ocr.NewTesseractEngine(cfg.OCR.ServiceURL, cfg.OCR.Timeout, logger), func() {}, nil
	case config.OCRProviderVision:
		engine, err := ocr.NewVisionEngine(ctx, cfg.OCR.CredentialsFile, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create vision engine: %w", err)
		}
		return engine, func() {
			if err := engine.Close(); err != nil {
				logger.Warn("Failed to close vision engine", zap.Error(err))
			}
		}, nil
	default:
		logger.Warn("OCR disabled; label analyses will rely on barcode data")
		return ocr.NoopEngine{}, func() {}, nil
	}
}

// profileStore remembers what backs the profile repository so it can be closed and checked.
type profileStore struct {
	kind string
	db   *database.DB
}

func (s profileStore) close() {
	if s.db != nil {
		s.db.Close()
	}
}

func newProfileRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.HealthProfileRepository, profileStore, error) {
	if !cfg.Database.IsConfigured() {
		logger.Warn("No database configured; health profiles are kept in memory")
		return repositories.NewMemoryHealthProfileRepository(), profileStore{kind: "memory"}, nil
	}

	url := cfg.Database.ConnectionString()
	logger.Info("Connecting to database", zap.String("url", logging.SanitizeConnectionString(url)))

	db, err := database.Connect(ctx, &database.Config{
		URL:            url,
		MaxConnections: cfg.Database.MaxConnections,
	}, logger)
	if err != nil {
		return nil, profileStore{}, err
	}
	if err := database.MigrateURL(ctx, url, migrations.FS, logger); err != nil {
		db.Close()
		return nil, profileStore{}, err
	}
	return repositories.NewHealthProfileRepository(db), profileStore{kind: "postgres", db: db}, nil
}

func newMealOracle(cfg *config.Config, logger *zap.Logger) (mealoracle.Oracle, error) {
	var oracle mealoracle.Oracle
	switch cfg.MealOracle.Provider {
	case config.OracleProviderClassifier:
		oracle = mealoracle.NewClassifierOracle(cfg.MealOracle.URL, cfg.MealOracle.Timeout, logger)
	case config.OracleProviderOpenAI:
		o, err := mealoracle.NewOpenAIOracle(mealoracle.OpenAIConfig{
			Endpoint: cfg.MealOracle.URL,
			Model:    cfg.MealOracle.Model,
			APIKey:   cfg.MealOracle.APIKey,
			Timeout:  cfg.MealOracle.Timeout,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create meal oracle: %w", err)
		}
		oracle = o
	default:
		return mealoracle.NoopOracle{}, nil
	}

	return mealoracle.NewGuarded(oracle, mealoracle.BreakerConfig{
		Threshold:  cfg.MealOracle.BreakerThreshold,
		ResetAfter: cfg.MealOracle.BreakerResetAfter,
	}, logger), nil
}

func redisCheck(client *redis.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
