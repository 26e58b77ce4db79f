package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/repositories"
)

// AnalysisService runs the full pipeline for one product: read the label and look up the
// barcode, reconcile the two, then grade, classify processing, evaluate health risk against
// the user's profile and match allergens.
type AnalysisService interface {
	// AnalyzeBarcode analyzes a product from the product database alone. Returns
	// apperrors.ErrNotFound when the lookup yields no data.
	AnalyzeBarcode(ctx context.Context, barcode string, userID uuid.UUID) (*models.ProductAnalysis, error)

	// AnalyzeLabel reads a nutrition label photo and, when barcode is set, fills the gaps
	// from the product database. profileIndex selects a single recognition profile; nil
	// tries all of them. Lookup and recognition failures never fail the analysis.
	AnalyzeLabel(ctx context.Context, img image.Image, barcode string, userID uuid.UUID, profileIndex *int) (*models.ProductAnalysis, error)

	// AnalyzeManual analyzes nutrient values typed in by the user.
	AnalyzeManual(ctx context.Context, form map[string]string, userID uuid.UUID) (*models.ProductAnalysis, error)
}

// AnalysisDeps groups the collaborators of AnalysisService.
type AnalysisDeps struct {
	Extractor    LabelExtractor
	Lookup       ProductLookup
	Reconciler   NutrientReconciler
	Grader       GradeCalculator
	Risk         HealthRiskEvaluator
	Reviewer     SafetyReviewer
	Allergens    AllergenMatcher
	Alternatives AlternativesFinder // optional
	Profiles     repositories.HealthProfileRepository
}

type analysisService struct {
	deps   AnalysisDeps
	now    func() time.Time
	logger *zap.Logger
}

var _ AnalysisService = (*analysisService)(nil)

// NewAnalysisService creates an AnalysisService. Extractor and Lookup are required; the
// other scoring collaborators fall back to their defaults.
func NewAnalysisService(deps AnalysisDeps, logger *zap.Logger) AnalysisService {
	if deps.Reconciler == nil {
		deps.Reconciler = NewNutrientReconciler()
	}
	if deps.Grader == nil {
		deps.Grader = NewGradeCalculator()
	}
	if deps.Reviewer == nil {
		deps.Reviewer = NewSafetyReviewer()
	}
	if deps.Risk == nil {
		deps.Risk = NewHealthRiskEvaluator(nil, logger)
	}
	return &analysisService{
		deps:   deps,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Named("analysis"),
	}
}

func (s *analysisService) AnalyzeBarcode(ctx context.Context, barcode string, userID uuid.UUID) (*models.ProductAnalysis, error) {
	var (
		lookup  models.LookupResult
		profile *models.HealthProfile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lookup = s.deps.Lookup.Lookup(gctx, barcode)
		return nil
	})
	g.Go(func() error {
		profile = s.loadProfile(gctx, userID)
		return nil
	})
	_ = g.Wait()

	if !lookup.Found() {
		s.logger.Info("No product data for barcode",
			zap.String("barcode", barcode),
			zap.String("status", string(lookup.Status)))
		return nil, fmt.Errorf("%w: product %s (%s)", apperrors.ErrNotFound, barcode, lookup.Status)
	}

	record := s.deps.Reconciler.Merge(models.NewNutrientRecord(), lookup.Record)
	meta := s.deps.Reconciler.MergeMetadata(models.NewProductMetadata(barcode), lookup.Metadata)

	analysis := s.evaluate(models.SourceBarcode, record, meta, profile)
	analysis.LookupStatus = lookup.Status
	if s.deps.Alternatives != nil {
		analysis.Alternatives = s.deps.Alternatives.Find(ctx, barcode, analysis.Grade.Grade)
	}
	return analysis, nil
}

func (s *analysisService) AnalyzeLabel(
	ctx context.Context,
	img image.Image,
	barcode string,
	userID uuid.UUID,
	profileIndex *int,
) (*models.ProductAnalysis, error) {
	var (
		ocrRecord models.NutrientRecord
		lookup    models.LookupResult
		profile   *models.HealthProfile
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if profileIndex == nil {
			ocrRecord = s.deps.Extractor.Extract(gctx, img)
			return nil
		}
		rec, err := s.deps.Extractor.ExtractWithProfile(gctx, img, *profileIndex)
		if err != nil {
			return err
		}
		ocrRecord = rec
		return nil
	})
	g.Go(func() error {
		if barcode == "" {
			lookup = models.LookupFailed(models.LookupNotFound, nil)
			return nil
		}
		lookup = s.deps.Lookup.Lookup(gctx, barcode)
		return nil
	})
	g.Go(func() error {
		profile = s.loadProfile(gctx, userID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !lookup.Found() && barcode != "" {
		s.logger.Info("Continuing with label data only",
			zap.String("barcode", barcode),
			zap.String("status", string(lookup.Status)))
	}

	// a failed lookup carries an empty record, so the label values pass through unchanged
	record := s.deps.Reconciler.Merge(ocrRecord, lookup.Record)
	meta := models.NewProductMetadata(barcode)
	if lookup.Found() {
		meta = s.deps.Reconciler.MergeMetadata(meta, lookup.Metadata)
	}

	analysis := s.evaluate(models.SourceLabel, record, meta, profile)
	analysis.OCRProfile = profileIndex
	if barcode != "" {
		analysis.LookupStatus = lookup.Status
	}
	return analysis, nil
}

func (s *analysisService) AnalyzeManual(ctx context.Context, form map[string]string, userID uuid.UUID) (*models.ProductAnalysis, error) {
	entered, err := models.ParseManualEntry(form)
	if err != nil {
		return nil, err
	}

	profile := s.loadProfile(ctx, userID)
	record := s.deps.Reconciler.Merge(entered, models.NewNutrientRecord())
	meta := models.NewProductMetadata("")
	meta.Name = "Manual entry"

	return s.evaluate(models.SourceManual, record, meta, profile), nil
}

// evaluate scores a reconciled record. Grading and risk evaluation are independent and run
// side by side; allergen matching needs only the metadata.
func (s *analysisService) evaluate(
	source string,
	record models.NutrientRecord,
	meta models.ProductMetadata,
	profile *models.HealthProfile,
) *models.ProductAnalysis {
	analysis := &models.ProductAnalysis{
		ID:                uuid.New(),
		Source:            source,
		Nutrients:         record,
		Product:           meta,
		ProcessingLevel:   meta.ProcessingLevel(),
		ProcessingMarkers: meta.ProcessingMarkers(),
		Alternatives:      []models.Alternative{},
		CreatedAt:         s.now(),
	}

	var g errgroup.Group
	g.Go(func() error {
		analysis.Grade = s.deps.Grader.Breakdown(record)
		analysis.Nova = s.deps.Grader.NovaScore(meta.NovaGroup)
		return nil
	})
	g.Go(func() error {
		analysis.Risk = s.deps.Risk.Evaluate(record, profile)
		analysis.Review = s.deps.Reviewer.Summarize(analysis.Risk, profile)
		return nil
	})
	g.Go(func() error {
		analysis.Allergens = s.matchAllergens(meta)
		return nil
	})
	_ = g.Wait()

	s.logger.Debug("Analyzed product",
		zap.String("source", source),
		zap.String("barcode", meta.Barcode),
		zap.String("grade", string(analysis.Grade.Grade)),
		zap.Int("exceeded", len(analysis.Risk.ExceededLimits)),
		zap.Int("allergens", len(analysis.Allergens)),
		zap.Bool("personalized", analysis.Risk.Personalized))

	return analysis
}

func (s *analysisService) matchAllergens(meta models.ProductMetadata) []models.AllergenMatch {
	if s.deps.Allergens == nil {
		return []models.AllergenMatch{}
	}
	if meta.IngredientsText != "" {
		return s.deps.Allergens.MatchText(meta.IngredientsText)
	}
	return s.deps.Allergens.Match(meta.AllergenTags)
}

// loadProfile returns nil for anonymous requests and whenever the store has no usable
// profile; evaluation then stays neutral.
func (s *analysisService) loadProfile(ctx context.Context, userID uuid.UUID) *models.HealthProfile {
	if userID == uuid.Nil || s.deps.Profiles == nil {
		return nil
	}
	profile, err := s.deps.Profiles.Get(ctx, userID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		return nil
	case err != nil:
		s.logger.Warn("Failed to load health profile",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return nil
	}
	return profile
}
