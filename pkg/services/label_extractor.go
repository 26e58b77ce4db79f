package services

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/imaging"
	"github.com/nutriscan/nutriscan-engine/pkg/logging"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
	"github.com/nutriscan/nutriscan-engine/pkg/ocr"
	"github.com/nutriscan/nutriscan-engine/pkg/workerpool"
)

// LabelExtractor reads nutrient amounts from a photo of a nutrition label.
type LabelExtractor interface {
	// Extract tries every pre-processing variant with every recognition profile and
	// keeps the highest non-zero value per nutrient. Recognition failures yield an
	// empty record, never an error.
	Extract(ctx context.Context, img image.Image) models.NutrientRecord

	// ExtractWithProfile runs every variant with a single recognition profile.
	// Returns apperrors.ErrInvalidProfileIndex for an out-of-range index.
	ExtractWithProfile(ctx context.Context, img image.Image, profileIndex int) (models.NutrientRecord, error)
}

type labelExtractor struct {
	engine ocr.Engine
	pool   *workerpool.Pool
	logger *zap.Logger
}

var _ LabelExtractor = (*labelExtractor)(nil)

// NewLabelExtractor creates a LabelExtractor backed by engine. Attempts run on pool.
func NewLabelExtractor(engine ocr.Engine, pool *workerpool.Pool, logger *zap.Logger) LabelExtractor {
	return &labelExtractor{
		engine: engine,
		pool:   pool,
		logger: logger.Named("label-extractor"),
	}
}

func (s *labelExtractor) Extract(ctx context.Context, img image.Image) models.NutrientRecord {
	return s.run(ctx, img, ocr.Profiles)
}

func (s *labelExtractor) ExtractWithProfile(ctx context.Context, img image.Image, profileIndex int) (models.NutrientRecord, error) {
	profile, err := ocr.ProfileAt(profileIndex)
	if err != nil {
		return models.NewNutrientRecord(), err
	}
	return s.run(ctx, img, []ocr.Profile{profile}), nil
}

func (s *labelExtractor) run(ctx context.Context, img image.Image, profiles []ocr.Profile) models.NutrientRecord {
	if img == nil || img.Bounds().Empty() {
		return models.NewNutrientRecord()
	}

	variants := imaging.Variants(img)
	items := make([]workerpool.WorkItem[models.NutrientRecord], 0, len(variants)*len(profiles))
	for _, v := range variants {
		for _, p := range profiles {
			items = append(items, workerpool.WorkItem[models.NutrientRecord]{
				ID: fmt.Sprintf("%s/profile-%d", v.Name, p.Index),
				Execute: func(ctx context.Context) (models.NutrientRecord, error) {
					text, err := s.engine.Recognize(ctx, v.Image, p)
					if err != nil {
						return models.NutrientRecord{}, err
					}
					s.logger.Debug("Recognized label text",
						zap.String("variant", v.Name),
						zap.Int("profile", p.Index),
						zap.String("text", logging.SanitizeLabelText(text)))
					return ParseNutritionText(text), nil
				},
			})
		}
	}

	results := workerpool.Process(ctx, s.pool, items, nil)

	records := make([]models.NutrientRecord, 0, len(results))
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		records = append(records, r.Result)
	}

	merged := MergeMax(records...)
	s.logger.Info("Label extraction finished",
		zap.String("engine", s.engine.Name()),
		zap.Int("attempts", len(items)),
		zap.Int("failed", failed),
		zap.Int("nutrients", merged.Len()))
	return merged
}
