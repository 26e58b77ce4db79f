package mealoracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/logging"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// DefaultTimeout bounds a single recommendation call.
const DefaultTimeout = 15 * time.Second

// ClassifierOracle calls the meal classifier service. The service takes the user's
// numeric features and an encoded disease label and predicts one meal per slot.
type ClassifierOracle struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Oracle = (*ClassifierOracle)(nil)

// NewClassifierOracle creates a client for the classifier service at baseURL.
func NewClassifierOracle(baseURL string, timeout time.Duration, logger *zap.Logger) *ClassifierOracle {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ClassifierOracle{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("meal-classifier"),
	}
}

func (c *ClassifierOracle) Name() string { return ProviderClassifier }

type predictRequest struct {
	Age      float64 `json:"age"`
	WeightKg float64 `json:"weight_kg"`
	HeightM  float64 `json:"height_m"`
	BMI      float64 `json:"bmi"`
	Disease  string  `json:"disease"`
}

// Recommend posts the query to {baseURL}/predict.
func (c *ClassifierOracle) Recommend(ctx context.Context, query models.MealQuery) (models.MealPlan, error) {
	payload, err := json.Marshal(predictRequest{
		Age:      query.Age,
		WeightKg: query.WeightKg,
		HeightM:  heightMeters(query.HeightFt),
		BMI:      query.BMI,
		Disease:  query.Disease,
	})
	if err != nil {
		return models.MealPlan{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return models.MealPlan{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.MealPlan{}, fmt.Errorf("failed to call meal classifier: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.MealPlan{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Meal classifier returned error",
			zap.String("url", logging.SanitizeURL(endpoint)),
			zap.Int("status", resp.StatusCode),
			zap.String("body", logging.TruncateString(string(body), 200)))
		return models.MealPlan{}, fmt.Errorf("meal classifier returned status %d", resp.StatusCode)
	}

	var plan models.MealPlan
	if err := json.Unmarshal(body, &plan); err != nil {
		return models.MealPlan{}, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}

	plan, err = cleanPlan(plan)
	if err != nil {
		return models.MealPlan{}, err
	}

	c.logger.Debug("Meal classifier prediction",
		zap.String("disease", query.Disease),
		zap.String("breakfast", plan.Breakfast))
	return plan, nil
}
