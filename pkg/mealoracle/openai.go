package mealoracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/logging"
	"github.com/nutriscan/nutriscan-engine/pkg/models"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

const systemPrompt = `You are a clinical dietitian. Recommend one breakfast, one lunch and one dinner ` +
	`for the person described. Respect the stated condition. Answer with a JSON object ` +
	`{"breakfast": "...", "lunch": "...", "dinner": "..."} and nothing else.`

// OpenAIConfig configures an OpenAI-compatible chat endpoint.
type OpenAIConfig struct {
	Endpoint string // Base URL, e.g. "https://api.openai.com/v1"
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// OpenAIOracle asks a chat model for a meal plan.
type OpenAIOracle struct {
	client   *openai.Client
	model    string
	endpoint string
	timeout  time.Duration
	logger   *zap.Logger
}

var _ Oracle = (*OpenAIOracle)(nil)

// NewOpenAIOracle creates an oracle backed by an OpenAI-compatible endpoint.
func NewOpenAIOracle(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIOracle, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &OpenAIOracle{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    cfg.Model,
		endpoint: cfg.Endpoint,
		timeout:  cfg.Timeout,
		logger:   logger.Named("meal-openai"),
	}, nil
}

func (o *OpenAIOracle) Name() string { return ProviderOpenAI }

func (o *OpenAIOracle) Recommend(ctx context.Context, query models.MealQuery) (models.MealPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(query)},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		o.logger.Error("Meal recommendation request failed",
			zap.String("endpoint", logging.SanitizeURL(o.endpoint)),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return models.MealPlan{}, fmt.Errorf("failed to request meal plan: %w", err)
	}
	if len(resp.Choices) == 0 {
		return models.MealPlan{}, fmt.Errorf("%w: no choices in response", ErrMalformedPlan)
	}

	content := resp.Choices[0].Message.Content
	obj, err := extractObject(content)
	if err != nil {
		o.logger.Warn("Meal recommendation reply is not JSON",
			zap.String("content", logging.TruncateString(content, 200)))
		return models.MealPlan{}, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}

	var plan models.MealPlan
	if err := json.Unmarshal([]byte(obj), &plan); err != nil {
		return models.MealPlan{}, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}

	o.logger.Info("Meal recommendation completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return cleanPlan(plan)
}

func userPrompt(q models.MealQuery) string {
	return fmt.Sprintf("Age: %.0f years\nWeight: %.1f kg\nHeight: %.2f m\nBMI: %.1f\nCondition: %s",
		q.Age, q.WeightKg, heightMeters(q.HeightFt), q.BMI, q.Disease)
}
