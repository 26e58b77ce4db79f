// Package openfoodfacts provides a client for the Open Food Facts product database.
package openfoodfacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/apperrors"
	"github.com/nutriscan/nutriscan-engine/pkg/jsonutil"
	"github.com/nutriscan/nutriscan-engine/pkg/logging"
)

const (
	// DefaultBaseURL is the public Open Food Facts instance.
	DefaultBaseURL = "https://world.openfoodfacts.org"

	// DefaultTimeout is the maximum time to wait for a product response.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies this service, as requested by the Open Food Facts API terms.
	DefaultUserAgent = "nutriscan-engine/1.0"
)

// ErrMalformedResponse is returned when the response body is not a valid product document.
var ErrMalformedResponse = errors.New("malformed product response")

// Product is the subset of an Open Food Facts product document used by the engine.
// Fields that the database sends with inconsistent types are kept raw.
type Product struct {
	Code                    string                     `json:"code"`
	ProductName             string                     `json:"product_name"`
	Brands                  string                     `json:"brands"`
	ImageURL                string                     `json:"image_url"`
	Categories              string                     `json:"categories"`
	CategoriesTags          []string                   `json:"categories_tags"`
	CategoriesHierarchy     []string                   `json:"categories_hierarchy"`
	NovaGroup               json.RawMessage            `json:"nova_group"`
	NutritionGrades         string                     `json:"nutrition_grades"`
	AdditivesTags           []string                   `json:"additives_tags"`
	AdditivesOriginalTags   []string                   `json:"additives_original_tags"`
	AdditivesOldTags        []string                   `json:"additives_old_tags"`
	AllergensTags           []string                   `json:"allergens_tags"`
	TracesTags              []string                   `json:"traces_tags"`
	IngredientsText         string                     `json:"ingredients_text"`
	IngredientsAnalysisTags []string                   `json:"ingredients_analysis_tags"`
	IngredientsFromPalmOilN json.RawMessage            `json:"ingredients_from_palm_oil_n"`
	Vegan                   json.RawMessage            `json:"vegan"`
	ServingSize             string                     `json:"serving_size"`
	Nutriments              map[string]json.RawMessage `json:"nutriments"`
}

// Nutriment returns a numeric nutriment value, accepting numbers and numeric strings.
func (p *Product) Nutriment(name string) (float64, bool) {
	if p == nil || p.Nutriments == nil {
		return 0, false
	}
	return jsonutil.FlexibleFloatValue(p.Nutriments[name])
}

// Client provides access to the Open Food Facts API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Open Food Facts client. Empty values fall back to defaults.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.Named("openfoodfacts"),
	}
}

// GetProduct fetches a product by barcode.
// Returns apperrors.ErrNotFound when the database does not know the barcode and
// ErrMalformedResponse when the body cannot be parsed. Other errors are transport failures.
func (c *Client) GetProduct(ctx context.Context, barcode string) (*Product, error) {
	endpoint := fmt.Sprintf("%s/api/v0/product/%s.json", c.baseURL, url.PathEscape(barcode))

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, apperrors.ErrNotFound
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("open food facts returned status %d", status)
	}

	var response struct {
		Status  json.RawMessage `json:"status"`
		Product *Product        `json:"product"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if code, ok := jsonutil.FlexibleIntValue(response.Status); !ok || code != 1 || response.Product == nil {
		return nil, apperrors.ErrNotFound
	}
	if response.Product.Code == "" {
		response.Product.Code = barcode
	}

	c.logger.Debug("Fetched product",
		zap.String("barcode", barcode),
		zap.String("name", response.Product.ProductName))

	return response.Product, nil
}

// SearchQuery selects products by category and grade.
type SearchQuery struct {
	Category string
	Grades   []string
	PageSize int
}

// Search returns products in a category carrying one of the requested grades,
// most scanned first.
func (c *Client) Search(ctx context.Context, query SearchQuery) ([]Product, error) {
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	params := url.Values{}
	params.Set("action", "process")
	params.Set("tagtype_0", "categories")
	params.Set("tag_contains_0", "contains")
	params.Set("tag_0", query.Category)
	if len(query.Grades) > 0 {
		params.Set("tagtype_1", "nutrition_grades")
		params.Set("tag_contains_1", "contains")
		for _, g := range query.Grades {
			params.Add("tag_1", g)
		}
	}
	params.Set("sort_by", "unique_scans_n")
	params.Set("page_size", strconv.Itoa(pageSize))
	params.Set("json", "1")

	endpoint := c.baseURL + "/cgi/search.pl?" + params.Encode()

	body, status, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("open food facts search returned status %d", status)
	}

	var response struct {
		Products []Product `json:"products"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	c.logger.Debug("Searched products",
		zap.String("category", query.Category),
		zap.Int("results", len(response.Products)))

	return response.Products, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to call open food facts: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("open food facts returned error",
			zap.String("url", logging.SanitizeURL(endpoint)),
			zap.Int("status", resp.StatusCode))
	}
	return body, resp.StatusCode, nil
}
