package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutriscan/nutriscan-engine/pkg/imaging"
)

// DefaultTimeout bounds a single recognition call.
const DefaultTimeout = 30 * time.Second

// tesseractOptions is the options document accepted by tesseract-server.
type tesseractOptions struct {
	Languages              []string          `json:"languages,omitempty"`
	DPI                    int               `json:"dpi,omitempty"`
	PageSegmentationMethod int               `json:"pageSegmentationMethod"`
	OCREngineMode          int               `json:"ocrEngineMode"`
	TessConfig             map[string]string `json:"tessConfig,omitempty"`
}

type tesseractResponse struct {
	Data struct {
		Stdout string `json:"stdout"`
		Stderr string `json:"stderr"`
		Exit   struct {
			Code int `json:"code"`
		} `json:"exit"`
	} `json:"data"`
}

// TesseractEngine sends images to a tesseract-server instance over HTTP.
type TesseractEngine struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Engine = (*TesseractEngine)(nil)

// NewTesseractEngine creates an engine for the service at baseURL.
func NewTesseractEngine(baseURL string, timeout time.Duration, logger *zap.Logger) *TesseractEngine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TesseractEngine{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("tesseract"),
	}
}

func (e *TesseractEngine) Name() string { return "tesseract" }

func (e *TesseractEngine) Recognize(ctx context.Context, img image.Image, profile Profile) (string, error) {
	png, err := imaging.EncodePNG(img)
	if err != nil {
		return "", err
	}

	body, contentType, err := buildTesseractForm(png, profile)
	if err != nil {
		return "", fmt.Errorf("failed to build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/tesseract", body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call tesseract service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("tesseract service returned error",
			zap.Int("status", resp.StatusCode),
			zap.Int("profile", profile.Index))
		return "", fmt.Errorf("tesseract service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed tesseractResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Data.Exit.Code != 0 {
		return "", fmt.Errorf("tesseract exited with code %d: %s", parsed.Data.Exit.Code, parsed.Data.Stderr)
	}

	return parsed.Data.Stdout, nil
}

func buildTesseractForm(png []byte, profile Profile) (io.Reader, string, error) {
	opts := tesseractOptions{
		DPI:                    profile.DPI,
		PageSegmentationMethod: profile.PageSegMode,
		OCREngineMode:          profile.EngineMode,
	}
	if profile.Language != "" {
		opts.Languages = []string{profile.Language}
	}
	if profile.Whitelist != "" {
		opts.TessConfig = map[string]string{"tessedit_char_whitelist": profile.Whitelist}
	}
	optsJSON, err := json.Marshal(opts)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("options", string(optsJSON)); err != nil {
		return nil, "", err
	}
	part, err := w.CreateFormFile("file", "label.png")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(png); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
