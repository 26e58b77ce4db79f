package ocr

import (
	"context"
	"fmt"
	"image"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/nutriscan/nutriscan-engine/pkg/imaging"
)

// VisionEngine recognizes text with Google Cloud Vision. Sparse profiles use plain text
// detection; the others use document text detection. Whitelists are not supported by the API.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
	logger *zap.Logger
}

var _ Engine = (*VisionEngine)(nil)

// NewVisionEngine creates a Vision client. An empty credentialsFile uses application
// default credentials.
func NewVisionEngine(ctx context.Context, credentialsFile string, logger *zap.Logger) (*VisionEngine, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionEngine{client: client, logger: logger.Named("vision")}, nil
}

func (e *VisionEngine) Name() string { return "gcp_vision" }

// Close releases the underlying gRPC connection.
func (e *VisionEngine) Close() error {
	if e == nil || e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *VisionEngine) Recognize(ctx context.Context, img image.Image, profile Profile) (string, error) {
	content, err := imaging.EncodePNG(img)
	if err != nil {
		return "", err
	}

	req := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: content},
		Features: []*visionpb.Feature{{Type: visionFeature(profile)}},
	}
	if profile.Language != "" {
		req.ImageContext = &visionpb.ImageContext{LanguageHints: []string{profile.Language}}
	}

	resp, err := e.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return "", fmt.Errorf("failed to annotate image: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", nil
	}

	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}
	if r0.FullTextAnnotation != nil {
		return r0.FullTextAnnotation.Text, nil
	}
	if len(r0.TextAnnotations) > 0 && r0.TextAnnotations[0] != nil {
		return r0.TextAnnotations[0].Description, nil
	}
	e.logger.Debug("No text detected", zap.Int("profile", profile.Index))
	return "", nil
}

func visionFeature(profile Profile) visionpb.Feature_Type {
	if profile.Sparse() {
		return visionpb.Feature_TEXT_DETECTION
	}
	return visionpb.Feature_DOCUMENT_TEXT_DETECTION
}
