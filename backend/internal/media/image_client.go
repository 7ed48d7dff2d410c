package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"atlas-of-us/backend/internal/constants"
	apperrors "atlas-of-us/backend/pkg/errors"
	"atlas-of-us/backend/pkg/logger"

	"go.uber.org/zap"
)

// ImageClient calls a text-to-image endpoint that answers with raw PNG bytes
type ImageClient struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// ImageRequest is the body posted to the image endpoint
type ImageRequest struct {
	Prompt            string `json:"prompt"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	NumInferenceSteps int    `json:"num_inference_steps"`
}

// NewImageClient creates a new image generation client
func NewImageClient(endpoint string) *ImageClient {
	return &ImageClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.Get(),
	}
}

// Generate renders prompt at the default avatar size
func (c *ImageClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	jsonData, err := json.Marshal(ImageRequest{
		Prompt:            prompt,
		Width:             constants.AvatarImageSize,
		Height:            constants.AvatarImageSize,
		NumInferenceSteps: constants.AvatarInferenceSteps,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewMediaFailed("image generation", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, apperrors.NewMediaFailed("image generation",
			fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewMediaFailed("image generation", fmt.Errorf("failed to read image: %w", err))
	}
	if len(image) == 0 {
		return nil, apperrors.NewMediaFailed("image generation", fmt.Errorf("empty image body"))
	}

	c.logger.Info("Image generated",
		zap.Int("bytes", len(image)),
		zap.Duration("duration", time.Since(start)),
	)
	return image, nil
}
