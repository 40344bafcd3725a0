// Package vision talks to the image recognition service: classifying
// inbound photos and extracting foods with calorie estimates from meal
// pictures.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nutrizap/nutrizap/internal/config"
	"github.com/nutrizap/nutrizap/internal/database"
)

// ImageType classifies an inbound photo.
type ImageType string

const (
	ImageFood    ImageType = "FOOD"
	ImageMedical ImageType = "MEDICAL"
	ImageOther   ImageType = "OTHER"
)

// FoodAnalysis is the recognition result for a meal photo.
type FoodAnalysis struct {
	Foods         []database.FoodItem
	TotalCalories float64
	MealType      string
}

// Client calls the recognition service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a vision client from config.
func NewClient(cfg config.VisionConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "vision"),
	}
}

// DetectType classifies the image at url and returns the type with the
// service's confidence score. Unknown responses map to ImageOther.
func (c *Client) DetectType(ctx context.Context, imageURL string) (ImageType, float64, error) {
	var out struct {
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.post(ctx, "/detect-image-type", map[string]string{"imageUrl": imageURL}, &out); err != nil {
		return ImageOther, 0, fmt.Errorf("image type detection failed: %w", err)
	}

	switch ImageType(out.Type) {
	case ImageFood, ImageMedical:
		return ImageType(out.Type), out.Confidence, nil
	default:
		return ImageOther, out.Confidence, nil
	}
}

// Analyze extracts foods and calorie estimates from a meal photo.
func (c *Client) Analyze(ctx context.Context, imageURL string) (*FoodAnalysis, error) {
	var out struct {
		Foods []struct {
			Name     string  `json:"name"`
			Grams    float64 `json:"grams"`
			Calories float64 `json:"kcal"`
		} `json:"foods"`
		TotalCalories float64 `json:"total_kcal"`
		MealType      string  `json:"meal_type"`
	}
	if err := c.post(ctx, "/analyze-food", map[string]string{"imageUrl": imageURL}, &out); err != nil {
		return nil, fmt.Errorf("food analysis failed: %w", err)
	}

	analysis := &FoodAnalysis{
		TotalCalories: out.TotalCalories,
		MealType:      out.MealType,
	}
	for _, f := range out.Foods {
		analysis.Foods = append(analysis.Foods, database.FoodItem{
			Name:     f.Name,
			Grams:    f.Grams,
			Calories: f.Calories,
		})
	}

	if analysis.TotalCalories == 0 {
		for _, f := range analysis.Foods {
			analysis.TotalCalories += f.Calories
		}
	}

	c.logger.DebugContext(ctx, "Food analysis complete",
		"foods", len(analysis.Foods), "total_kcal", analysis.TotalCalories)
	return analysis, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("recognition service returned status %d: %s", resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
