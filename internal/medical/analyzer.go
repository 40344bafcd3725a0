package medical

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPAnalyzer calls the exam analysis HTTP service.
type HTTPAnalyzer struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPAnalyzer builds an analyzer against the recognition service base URL.
func NewHTTPAnalyzer(baseURL string, timeout time.Duration) *HTTPAnalyzer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPAnalyzer{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// AnalyzeExams runs the batch analysis and returns the formatted report.
func (a *HTTPAnalyzer) AnalyzeExams(ctx context.Context, userID int64, batchID string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"userId":  userID,
		"batchId": batchID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/analyze-exams", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("exam analysis service returned status %d: %s", resp.StatusCode, snippet)
	}

	var decoded struct {
		Report string `json:"report"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.Report == "" {
		return "", fmt.Errorf("exam analysis returned empty report")
	}
	return decoded.Report, nil
}
