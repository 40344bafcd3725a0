package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nutrizap/nutrizap/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(config.VisionConfig{BaseURL: srv.URL, Timeout: time.Second}, nil)
}

func TestDetectType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     ImageType
	}{
		{name: "food", response: `{"type":"FOOD","confidence":0.93}`, want: ImageFood},
		{name: "medical", response: `{"type":"MEDICAL","confidence":0.88}`, want: ImageMedical},
		{name: "unknown maps to other", response: `{"type":"SELFIE","confidence":0.7}`, want: ImageOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/detect-image-type" {
					t.Errorf("path = %q", r.URL.Path)
				}
				_, _ = w.Write([]byte(tt.response))
			})

			got, _, err := c.DetectType(context.Background(), "https://cdn.example.com/img.jpg")
			if err != nil {
				t.Fatalf("DetectType returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyze(t *testing.T) {
	t.Parallel()

	var gotBody map[string]string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{
			"foods": [
				{"name": "Arroz", "grams": 150, "kcal": 190},
				{"name": "Feijão", "grams": 100, "kcal": 95}
			],
			"total_kcal": 285,
			"meal_type": "almoco"
		}`))
	})

	analysis, err := c.Analyze(context.Background(), "https://cdn.example.com/prato.jpg")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if len(analysis.Foods) != 2 {
		t.Fatalf("Foods = %d, want 2", len(analysis.Foods))
	}
	if analysis.Foods[0].Name != "Arroz" || analysis.Foods[0].Calories != 190 {
		t.Errorf("first food = %+v", analysis.Foods[0])
	}
	if analysis.TotalCalories != 285 {
		t.Errorf("TotalCalories = %v, want 285", analysis.TotalCalories)
	}
	if gotBody["imageUrl"] != "https://cdn.example.com/prato.jpg" {
		t.Errorf("request imageUrl = %q", gotBody["imageUrl"])
	}
}

func TestAnalyzeSumsMissingTotal(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"foods": [
				{"name": "Banana", "grams": 90, "kcal": 80},
				{"name": "Aveia", "grams": 40, "kcal": 150}
			]
		}`))
	})

	analysis, err := c.Analyze(context.Background(), "https://cdn.example.com/lanche.jpg")
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if analysis.TotalCalories != 230 {
		t.Errorf("TotalCalories = %v, want summed 230", analysis.TotalCalories)
	}
}

func TestAnalyzeServiceError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := c.Analyze(context.Background(), "https://cdn.example.com/x.jpg"); err == nil {
		t.Fatal("Analyze succeeded on service error")
	}
}
