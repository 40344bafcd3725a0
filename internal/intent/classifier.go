package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/nutrizap/nutrizap/internal/config"
	"github.com/nutrizap/nutrizap/internal/database"
)

// Classifier resolves text the vocabulary rules could not settle.
type Classifier interface {
	Classify(ctx context.Context, text string, cctx Context) (*Result, error)
}

const classifierSystemInstruction = `Você é um classificador de intenções para um assistente de nutrição no WhatsApp.
O usuário pode estar confirmando, cancelando ou editando um registro alimentar pendente.
Classifique a mensagem do usuário em exatamente uma das intenções e extraia os detalhes
do alimento quando a intenção envolver adicionar, remover ou substituir um item.
Use somente os nomes dos alimentos pendentes fornecidos ao remover ou substituir.`

var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent": {
			Type:        genai.TypeString,
			Description: "One of: confirm, cancel, edit, clear_pending, add_food, remove_food, replace_food, edit_done, greeting, question, other.",
		},
		"target_food": {
			Type:        genai.TypeString,
			Description: "Name of the pending food being removed or replaced. Empty otherwise.",
		},
		"new_food_name": {
			Type:        genai.TypeString,
			Description: "Name of the food being added or substituted in. Empty otherwise.",
		},
		"new_food_grams": {
			Type:        genai.TypeNumber,
			Description: "Quantity in grams for the new food, 0 if not stated.",
		},
	},
	Required: []string{"intent", "target_food", "new_food_name", "new_food_grams"},
}

type geminiClassifier struct {
	genaiClient      *genai.Client
	log              *slog.Logger
	contentConfig    *genai.GenerateContentConfig
	defaultModelName string
	maxRetries       int
	retryDelay       time.Duration
}

// NewGeminiClassifier creates the AI classification layer backed by the
// Gemini API.
func NewGeminiClassifier(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Classifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	contentCfg := &genai.GenerateContentConfig{
		Temperature:       &cfg.Temperature,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: classifierSystemInstruction}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    intentSchema,
	}

	logger := log.With("component", "intent_classifier")
	logger.Info("Intent classifier initialized", "model", cfg.ModelName)
	return &geminiClassifier{
		genaiClient:      gi,
		log:              logger,
		contentConfig:    contentCfg,
		defaultModelName: cfg.ModelName,
		maxRetries:       cfg.MaxRetries,
		retryDelay:       time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

func (c *geminiClassifier) Classify(ctx context.Context, text string, cctx Context) (*Result, error) {
	var sb strings.Builder
	sb.WriteString("Estado da conversa: " + cctx.State + "\n")
	if len(cctx.PendingFoods) > 0 {
		sb.WriteString("Alimentos pendentes:\n")
		for _, f := range cctx.PendingFoods {
			fmt.Fprintf(&sb, "- %s (%.0fg, %.0f kcal)\n", f.Name, f.Grams, f.Calories)
		}
	}
	sb.WriteString("\nMensagem do usuário: " + text)

	contents := []*genai.Content{genai.NewContentFromText(sb.String(), genai.RoleUser)}

	resp, err := c.generateContentWithRetries(ctx, contents)
	if err != nil {
		return nil, fmt.Errorf("intent classification failed: %w", err)
	}

	jsonText := resp.Text()
	if jsonText == "" {
		return nil, fmt.Errorf("intent classification returned empty response")
	}

	var decoded struct {
		Intent       string  `json:"intent"`
		TargetFood   string  `json:"target_food"`
		NewFoodName  string  `json:"new_food_name"`
		NewFoodGrams float64 `json:"new_food_grams"`
	}
	if err := json.Unmarshal([]byte(jsonText), &decoded); err != nil {
		c.log.ErrorContext(ctx, "Failed to parse classifier JSON response", "error", err, "response_text", jsonText)
		return nil, fmt.Errorf("invalid classifier JSON received: %w", err)
	}

	result := &Result{Intent: parseIntent(decoded.Intent), Target: decoded.TargetFood}
	if decoded.NewFoodName != "" {
		result.NewFood = &database.FoodItem{Name: decoded.NewFoodName, Grams: decoded.NewFoodGrams}
	}

	c.log.DebugContext(ctx, "Classified message", "intent", result.Intent, "target", result.Target)
	return result, nil
}

func (c *geminiClassifier) generateContentWithRetries(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.defaultModelName, contents, c.contentConfig)
		if err == nil {
			return resp, nil
		}

		c.log.WarnContext(ctx, "Gemini API call failed, checking for retry",
			"attempt", i+1, "max_retries", c.maxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < c.maxRetries {
				c.log.InfoContext(ctx, "Retrying Gemini API call", "delay", c.retryDelay, "code", apiErr.Code)
				time.Sleep(c.retryDelay)
				continue
			}
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", c.maxRetries, apiErr.Code, err)
		}

		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return nil, err
}

func parseIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case Confirm, Cancel, EditRequest, ClearPending, AddFood, RemoveFood, ReplaceFood, EditDone, Greeting, Question:
		return Intent(strings.ToLower(strings.TrimSpace(s)))
	default:
		return Other
	}
}
