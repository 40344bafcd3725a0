package intent

import (
	"context"
	"log/slog"
)

// Interpreter runs the layered classification: direct tokens, vocabulary
// rules, then the AI classifier. A nil classifier (or a classifier error)
// degrades to Other so the pipeline keeps working without AI.
type Interpreter struct {
	classifier Classifier
	logger     *slog.Logger
}

// NewInterpreter builds an Interpreter. classifier may be nil.
func NewInterpreter(classifier Classifier, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		classifier: classifier,
		logger:     logger.With("component", "intent"),
	}
}

// Interpret classifies text given the conversation context.
func (i *Interpreter) Interpret(ctx context.Context, text string, cctx Context) *Result {
	if r := ClassifyDirect(text); r != nil {
		i.logger.DebugContext(ctx, "Direct token matched", "intent", r.Intent)
		return r
	}

	if r := ClassifyRules(text, cctx); r != nil {
		i.logger.DebugContext(ctx, "Vocabulary rule matched", "intent", r.Intent, "target", r.Target)
		return r
	}

	if i.classifier != nil {
		r, err := i.classifier.Classify(ctx, text, cctx)
		if err != nil {
			i.logger.WarnContext(ctx, "AI classification failed, falling back", "error", err)
			return &Result{Intent: Other}
		}
		return r
	}

	return &Result{Intent: Other}
}
