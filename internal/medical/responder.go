// Package medical owns the medical-document follow-up conversation: exam
// photos accumulate into a batch, the user triggers the analysis, and the
// Dr. Vital persona delivers the result.
package medical

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nutrizap/nutrizap/internal/database"
)

// Batch statuses.
const (
	StatusCollecting      = "collecting"
	StatusAwaitingConfirm = "awaiting_confirm"
	StatusProcessing      = "processing"
)

const signature = "_Dr. Vital 🩺_"

// Analyzer runs the exam analysis for a batch of images.
type Analyzer interface {
	AnalyzeExams(ctx context.Context, userID int64, batchID string) (string, error)
}

// Responder implements the follow-up conversation over a medical batch.
type Responder struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// New builds a Responder. analyzer may be nil; analysis requests then get
// a try-later reply.
func New(analyzer Analyzer, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		analyzer: analyzer,
		logger:   logger.With("component", "medical"),
	}
}

// StartBatch registers one exam image, creating or extending the batch.
func (r *Responder) StartBatch(ctx context.Context, userID int64, current *database.MedicalBatch, imageURL string) (*database.MedicalBatch, string, error) {
	if current == nil || current.Status == StatusProcessing {
		batch := &database.MedicalBatch{
			BatchID:     uuid.NewString(),
			Status:      StatusCollecting,
			ImagesCount: 1,
		}
		r.logger.InfoContext(ctx, "Medical batch started",
			"user_id", userID, "batch_id", batch.BatchID)
		reply := "🩺 *Recebi a foto do seu exame!*\n\n" +
			"📸 Continue enviando mais fotos se tiver.\n" +
			"Quando terminar, diga *pronto* para eu analisar.\n\n" + signature
		return batch, reply, nil
	}

	updated := *current
	updated.ImagesCount++
	updated.Status = StatusCollecting
	r.logger.InfoContext(ctx, "Medical batch extended",
		"user_id", userID, "batch_id", updated.BatchID, "images", updated.ImagesCount)

	reply := fmt.Sprintf("🩺 *Foto %d recebida!*\n\nQuando terminar de enviar, diga *pronto* para eu analisar.\n\n%s",
		updated.ImagesCount, signature)
	return &updated, reply, nil
}

// Respond handles a text message while a batch is open. done reports the
// batch is resolved and the pending slot can be cleared.
func (r *Responder) Respond(ctx context.Context, userID int64, batch *database.MedicalBatch, text string) (bool, string, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	lower = strings.TrimRight(lower, ".,!?")

	switch {
	case isCancel(lower):
		r.logger.InfoContext(ctx, "Medical batch cancelled",
			"user_id", userID, "batch_id", batch.BatchID)
		return true, "❌ *Análise cancelada.*\n\nSeus exames foram descartados. Envie novas fotos quando quiser.\n\n" + signature, nil

	case isReady(lower):
		if r.analyzer == nil {
			return true, "Não consegui analisar seus exames agora. Tente novamente mais tarde.\n\n" + signature, nil
		}
		result, err := r.analyzer.AnalyzeExams(ctx, userID, batch.BatchID)
		if err != nil {
			r.logger.ErrorContext(ctx, "Exam analysis failed",
				"user_id", userID, "batch_id", batch.BatchID, "error", err)
			return true, "Não consegui analisar seu exame.\n\nTente enviar fotos mais claras.\n\n" + signature, nil
		}
		return true, result, nil

	case isAddMore(lower):
		batch.Status = StatusCollecting
		return false, "📸 Certo, aguardo as próximas fotos!\n\n" + signature, nil

	default:
		word := "fotos"
		if batch.ImagesCount == 1 {
			word = "foto"
		}
		reply := fmt.Sprintf("📋 Ainda tenho %d %s do seu exame aguardando análise.\n\n"+
			"Diga *pronto* para analisar ou *cancelar* para descartar.\n\n%s",
			batch.ImagesCount, word, signature)
		return false, reply, nil
	}
}

func isReady(s string) bool {
	switch s {
	case "pronto", "pronta", "1", "sim", "s", "ok", "pode", "pode analisar", "analisa", "analisar":
		return true
	}
	return false
}

func isCancel(s string) bool {
	switch s {
	case "cancelar", "cancela", "2", "não", "nao", "n", "descartar":
		return true
	}
	return false
}

func isAddMore(s string) bool {
	switch s {
	case "mais", "tenho mais", "mais fotos", "espera", "aguarda", "calma":
		return true
	}
	return false
}
