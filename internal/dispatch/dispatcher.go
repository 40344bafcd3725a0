package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nutrizap/nutrizap/internal/config"
	"github.com/nutrizap/nutrizap/internal/database"
	"github.com/nutrizap/nutrizap/internal/intent"
	"github.com/nutrizap/nutrizap/internal/sender"
	"github.com/nutrizap/nutrizap/internal/vision"
	"github.com/nutrizap/nutrizap/internal/webhook"
)

// Sender delivers outbound text.
type Sender interface {
	Send(ctx context.Context, recipient, text string) sender.DeliveryResult
	SendWithFallback(ctx context.Context, recipient, primary, fallback string) sender.DeliveryResult
}

// Vision classifies and analyzes inbound photos.
type Vision interface {
	DetectType(ctx context.Context, imageURL string) (vision.ImageType, float64, error)
	Analyze(ctx context.Context, imageURL string) (*vision.FoodAnalysis, error)
}

// Assistant generates free-conversation replies.
type Assistant interface {
	Respond(ctx context.Context, userName, text string) (string, error)
}

// Interpreter classifies text into intents.
type Interpreter interface {
	Interpret(ctx context.Context, text string, cctx intent.Context) *intent.Result
}

// MedicalResponder owns the medical-document follow-up conversation. done
// reports that the batch is resolved and the slot can be cleared.
type MedicalResponder interface {
	Respond(ctx context.Context, userID int64, batch *database.MedicalBatch, text string) (done bool, reply string, err error)
	// StartBatch registers a new medical image and returns the updated
	// batch reference plus the reply to send.
	StartBatch(ctx context.Context, userID int64, current *database.MedicalBatch, imageURL string) (*database.MedicalBatch, string, error)
}

// Dispatcher executes the confirmation workflow for each inbound message:
// dedup, expiry sweep, classification, transition, store effects, reply.
type Dispatcher struct {
	store       database.Store
	interpreter Interpreter
	vision      Vision
	assistant   Assistant
	medical     MedicalResponder
	sender      Sender
	messages    config.MessagesConfig
	ttl         time.Duration
	medicalTTL  time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// Options configures a Dispatcher. Medical and Assistant may be nil; the
// corresponding branches degrade to canned replies.
type Options struct {
	Store       database.Store
	Interpreter Interpreter
	Vision      Vision
	Assistant   Assistant
	Medical     MedicalResponder
	Sender      Sender
	Messages    config.MessagesConfig
	TTL         time.Duration
	MedicalTTL  time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
}

// New builds a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TTL <= 0 {
		opts.TTL = 2 * time.Hour
	}
	if opts.MedicalTTL <= 0 {
		opts.MedicalTTL = time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:       opts.Store,
		interpreter: opts.Interpreter,
		vision:      opts.Vision,
		assistant:   opts.Assistant,
		medical:     opts.Medical,
		sender:      opts.Sender,
		messages:    opts.Messages,
		ttl:         opts.TTL,
		medicalTTL:  opts.MedicalTTL,
		now:         opts.Now,
		logger:      logger.With("component", "dispatcher"),
	}
}

// HandleInbound routes one normalized inbound message. Errors are internal;
// the webhook layer has already acknowledged the provider.
func (d *Dispatcher) HandleInbound(ctx context.Context, in *webhook.Inbound) error {
	user, err := d.store.FindUserByPhone(ctx, in.Phone)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		d.logger.InfoContext(ctx, "Unknown sender, dropping message", "phone", in.Phone)
		return nil
	}

	now := d.now()

	fresh, err := d.store.RecordInbound(ctx, in.MessageID, user.ID, now)
	if err != nil {
		d.logger.WarnContext(ctx, "Dedup check failed, processing anyway", "error", err)
	} else if !fresh {
		d.logger.InfoContext(ctx, "Duplicate delivery ignored", "message_id", in.MessageID)
		return nil
	}

	d.logInbound(ctx, user.ID, in, now)

	pending, wasExpired, err := d.sweep(ctx, user.ID, now)
	if err != nil {
		return err
	}

	switch in.Kind {
	case webhook.KindImage:
		return d.handleImage(ctx, user, in, pending)
	case webhook.KindText:
		return d.handleText(ctx, user, in, pending, wasExpired)
	default:
		d.send(ctx, user.ID, in.Phone, d.messages.UnsupportedMedia)
		return nil
	}
}

// sweep reads the pending slot and clears it when expired. It runs exactly
// once per inbound message; the now-comparison, not the background purge,
// is the source of truth.
func (d *Dispatcher) sweep(ctx context.Context, userID int64, now time.Time) (*database.PendingInteraction, bool, error) {
	pending, err := d.store.GetPending(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read pending slot: %w", err)
	}
	if pending == nil {
		return nil, false, nil
	}
	if pending.Expired(now) {
		if err := d.store.ClearPending(ctx, userID); err != nil {
			d.logger.WarnContext(ctx, "Failed to clear expired pending slot", "user_id", userID, "error", err)
		}
		d.logger.InfoContext(ctx, "Expired pending interaction cleared",
			"user_id", userID, "kind", pending.Kind, "expired_at", pending.ExpiresAt)
		return nil, true, nil
	}
	return pending, false, nil
}

func (d *Dispatcher) handleText(ctx context.Context, user *database.User, in *webhook.Inbound, pending *database.PendingInteraction, wasExpired bool) error {
	// An affirmation aimed at a slot that just expired would confirm
	// nothing; stay silent rather than confuse the user.
	if wasExpired && pending == nil && intent.IsAffirmation(in.Text) {
		d.logger.InfoContext(ctx, "Suppressing reply to stale affirmation", "user_id", user.ID)
		return nil
	}

	state := StateForPending(pending)
	cctx := intent.Context{State: string(state)}
	var payload *database.PendingPayload
	if pending != nil {
		payload = &pending.Payload
		cctx.PendingFoods = pending.Payload.Foods
	}

	res := d.interpreter.Interpret(ctx, in.Text, cctx)
	decision := Decide(state, res, payload)

	d.logger.DebugContext(ctx, "Transition decided",
		"user_id", user.ID, "state", state, "intent", res.Intent, "next", decision.Next, "reply", decision.Reply)

	return d.apply(ctx, user, in, pending, decision)
}

func (d *Dispatcher) apply(ctx context.Context, user *database.User, in *webhook.Inbound, pending *database.PendingInteraction, decision Decision) error {
	now := d.now()

	if decision.ClearSlot {
		if err := d.store.ClearPending(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to clear pending slot: %w", err)
		}
	}

	if decision.SaveSlot && decision.Payload != nil {
		kind := kindForState(decision.Next)
		ttl := d.ttl
		if kind == database.PendingMedical {
			ttl = d.medicalTTL
		}
		p := &database.PendingInteraction{
			UserID:    user.ID,
			Kind:      kind,
			Payload:   *decision.Payload,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		if pending != nil {
			p.CreatedAt = pending.CreatedAt
		}
		if err := d.store.PutPending(ctx, p); err != nil {
			return fmt.Errorf("failed to save pending slot: %w", err)
		}
	}

	var dailyTotal float64
	if decision.PersistLog && decision.Payload != nil {
		mealType := decision.Payload.MealType
		if mealType == "" {
			mealType = DetectMealType(now)
		}
		entry := &database.NutritionLog{
			UserID:        user.ID,
			MealDate:      now.Format("2006-01-02"),
			MealType:      mealType,
			FoodItems:     decision.Payload.Foods,
			TotalCalories: decision.Payload.TotalCalories,
			ImageURL:      decision.Payload.ImageURL,
			Source:        "whatsapp",
		}
		if err := d.store.SaveNutritionLog(ctx, entry); err != nil {
			return fmt.Errorf("failed to save nutrition log: %w", err)
		}
		total, err := d.store.GetDailyCalories(ctx, user.ID, entry.MealDate)
		if err != nil {
			d.logger.WarnContext(ctx, "Failed to read daily total", "error", err)
			total = entry.TotalCalories
		}
		dailyTotal = total
	}

	reply := d.renderReply(ctx, user, in, pending, decision, dailyTotal)
	if reply != "" {
		d.send(ctx, user.ID, in.Phone, reply)
	}
	return nil
}

func (d *Dispatcher) renderReply(ctx context.Context, user *database.User, in *webhook.Inbound, pending *database.PendingInteraction, decision Decision, dailyTotal float64) string {
	switch decision.Reply {
	case ReplySaved:
		mealType := ""
		var mealCalories float64
		if decision.Payload != nil {
			mealType = decision.Payload.MealType
			mealCalories = decision.Payload.TotalCalories
		}
		if mealType == "" {
			mealType = DetectMealType(d.now())
		}
		return renderSaved(mealType, mealCalories, dailyTotal)

	case ReplyCancelled:
		return renderCancelled()

	case ReplyCleared:
		return renderCleared()

	case ReplyEditPrompt:
		return renderEditPrompt(decision.Payload)

	case ReplyConfirmationPrompt:
		return renderConfirmationPrompt(decision.Payload)

	case ReplyEditHelp:
		return renderEditHelp()

	case ReplyNudge:
		return d.messages.NoPendingNudge

	case ReplyFallback:
		text := d.assistantReply(ctx, user, in.Text)
		if decision.Remind && decision.Payload != nil && len(decision.Payload.Foods) > 0 {
			text += renderReminder(decision.Payload.Foods)
		}
		return text

	case ReplyMedical:
		return d.medicalReply(ctx, user, pending, in.Text)

	default:
		return ""
	}
}

func (d *Dispatcher) assistantReply(ctx context.Context, user *database.User, text string) string {
	if d.assistant == nil {
		return d.messages.AssistantFallback
	}
	reply, err := d.assistant.Respond(ctx, user.FullName, text)
	if err != nil {
		d.logger.WarnContext(ctx, "Assistant reply failed, using canned fallback", "error", err)
		return d.messages.AssistantFallback
	}
	return reply
}

func (d *Dispatcher) medicalReply(ctx context.Context, user *database.User, pending *database.PendingInteraction, text string) string {
	if pending == nil || pending.Payload.Medical == nil || d.medical == nil {
		return d.messages.AssistantFallback
	}
	batch := pending.Payload.Medical
	if batch.Status == "processing" {
		// Still analyzing; the slot stays so the result can land.
		return d.messages.MedicalProcessing
	}

	done, reply, err := d.medical.Respond(ctx, user.ID, batch, text)
	if err != nil {
		d.logger.ErrorContext(ctx, "Medical responder failed", "error", err)
		return d.messages.AssistantFallback
	}
	if done {
		if err := d.store.ClearPending(ctx, user.ID); err != nil {
			d.logger.WarnContext(ctx, "Failed to clear resolved medical slot", "error", err)
		}
	}
	return reply
}

func (d *Dispatcher) handleImage(ctx context.Context, user *database.User, in *webhook.Inbound, pending *database.PendingInteraction) error {
	if in.ImageURL == "" {
		d.send(ctx, user.ID, in.Phone, d.messages.AnalysisError)
		return nil
	}

	imageType, confidence, err := d.vision.DetectType(ctx, in.ImageURL)
	if err != nil {
		d.logger.WarnContext(ctx, "Image type detection failed, assuming food", "error", err)
		imageType = vision.ImageFood
	}
	d.logger.InfoContext(ctx, "Image classified",
		"user_id", user.ID, "type", imageType, "confidence", confidence)

	// An open medical batch claims otherwise-unrecognized images.
	if imageType == vision.ImageMedical ||
		(imageType == vision.ImageOther && pending != nil && pending.Kind == database.PendingMedical) {
		return d.handleMedicalImage(ctx, user, in, pending)
	}
	if imageType == vision.ImageOther {
		d.send(ctx, user.ID, in.Phone, d.messages.UnsupportedMedia)
		return nil
	}

	return d.handleFoodImage(ctx, user, in)
}

func (d *Dispatcher) handleFoodImage(ctx context.Context, user *database.User, in *webhook.Inbound) error {
	analysis, err := d.vision.Analyze(ctx, in.ImageURL)
	if err != nil {
		d.logger.ErrorContext(ctx, "Food analysis failed", "user_id", user.ID, "error", err)
		d.send(ctx, user.ID, in.Phone, d.messages.AnalysisError)
		return nil
	}
	if len(analysis.Foods) == 0 {
		d.send(ctx, user.ID, in.Phone, d.messages.NoFoodsDetected)
		return nil
	}

	now := d.now()
	mealType := analysis.MealType
	if mealType == "" {
		mealType = DetectMealType(now)
	}

	payload := database.PendingPayload{
		Foods:         analysis.Foods,
		TotalCalories: analysis.TotalCalories,
		ImageURL:      in.ImageURL,
		MealType:      mealType,
	}
	p := &database.PendingInteraction{
		UserID:    user.ID,
		Kind:      database.PendingConfirmation,
		Payload:   payload,
		CreatedAt: now,
		ExpiresAt: now.Add(d.ttl),
	}
	if err := d.store.PutPending(ctx, p); err != nil {
		return fmt.Errorf("failed to save pending confirmation: %w", err)
	}

	d.sendWithFallback(ctx, user.ID, in.Phone,
		renderConfirmationPrompt(&payload),
		"Recebi sua foto! Responda *1* para confirmar, *2* para cancelar ou *3* para editar.")
	return nil
}

func (d *Dispatcher) handleMedicalImage(ctx context.Context, user *database.User, in *webhook.Inbound, pending *database.PendingInteraction) error {
	if d.medical == nil {
		d.send(ctx, user.ID, in.Phone, d.messages.UnsupportedMedia)
		return nil
	}

	var current *database.MedicalBatch
	if pending != nil && pending.Kind == database.PendingMedical {
		current = pending.Payload.Medical
	}

	batch, reply, err := d.medical.StartBatch(ctx, user.ID, current, in.ImageURL)
	if err != nil {
		d.logger.ErrorContext(ctx, "Medical batch registration failed", "error", err)
		d.send(ctx, user.ID, in.Phone, d.messages.AnalysisError)
		return nil
	}

	now := d.now()
	p := &database.PendingInteraction{
		UserID:    user.ID,
		Kind:      database.PendingMedical,
		Payload:   database.PendingPayload{Medical: batch},
		CreatedAt: now,
		ExpiresAt: now.Add(d.medicalTTL),
	}
	if err := d.store.PutPending(ctx, p); err != nil {
		return fmt.Errorf("failed to save medical slot: %w", err)
	}

	if reply != "" {
		d.send(ctx, user.ID, in.Phone, reply)
	}
	return nil
}

// send delivers a reply and best-effort logs the outcome.
func (d *Dispatcher) send(ctx context.Context, userID int64, phone, text string) {
	d.deliver(ctx, userID, text, d.sender.Send(ctx, phone, text))
}

// sendWithFallback delivers a long formatted prompt with a plain short
// version retried once after the primary exhausts its attempts.
func (d *Dispatcher) sendWithFallback(ctx context.Context, userID int64, phone, primary, fallback string) {
	d.deliver(ctx, userID, primary, d.sender.SendWithFallback(ctx, phone, primary, fallback))
}

func (d *Dispatcher) deliver(ctx context.Context, userID int64, text string, result sender.DeliveryResult) {
	if !result.Success {
		d.logger.ErrorContext(ctx, "Failed to deliver reply",
			"user_id", userID, "attempts", result.Attempts, "error", result.Err)
	}

	if err := d.store.LogMessage(ctx, &database.MessageLog{
		UserID:            userID,
		Direction:         "outbound",
		Content:           text,
		ProviderMessageID: result.MessageID,
		Attempts:          result.Attempts,
		Success:           result.Success,
		SentAt:            d.now(),
	}); err != nil {
		d.logger.WarnContext(ctx, "Failed to log outbound message", "error", err)
	}
}

func (d *Dispatcher) logInbound(ctx context.Context, userID int64, in *webhook.Inbound, now time.Time) {
	content := in.Text
	if in.Kind == webhook.KindImage {
		content = "[imagem] " + in.Caption
	}
	if err := d.store.LogMessage(ctx, &database.MessageLog{
		UserID:            userID,
		Direction:         "inbound",
		Content:           content,
		ProviderMessageID: in.MessageID,
		Success:           true,
		SentAt:            now,
	}); err != nil {
		d.logger.WarnContext(ctx, "Failed to log inbound message", "error", err)
	}
}

func kindForState(s State) database.PendingKind {
	switch s {
	case AwaitingEdit:
		return database.PendingEdit
	case AwaitingMedical:
		return database.PendingMedical
	default:
		return database.PendingConfirmation
	}
}
