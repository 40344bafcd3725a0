package database

import (
	"time"
)

// User represents a registered user reachable through the chat channel.
// The phone column stores the digits-only channel identity.
type User struct {
	ID        int64     `db:"id"`
	Phone     string    `db:"phone"`
	FullName  string    `db:"full_name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PendingKind identifies what kind of reply a pending interaction is waiting for.
type PendingKind string

const (
	PendingConfirmation PendingKind = "confirmation"
	PendingEdit         PendingKind = "edit"
	PendingMedical      PendingKind = "medical"
)

// FoodItem is a single detected food with its estimated portion and calories.
type FoodItem struct {
	Name     string  `json:"name"`
	Grams    float64 `json:"grams"`
	Calories float64 `json:"kcal"`
}

// MedicalBatch references a medical-document batch awaiting the user's follow-up.
type MedicalBatch struct {
	BatchID     string `json:"batch_id"`
	Status      string `json:"status"`
	ImagesCount int    `json:"images_count"`
}

// PendingPayload carries the kind-specific data of a pending interaction.
// Foods is set for confirmation/edit kinds, Medical for the medical kind.
type PendingPayload struct {
	Foods         []FoodItem    `json:"foods,omitempty"`
	TotalCalories float64       `json:"total_calories,omitempty"`
	ImageURL      string        `json:"image_url,omitempty"`
	MealType      string        `json:"meal_type,omitempty"`
	Medical       *MedicalBatch `json:"medical,omitempty"`
}

// PendingInteraction is the single outstanding conversational state for a user.
// At most one row exists per user; a new interaction replaces the previous one.
type PendingInteraction struct {
	UserID    int64          `db:"user_id"`
	Kind      PendingKind    `db:"kind"`
	Payload   PendingPayload `db:"-"`
	CreatedAt time.Time      `db:"created_at"`
	ExpiresAt time.Time      `db:"expires_at"`
}

// Expired reports whether the interaction's TTL window has passed at now.
// Consumers must treat an expired interaction as absent regardless of
// whether the row has been deleted yet.
func (p *PendingInteraction) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// NutritionLog is a confirmed meal record.
type NutritionLog struct {
	ID            int64      `db:"id"`
	UserID        int64      `db:"user_id"`
	MealDate      string     `db:"meal_date"`
	MealType      string     `db:"meal_type"`
	FoodItems     []FoodItem `db:"-"`
	TotalCalories float64    `db:"total_calories"`
	ImageURL      string     `db:"image_url"`
	Source        string     `db:"source"`
	CreatedAt     time.Time  `db:"created_at"`
}

// MessageLog records one inbound or outbound message for auditing and
// the "first message today" heuristic.
type MessageLog struct {
	ID                int64     `db:"id"`
	UserID            int64     `db:"user_id"`
	Direction         string    `db:"direction"`
	Content           string    `db:"content"`
	ProviderMessageID string    `db:"provider_message_id"`
	Attempts          int       `db:"attempts"`
	Success           bool      `db:"success"`
	SentAt            time.Time `db:"sent_at"`
}
