// Package intent classifies inbound user text into conversational intents.
// Classification is layered: exact quick-reply tokens first, then
// vocabulary rules aware of the pending food list, then an AI classifier
// for anything the rules cannot settle.
package intent

import "github.com/nutrizap/nutrizap/internal/database"

// Intent is a recognized conversational intent.
type Intent string

const (
	Confirm      Intent = "confirm"
	Cancel       Intent = "cancel"
	EditRequest  Intent = "edit"
	ClearPending Intent = "clear_pending"
	AddFood      Intent = "add_food"
	RemoveFood   Intent = "remove_food"
	ReplaceFood  Intent = "replace_food"
	EditDone     Intent = "edit_done"
	Greeting     Intent = "greeting"
	Question     Intent = "question"
	Other        Intent = "other"
)

// Result is a classified intent with any extracted food details.
type Result struct {
	Intent Intent
	// NewFood is set for AddFood and ReplaceFood.
	NewFood *database.FoodItem
	// Target names the existing food affected by RemoveFood or ReplaceFood.
	Target string
}

// Context carries the conversation state the classifier needs: which slot
// is waiting and which foods the pending analysis detected.
type Context struct {
	State        string
	PendingFoods []database.FoodItem
}

// Conversation states passed to the classifier.
const (
	StateIdle         = "idle"
	StateConfirmation = "awaiting_confirmation"
	StateEdit         = "awaiting_edit"
	StateMedical      = "awaiting_medical"
)
