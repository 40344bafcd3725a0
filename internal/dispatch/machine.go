// Package dispatch routes normalized inbound messages through the
// per-user confirmation workflow: a pending slot, an intent, and a pure
// transition function deciding the next slot value, store effects, and
// the reply to render.
package dispatch

import (
	"strings"

	"github.com/nutrizap/nutrizap/internal/database"
	"github.com/nutrizap/nutrizap/internal/intent"
)

// State is the conversation state derived from the pending slot.
type State string

const (
	Idle                 State = "idle"
	AwaitingConfirmation State = "awaiting_confirmation"
	AwaitingEdit         State = "awaiting_edit"
	AwaitingMedical      State = "awaiting_medical"
)

// Reply names the message the executor renders after a transition.
type Reply string

const (
	ReplyNone               Reply = ""
	ReplySaved              Reply = "saved"
	ReplyCancelled          Reply = "cancelled"
	ReplyCleared            Reply = "cleared"
	ReplyEditPrompt         Reply = "edit_prompt"
	ReplyConfirmationPrompt Reply = "confirmation_prompt"
	ReplyEditHelp           Reply = "edit_help"
	ReplyFallback           Reply = "fallback"
	ReplyNudge              Reply = "nudge"
	ReplyMedical            Reply = "medical"
)

// Decision is the outcome of one transition: the next state, the slot and
// log effects to apply, and the reply to render. Payload is the (possibly
// mutated) slot payload to persist when SaveSlot is set.
type Decision struct {
	Next       State
	SaveSlot   bool
	ClearSlot  bool
	PersistLog bool
	Payload    *database.PendingPayload
	Reply      Reply
	// Remind appends the pending-item reminder block to a fallback reply.
	Remind bool
}

// StateForPending maps a pending slot to a conversation state.
func StateForPending(p *database.PendingInteraction) State {
	if p == nil {
		return Idle
	}
	switch p.Kind {
	case database.PendingConfirmation:
		return AwaitingConfirmation
	case database.PendingEdit:
		return AwaitingEdit
	case database.PendingMedical:
		return AwaitingMedical
	default:
		return Idle
	}
}

// Decide computes the transition for a classified text intent. payload is
// the current slot payload, nil when state is Idle. Medical delegation is
// signalled with ReplyMedical and resolved by the executor.
func Decide(state State, res *intent.Result, payload *database.PendingPayload) Decision {
	switch state {
	case AwaitingConfirmation:
		return decideConfirmation(res, payload)
	case AwaitingEdit:
		return decideEdit(res, payload)
	case AwaitingMedical:
		return Decision{Next: AwaitingMedical, Payload: payload, Reply: ReplyMedical}
	default:
		return decideIdle(res)
	}
}

func decideIdle(res *intent.Result) Decision {
	switch res.Intent {
	case intent.Confirm, intent.Cancel, intent.EditRequest, intent.ClearPending, intent.EditDone:
		// Quick-reply token with nothing pending gets the friendly nudge.
		return Decision{Next: Idle, Reply: ReplyNudge}
	default:
		return Decision{Next: Idle, Reply: ReplyFallback}
	}
}

func decideConfirmation(res *intent.Result, payload *database.PendingPayload) Decision {
	switch res.Intent {
	case intent.Confirm:
		return Decision{Next: Idle, ClearSlot: true, PersistLog: true, Payload: payload, Reply: ReplySaved}

	case intent.Cancel:
		return Decision{Next: Idle, ClearSlot: true, Reply: ReplyCancelled}

	case intent.ClearPending:
		return Decision{Next: Idle, ClearSlot: true, Reply: ReplyCleared}

	case intent.EditRequest:
		return Decision{Next: AwaitingEdit, SaveSlot: true, Payload: payload, Reply: ReplyEditPrompt}

	case intent.AddFood, intent.RemoveFood, intent.ReplaceFood:
		return applyMutation(AwaitingConfirmation, res, payload)

	case intent.EditDone:
		// Nothing being edited; re-show the prompt so the user can pick.
		return Decision{Next: AwaitingConfirmation, Payload: payload, Reply: ReplyConfirmationPrompt}

	default:
		return Decision{Next: AwaitingConfirmation, Payload: payload, Reply: ReplyFallback, Remind: true}
	}
}

func decideEdit(res *intent.Result, payload *database.PendingPayload) Decision {
	switch res.Intent {
	case intent.AddFood, intent.RemoveFood, intent.ReplaceFood:
		return applyMutation(AwaitingConfirmation, res, payload)

	case intent.EditDone, intent.Confirm:
		return Decision{Next: AwaitingConfirmation, SaveSlot: true, Payload: payload, Reply: ReplyConfirmationPrompt}

	case intent.Cancel:
		return Decision{Next: Idle, ClearSlot: true, Reply: ReplyCancelled}

	case intent.ClearPending:
		return Decision{Next: Idle, ClearSlot: true, Reply: ReplyCleared}

	default:
		return Decision{Next: AwaitingEdit, Payload: payload, Reply: ReplyEditHelp}
	}
}

// applyMutation edits the food list and returns to confirmation with a
// refreshed slot. Removing the last food discards the interaction.
func applyMutation(next State, res *intent.Result, payload *database.PendingPayload) Decision {
	if payload == nil {
		payload = &database.PendingPayload{}
	}
	mutated := *payload
	mutated.Foods = append([]database.FoodItem(nil), payload.Foods...)

	switch res.Intent {
	case intent.AddFood:
		if res.NewFood != nil {
			mutated.Foods = append(mutated.Foods, *res.NewFood)
		}
	case intent.RemoveFood:
		mutated.Foods = removeFood(mutated.Foods, res.Target)
	case intent.ReplaceFood:
		if res.NewFood != nil {
			mutated.Foods = replaceFood(mutated.Foods, res.Target, *res.NewFood)
		}
	}

	if len(mutated.Foods) == 0 {
		return Decision{Next: Idle, ClearSlot: true, Reply: ReplyCleared}
	}

	mutated.TotalCalories = sumCalories(mutated.Foods)
	return Decision{Next: next, SaveSlot: true, Payload: &mutated, Reply: ReplyConfirmationPrompt}
}

func removeFood(foods []database.FoodItem, target string) []database.FoodItem {
	target = strings.ToLower(target)
	out := foods[:0]
	for _, f := range foods {
		if strings.ToLower(f.Name) != target {
			out = append(out, f)
		}
	}
	return out
}

func replaceFood(foods []database.FoodItem, target string, replacement database.FoodItem) []database.FoodItem {
	target = strings.ToLower(target)
	for i, f := range foods {
		if strings.ToLower(f.Name) == target {
			foods[i] = replacement
			return foods
		}
	}
	return append(foods, replacement)
}

func sumCalories(foods []database.FoodItem) float64 {
	var total float64
	for _, f := range foods {
		total += f.Calories
	}
	return total
}
