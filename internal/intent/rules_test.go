package intent

import (
	"context"
	"testing"

	"github.com/nutrizap/nutrizap/internal/database"
)

func TestClassifyDirect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want Intent
	}{
		{name: "numbered confirm", text: "1", want: Confirm},
		{name: "sim", text: "sim", want: Confirm},
		{name: "sim with punctuation", text: "Sim!", want: Confirm},
		{name: "single letter s", text: "s", want: Confirm},
		{name: "ok uppercase", text: "OK", want: Confirm},
		{name: "confirmo", text: "confirmo", want: Confirm},
		{name: "numbered cancel", text: "2", want: Cancel},
		{name: "nao without accent", text: "nao", want: Cancel},
		{name: "não with accent", text: "não", want: Cancel},
		{name: "numbered edit", text: "3", want: EditRequest},
		{name: "corrigir", text: "corrigir", want: EditRequest},
		{name: "numbered clear", text: "4", want: ClearPending},
		{name: "descartar", text: "descartar", want: ClearPending},
		{name: "pronto done", text: "pronto", want: EditDone},
		{name: "greeting", text: "bom dia", want: Greeting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := ClassifyDirect(tt.text)
			if r == nil {
				t.Fatalf("ClassifyDirect(%q) = nil, want %s", tt.text, tt.want)
			}
			if r.Intent != tt.want {
				t.Errorf("ClassifyDirect(%q) = %s, want %s", tt.text, r.Intent, tt.want)
			}
		})
	}
}

func TestClassifyDirectUnmatched(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"comi arroz hoje", "quantas calorias tem banana", ""} {
		if r := ClassifyDirect(text); r != nil {
			t.Errorf("ClassifyDirect(%q) = %v, want nil", text, r)
		}
	}
}

func TestClassifyRulesRemoveDependsOnPendingFoods(t *testing.T) {
	t.Parallel()

	withRice := Context{
		State: StateConfirmation,
		PendingFoods: []database.FoodItem{
			{Name: "Arroz", Grams: 150, Calories: 190},
			{Name: "Feijão", Grams: 100, Calories: 95},
		},
	}
	withoutRice := Context{
		State: StateConfirmation,
		PendingFoods: []database.FoodItem{
			{Name: "Salada", Grams: 80, Calories: 20},
		},
	}

	r := ClassifyRules("tira o arroz", withRice)
	if r == nil || r.Intent != RemoveFood {
		t.Fatalf("with rice pending: got %v, want remove_food", r)
	}
	if r.Target != "Arroz" {
		t.Errorf("Target = %q, want canonical pending name", r.Target)
	}

	if r := ClassifyRules("tira o arroz", withoutRice); r != nil {
		t.Errorf("without rice pending: got %v, want nil fallthrough", r)
	}
}

func TestClassifyRulesAddFood(t *testing.T) {
	t.Parallel()

	cctx := Context{State: StateConfirmation}

	r := ClassifyRules("adiciona 100g de arroz", cctx)
	if r == nil || r.Intent != AddFood {
		t.Fatalf("got %v, want add_food", r)
	}
	if r.NewFood == nil || r.NewFood.Name != "arroz" {
		t.Errorf("NewFood = %+v, want name arroz", r.NewFood)
	}
	if r.NewFood.Grams != 100 {
		t.Errorf("Grams = %v, want 100", r.NewFood.Grams)
	}
}

func TestClassifyRulesReplaceFood(t *testing.T) {
	t.Parallel()

	cctx := Context{
		State:        StateConfirmation,
		PendingFoods: []database.FoodItem{{Name: "frango", Grams: 120, Calories: 200}},
	}

	r := ClassifyRules("troca o frango por peixe", cctx)
	if r == nil || r.Intent != ReplaceFood {
		t.Fatalf("got %v, want replace_food", r)
	}
	if r.Target != "frango" {
		t.Errorf("Target = %q, want frango", r.Target)
	}
	if r.NewFood == nil || r.NewFood.Name != "peixe" {
		t.Errorf("NewFood = %+v, want peixe", r.NewFood)
	}
}

func TestClassifyRulesQuestion(t *testing.T) {
	t.Parallel()

	r := ClassifyRules("quantas calorias já comi hoje?", Context{State: StateIdle})
	if r == nil || r.Intent != Question {
		t.Fatalf("got %v, want question", r)
	}
}

func TestIsAffirmation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{"sim", true},
		{"1", true},
		{"OK", true},
		{"não", false},
		{"comi arroz", false},
	}

	for _, tt := range tests {
		if got := IsAffirmation(tt.text); got != tt.want {
			t.Errorf("IsAffirmation(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

type stubClassifier struct {
	result *Result
	err    error
	called bool
}

func (s *stubClassifier) Classify(_ context.Context, _ string, _ Context) (*Result, error) {
	s.called = true
	return s.result, s.err
}

func TestInterpretLayerOrder(t *testing.T) {
	t.Parallel()

	stub := &stubClassifier{result: &Result{Intent: Question}}
	interp := NewInterpreter(stub, nil)

	// A direct token never reaches the AI layer.
	r := interp.Interpret(context.Background(), "sim", Context{State: StateConfirmation})
	if r.Intent != Confirm {
		t.Errorf("Interpret(sim) = %s, want confirm", r.Intent)
	}
	if stub.called {
		t.Error("classifier called for a direct token")
	}

	// Free text falls through to the AI layer.
	r = interp.Interpret(context.Background(), "me conta mais sobre isso", Context{State: StateIdle})
	if !stub.called {
		t.Fatal("classifier not called for free text")
	}
	if r.Intent != Question {
		t.Errorf("Interpret = %s, want classifier result", r.Intent)
	}
}

func TestInterpretClassifierFailureFallsBack(t *testing.T) {
	t.Parallel()

	stub := &stubClassifier{err: context.DeadlineExceeded}
	interp := NewInterpreter(stub, nil)

	r := interp.Interpret(context.Background(), "texto livre qualquer", Context{State: StateIdle})
	if r.Intent != Other {
		t.Errorf("Interpret = %s, want other on classifier failure", r.Intent)
	}
}

func TestInterpretNilClassifier(t *testing.T) {
	t.Parallel()

	interp := NewInterpreter(nil, nil)
	r := interp.Interpret(context.Background(), "texto livre qualquer", Context{State: StateIdle})
	if r.Intent != Other {
		t.Errorf("Interpret = %s, want other without classifier", r.Intent)
	}
}
