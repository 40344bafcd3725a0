package intent

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nutrizap/nutrizap/internal/database"
)

// Quick-reply tokens recognized without AI. The numbered entries match the
// options rendered in the confirmation prompt.
var (
	confirmTokens = map[string]bool{
		"1": true, "sim": true, "s": true, "ok": true, "confirmo": true,
		"confirma": true, "certo": true, "isso": true, "yes": true, "y": true,
	}
	cancelTokens = map[string]bool{
		"2": true, "não": true, "nao": true, "n": true, "cancela": true,
		"cancelar": true, "nope": true, "no": true,
	}
	editTokens = map[string]bool{
		"3": true, "editar": true, "edita": true, "corrigir": true,
		"mudar": true, "alterar": true, "edit": true,
	}
	clearTokens = map[string]bool{
		"4": true, "finalizar": true, "limpar": true, "clear": true, "descartar": true,
	}
	doneTokens = map[string]bool{
		"pronto": true, "pronta": true, "feito": true, "terminei": true,
		"acabei": true, "só isso": true, "so isso": true, "é isso": true, "e isso": true,
	}
	greetingTokens = map[string]bool{
		"oi": true, "olá": true, "ola": true, "bom dia": true,
		"boa tarde": true, "boa noite": true, "hey": true, "opa": true,
	}
)

var (
	removePrefixes  = []string{"tira o ", "tira a ", "tira ", "remove o ", "remove a ", "remove ", "remover ", "sem o ", "sem a ", "sem ", "não comi ", "nao comi "}
	addPrefixes     = []string{"adiciona ", "adicionar ", "coloca ", "colocar ", "põe ", "poe ", "mais ", "também comi ", "tambem comi ", "inclui ", "incluir "}
	replacePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^troca (?:o |a )?(.+?) por (.+)$`),
		regexp.MustCompile(`^trocar (?:o |a )?(.+?) por (.+)$`),
		regexp.MustCompile(`^era (.+?),? (?:não|nao) (?:era )?(.+)$`),
		regexp.MustCompile(`^(?:não|nao) (?:é|e|era) (.+?),? (?:é|e|era) (.+)$`),
	}
	gramsPattern = regexp.MustCompile(`(\d+)\s*(?:g|gr|gramas?)\b`)
)

// normalize lowercases and strips trailing punctuation so quick replies
// like "Sim!" or "ok." still match.
func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.TrimRight(s, ".,!?")
}

// ClassifyDirect matches the exact quick-reply vocabulary. It returns nil
// when the text is not a direct token.
func ClassifyDirect(text string) *Result {
	s := normalize(text)
	switch {
	case confirmTokens[s]:
		return &Result{Intent: Confirm}
	case cancelTokens[s]:
		return &Result{Intent: Cancel}
	case editTokens[s]:
		return &Result{Intent: EditRequest}
	case clearTokens[s]:
		return &Result{Intent: ClearPending}
	case doneTokens[s]:
		return &Result{Intent: EditDone}
	case greetingTokens[s]:
		return &Result{Intent: Greeting}
	}
	return nil
}

// IsAffirmation reports whether text is a bare positive quick reply. Used to
// suppress replies to affirmations that arrive after a pending slot expired.
func IsAffirmation(text string) bool {
	s := normalize(text)
	return confirmTokens[s]
}

// ClassifyRules applies the food-aware vocabulary rules. A removal or
// replacement is only recognized when its target matches one of the pending
// foods; otherwise the text falls through to the next layer.
func ClassifyRules(text string, cctx Context) *Result {
	s := normalize(text)
	if s == "" {
		return nil
	}

	for _, re := range replacePatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			target := matchFood(m[1], cctx.PendingFoods)
			if target == "" {
				continue
			}
			name, grams := parseFoodPhrase(m[2])
			return &Result{
				Intent:  ReplaceFood,
				Target:  target,
				NewFood: &database.FoodItem{Name: name, Grams: grams},
			}
		}
	}

	for _, prefix := range removePrefixes {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			if target := matchFood(rest, cctx.PendingFoods); target != "" {
				return &Result{Intent: RemoveFood, Target: target}
			}
		}
	}

	for _, prefix := range addPrefixes {
		if rest, ok := strings.CutPrefix(s, prefix); ok && rest != "" {
			name, grams := parseFoodPhrase(rest)
			if name == "" {
				continue
			}
			return &Result{
				Intent:  AddFood,
				NewFood: &database.FoodItem{Name: name, Grams: grams},
			}
		}
	}

	if strings.HasSuffix(strings.TrimSpace(text), "?") {
		return &Result{Intent: Question}
	}

	return nil
}

// matchFood finds the pending food whose name appears in phrase, or that
// phrase appears in. Returns the canonical pending name, or "".
func matchFood(phrase string, foods []database.FoodItem) string {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return ""
	}
	for _, f := range foods {
		name := strings.ToLower(f.Name)
		if strings.Contains(phrase, name) || strings.Contains(name, phrase) {
			return f.Name
		}
	}
	return ""
}

// parseFoodPhrase extracts a food name and optional gram quantity from a
// phrase like "100g de arroz" or "arroz 100g".
func parseFoodPhrase(phrase string) (string, float64) {
	phrase = strings.TrimSpace(phrase)

	var grams float64
	if m := gramsPattern.FindStringSubmatch(phrase); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			grams = v
		}
		phrase = strings.TrimSpace(gramsPattern.ReplaceAllString(phrase, ""))
	}

	phrase = strings.TrimPrefix(phrase, "de ")
	phrase = strings.TrimSuffix(phrase, " de")
	return strings.TrimSpace(phrase), grams
}
