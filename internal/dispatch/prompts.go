package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/nutrizap/nutrizap/internal/database"
)

const (
	signature = "_Sofia 🥗_"
	divider   = "───────────────"
)

// reminderPreviewLimit caps the food names shown in the pending reminder.
const reminderPreviewLimit = 4

// DetectMealType maps a time of day to the meal being logged.
func DetectMealType(now time.Time) string {
	switch h := now.Hour(); {
	case h >= 5 && h < 11:
		return "cafe_da_manha"
	case h >= 11 && h < 15:
		return "almoco"
	case h >= 15 && h < 18:
		return "lanche"
	case h >= 18 && h < 23:
		return "jantar"
	default:
		return "ceia"
	}
}

// FormatMealType renders a meal type for user-facing text.
func FormatMealType(mealType string) string {
	switch mealType {
	case "cafe_da_manha":
		return "Café da manhã"
	case "almoco":
		return "Almoço"
	case "lanche":
		return "Lanche"
	case "jantar":
		return "Jantar"
	case "ceia":
		return "Ceia"
	default:
		return "Refeição"
	}
}

// renderConfirmationPrompt lists the detected foods with the numbered
// quick-reply options.
func renderConfirmationPrompt(payload *database.PendingPayload) string {
	var sb strings.Builder
	sb.WriteString("🍽️ *Analisei sua refeição!*\n\n")

	for _, f := range payload.Foods {
		if f.Grams > 0 {
			fmt.Fprintf(&sb, "• %s (%.0fg)\n", f.Name, f.Grams)
		} else {
			fmt.Fprintf(&sb, "• %s\n", f.Name)
		}
	}

	if payload.TotalCalories > 0 {
		fmt.Fprintf(&sb, "\n📊 *Total estimado: ~%.0f kcal*\n", payload.TotalCalories)
	}

	sb.WriteString("\n" + divider + "\n\n")
	sb.WriteString("*Está correto?* Escolha:\n\n")
	sb.WriteString("*1* ✅ Confirmar\n")
	sb.WriteString("*2* ❌ Cancelar\n")
	sb.WriteString("*3* ✏️ Editar\n\n")
	sb.WriteString(signature)
	return sb.String()
}

func renderSaved(mealType string, mealCalories, dailyTotal float64) string {
	var sb strings.Builder
	sb.WriteString("✅ *Refeição registrada!*\n\n")
	fmt.Fprintf(&sb, "🍽️ %s: *%.0f kcal*\n\n", FormatMealType(mealType), mealCalories)
	fmt.Fprintf(&sb, "📊 Total do dia: *%.0f kcal*\n\n", dailyTotal)
	sb.WriteString("Continue assim! 💪\n\n")
	sb.WriteString(signature)
	return sb.String()
}

func renderCancelled() string {
	return "❌ *Registro cancelado!*\n\nSem problemas, envie outra foto quando quiser registrar. 📸\n\n" + signature
}

func renderCleared() string {
	return "🔄 *Pendência descartada!*\n\nPode enviar uma nova foto quando quiser. 📸\n\n" + signature
}

func renderEditPrompt(payload *database.PendingPayload) string {
	var sb strings.Builder
	sb.WriteString("✏️ *Modo edição ativado!*\n\n")
	sb.WriteString("Itens atuais:\n")
	for _, f := range payload.Foods {
		fmt.Fprintf(&sb, "• %s\n", f.Name)
	}
	sb.WriteString("\nMe diga o que mudar, por exemplo:\n")
	sb.WriteString("• \"tira o arroz\"\n")
	sb.WriteString("• \"adiciona 100g de feijão\"\n")
	sb.WriteString("• \"troca o frango por peixe\"\n\n")
	sb.WriteString("Quando terminar, diga *pronto*.\n\n")
	sb.WriteString(signature)
	return sb.String()
}

func renderEditHelp() string {
	return "🤔 Não entendi a alteração. Tente algo como \"tira o arroz\" ou \"adiciona banana\". Quando terminar, diga *pronto*.\n\n" + signature
}

// renderReminder is the pending-item block appended to fallback replies
// while a confirmation is still open.
func renderReminder(foods []database.FoodItem) string {
	names := make([]string, 0, reminderPreviewLimit)
	for i, f := range foods {
		if i == reminderPreviewLimit {
			break
		}
		names = append(names, f.Name)
	}
	suffix := ""
	if len(foods) > reminderPreviewLimit {
		suffix = "..."
	}

	var sb strings.Builder
	sb.WriteString("\n\n" + divider + "\n\n")
	sb.WriteString("⚠️ *Pendência ativa*\n\n")
	fmt.Fprintf(&sb, "📋 %s%s\n\n", strings.Join(names, ", "), suffix)
	sb.WriteString("Escolha uma opção:\n\n")
	sb.WriteString("*1* ✅ Confirmar\n")
	sb.WriteString("*2* ❌ Cancelar\n")
	sb.WriteString("*3* ✏️ Editar\n")
	sb.WriteString("*4* 🔄 Limpar pendência\n\n")
	sb.WriteString(signature)
	return sb.String()
}
