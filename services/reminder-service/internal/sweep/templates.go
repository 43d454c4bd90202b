package sweep

import (
	"fmt"

	"github.com/agendapet/agendapet/libs/petshop"
)

// RenderReminder builds the tone-specific confirmation message for one
// appointment. Pending appointments carry a "not yet confirmed" marker so the
// customer knows a reply is expected.
func RenderReminder(profile petshop.BusinessProfile, appt petshop.Appointment) string {
	assistant := profile.AssistantName
	if assistant == "" {
		assistant = "Secretária"
	}
	greetingName := ""
	if appt.OwnerName != "" {
		greetingName = ", " + appt.OwnerName
	}
	statusLabel := ""
	if appt.Status == petshop.StatusPending {
		statusLabel = " (⚠️ ainda não confirmado)"
	}

	switch profile.VoiceTone {
	case petshop.ToneFormal:
		return fmt.Sprintf("Olá%s! Aqui é a %s do %s. Seu agendamento de %s para %s está marcado para hoje às %s%s. Você confirma sua presença?\n\nResponda:\n✅ CONFIRMO\n📅 REMARCAR\n❌ CANCELAR",
			greetingName, assistant, profile.ShopName, appt.Service, appt.PetName, appt.Time, statusLabel)
	case petshop.ToneFun:
		return fmt.Sprintf("Oii%s! Aqui é a %s 😄 Só confirmando: %s tem %s hoje às %s%s. Tá de pé?\n\nResponde:\n✅ CONFIRMO\n📅 REMARCAR\n❌ CANCELAR 🐾",
			greetingName, assistant, appt.PetName, appt.Service, appt.Time, statusLabel)
	default:
		return fmt.Sprintf("Oi%s! Eu sou a %s 😊 Passando pra confirmar: o %s tem %s hoje às %s%s. Você confirma?\n\nResponda:\n✅ CONFIRMO\n📅 REMARCAR\n❌ CANCELAR",
			greetingName, assistant, appt.PetName, appt.Service, appt.Time, statusLabel)
	}
}
