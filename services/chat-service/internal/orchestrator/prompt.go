// Package orchestrator assembles the grounding context for the dialogue
// model: tenant profile, calendar visibility, the customer's own bookings and
// history, and the behavioral policy that tells the model how to embed a
// directive. Reads are always fresh per turn; there is no cache to invalidate.
package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/agendapet/agendapet/libs/petshop"
)

// GroundingInput is everything a single turn's system prompt is built from.
type GroundingInput struct {
	Profile          petshop.BusinessProfile
	TenantUpcoming   []petshop.Appointment
	CustomerUpcoming []petshop.Appointment
	History          []petshop.Appointment
	Contact          string
	Now              time.Time
}

var toneInstructions = map[petshop.VoiceTone]string{
	petshop.ToneFormal:   "Use linguagem formal e educada. Trate o cliente por 'senhor(a)'.",
	petshop.ToneFriendly: "Use linguagem amigável e acolhedora. Trate o cliente de forma pessoal e calorosa.",
	petshop.ToneFun:      "Use linguagem divertida e descontraída, com emojis 🐾🐶. Seja animado e alegre!",
}

var weekdaysPT = map[time.Weekday]string{
	time.Sunday:    "domingo",
	time.Monday:    "segunda-feira",
	time.Tuesday:   "terça-feira",
	time.Wednesday: "quarta-feira",
	time.Thursday:  "quinta-feira",
	time.Friday:    "sexta-feira",
	time.Saturday:  "sábado",
}

// SystemPrompt renders the full grounding and policy message for one turn.
func SystemPrompt(in GroundingInput) string {
	p := in.Profile

	assistant := p.AssistantName
	if assistant == "" {
		assistant = "a secretária digital"
	}
	tone, ok := toneInstructions[p.VoiceTone]
	if !ok {
		tone = toneInstructions[petshop.ToneFriendly]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Você é %s do pet shop %q.\n%s\n\n", assistant, p.ShopName, tone)

	fmt.Fprintf(&b, "INFORMAÇÕES DO PET SHOP:\n- Endereço: %s, %s, %s/%s\n- Telefone: %s\n\n",
		p.Address, p.Neighborhood, p.City, p.State, p.Phone)

	b.WriteString("SERVIÇOS OFERECIDOS:\n")
	b.WriteString(renderServices(p.Services))
	b.WriteString("\n\nHORÁRIOS DE FUNCIONAMENTO:\n")
	b.WriteString(renderHours(p.BusinessHours))

	fmt.Fprintf(&b, "\n\nDATA/HORA ATUAL: %s, %s às %s\n",
		weekdaysPT[in.Now.Weekday()],
		in.Now.Format("02/01/2006"),
		in.Now.Format("15:04"))

	b.WriteString("\nAGENDAMENTOS JÁ EXISTENTES (para verificar disponibilidade):\n")
	b.WriteString(renderTenantAppointments(in.TenantUpcoming))

	fmt.Fprintf(&b, "\n\nAGENDAMENTOS DESTE CLIENTE (telefone: %s):\n", in.Contact)
	b.WriteString(renderCustomerAppointments(in.CustomerUpcoming))

	if history := renderHistory(in.History); history != "" {
		b.WriteString("\n\nHISTÓRICO DESTE CLIENTE:\n")
		b.WriteString(history)
	}

	b.WriteString("\n\n" + policy(in.Contact))
	return b.String()
}

func renderServices(services []petshop.Service) string {
	if len(services) == 0 {
		return "Nenhum serviço cadastrado."
	}
	lines := make([]string, 0, len(services))
	for _, s := range services {
		lines = append(lines, fmt.Sprintf("- %s: R$%s (%d min)", s.Name, s.Price, s.Duration))
	}
	return strings.Join(lines, "\n")
}

func renderHours(hours []petshop.DayHours) string {
	if len(hours) == 0 {
		return "Não informado."
	}
	lines := make([]string, 0, len(hours))
	for _, h := range hours {
		if h.IsOpen {
			lines = append(lines, fmt.Sprintf("- %s: %s - %s", h.Day, h.OpenTime, h.CloseTime))
		} else {
			lines = append(lines, fmt.Sprintf("- %s: Fechado", h.Day))
		}
	}
	return strings.Join(lines, "\n")
}

func renderTenantAppointments(appts []petshop.Appointment) string {
	if len(appts) == 0 {
		return "Nenhum agendamento."
	}
	lines := make([]string, 0, len(appts))
	for _, a := range appts {
		lines = append(lines, fmt.Sprintf("%s %s - %s (%s/%s, tel: %s, status: %s)",
			a.Date, a.Time, a.Service, a.PetName, a.OwnerName, a.OwnerPhone, a.Status))
	}
	return strings.Join(lines, "\n")
}

func renderCustomerAppointments(appts []petshop.Appointment) string {
	if len(appts) == 0 {
		return "Nenhum agendamento encontrado."
	}
	lines := make([]string, 0, len(appts))
	for _, a := range appts {
		lines = append(lines, fmt.Sprintf("- %s às %s: %s (pet: %s, status: %s)",
			a.Date, a.Time, a.Service, a.PetName, a.Status))
	}
	return strings.Join(lines, "\n")
}

// renderHistory summarizes past completed visits: pets seen, services taken,
// and how many times the customer has been in.
func renderHistory(past []petshop.Appointment) string {
	if len(past) == 0 {
		return ""
	}
	pets := map[string]bool{}
	services := map[string]bool{}
	for _, a := range past {
		if a.PetName != "" {
			pets[a.PetName] = true
		}
		if a.Service != "" {
			services[a.Service] = true
		}
	}
	return fmt.Sprintf("- Visitas anteriores: %d\n- Pets: %s\n- Serviços já realizados: %s",
		len(past), joinKeys(pets), joinKeys(services))
}

func joinKeys(set map[string]bool) string {
	if len(set) == 0 {
		return "não informado"
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	// Deterministic order keeps prompts stable across turns.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return strings.Join(keys, ", ")
}

func policy(contact string) string {
	return fmt.Sprintf(`REGRAS IMPORTANTES:
1. Quando o cliente quiser AGENDAR, colete: nome do pet, nome do dono, serviço desejado, data e horário preferido.
2. Verifique se o horário está dentro do horário de funcionamento do dia solicitado.
3. Verifique se não há conflito com agendamentos existentes (considere a duração do serviço).
4. Para CANCELAR ou REAGENDAR, identifique o agendamento do cliente e confirme antes de proceder.
5. Quando tiver TODOS os dados necessários, responda incluindo um bloco de ação JSON no final da mensagem, dentro de tags <action>...</action>.

FORMATO DE AÇÕES (inclua APENAS quando tiver todos os dados confirmados):

Para agendar (o agendamento entra como pendente até o cliente confirmar):
<action>{"type":"create","pet_name":"Rex","owner_name":"João","owner_phone":"%s","service":"Banho","date":"2026-02-21","time":"10:00"}</action>

Para confirmar um agendamento pendente:
<action>{"type":"confirm","date":"2026-02-21","time":"10:00"}</action>

Para cancelar (use a data/hora do agendamento existente):
<action>{"type":"cancel","date":"2026-02-21","time":"10:00"}</action>

Para reagendar:
<action>{"type":"reschedule","old_date":"2026-02-21","old_time":"10:00","new_date":"2026-02-22","new_time":"14:00"}</action>

6. NUNCA invente horários ou serviços que não existem na lista.
7. Responda APENAS em português brasileiro.
8. Mantenha respostas curtas e objetivas (máx 3-4 frases, exceto quando listando informações).
9. Se o cliente enviar algo fora do contexto do pet shop, redirecione educadamente para os serviços.`, contact)
}
