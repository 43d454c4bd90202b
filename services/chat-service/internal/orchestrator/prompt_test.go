package orchestrator

import (
	"strings"
	"testing"
	"time"

	"github.com/agendapet/agendapet/libs/petshop"
)

func testProfile() petshop.BusinessProfile {
	return petshop.BusinessProfile{
		TenantID:      "t1",
		ShopName:      "PetMimos",
		AssistantName: "Luna",
		VoiceTone:     petshop.ToneFun,
		Services: []petshop.Service{
			{Name: "Banho", Price: "50", Duration: 60},
			{Name: "Tosa", Price: "80", Duration: 90},
		},
		BusinessHours: []petshop.DayHours{
			{Day: "Segunda", IsOpen: true, OpenTime: "09:00", CloseTime: "18:00"},
			{Day: "Domingo", IsOpen: false},
		},
		Phone:        "11 4002-8922",
		Address:      "Rua das Flores, 10",
		Neighborhood: "Centro",
		City:         "São Paulo",
		State:        "SP",
	}
}

func TestSystemPrompt(t *testing.T) {
	prompt := SystemPrompt(GroundingInput{
		Profile: testProfile(),
		TenantUpcoming: []petshop.Appointment{
			{Date: "2026-09-01", Time: "14:00", Service: "Banho", PetName: "Rex", OwnerName: "Ana", OwnerPhone: "5511999990000", Status: petshop.StatusPending},
		},
		CustomerUpcoming: []petshop.Appointment{
			{Date: "2026-09-01", Time: "14:00", Service: "Banho", PetName: "Rex", Status: petshop.StatusPending},
		},
		History: []petshop.Appointment{
			{PetName: "Rex", Service: "Tosa", Status: petshop.StatusCompleted},
			{PetName: "Mel", Service: "Banho", Status: petshop.StatusCompleted},
		},
		Contact: "5511999990000",
		Now:     time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC),
	})

	for _, want := range []string{
		"Luna",
		`"PetMimos"`,
		"- Banho: R$50 (60 min)",
		"- Segunda: 09:00 - 18:00",
		"- Domingo: Fechado",
		"segunda-feira, 31/08/2026 às 10:30",
		"2026-09-01 14:00 - Banho (Rex/Ana, tel: 5511999990000, status: pending)",
		"- 2026-09-01 às 14:00: Banho (pet: Rex, status: pending)",
		"- Visitas anteriores: 2",
		"- Pets: Mel, Rex",
		"<action>",
		`"type":"confirm"`,
		"divertida",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q\n%s", want, prompt)
		}
	}
}

func TestSystemPrompt_Defaults(t *testing.T) {
	profile := testProfile()
	profile.AssistantName = ""
	profile.VoiceTone = "shouty"
	profile.Services = nil

	prompt := SystemPrompt(GroundingInput{Profile: profile, Now: time.Now()})
	if !strings.Contains(prompt, "a secretária digital") {
		t.Fatal("missing default assistant name")
	}
	if !strings.Contains(prompt, "acolhedora") {
		t.Fatal("unknown tone should fall back to friendly")
	}
	if !strings.Contains(prompt, "Nenhum serviço cadastrado.") {
		t.Fatal("missing empty-services placeholder")
	}
	if !strings.Contains(prompt, "Nenhum agendamento encontrado.") {
		t.Fatal("missing empty customer appointments placeholder")
	}
	if strings.Contains(prompt, "HISTÓRICO DESTE CLIENTE") {
		t.Fatal("history section should be omitted when empty")
	}
}
