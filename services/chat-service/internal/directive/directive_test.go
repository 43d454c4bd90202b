package directive

import (
	"errors"
	"strings"
	"testing"
)

func TestExtract_NoBlock(t *testing.T) {
	visible, d, err := Extract("Claro! Temos horário livre amanhã às 10:00.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != nil {
		t.Fatalf("expected no directive, got %+v", d)
	}
	if visible != "Claro! Temos horário livre amanhã às 10:00." {
		t.Fatalf("visible text changed: %q", visible)
	}
}

func TestExtract_Create(t *testing.T) {
	reply := `Perfeito, agendei o banho do Rex!
<action>{"type":"create","pet_name":"Rex","owner_name":"Ana","service":"Banho","date":"2026-09-01","time":"14:00"}</action>
Até amanhã!`
	visible, d, err := Extract(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil || d.Type != TypeCreate {
		t.Fatalf("expected create directive, got %+v", d)
	}
	if d.PetName != "Rex" || d.Service != "Banho" || d.Date != "2026-09-01" || d.Time != "14:00" {
		t.Fatalf("wrong fields: %+v", d)
	}
	if strings.Contains(visible, "<action>") || strings.Contains(visible, "</action>") {
		t.Fatalf("block not stripped: %q", visible)
	}
	if !strings.Contains(visible, "Perfeito") || !strings.Contains(visible, "Até amanhã!") {
		t.Fatalf("prose lost: %q", visible)
	}
}

func TestExtract_Reschedule(t *testing.T) {
	reply := `Remarcado! <action>{"type":"reschedule","old_date":"2026-09-01","old_time":"14:00","new_date":"2026-09-02","new_time":"16:30"}</action>`
	_, d, err := Extract(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil || d.Type != TypeReschedule || d.OldDate != "2026-09-01" || d.NewDate != "2026-09-02" || d.NewTime != "16:30" {
		t.Fatalf("wrong directive: %+v", d)
	}
}

func TestExtract_MalformedJSON(t *testing.T) {
	visible, d, err := Extract(`Tudo certo. <action>{"type":"confirm",}</action>`)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if d != nil {
		t.Fatalf("expected nil directive, got %+v", d)
	}
	if visible != "Tudo certo." {
		t.Fatalf("block not stripped on failure: %q", visible)
	}
}

func TestExtract_UnclosedBlock(t *testing.T) {
	visible, d, err := Extract(`Ok. <action>{"type":"cancel"`)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if d != nil {
		t.Fatalf("expected nil directive")
	}
	if visible != "Ok." {
		t.Fatalf("tail not dropped: %q", visible)
	}
}

func TestExtract_MissingFields(t *testing.T) {
	cases := []string{
		`<action>{"type":"confirm","date":"2026-09-01"}</action>`,
		`<action>{"type":"create","service":"Banho","date":"2026-09-01"}</action>`,
		`<action>{"type":"reschedule","old_date":"2026-09-01","old_time":"14:00"}</action>`,
		`<action>{"type":"delete","date":"2026-09-01","time":"14:00"}</action>`,
	}
	for _, reply := range cases {
		_, d, err := Extract(reply)
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("Extract(%q): expected ErrMalformed, got %v", reply, err)
		}
		if d != nil {
			t.Fatalf("Extract(%q): expected nil directive", reply)
		}
	}
}

func TestExtract_TwoBlocksStripsBoth(t *testing.T) {
	reply := `A <action>{"type":"cancel","date":"2026-09-01","time":"14:00"}</action> B <action>{"type":"cancel","date":"2026-09-02","time":"15:00"}</action> C`
	visible, d, err := Extract(reply)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d == nil || d.Date != "2026-09-01" {
		t.Fatalf("expected first block to win, got %+v", d)
	}
	if strings.Contains(visible, "action") {
		t.Fatalf("second block not stripped: %q", visible)
	}
}
