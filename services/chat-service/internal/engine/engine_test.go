package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/agendapet/agendapet/libs/petshop"
)

type fakeProfiles struct {
	profile petshop.BusinessProfile
	err     error
}

func (f *fakeProfiles) GetByInstance(_ context.Context, _ string) (petshop.BusinessProfile, error) {
	return f.profile, f.err
}

type fakeLedger struct {
	appts  []petshop.Appointment
	nextID int
}

func (f *fakeLedger) CreatePending(_ context.Context, appt petshop.Appointment) (petshop.Appointment, error) {
	f.nextID++
	appt.ID = "a" + string(rune('0'+f.nextID))
	appt.Status = petshop.StatusPending
	f.appts = append(f.appts, appt)
	return appt, nil
}

func (f *fakeLedger) ConfirmSlot(_ context.Context, tenantID, date, timeOfDay string) (int, error) {
	n := 0
	for i, a := range f.appts {
		if a.TenantID == tenantID && a.Date == date && a.Time == timeOfDay && a.Status == petshop.StatusPending {
			f.appts[i].Status = petshop.StatusConfirmed
			n++
		}
	}
	return n, nil
}

func (f *fakeLedger) CancelSlot(_ context.Context, tenantID, date, timeOfDay string) (int, error) {
	n := 0
	for i, a := range f.appts {
		if a.TenantID == tenantID && a.Date == date && a.Time == timeOfDay && a.Status != petshop.StatusCancelled {
			f.appts[i].Status = petshop.StatusCancelled
			n++
		}
	}
	return n, nil
}

func (f *fakeLedger) RescheduleSlot(_ context.Context, tenantID, oldDate, oldTime, newDate, newTime string) (int, error) {
	n := 0
	for i, a := range f.appts {
		if a.TenantID == tenantID && a.Date == oldDate && a.Time == oldTime {
			f.appts[i].Date = newDate
			f.appts[i].Time = newTime
			n++
		}
	}
	return n, nil
}

func (f *fakeLedger) ConfirmByID(_ context.Context, id string) (bool, error) {
	for i, a := range f.appts {
		if a.ID == id && a.Status == petshop.StatusPending {
			f.appts[i].Status = petshop.StatusConfirmed
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) CancelByID(_ context.Context, id string) (bool, error) {
	for i, a := range f.appts {
		if a.ID == id && !a.Status.Terminal() {
			f.appts[i].Status = petshop.StatusCancelled
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) ListUpcoming(_ context.Context, tenantID, fromDate string) ([]petshop.Appointment, error) {
	var out []petshop.Appointment
	for _, a := range f.appts {
		if a.TenantID == tenantID && a.Date >= fromDate && a.Status != petshop.StatusCancelled {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (f *fakeLedger) ListCompletedBefore(_ context.Context, tenantID, date string) ([]petshop.Appointment, error) {
	var out []petshop.Appointment
	for _, a := range f.appts {
		if a.TenantID == tenantID && a.Date < date && a.Status == petshop.StatusCompleted {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeMemory struct {
	turns []petshop.ConversationTurn
}

func (f *fakeMemory) Append(_ context.Context, _, _, role, text string) error {
	f.turns = append(f.turns, petshop.ConversationTurn{Role: role, Text: text})
	return nil
}

func (f *fakeMemory) Recent(_ context.Context, _, _ string, limit int) ([]petshop.ConversationTurn, error) {
	if len(f.turns) > limit {
		return f.turns[len(f.turns)-limit:], nil
	}
	return f.turns, nil
}

type fakeModel struct {
	reply  string
	err    error
	called int
}

func (f *fakeModel) Complete(_ context.Context, _ string, _ []petshop.ConversationTurn) (string, error) {
	f.called++
	return f.reply, f.err
}

type fakeSender struct {
	sent []string
}

func (f *fakeSender) SendText(_ context.Context, _, _, text string) error {
	f.sent = append(f.sent, text)
	return nil
}

type harness struct {
	engine *Engine
	ledger *fakeLedger
	memory *fakeMemory
	model  *fakeModel
	sender *fakeSender
}

func newHarness(appts []petshop.Appointment, model *fakeModel) *harness {
	profiles := &fakeProfiles{profile: petshop.BusinessProfile{
		TenantID:     "t1",
		ShopName:     "PetMimos",
		VoiceTone:    petshop.ToneFriendly,
		InstanceName: "inst1",
		Services:     []petshop.Service{{Name: "Banho", Price: "50", Duration: 60}},
	}}
	ledger := &fakeLedger{appts: appts}
	memory := &fakeMemory{}
	sender := &fakeSender{}
	logger := slog.New(slog.DiscardHandler)
	e := New(profiles, ledger, memory, model, sender, logger, time.UTC)
	e.now = func() time.Time {
		return time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	}
	return &harness{engine: e, ledger: ledger, memory: memory, model: model, sender: sender}
}

func TestQuickConfirm(t *testing.T) {
	h := newHarness([]petshop.Appointment{
		{ID: "a1", TenantID: "t1", PetName: "Rex", OwnerPhone: "5511999990000",
			Date: "2026-08-31", Time: "14:00", Status: petshop.StatusPending},
	}, &fakeModel{})

	err := h.engine.HandleMessage(context.Background(), "inst1", "5511999990000@s.whatsapp.net", "CONFIRMO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ledger.appts[0].Status != petshop.StatusConfirmed {
		t.Fatalf("expected confirmed, got %q", h.ledger.appts[0].Status)
	}
	if h.model.called != 0 {
		t.Fatal("quick intent must not invoke the model")
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(h.sender.sent))
	}
	reply := h.sender.sent[0]
	if !strings.Contains(reply, "Rex") || !strings.Contains(reply, "14:00") {
		t.Fatalf("reply must name pet and time: %q", reply)
	}
	if len(h.memory.turns) != 0 {
		t.Fatalf("quick intent must not write conversation memory, got %d turns", len(h.memory.turns))
	}
}

func TestQuickCancel_CompletedAppointment(t *testing.T) {
	// The appointment was already marked done earlier today; it still shows
	// up as the nearest upcoming row, but the cancel must not take and the
	// reply must not claim it did.
	h := newHarness([]petshop.Appointment{
		{ID: "a1", TenantID: "t1", PetName: "Rex", OwnerPhone: "5511999990000",
			Date: "2026-08-31", Time: "09:00", Status: petshop.StatusCompleted},
	}, &fakeModel{})

	if err := h.engine.HandleMessage(context.Background(), "inst1", "5511999990000", "CANCELAR"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ledger.appts[0].Status != petshop.StatusCompleted {
		t.Fatalf("completed appointment must stay completed, got %q", h.ledger.appts[0].Status)
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(h.sender.sent))
	}
	reply := h.sender.sent[0]
	if strings.Contains(reply, "foi cancelado") {
		t.Fatalf("reply must not claim a cancellation that never happened: %q", reply)
	}
	if !strings.Contains(reply, "finalizado") {
		t.Fatalf("reply should say the appointment is already done: %q", reply)
	}
}

func TestQuickConfirm_CompletedAppointment(t *testing.T) {
	h := newHarness([]petshop.Appointment{
		{ID: "a1", TenantID: "t1", PetName: "Rex", OwnerPhone: "5511999990000",
			Date: "2026-08-31", Time: "09:00", Status: petshop.StatusCompleted},
	}, &fakeModel{})

	if err := h.engine.HandleMessage(context.Background(), "inst1", "5511999990000", "CONFIRMO"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ledger.appts[0].Status != petshop.StatusCompleted {
		t.Fatalf("completed appointment must stay completed, got %q", h.ledger.appts[0].Status)
	}
	if len(h.sender.sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(h.sender.sent))
	}
	reply := h.sender.sent[0]
	if strings.Contains(reply, "está confirmado") {
		t.Fatalf("reply must not claim a confirmation that never happened: %q", reply)
	}
	if !strings.Contains(reply, "finalizado") {
		t.Fatalf("reply should say the appointment is already done: %q", reply)
	}
}

func TestQuickCancel_NoneFound(t *testing.T) {
	h := newHarness(nil, &fakeModel{})

	err := h.engine.HandleMessage(context.Background(), "inst1", "5511999990000", "CANCELAR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.model.called != 0 {
		t.Fatal("quick intent must not invoke the model")
	}
	if len(h.sender.sent) != 1 || !strings.Contains(h.sender.sent[0], "Não encontrei") {
		t.Fatalf("expected a none-found reply, got %v", h.sender.sent)
	}
	if len(h.memory.turns) != 0 {
		t.Fatalf("quick intent must not write conversation memory, got %d turns", len(h.memory.turns))
	}
}

func TestQuickIntent_NearestAppointmentWins(t *testing.T) {
	h := newHarness([]petshop.Appointment{
		{ID: "a2", TenantID: "t1", PetName: "Mel", OwnerPhone: "5511999990000",
			Date: "2026-09-02", Time: "09:00", Status: petshop.StatusPending},
		{ID: "a1", TenantID: "t1", PetName: "Rex", OwnerPhone: "5511999990000",
			Date: "2026-09-01", Time: "14:00", Status: petshop.StatusPending},
	}, &fakeModel{})

	if err := h.engine.HandleMessage(context.Background(), "inst1", "5511999990000", "CANCELAR"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var byID = map[string]petshop.Status{}
	for _, a := range h.ledger.appts {
		byID[a.ID] = a.Status
	}
	if byID["a1"] != petshop.StatusCancelled {
		t.Fatalf("nearest appointment should be cancelled, got %q", byID["a1"])
	}
	if byID["a2"] != petshop.StatusPending {
		t.Fatalf("later appointment must be untouched, got %q", byID["a2"])
	}
}

func TestQuickReschedule_NoMutation(t *testing.T) {
	h := newHarness([]petshop.Appointment{
		{ID: "a1", TenantID: "t1", PetName: "Rex", OwnerPhone: "5511999990000",
			Date: "2026-09-01", Time: "14:00", Status: petshop.StatusConfirmed},
	}, &fakeModel{})

	if err := h.engine.HandleMessage(context.Background(), "inst1", "5511999990000", "REMARCAR"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ledger.appts[0].Status != petshop.StatusConfirmed {
		t.Fatal("reschedule intent must not mutate")
	}
	if len(h.sender.sent) != 1 || !strings.Contains(h.sender.sent[0], "remarcar") {
		t.Fatalf("expected a reschedule prompt, got %v", h.sender.sent)
	}
}

func TestDialogue_CreateDirectiveRoundTrip(t *testing.T) {
	// The service name is not in the tenant's catalogue; grounding is the
	// orchestrator's job and the extractor still applies the create.
	model := &fakeModel{reply: `Agendado!
<action>{"type":"create","pet_name":"Bob","owner_name":"Caio","service":"Spa Premium","date":"2026-09-03","time":"11:00"}</action>`}
	h := newHarness(nil, model)

	err := h.engine.HandleMessage(context.Background(), "inst1", "5511999990000", "quero marcar um spa pro Bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.called != 1 {
		t.Fatalf("expected one model call, got %d", model.called)
	}

	upcoming, _ := h.ledger.ListUpcoming(context.Background(), "t1", "2026-08-31")
	mine := filterByContact(upcoming, "5511999990000")
	if len(mine) != 1 {
		t.Fatalf("created appointment not listed, got %d", len(mine))
	}
	if mine[0].Status != petshop.StatusPending {
		t.Fatalf("chat creation must start pending, got %q", mine[0].Status)
	}
	if mine[0].Service != "Spa Premium" {
		t.Fatalf("service carried through unchanged, got %q", mine[0].Service)
	}

	if len(h.sender.sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(h.sender.sent))
	}
	if strings.Contains(h.sender.sent[0], "<action>") {
		t.Fatalf("directive block must be stripped: %q", h.sender.sent[0])
	}
}

func TestDialogue_ModelFailureAbortsTurn(t *testing.T) {
	model := &fakeModel{err: errors.New("provider down")}
	h := newHarness(nil, model)

	err := h.engine.HandleMessage(context.Background(), "inst1", "5511999990000", "oi, tudo bem?")
	if err == nil {
		t.Fatal("expected error when the model fails")
	}
	if len(h.sender.sent) != 0 {
		t.Fatal("no reply may be sent on model failure")
	}
	for _, turn := range h.memory.turns {
		if turn.Role == petshop.RoleAssistant {
			t.Fatal("no assistant turn may be recorded on model failure")
		}
	}
}

func TestDialogue_MalformedDirectiveStripped(t *testing.T) {
	model := &fakeModel{reply: `Vou verificar. <action>{"type":}</action>`}
	h := newHarness(nil, model)

	if err := h.engine.HandleMessage(context.Background(), "inst1", "5511999990000", "pode cancelar?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(h.ledger.appts) != 0 {
		t.Fatal("malformed directive must not mutate")
	}
	if len(h.sender.sent) != 1 || strings.Contains(h.sender.sent[0], "action") {
		t.Fatalf("block must be stripped from the reply: %v", h.sender.sent)
	}
}

func TestDialogue_ProfileNotFound(t *testing.T) {
	h := newHarness(nil, &fakeModel{})
	h.engine.profiles = &fakeProfiles{err: errors.New("no rows")}

	err := h.engine.HandleMessage(context.Background(), "ghost", "5511999990000", "oi")
	if err == nil {
		t.Fatal("expected error for unknown instance")
	}
	if len(h.sender.sent) != 0 {
		t.Fatal("no reply may be sent without a profile")
	}
}
