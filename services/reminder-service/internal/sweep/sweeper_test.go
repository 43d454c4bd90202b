package sweep

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agendapet/agendapet/libs/petshop"
)

type fakeStore struct {
	mu       sync.Mutex
	due      []petshop.Appointment
	marked   map[string]int
	failures []string
}

func (f *fakeStore) Due(_ context.Context, date, from, to string) ([]petshop.Appointment, error) {
	var out []petshop.Appointment
	w := Window{Date: date, From: from, To: to}
	for _, a := range f.due {
		if w.Contains(a.Date, a.Time) && a.ReminderSentAt == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkReminderSent(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.marked == nil {
		f.marked = map[string]int{}
	}
	f.marked[id]++
	return f.marked[id] == 1, nil
}

func (f *fakeStore) RecordFailure(_ context.Context, id, _, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, id+": "+reason)
	return nil
}

type fakeProfiles struct {
	profiles map[string]petshop.BusinessProfile
}

func (f *fakeProfiles) GetByTenant(_ context.Context, tenantID string) (petshop.BusinessProfile, error) {
	p, ok := f.profiles[tenantID]
	if !ok {
		return petshop.BusinessProfile{}, errors.New("no rows")
	}
	return p, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) SendText(_ context.Context, _, number, text string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, number+"|"+text)
	return nil
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 31, 13, 0, 0, 0, time.UTC)
}

func dueAppt(id, tenant, timeOfDay string, status petshop.Status) petshop.Appointment {
	return petshop.Appointment{
		ID: id, TenantID: tenant, PetName: "Rex", OwnerName: "Ana",
		OwnerPhone: "5511999990000", Service: "Banho",
		Date: "2026-08-31", Time: timeOfDay, Status: status,
	}
}

func newTestSweeper(store *fakeStore, profiles *fakeProfiles, sender *fakeSender) *Sweeper {
	s := NewSweeper(store, profiles, sender, slog.New(slog.DiscardHandler), time.UTC)
	s.now = fixedNow
	return s
}

func connectedProfiles(tenant string) *fakeProfiles {
	return &fakeProfiles{profiles: map[string]petshop.BusinessProfile{
		tenant: {
			TenantID:      tenant,
			ShopName:      "PetMimos",
			AssistantName: "Luna",
			VoiceTone:     petshop.ToneFriendly,
			InstanceName:  "inst1",
			ChannelStatus: petshop.ChannelConnected,
		},
	}}
}

func TestSweep_SendsAndMarks(t *testing.T) {
	store := &fakeStore{due: []petshop.Appointment{
		dueAppt("a1", "t1", "14:00", petshop.StatusPending),
		dueAppt("a2", "t1", "13:30", petshop.StatusConfirmed), // before the window
	}}
	sender := &fakeSender{}
	s := newTestSweeper(store, connectedProfiles("t1"), sender)

	sent, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 sent, got %d", sent)
	}
	if store.marked["a1"] != 1 {
		t.Fatalf("a1 not marked: %v", store.marked)
	}
	if store.marked["a2"] != 0 {
		t.Fatal("a2 is outside the window and must not be touched")
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0], "ainda não confirmado") {
		t.Fatalf("pending reminder missing marker: %v", sender.sent)
	}
}

func TestSweep_SkipsDisconnectedTenant(t *testing.T) {
	store := &fakeStore{due: []petshop.Appointment{
		dueAppt("a1", "t1", "14:00", petshop.StatusConfirmed),
	}}
	profiles := connectedProfiles("t1")
	p := profiles.profiles["t1"]
	p.ChannelStatus = petshop.ChannelDisconnected
	profiles.profiles["t1"] = p
	sender := &fakeSender{}
	s := newTestSweeper(store, profiles, sender)

	sent, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 0 || len(sender.sent) != 0 {
		t.Fatal("disconnected tenants must be skipped entirely")
	}
	if len(store.marked) != 0 {
		t.Fatal("timestamp must stay null so a later sweep retries")
	}
}

func TestSweep_DeliveryFailureLeavesTimestampNull(t *testing.T) {
	store := &fakeStore{due: []petshop.Appointment{
		dueAppt("a1", "t1", "14:00", petshop.StatusConfirmed),
	}}
	sender := &fakeSender{err: errors.New("gateway down")}
	s := newTestSweeper(store, connectedProfiles("t1"), sender)

	sent, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected 0 sent, got %d", sent)
	}
	if store.marked["a1"] != 0 {
		t.Fatal("failed delivery must not set the timestamp")
	}
	if len(store.failures) != 1 {
		t.Fatalf("failure must be recorded: %v", store.failures)
	}
}

func TestSweep_SkipsMissingContact(t *testing.T) {
	appt := dueAppt("a1", "t1", "14:00", petshop.StatusConfirmed)
	appt.OwnerPhone = ""
	store := &fakeStore{due: []petshop.Appointment{appt}}
	sender := &fakeSender{}
	s := newTestSweeper(store, connectedProfiles("t1"), sender)

	sent, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 0 || len(sender.sent) != 0 || len(store.marked) != 0 {
		t.Fatal("appointments without a contact must be skipped untouched")
	}
}

func TestSweep_ConditionalMarkStopsDoubleSendCounting(t *testing.T) {
	store := &fakeStore{due: []petshop.Appointment{
		dueAppt("a1", "t1", "14:00", petshop.StatusConfirmed),
	}}
	// Pretend another process already claimed the row.
	store.marked = map[string]int{"a1": 1}
	sender := &fakeSender{}
	s := newTestSweeper(store, connectedProfiles("t1"), sender)

	sent, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 0 {
		t.Fatalf("a lost conditional write must not count as sent, got %d", sent)
	}
}

func TestSweep_OverlappingInvocationSkipped(t *testing.T) {
	store := &fakeStore{}
	s := newTestSweeper(store, connectedProfiles("t1"), &fakeSender{})

	s.running.Store(true)
	sent, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sent != 0 {
		t.Fatal("overlapping sweep must be a no-op")
	}
	s.running.Store(false)
}
