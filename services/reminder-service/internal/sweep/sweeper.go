package sweep

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/agendapet/agendapet/libs/petshop"
)

// Store is the ledger slice the sweeper needs. MarkReminderSent is a
// conditional write on the null timestamp; false means another sweep got
// there first.
type Store interface {
	Due(ctx context.Context, date, from, to string) ([]petshop.Appointment, error)
	MarkReminderSent(ctx context.Context, id string) (bool, error)
	RecordFailure(ctx context.Context, id, tenantID, reason string) error
}

type Profiles interface {
	GetByTenant(ctx context.Context, tenantID string) (petshop.BusinessProfile, error)
}

type Sender interface {
	SendText(ctx context.Context, instance, number, text string) error
}

type Sweeper struct {
	store    Store
	profiles Profiles
	sender   Sender
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time
	running  atomic.Bool
}

func NewSweeper(store Store, profiles Profiles, sender Sender, logger *slog.Logger, loc *time.Location) *Sweeper {
	if loc == nil {
		loc = time.UTC
	}
	return &Sweeper{
		store:    store,
		profiles: profiles,
		sender:   sender,
		logger:   logger,
		loc:      loc,
		now:      time.Now,
	}
}

// Sweep runs one pass over the reminder window and returns how many
// reminders went out. Overlapping in-process invocations are collapsed: a
// tick that arrives while a sweep is still running is skipped.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("sweep already running, skipping")
		return 0, nil
	}
	defer s.running.Store(false)

	now := s.now().In(s.loc)
	w := ComputeWindow(now)
	s.logger.Info("reminder sweep starting", "date", w.Date, "from", w.From, "to", w.To)

	due, err := s.store.Due(ctx, w.Date, w.From, w.To)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	byTenant := map[string][]petshop.Appointment{}
	var tenants []string
	for _, appt := range due {
		if _, seen := byTenant[appt.TenantID]; !seen {
			tenants = append(tenants, appt.TenantID)
		}
		byTenant[appt.TenantID] = append(byTenant[appt.TenantID], appt)
	}

	sent := 0
	for _, tenant := range tenants {
		sent += s.sweepTenant(ctx, tenant, byTenant[tenant])
	}
	s.logger.Info("reminder sweep finished", "due", len(due), "sent", sent)
	return sent, nil
}

func (s *Sweeper) sweepTenant(ctx context.Context, tenantID string, appts []petshop.Appointment) int {
	profile, err := s.profiles.GetByTenant(ctx, tenantID)
	if err != nil {
		s.logger.Error("profile load failed", "tenant_id", tenantID, "err", err)
		return 0
	}
	if profile.ChannelStatus != petshop.ChannelConnected {
		// Eligibility survives: the null timestamp retries these on a
		// later sweep once the channel reconnects.
		s.logger.Info("channel not connected, skipping tenant",
			"tenant_id", tenantID, "channel_status", profile.ChannelStatus, "appointments", len(appts))
		return 0
	}

	sent := 0
	for _, appt := range appts {
		if appt.OwnerPhone == "" {
			s.logger.Warn("appointment without contact, skipping", "appointment_id", appt.ID)
			continue
		}

		message := RenderReminder(profile, appt)
		number := petshop.NormalizePhone(appt.OwnerPhone)
		if err := s.sender.SendText(ctx, profile.InstanceName, number, message); err != nil {
			s.logger.Error("reminder delivery failed", "appointment_id", appt.ID, "err", err)
			if recErr := s.store.RecordFailure(ctx, appt.ID, tenantID, err.Error()); recErr != nil {
				s.logger.Error("failure record failed", "appointment_id", appt.ID, "err", recErr)
			}
			continue
		}

		marked, err := s.store.MarkReminderSent(ctx, appt.ID)
		if err != nil {
			s.logger.Error("reminder mark failed", "appointment_id", appt.ID, "err", err)
			continue
		}
		if !marked {
			s.logger.Warn("reminder already marked by a concurrent sweep", "appointment_id", appt.ID)
			continue
		}
		sent++
	}
	return sent
}
