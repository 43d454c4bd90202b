// Package applier is the sole writer for chat-driven appointment mutations.
// Every mutation is a single conditional statement in the ledger, so a
// replayed directive lands as a no-op instead of a duplicate.
package applier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/agendapet/agendapet/libs/petshop"
	"github.com/agendapet/agendapet/services/chat-service/internal/directive"
)

// Ledger is the slice of the appointment store the applier writes through.
// Slot mutations return the number of rows touched; zero means the directive
// did not resolve to a live appointment and the apply is a no-op.
type Ledger interface {
	CreatePending(ctx context.Context, appt petshop.Appointment) (petshop.Appointment, error)
	ConfirmSlot(ctx context.Context, tenantID, date, timeOfDay string) (int, error)
	CancelSlot(ctx context.Context, tenantID, date, timeOfDay string) (int, error)
	RescheduleSlot(ctx context.Context, tenantID, oldDate, oldTime, newDate, newTime string) (int, error)
}

type Applier struct {
	ledger Ledger
	logger *slog.Logger
}

func New(ledger Ledger, logger *slog.Logger) *Applier {
	return &Applier{ledger: ledger, logger: logger}
}

// Apply executes one validated directive against the tenant's ledger.
// Chat-created appointments always start pending; confirmation is a separate
// explicit step. Slot directives locate by (tenant, date, time) only.
func (a *Applier) Apply(ctx context.Context, tenantID, contact string, d directive.Directive) error {
	switch d.Type {
	case directive.TypeCreate:
		phone := d.OwnerPhone
		if phone == "" {
			phone = contact
		}
		created, err := a.ledger.CreatePending(ctx, petshop.Appointment{
			TenantID:   tenantID,
			PetName:    d.PetName,
			OwnerName:  d.OwnerName,
			OwnerPhone: petshop.NormalizePhone(phone),
			Service:    d.Service,
			Date:       d.Date,
			Time:       d.Time,
			Notes:      d.Notes,
		})
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		a.logger.Info("appointment created from chat",
			"tenant_id", tenantID, "appointment_id", created.ID, "date", d.Date, "time", d.Time)
		return nil

	case directive.TypeConfirm:
		n, err := a.ledger.ConfirmSlot(ctx, tenantID, d.Date, d.Time)
		if err != nil {
			return fmt.Errorf("confirm appointment: %w", err)
		}
		if n == 0 {
			a.logger.Info("confirm directive matched nothing", "tenant_id", tenantID, "date", d.Date, "time", d.Time)
		}
		return nil

	case directive.TypeCancel:
		n, err := a.ledger.CancelSlot(ctx, tenantID, d.Date, d.Time)
		if err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
		if n == 0 {
			a.logger.Info("cancel directive matched nothing", "tenant_id", tenantID, "date", d.Date, "time", d.Time)
		}
		return nil

	case directive.TypeReschedule:
		n, err := a.ledger.RescheduleSlot(ctx, tenantID, d.OldDate, d.OldTime, d.NewDate, d.NewTime)
		if err != nil {
			return fmt.Errorf("reschedule appointment: %w", err)
		}
		if n == 0 {
			a.logger.Info("reschedule directive matched nothing",
				"tenant_id", tenantID, "old_date", d.OldDate, "old_time", d.OldTime)
		}
		return nil

	default:
		return fmt.Errorf("unsupported directive type %q", d.Type)
	}
}
