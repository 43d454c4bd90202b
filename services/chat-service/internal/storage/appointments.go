package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/agendapet/agendapet/libs/db"
	"github.com/agendapet/agendapet/libs/outbox"
	"github.com/agendapet/agendapet/libs/petshop"
)

// Event types emitted on the appointments aggregate.
const (
	EventAppointmentCreated       = "appointments.created.v1"
	EventAppointmentStatusChanged = "appointments.status_changed.v1"
	EventAppointmentRescheduled   = "appointments.rescheduled.v1"
)

// AppointmentStore is the chat engine's view of the ledger. Every mutation is
// a conditional update committed together with its outbox event.
type AppointmentStore struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentStore(pool *db.Pool, ob *outbox.Repository) *AppointmentStore {
	return &AppointmentStore{pool: pool, outbox: ob}
}

const appointmentColumns = `
	id::text, tenant_id::text, pet_name, owner_name, owner_phone, service,
	date, time, status, COALESCE(notes, ''), reminder_sent_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (petshop.Appointment, error) {
	var a petshop.Appointment
	var reminderSentAt *time.Time
	err := row.Scan(
		&a.ID,
		&a.TenantID,
		&a.PetName,
		&a.OwnerName,
		&a.OwnerPhone,
		&a.Service,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.Notes,
		&reminderSentAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return petshop.Appointment{}, err
	}
	a.ReminderSentAt = reminderSentAt
	return a, nil
}

func (s *AppointmentStore) CreatePending(ctx context.Context, appt petshop.Appointment) (petshop.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return petshop.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments (id, tenant_id, pet_name, owner_name, owner_phone, service, date, time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9)
		RETURNING `+appointmentColumns,
		uuid.NewString(), appt.TenantID, appt.PetName, appt.OwnerName, appt.OwnerPhone,
		appt.Service, appt.Date, appt.Time, appt.Notes))
	if err != nil {
		return petshop.Appointment{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": created.ID,
		"tenant_id":      created.TenantID,
		"pet_name":       created.PetName,
		"service":        created.Service,
		"date":           created.Date,
		"time":           created.Time,
		"status":         created.Status,
	})
	if err != nil {
		return petshop.Appointment{}, err
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   created.ID,
		EventType:     EventAppointmentCreated,
		Payload:       payload,
	}); err != nil {
		return petshop.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return petshop.Appointment{}, err
	}
	return created, nil
}

// ConfirmSlot moves pending appointments at (tenant, date, time) to
// confirmed. Zero rows means nothing was pending there; that is a no-op, not
// an error.
func (s *AppointmentStore) ConfirmSlot(ctx context.Context, tenantID, date, timeOfDay string) (int, error) {
	return s.updateSlotStatus(ctx, tenantID, date, timeOfDay,
		[]petshop.Status{petshop.StatusPending}, petshop.StatusConfirmed)
}

// CancelSlot cancels every non-cancelled appointment at (tenant, date, time).
func (s *AppointmentStore) CancelSlot(ctx context.Context, tenantID, date, timeOfDay string) (int, error) {
	return s.updateSlotStatus(ctx, tenantID, date, timeOfDay,
		[]petshop.Status{petshop.StatusPending, petshop.StatusConfirmed, petshop.StatusCompleted}, petshop.StatusCancelled)
}

func (s *AppointmentStore) updateSlotStatus(ctx context.Context, tenantID, date, timeOfDay string, from []petshop.Status, to petshop.Status) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	fromText := make([]string, len(from))
	for i, st := range from {
		fromText[i] = string(st)
	}
	rows, err := tx.Query(ctx, `
		UPDATE appointments
		SET status = $4, updated_at = now()
		WHERE tenant_id = $1 AND date = $2 AND time = $3 AND status = ANY($5)
		RETURNING id::text
	`, tenantID, date, timeOfDay, string(to), fromText)
	if err != nil {
		return 0, err
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		if err := s.insertStatusEvent(ctx, tx, id, tenantID, to); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ConfirmByID is the quick-intent path: pending -> confirmed, conditional on
// the row still being pending.
func (s *AppointmentStore) ConfirmByID(ctx context.Context, id string) (bool, error) {
	return s.updateStatusByID(ctx, id,
		[]petshop.Status{petshop.StatusPending}, petshop.StatusConfirmed)
}

// CancelByID cancels a live appointment; terminal rows are left untouched.
func (s *AppointmentStore) CancelByID(ctx context.Context, id string) (bool, error) {
	return s.updateStatusByID(ctx, id,
		[]petshop.Status{petshop.StatusPending, petshop.StatusConfirmed}, petshop.StatusCancelled)
}

func (s *AppointmentStore) updateStatusByID(ctx context.Context, id string, from []petshop.Status, to petshop.Status) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	fromText := make([]string, len(from))
	for i, st := range from {
		fromText[i] = string(st)
	}
	var tenantID string
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING tenant_id::text
	`, id, string(to), fromText).Scan(&tenantID)
	if err == pgx.ErrNoRows {
		return false, tx.Commit(ctx)
	}
	if err != nil {
		return false, err
	}

	if err := s.insertStatusEvent(ctx, tx, id, tenantID, to); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// RescheduleSlot moves (tenant, oldDate, oldTime) to the new slot, keeping
// status untouched.
func (s *AppointmentStore) RescheduleSlot(ctx context.Context, tenantID, oldDate, oldTime, newDate, newTime string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		UPDATE appointments
		SET date = $4, time = $5, updated_at = now()
		WHERE tenant_id = $1 AND date = $2 AND time = $3 AND status <> 'cancelled'
		RETURNING id::text
	`, tenantID, oldDate, oldTime, newDate, newTime)
	if err != nil {
		return 0, err
	}
	ids, err := collectIDs(rows)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		payload, err := json.Marshal(map[string]any{
			"appointment_id": id,
			"tenant_id":      tenantID,
			"old_date":       oldDate,
			"old_time":       oldTime,
			"new_date":       newDate,
			"new_time":       newTime,
		})
		if err != nil {
			return 0, err
		}
		if err := s.outbox.Insert(ctx, tx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   id,
			EventType:     EventAppointmentRescheduled,
			Payload:       payload,
		}); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *AppointmentStore) ListUpcoming(ctx context.Context, tenantID, fromDate string) ([]petshop.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND date >= $2 AND status <> 'cancelled'
		ORDER BY date, time
	`, tenantID, fromDate)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *AppointmentStore) ListCompletedBefore(ctx context.Context, tenantID, date string) ([]petshop.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND date < $2 AND status = 'completed'
		ORDER BY date DESC, time DESC
		LIMIT 100
	`, tenantID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (s *AppointmentStore) insertStatusEvent(ctx context.Context, tx pgx.Tx, id, tenantID string, to petshop.Status) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"tenant_id":      tenantID,
		"status":         to,
	})
	if err != nil {
		return err
	}
	return s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     EventAppointmentStatusChanged,
		Payload:       payload,
	})
}

func collectIDs(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func collectAppointments(rows pgx.Rows) ([]petshop.Appointment, error) {
	defer rows.Close()
	var appts []petshop.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}
