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

const (
	EventAppointmentCreated       = "appointments.created.v1"
	EventAppointmentStatusChanged = "appointments.status_changed.v1"
	EventAppointmentRescheduled   = "appointments.rescheduled.v1"
	EventAppointmentDeleted       = "appointments.deleted.v1"
)

// Store backs the dashboard CRUD surface. Every query is tenant scoped and
// every mutation commits together with its outbox event.
type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool, ob *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: ob}
}

const appointmentColumns = `
	id::text, tenant_id::text, pet_name, owner_name, owner_phone, service,
	date, time, status, COALESCE(notes, ''), reminder_sent_at, created_at, updated_at`

func scanAppointment(row pgx.Row) (petshop.Appointment, error) {
	var a petshop.Appointment
	var reminderSentAt *time.Time
	err := row.Scan(
		&a.ID, &a.TenantID, &a.PetName, &a.OwnerName, &a.OwnerPhone, &a.Service,
		&a.Date, &a.Time, &a.Status, &a.Notes, &reminderSentAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return petshop.Appointment{}, err
	}
	a.ReminderSentAt = reminderSentAt
	return a, nil
}

// List returns the tenant's appointments from a given day onward, optionally
// filtered by status, soonest first.
func (s *Store) List(ctx context.Context, tenantID, fromDate string, status petshop.Status) ([]petshop.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1
			AND ($2 = '' OR date >= $2)
			AND ($3 = '' OR status = $3)
		ORDER BY date, time
	`, tenantID, fromDate, string(status))
	if err != nil {
		return nil, err
	}
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

func (s *Store) GetByID(ctx context.Context, tenantID, id string) (petshop.Appointment, error) {
	return scanAppointment(s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id))
}

func (s *Store) Create(ctx context.Context, appt petshop.Appointment) (petshop.Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return petshop.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	created, err := scanAppointment(tx.QueryRow(ctx, `
		INSERT INTO appointments (id, tenant_id, pet_name, owner_name, owner_phone, service, date, time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+appointmentColumns,
		uuid.NewString(), appt.TenantID, appt.PetName, appt.OwnerName, appt.OwnerPhone,
		appt.Service, appt.Date, appt.Time, string(appt.Status), appt.Notes))
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

// SetStatus moves the row from -> to conditionally, so a chat mutation that
// slipped in between the dashboard's read and write loses nothing: the
// caller sees false and can re-read.
func (s *Store) SetStatus(ctx context.Context, tenantID, id string, from, to petshop.Status) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $4, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = $3
	`, tenantID, id, string(from), string(to))
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"tenant_id":      tenantID,
		"status":         to,
	})
	if err != nil {
		return false, err
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     EventAppointmentStatusChanged,
		Payload:       payload,
	}); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) UpdateSchedule(ctx context.Context, tenantID, id, date, timeOfDay string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE appointments
		SET date = $3, time = $4, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, date, timeOfDay)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"tenant_id":      tenantID,
		"new_date":       date,
		"new_time":       timeOfDay,
	})
	if err != nil {
		return false, err
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     EventAppointmentRescheduled,
		Payload:       payload,
	}); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) Delete(ctx context.Context, tenantID, id string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM appointments
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"tenant_id":      tenantID,
	})
	if err != nil {
		return false, err
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     EventAppointmentDeleted,
		Payload:       payload,
	}); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetProfile(ctx context.Context, tenantID string) (petshop.BusinessProfile, error) {
	var p petshop.BusinessProfile
	var servicesRaw, hoursRaw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT tenant_id::text, shop_name, COALESCE(assistant_name, ''), voice_tone,
			COALESCE(services, '[]'::jsonb), COALESCE(business_hours, '[]'::jsonb),
			COALESCE(phone, ''), COALESCE(address, ''), COALESCE(neighborhood, ''),
			COALESCE(city, ''), COALESCE(state, ''), COALESCE(instance_name, ''), channel_status
		FROM business_profiles
		WHERE tenant_id = $1
	`, tenantID).Scan(
		&p.TenantID, &p.ShopName, &p.AssistantName, &p.VoiceTone,
		&servicesRaw, &hoursRaw,
		&p.Phone, &p.Address, &p.Neighborhood, &p.City, &p.State,
		&p.InstanceName, &p.ChannelStatus,
	)
	if err != nil {
		return petshop.BusinessProfile{}, err
	}
	if err := json.Unmarshal(servicesRaw, &p.Services); err != nil {
		return petshop.BusinessProfile{}, err
	}
	if err := json.Unmarshal(hoursRaw, &p.BusinessHours); err != nil {
		return petshop.BusinessProfile{}, err
	}
	return p, nil
}

// UpdateProfile writes the editable profile fields. Channel identity and
// connection status are owned by the gateway webhook, not the dashboard.
func (s *Store) UpdateProfile(ctx context.Context, p petshop.BusinessProfile) error {
	servicesRaw, err := json.Marshal(p.Services)
	if err != nil {
		return err
	}
	hoursRaw, err := json.Marshal(p.BusinessHours)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE business_profiles
		SET shop_name = $2,
			assistant_name = $3,
			voice_tone = $4,
			services = $5,
			business_hours = $6,
			phone = $7,
			address = $8,
			neighborhood = $9,
			city = $10,
			state = $11,
			updated_at = now()
		WHERE tenant_id = $1
	`, p.TenantID, p.ShopName, p.AssistantName, string(p.VoiceTone),
		servicesRaw, hoursRaw, p.Phone, p.Address, p.Neighborhood, p.City, p.State)
	return err
}
