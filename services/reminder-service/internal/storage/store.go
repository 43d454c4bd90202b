package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/agendapet/agendapet/libs/db"
	"github.com/agendapet/agendapet/libs/outbox"
	"github.com/agendapet/agendapet/libs/petshop"
)

const (
	EventReminderSent   = "reminders.sent.v1"
	EventReminderFailed = "reminders.failed.v1"
)

type Store struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewStore(pool *db.Pool, ob *outbox.Repository) *Store {
	return &Store{pool: pool, outbox: ob}
}

// Due lists appointments on date with a time in [from, to), still pending or
// confirmed, with no reminder sent yet. Ordered by tenant so the sweeper can
// group without re-sorting.
func (s *Store) Due(ctx context.Context, date, from, to string) ([]petshop.Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, tenant_id::text, pet_name, owner_name, owner_phone, service,
			date, time, status, COALESCE(notes, ''), reminder_sent_at, created_at, updated_at
		FROM appointments
		WHERE date = $1
			AND time >= $2
			AND time < $3
			AND status IN ('pending', 'confirmed')
			AND reminder_sent_at IS NULL
		ORDER BY tenant_id, time
	`, date, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []petshop.Appointment
	for rows.Next() {
		var a petshop.Appointment
		var reminderSentAt *time.Time
		if err := rows.Scan(
			&a.ID, &a.TenantID, &a.PetName, &a.OwnerName, &a.OwnerPhone, &a.Service,
			&a.Date, &a.Time, &a.Status, &a.Notes, &reminderSentAt, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		a.ReminderSentAt = reminderSentAt
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// MarkReminderSent flips the null timestamp to now. The null check makes the
// write the idempotency guard: a second caller gets false, never a second
// timestamp.
func (s *Store) MarkReminderSent(ctx context.Context, id string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var tenantID string
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET reminder_sent_at = now(), updated_at = now()
		WHERE id = $1 AND reminder_sent_at IS NULL
		RETURNING tenant_id::text
	`, id).Scan(&tenantID)
	if err == pgx.ErrNoRows {
		return false, tx.Commit(ctx)
	}
	if err != nil {
		return false, err
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"tenant_id":      tenantID,
	})
	if err != nil {
		return false, err
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "reminder",
		AggregateID:   id,
		EventType:     EventReminderSent,
		Payload:       payload,
	}); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// RecordFailure emits a delivery-failure event. The appointment row is left
// untouched so the next sweep retries it.
func (s *Store) RecordFailure(ctx context.Context, id, tenantID, reason string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"tenant_id":      tenantID,
		"reason":         reason,
	})
	if err != nil {
		return err
	}
	if err := s.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "reminder",
		AggregateID:   id,
		EventType:     EventReminderFailed,
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type ProfileStore struct {
	pool *db.Pool
}

func NewProfileStore(pool *db.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

func (s *ProfileStore) GetByTenant(ctx context.Context, tenantID string) (petshop.BusinessProfile, error) {
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
