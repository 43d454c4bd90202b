package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agendapet/agendapet/libs/db"
	"github.com/agendapet/agendapet/libs/petshop"
)

type ProfileStore struct {
	pool *db.Pool
}

func NewProfileStore(pool *db.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

const profileColumns = `
	tenant_id::text, shop_name, COALESCE(assistant_name, ''), voice_tone,
	COALESCE(services, '[]'::jsonb), COALESCE(business_hours, '[]'::jsonb),
	COALESCE(phone, ''), COALESCE(address, ''), COALESCE(neighborhood, ''),
	COALESCE(city, ''), COALESCE(state, ''), COALESCE(instance_name, ''), channel_status`

func scanProfile(row interface{ Scan(...any) error }) (petshop.BusinessProfile, error) {
	var p petshop.BusinessProfile
	var servicesRaw, hoursRaw []byte
	err := row.Scan(
		&p.TenantID,
		&p.ShopName,
		&p.AssistantName,
		&p.VoiceTone,
		&servicesRaw,
		&hoursRaw,
		&p.Phone,
		&p.Address,
		&p.Neighborhood,
		&p.City,
		&p.State,
		&p.InstanceName,
		&p.ChannelStatus,
	)
	if err != nil {
		return petshop.BusinessProfile{}, err
	}
	if err := json.Unmarshal(servicesRaw, &p.Services); err != nil {
		return petshop.BusinessProfile{}, fmt.Errorf("decode services: %w", err)
	}
	if err := json.Unmarshal(hoursRaw, &p.BusinessHours); err != nil {
		return petshop.BusinessProfile{}, fmt.Errorf("decode business hours: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) GetByInstance(ctx context.Context, instance string) (petshop.BusinessProfile, error) {
	return scanProfile(s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM business_profiles
		WHERE instance_name = $1
	`, instance))
}

func (s *ProfileStore) UpdateChannelStatus(ctx context.Context, instance string, status petshop.ChannelStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE business_profiles
		SET channel_status = $2, updated_at = now()
		WHERE instance_name = $1
	`, instance, string(status))
	return err
}
