package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"banquet_crm/internal/domain/settings"
)

// Settings document keys in app_settings.
const (
	SettingsKeyAssignment   = "assignment_rules"
	SettingsKeyIntegrations = "integrations"
	SettingsKeyAutomation   = "automation_rules"
)

type PostgresSettingsRepository struct {
	db *sql.DB
}

func NewPostgresSettingsRepository(db *sql.DB) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

// Load reads all settings documents. Absent keys keep their defaults.
func (r *PostgresSettingsRepository) Load(ctx context.Context) (*settings.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, fmt.Errorf("error loading settings: %w", err)
	}
	defer rows.Close()

	docs := make(map[string][]byte)
	for rows.Next() {
		var (
			key   string
			value []byte
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("error scanning settings row: %w", err)
		}
		docs[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings rows: %w", err)
	}
	return DecodeSettings(docs)
}

// DecodeSettings overlays stored JSON documents on the defaults.
func DecodeSettings(docs map[string][]byte) (*settings.Snapshot, error) {
	snap := settings.Defaults()
	targets := map[string]any{
		SettingsKeyAssignment:   &snap.Assignment,
		SettingsKeyIntegrations: &snap.Integrations,
		SettingsKeyAutomation:   &snap.Automation,
	}
	for key, target := range targets {
		raw, ok := docs[key]
		if !ok || len(raw) == 0 {
			continue
		}
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("error decoding settings %q: %w", key, err)
		}
	}
	if snap.Assignment.Mode == "" {
		snap.Assignment.Mode = settings.ModeRoundRobin
	}
	if snap.Assignment.Fallback == "" {
		snap.Assignment.Fallback = settings.FallbackRoundRobin
	}
	return snap, nil
}
