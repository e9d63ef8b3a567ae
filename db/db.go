package db

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/sprinksync/irrigation-controller/internal/config"
)

// Open opens the SQLite database and applies the schema. Foreign keys are
// enabled so deleting a zone cascades to its schedules and group memberships.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplySchema(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func ApplySchema(conn *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS zones (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			gpio_pin INTEGER NOT NULL UNIQUE,
			active_high BOOLEAN NOT NULL DEFAULT 0,
			default_duration INTEGER NOT NULL DEFAULT 15,
			total_runtime INTEGER NOT NULL DEFAULT 0,
			last_run TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS zone_groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			default_duration INTEGER NOT NULL DEFAULT 15
		)`,
		`CREATE TABLE IF NOT EXISTS zone_group_members (
			group_id INTEGER NOT NULL REFERENCES zone_groups(id) ON DELETE CASCADE,
			zone_id INTEGER NOT NULL REFERENCES zones(id) ON DELETE CASCADE,
			sequence_order INTEGER NOT NULL,
			PRIMARY KEY (group_id, zone_id)
		)`,
		`CREATE TABLE IF NOT EXISTS schedules (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			zone_id INTEGER REFERENCES zones(id) ON DELETE CASCADE,
			group_id INTEGER REFERENCES zone_groups(id) ON DELETE CASCADE,
			start_time TEXT NOT NULL,
			duration INTEGER NOT NULL,
			days TEXT NOT NULL,
			enabled BOOLEAN NOT NULL DEFAULT 1,
			CHECK ((zone_id IS NULL) != (group_id IS NULL))
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			zone_id INTEGER NOT NULL REFERENCES zones(id) ON DELETE CASCADE,
			start_time TEXT NOT NULL,
			end_time TEXT,
			duration INTEGER,
			trigger_type TEXT NOT NULL,
			schedule_id INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS system_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			max_concurrent_zones INTEGER NOT NULL,
			min_duration_minutes INTEGER NOT NULL,
			max_duration_minutes INTEGER NOT NULL,
			stabilization_ms INTEGER NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// SeedDatabase writes the configured zone catalog and, if absent, the default
// safety limits. Zone names and default durations from config only apply on
// first insert; runtime totals and operator edits are never clobbered.
func SeedDatabase(conn *sql.DB, cfg *config.Config) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, z := range cfg.Zones {
		_, err = tx.Exec(`INSERT INTO zones (id, name, gpio_pin, active_high, default_duration)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET gpio_pin = excluded.gpio_pin, active_high = excluded.active_high`,
			z.ID, z.Name, z.Pin, cfg.RelayActiveHigh, defaultDuration(z.DefaultDuration))
		if err != nil {
			return fmt.Errorf("failed to seed zone %d: %w", z.ID, err)
		}
	}

	_, err = tx.Exec(`INSERT OR IGNORE INTO system_settings (id, max_concurrent_zones, min_duration_minutes, max_duration_minutes, stabilization_ms)
		VALUES (1, ?, ?, ?, ?)`,
		cfg.MaxConcurrentZones, cfg.MinDurationMinutes, cfg.MaxDurationMinutes, cfg.StabilizationMs)
	if err != nil {
		return fmt.Errorf("failed to seed system settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed transaction: %w", err)
	}

	log.Info().Int("zones", len(cfg.Zones)).Msg("Database seeded from config")
	return nil
}

func defaultDuration(d int) int {
	if d <= 0 {
		return 15
	}
	return d
}

func marshalJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
