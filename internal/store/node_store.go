package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/streetlight/gwnode/internal/ctlerr"
)

// NodeStore is the §4.B persistent config store for the node, backed by
// a single-row SQLite table acting as the key-value namespace named in
// §6.4. Save replaces the row by deleting it and inserting the new one
// inside a single transaction, so a crash mid-save leaves either the
// previous row or the new one, never an empty table or a partial row.
type NodeStore struct {
	conn *sql.DB
}

const nodeConfigRowID = 1

// OpenNodeStore opens (creating if absent) the SQLite file at path and
// ensures the kv table exists.
func OpenNodeStore(path string) (*NodeStore, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ctlerr.ErrStoreIO, path, err)
	}

	s := &NodeStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *NodeStore) Close() error {
	return s.conn.Close()
}

func (s *NodeStore) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS node_config (
		id INTEGER PRIMARY KEY,
		gateway_id TEXT NOT NULL,
		on_hour INTEGER NOT NULL,
		on_min INTEGER NOT NULL,
		off_hour INTEGER NOT NULL,
		off_min INTEGER NOT NULL,
		register_int INTEGER NOT NULL,
		status_int INTEGER NOT NULL,
		configured INTEGER NOT NULL,
		mode TEXT NOT NULL,
		light_state INTEGER NOT NULL
	);`
	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("%w: migrating node store: %v", ctlerr.ErrStoreIO, err)
	}
	return nil
}

// Load reads the single persisted NodeConfig row. An empty table is
// reported as ctlerr.ErrNotFound (first boot, or recovery from a crash
// mid-save).
func (s *NodeStore) Load() (*NodeConfig, error) {
	row := s.conn.QueryRow(`
		SELECT gateway_id, on_hour, on_min, off_hour, off_min,
		       register_int, status_int, configured, mode, light_state
		FROM node_config WHERE id = ?`, nodeConfigRowID)

	var cfg NodeConfig
	var configuredInt, lightStateInt int
	err := row.Scan(&cfg.GatewayId, &cfg.Schedule.OnHour, &cfg.Schedule.OnMin,
		&cfg.Schedule.OffHour, &cfg.Schedule.OffMin,
		&cfg.RegisterInterval, &cfg.StatusInterval,
		&configuredInt, &cfg.ControlMode, &lightStateInt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ctlerr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading node config: %v", ctlerr.ErrStoreIO, err)
	}
	cfg.Configured = configuredInt != 0
	cfg.LightState = lightStateInt != 0
	return &cfg, nil
}

// Save persists cfg as the single node_config row via delete-then-insert
// in one transaction; if the save does not commit, the previously saved
// row stays in force.
func (s *NodeStore) Save(cfg *NodeConfig) error {
	if cfg.Configured && cfg.GatewayId == "" {
		return fmt.Errorf("%w: configured node must have non-empty gatewayId", ctlerr.ErrConfigRejected)
	}
	if cfg.ControlMode != ModeAuto && cfg.LightState != (cfg.ControlMode == ModeManualOn) {
		return fmt.Errorf("%w: lightState must match forced value under %s", ctlerr.ErrConfigRejected, cfg.ControlMode)
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("%w: beginning save transaction: %v", ctlerr.ErrStoreIO, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM node_config WHERE id = ?`, nodeConfigRowID); err != nil {
		return fmt.Errorf("%w: clearing node config row: %v", ctlerr.ErrStoreIO, err)
	}

	_, err = tx.Exec(`
		INSERT INTO node_config
			(id, gateway_id, on_hour, on_min, off_hour, off_min,
			 register_int, status_int, configured, mode, light_state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nodeConfigRowID, cfg.GatewayId,
		cfg.Schedule.OnHour, cfg.Schedule.OnMin, cfg.Schedule.OffHour, cfg.Schedule.OffMin,
		cfg.RegisterInterval, cfg.StatusInterval,
		boolToInt(cfg.Configured), string(cfg.ControlMode), boolToInt(cfg.LightState))
	if err != nil {
		return fmt.Errorf("%w: inserting node config: %v", ctlerr.ErrStoreIO, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing node config save: %v", ctlerr.ErrStoreIO, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
