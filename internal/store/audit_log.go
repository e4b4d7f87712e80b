package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/streetlight/gwnode/internal/ctlerr"
)

// AuditLog is the gateway's local record of every device_config apply
// (§4.G), kept alongside the JSON GatewayStore so an operator can see
// the provisioning history even though GatewayStore itself only ever
// holds the current config. Backed by SQLite for the same reason the
// node's KV namespace is: an append-only table survives a crash between
// writes far better than a single JSON file would.
type AuditLog struct {
	conn *sql.DB
}

// AuditEntry is one row of the applied-config history.
type AuditEntry struct {
	ConfigVersion uint8
	GatewayId     string
	AppliedAtUnix int64
}

// OpenAuditLog opens (creating if absent) the SQLite file at path and
// ensures the audit table exists.
func OpenAuditLog(path string) (*AuditLog, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ctlerr.ErrStoreIO, path, err)
	}

	a := &AuditLog{conn: conn}
	if err := a.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return a, nil
}

func (a *AuditLog) migrate() error {
	_, err := a.conn.Exec(`
		CREATE TABLE IF NOT EXISTS config_apply_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			config_version INTEGER NOT NULL,
			gateway_id TEXT NOT NULL,
			applied_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("%w: creating config_apply_log table: %v", ctlerr.ErrStoreIO, err)
	}
	return nil
}

// RecordApplied appends one row. Called only when GatewayStore.ApplyIfNewer
// actually wrote a new config (§4.G's idempotence invariant), never on a
// no-op apply.
func (a *AuditLog) RecordApplied(gatewayId string, version uint8, appliedAtUnix int64) error {
	_, err := a.conn.Exec(
		`INSERT INTO config_apply_log (config_version, gateway_id, applied_at) VALUES (?, ?, ?)`,
		version, gatewayId, appliedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("%w: recording audit entry: %v", ctlerr.ErrStoreIO, err)
	}
	return nil
}

// Recent returns the most recent limit entries, newest first.
func (a *AuditLog) Recent(limit int) ([]AuditEntry, error) {
	rows, err := a.conn.Query(
		`SELECT config_version, gateway_id, applied_at FROM config_apply_log ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: querying audit log: %v", ctlerr.ErrStoreIO, err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ConfigVersion, &e.GatewayId, &e.AppliedAtUnix); err != nil {
			return nil, fmt.Errorf("%w: scanning audit row: %v", ctlerr.ErrStoreIO, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database handle.
func (a *AuditLog) Close() error {
	return a.conn.Close()
}
