// Package persistence provides SQLite-based campaign storage: colony state, turn
// results, events, and a hash-chained snapshot history.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/starcolony/internal/colony"
	"github.com/talgya/starcolony/internal/empire"
)

// Meta keys.
const (
	MetaCampaignID = "campaign_id"
	MetaLastTurn   = "last_turn"
	MetaSeed       = "seed"
	MetaCatalog    = "catalog_digest"
)

// DB wraps a SQLite connection for campaign persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; the engine goroutine and the API share it.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS colonies (
		id INTEGER PRIMARY KEY,
		empire_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		population INTEGER NOT NULL,
		state_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		turn INTEGER NOT NULL,
		empire_id INTEGER NOT NULL,
		colony_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		severity INTEGER NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS turn_results (
		turn INTEGER NOT NULL,
		empire_id INTEGER NOT NULL,
		population INTEGER NOT NULL,
		result_json TEXT NOT NULL,
		PRIMARY KEY (turn, empire_id)
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		turn INTEGER PRIMARY KEY,
		raw_size INTEGER NOT NULL,
		hash TEXT NOT NULL,
		prev_hash TEXT NOT NULL,
		data BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_turn ON events(turn);
	CREATE INDEX IF NOT EXISTS idx_events_colony ON events(colony_id);
	CREATE INDEX IF NOT EXISTS idx_colonies_empire ON colonies(empire_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveMeta stores a key-value pair in campaign metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns sql.ErrNoRows.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// CampaignID returns the campaign's id, minting one on first use.
func (db *DB) CampaignID() (string, error) {
	id, err := db.GetMeta(MetaCampaignID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	id = uuid.NewString()
	if err := db.SaveMeta(MetaCampaignID, id); err != nil {
		return "", err
	}
	return id, nil
}

// LastTurn returns the last saved turn, 0 for a fresh database.
func (db *DB) LastTurn() (uint64, error) {
	v, err := db.GetMeta(MetaLastTurn)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(v, 10, 64)
}

// HasState reports whether any colony has been saved.
func (db *DB) HasState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM colonies"); err != nil {
		return false
	}
	return n > 0
}

// SaveColonies writes every colony state (full replace) and records the turn.
func (db *DB) SaveColonies(turn uint64, states []colony.State) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := writeColonies(tx, turn, states); err != nil {
		return err
	}
	return tx.Commit()
}

func writeColonies(tx *sqlx.Tx, turn uint64, states []colony.State) error {
	if _, err := tx.Exec("DELETE FROM colonies"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO colonies
		(id, empire_id, name, status, population, state_json)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range states {
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode colony %d: %w", s.ID, err)
		}
		pop := 0
		for _, p := range s.Pops {
			pop += p.Size
		}
		if _, err := stmt.Exec(uint64(s.ID), s.EmpireID, s.Name, s.Status.String(), pop, string(b)); err != nil {
			return fmt.Errorf("insert colony %d: %w", s.ID, err)
		}
	}

	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		MetaLastTurn, strconv.FormatUint(turn, 10),
	); err != nil {
		return err
	}
	return nil
}

// LoadColonies reads every saved colony state ordered by id.
func (db *DB) LoadColonies() ([]colony.State, error) {
	var rows []string
	if err := db.conn.Select(&rows, "SELECT state_json FROM colonies ORDER BY id"); err != nil {
		return nil, err
	}
	out := make([]colony.State, 0, len(rows))
	for _, r := range rows {
		var s colony.State
		if err := json.Unmarshal([]byte(r), &s); err != nil {
			return nil, fmt.Errorf("decode colony: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// EventRecord is a stored colony event.
type EventRecord struct {
	Turn        uint64 `db:"turn" json:"turn"`
	EmpireID    uint64 `db:"empire_id" json:"empire_id"`
	ColonyID    uint64 `db:"colony_id" json:"colony_id"`
	Kind        string `db:"kind" json:"kind"`
	Severity    int    `db:"severity" json:"severity,omitempty"`
	Description string `db:"description" json:"description"`
}

// SaveTurn appends one turn's empire results and their events.
func (db *DB) SaveTurn(results []empire.TurnResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := writeTurn(tx, results); err != nil {
		return err
	}
	return tx.Commit()
}

func writeTurn(tx *sqlx.Tx, results []empire.TurnResult) error {
	for _, r := range results {
		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode turn %d empire %d: %w", r.Turn, r.EmpireID, err)
		}
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO turn_results (turn, empire_id, population, result_json) VALUES (?, ?, ?, ?)",
			r.Turn, r.EmpireID, r.Population, string(b),
		); err != nil {
			return fmt.Errorf("insert turn %d empire %d: %w", r.Turn, r.EmpireID, err)
		}
		for _, cr := range r.Colonies {
			for _, e := range cr.Events {
				if _, err := tx.Exec(
					"INSERT INTO events (turn, empire_id, colony_id, kind, severity, description) VALUES (?, ?, ?, ?, ?, ?)",
					e.Turn, r.EmpireID, uint64(cr.ColonyID), string(e.Kind), e.Severity, e.Description,
				); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// TurnResults returns the stored results of one turn, ordered by empire.
func (db *DB) TurnResults(turn uint64) ([]empire.TurnResult, error) {
	var rows []string
	if err := db.conn.Select(&rows,
		"SELECT result_json FROM turn_results WHERE turn = ? ORDER BY empire_id", turn,
	); err != nil {
		return nil, err
	}
	out := make([]empire.TurnResult, 0, len(rows))
	for _, r := range rows {
		var tr empire.TurnResult
		if err := json.Unmarshal([]byte(r), &tr); err != nil {
			return nil, fmt.Errorf("decode turn %d: %w", turn, err)
		}
		out = append(out, tr)
	}
	return out, nil
}

// RecentEvents returns the most recent events, newest first.
func (db *DB) RecentEvents(limit int) ([]EventRecord, error) {
	var events []EventRecord
	err := db.conn.Select(&events,
		"SELECT turn, empire_id, colony_id, kind, severity, description FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

// SaveState performs a full save of colonies, turn results and metadata in one
// transaction; on failure nothing is written.
func (db *DB) SaveState(turn uint64, states []colony.State, results []empire.TurnResult) error {
	slog.Debug("saving campaign state", "turn", turn, "colonies", len(states))
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := writeTurn(tx, results); err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	if err := writeColonies(tx, turn, states); err != nil {
		return fmt.Errorf("save colonies: %w", err)
	}
	return tx.Commit()
}
