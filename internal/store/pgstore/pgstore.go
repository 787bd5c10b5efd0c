// Package pgstore is the Postgres-backed persistence option, selected via
// DB_TYPE=postgres and DATABASE_URL. It creates its schema on open and
// upserts on save, storing the bulkier structures (maze cells, coin pool,
// config) as JSONB blobs rather than normalizing them.
package pgstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"mazegame/server/internal/registry"
	"mazegame/server/internal/store"
)

// PostgresStore persists durable player records, the maze snapshot,
// server config, and the chat log to Postgres.
type PostgresStore struct {
	db *sql.DB
}

// New opens connString and initializes the schema if needed.
func New(connString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pgstore: ping: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("pgstore: init schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		player_id TEXT PRIMARY KEY,
		fingerprint TEXT,
		cookie TEXT,
		total_coins INTEGER NOT NULL DEFAULT 0,
		games_played INTEGER NOT NULL DEFAULT 0,
		games_won INTEGER NOT NULL DEFAULT 0,
		last_login_at TIMESTAMP WITH TIME ZONE,
		online BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS maze_snapshot (
		id INTEGER PRIMARY KEY DEFAULT 1,
		blob JSONB NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		CONSTRAINT single_row CHECK (id = 1)
	);

	CREATE TABLE IF NOT EXISTS server_config (
		id INTEGER PRIMARY KEY DEFAULT 1,
		blob JSONB NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		CONSTRAINT single_row CHECK (id = 1)
	);

	CREATE TABLE IF NOT EXISTS chat_log (
		id SERIAL PRIMARY KEY,
		sender TEXT NOT NULL,
		message TEXT NOT NULL,
		logged_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SavePlayers upserts every record in records.
func (s *PostgresStore) SavePlayers(records []registry.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("pgstore: save players: %w", err)
	}
	defer tx.Rollback()

	query := `
	INSERT INTO players (player_id, fingerprint, cookie, total_coins, games_played, games_won, last_login_at, online)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (player_id) DO UPDATE SET
		fingerprint = $2, cookie = $3, total_coins = $4, games_played = $5,
		games_won = $6, last_login_at = $7, online = $8, updated_at = NOW()
	`
	for _, r := range records {
		if _, err := tx.Exec(query, r.PlayerID, r.Fingerprint, r.Cookie,
			r.TotalCoins, r.GamesPlayed, r.GamesWon, r.LastLoginAt, r.Online); err != nil {
			return fmt.Errorf("pgstore: upsert player %s: %w", r.PlayerID, err)
		}
	}
	return tx.Commit()
}

// LoadPlayers returns every durable player record.
func (s *PostgresStore) LoadPlayers() ([]registry.Record, error) {
	rows, err := s.db.Query(`SELECT player_id, fingerprint, cookie, total_coins, games_played, games_won, last_login_at, online FROM players`)
	if err != nil {
		return nil, fmt.Errorf("pgstore: load players: %w", err)
	}
	defer rows.Close()

	var out []registry.Record
	for rows.Next() {
		var r registry.Record
		var lastLogin sql.NullTime
		if err := rows.Scan(&r.PlayerID, &r.Fingerprint, &r.Cookie, &r.TotalCoins,
			&r.GamesPlayed, &r.GamesWon, &lastLogin, &r.Online); err != nil {
			return nil, fmt.Errorf("pgstore: scan player: %w", err)
		}
		r.LastLoginAt = lastLogin.Time
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveMaze upserts the single maze snapshot row.
func (s *PostgresStore) SaveMaze(snap store.MazeSnapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("pgstore: marshal maze: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO maze_snapshot (id, blob) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET blob = $1, updated_at = NOW()
	`, string(blob))
	if err != nil {
		return fmt.Errorf("pgstore: save maze: %w", err)
	}
	return nil
}

// LoadMaze returns the single maze snapshot row. ok is false if no row
// has been written yet.
func (s *PostgresStore) LoadMaze() (store.MazeSnapshot, bool, error) {
	var blob string
	err := s.db.QueryRow(`SELECT blob FROM maze_snapshot WHERE id = 1`).Scan(&blob)
	if err == sql.ErrNoRows {
		return store.MazeSnapshot{}, false, nil
	}
	if err != nil {
		return store.MazeSnapshot{}, false, fmt.Errorf("pgstore: load maze: %w", err)
	}
	var snap store.MazeSnapshot
	if err := json.Unmarshal([]byte(blob), &snap); err != nil {
		return store.MazeSnapshot{}, false, fmt.Errorf("pgstore: unmarshal maze: %w", err)
	}
	return snap, true, nil
}

// SaveConfig upserts the single server config row.
func (s *PostgresStore) SaveConfig(v interface{}) error {
	blob, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("pgstore: marshal config: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO server_config (id, blob) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET blob = $1, updated_at = NOW()
	`, string(blob))
	if err != nil {
		return fmt.Errorf("pgstore: save config: %w", err)
	}
	return nil
}

// LoadConfig decodes the single server config row into v. ok is false if
// no row has been written yet.
func (s *PostgresStore) LoadConfig(v interface{}) (bool, error) {
	var blob string
	err := s.db.QueryRow(`SELECT blob FROM server_config WHERE id = 1`).Scan(&blob)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("pgstore: load config: %w", err)
	}
	return true, json.Unmarshal([]byte(blob), v)
}

// AppendChatLog inserts one chat log row.
func (s *PostgresStore) AppendChatLog(sender, message string) error {
	_, err := s.db.Exec(`INSERT INTO chat_log (sender, message) VALUES ($1, $2)`, sender, message)
	if err != nil {
		return fmt.Errorf("pgstore: append chat log: %w", err)
	}
	return nil
}

// Backup is a no-op for Postgres: durability and point-in-time recovery
// are the database's job, not this process's.
func (s *PostgresStore) Backup() error { return nil }

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
