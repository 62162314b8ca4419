package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQL database connection
type DB struct {
	conn *sql.DB
}

// PlayRecord is one row of a guild's play history
type PlayRecord struct {
	ID          int       `json:"id"`
	GuildID     string    `json:"guild_id"`
	RequestedBy string    `json:"requested_by"`
	Title       string    `json:"title"`
	SourceURL   string    `json:"source_url"`
	PlayedAt    time.Time `json:"played_at"`
}

// NewDB creates a new database connection and initializes tables
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// sqlite allows a single writer; players record history concurrently.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}

	// Initialize tables
	if err := db.initTables(); err != nil {
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initTables creates the necessary database tables
func (db *DB) initTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS guild_music_settings (
		guild_id TEXT PRIMARY KEY,
		volume REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS play_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guild_id TEXT NOT NULL,
		requested_by TEXT NOT NULL,
		title TEXT NOT NULL,
		source_url TEXT NOT NULL,
		played_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_play_history_guild ON play_history(guild_id, played_at);
	`

	_, err := db.conn.Exec(query)
	return err
}

// GetGuildVolume returns the stored volume for a guild. ok is false when the
// guild never set one.
func (db *DB) GetGuildVolume(guildID string) (volume float64, ok bool, err error) {
	err = db.conn.QueryRow(`SELECT volume FROM guild_music_settings WHERE guild_id = ?`, guildID).Scan(&volume)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get guild volume: %w", err)
	}
	return volume, true, nil
}

// SetGuildVolume stores or updates a guild's volume
func (db *DB) SetGuildVolume(guildID string, volume float64) error {
	query := `
	INSERT INTO guild_music_settings (guild_id, volume, updated_at)
	VALUES (?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(guild_id)
	DO UPDATE SET
		volume = excluded.volume,
		updated_at = CURRENT_TIMESTAMP
	`

	if _, err := db.conn.Exec(query, guildID, volume); err != nil {
		return fmt.Errorf("failed to store guild volume: %w", err)
	}
	return nil
}

// RecordPlay appends a track start to the guild's history
func (db *DB) RecordPlay(rec PlayRecord) error {
	if rec.PlayedAt.IsZero() {
		rec.PlayedAt = time.Now()
	}
	query := `
	INSERT INTO play_history (guild_id, requested_by, title, source_url, played_at)
	VALUES (?, ?, ?, ?, ?)
	`

	if _, err := db.conn.Exec(query, rec.GuildID, rec.RequestedBy, rec.Title, rec.SourceURL, rec.PlayedAt.UTC()); err != nil {
		return fmt.Errorf("failed to record play: %w", err)
	}
	return nil
}

// RecentPlays returns up to limit history rows for a guild, newest first
func (db *DB) RecentPlays(guildID string, limit int) ([]PlayRecord, error) {
	query := `
	SELECT id, guild_id, requested_by, title, source_url, played_at
	FROM play_history
	WHERE guild_id = ?
	ORDER BY played_at DESC, id DESC
	LIMIT ?
	`

	rows, err := db.conn.Query(query, guildID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query play history: %w", err)
	}
	defer rows.Close()

	var records []PlayRecord
	for rows.Next() {
		var rec PlayRecord
		if err := rows.Scan(&rec.ID, &rec.GuildID, &rec.RequestedBy, &rec.Title, &rec.SourceURL, &rec.PlayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan play history: %w", err)
		}
		records = append(records, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating play history: %w", err)
	}

	return records, nil
}

// PruneHistory deletes history rows played before the cutoff and reports how
// many were removed
func (db *DB) PruneHistory(before time.Time) (int64, error) {
	result, err := db.conn.Exec(`DELETE FROM play_history WHERE played_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune play history: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}

// GetStats returns some basic statistics about the database
func (db *DB) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalPlays int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM play_history").Scan(&totalPlays)
	if err != nil {
		return nil, fmt.Errorf("failed to count plays: %w", err)
	}
	stats["total_plays"] = totalPlays

	var guilds int
	err = db.conn.QueryRow("SELECT COUNT(DISTINCT guild_id) FROM play_history").Scan(&guilds)
	if err != nil {
		return nil, fmt.Errorf("failed to count guilds: %w", err)
	}
	stats["guilds"] = guilds

	var lastPlayed sql.NullString
	err = db.conn.QueryRow("SELECT MAX(played_at) FROM play_history").Scan(&lastPlayed)
	if err != nil {
		return nil, fmt.Errorf("failed to get last played: %w", err)
	}
	if lastPlayed.Valid {
		stats["last_played"] = lastPlayed.String
	} else {
		stats["last_played"] = "No data"
	}

	return stats, nil
}
