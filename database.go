package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	_ "modernc.org/sqlite"
)

var errMapNotFound = errors.New("map not found")

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// PlayerRow represents a player account record
type PlayerRow struct {
	ID        int64
	Username  string
	PassHash  string
	CreatedAt time.Time
}

// StatsRow represents persistent player stats
type StatsRow struct {
	PlayerID int64
	Kills    int
	Deaths   int
	Wins     int
	Games    int
	Playtime float64 // seconds
}

// OpenDB opens (or creates) the SQLite database
func OpenDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrency
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates tables if they don't exist
func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		pass_hash TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS stats (
		player_id INTEGER PRIMARY KEY REFERENCES players(id),
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		games INTEGER NOT NULL DEFAULT 0,
		playtime REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS maps (
		id TEXT PRIMARY KEY,
		owner_id INTEGER NOT NULL DEFAULT 0,
		owner_name TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		public INTEGER NOT NULL DEFAULT 0,
		plays INTEGER NOT NULL DEFAULT 0,
		data TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS game_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		map_id TEXT NOT NULL DEFAULT '',
		mode INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		winner_team INTEGER NOT NULL DEFAULT 0,
		winner_name TEXT NOT NULL DEFAULT '',
		draw INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS record_players (
		record_id INTEGER NOT NULL REFERENCES game_records(id),
		player_id INTEGER NOT NULL DEFAULT 0,
		name TEXT NOT NULL,
		team INTEGER NOT NULL DEFAULT 0,
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		score INTEGER NOT NULL DEFAULT 0,
		won INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_record_players_player ON record_players(player_id);
	CREATE INDEX IF NOT EXISTS idx_maps_public ON maps(public, plays);
	CREATE INDEX IF NOT EXISTS idx_players_username ON players(username);
	`
	_, err := db.conn.Exec(schema)
	if err != nil {
		log.Printf("DB migration error: %v", err)
	}
	return err
}

// GetSetting reads a settings value, "" when absent
func (db *DB) GetSetting(key string) string {
	var v string
	err := db.conn.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&v)
	if err != nil {
		return ""
	}
	return v
}

// SetSetting stores a settings value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

// CreatePlayer creates a new player account (returns player ID)
func (db *DB) CreatePlayer(username, passHash string) (int64, error) {
	res, err := db.conn.Exec(
		"INSERT INTO players (username, pass_hash) VALUES (?, ?)",
		username, passHash,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	_, err = db.conn.Exec("INSERT INTO stats (player_id) VALUES (?)", id)
	return id, err
}

// GetPlayerByUsername returns a player by username, nil when absent
func (db *DB) GetPlayerByUsername(username string) (*PlayerRow, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, pass_hash, created_at FROM players WHERE username = ?",
		username,
	)
	p := &PlayerRow{}
	err := row.Scan(&p.ID, &p.Username, &p.PassHash, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

// UsernameExists checks if a username is taken
func (db *DB) UsernameExists(username string) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM players WHERE username = ?", username).Scan(&count)
	return count > 0, err
}

// GetStats returns player stats, nil when absent
func (db *DB) GetStats(playerID int64) (*StatsRow, error) {
	row := db.conn.QueryRow(
		"SELECT player_id, kills, deaths, wins, games, playtime FROM stats WHERE player_id = ?",
		playerID,
	)
	s := &StatsRow{}
	err := row.Scan(&s.PlayerID, &s.Kills, &s.Deaths, &s.Wins, &s.Games, &s.Playtime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// UpdateStatsAfterGame folds one match into a player's stats
func (db *DB) UpdateStatsAfterGame(playerID int64, kills, deaths int, won bool, duration float64) error {
	winInc := 0
	if won {
		winInc = 1
	}
	_, err := db.conn.Exec(`
		UPDATE stats SET
			kills = kills + ?,
			deaths = deaths + ?,
			wins = wins + ?,
			games = games + 1,
			playtime = playtime + ?
		WHERE player_id = ?`,
		kills, deaths, winInc, duration, playerID,
	)
	return err
}

// SaveMap stores a map document durably. The caller decides visibility.
func (db *DB) SaveMap(doc MapDocument, ownerID int64, ownerName string, public bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	pub := 0
	if public {
		pub = 1
	}
	_, err = db.conn.Exec(`
		INSERT INTO maps (id, owner_id, owner_name, name, public, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, public = excluded.public, data = excluded.data`,
		doc.ID, ownerID, ownerName, doc.Name, pub, string(data),
	)
	return err
}

// LoadMap reads a stored map document
func (db *DB) LoadMap(id string) (*MapDocument, error) {
	var data string
	err := db.conn.QueryRow("SELECT data FROM maps WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, errMapNotFound
	}
	if err != nil {
		return nil, err
	}
	doc := &MapDocument{}
	if err := json.Unmarshal([]byte(data), doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ListPublicMaps returns community maps ordered by popularity
func (db *DB) ListPublicMaps(limit int) ([]MapInfo, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, owner_name, plays, data FROM maps
		WHERE public = 1 ORDER BY plays DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MapInfo
	for rows.Next() {
		var info MapInfo
		var data string
		if err := rows.Scan(&info.ID, &info.Name, &info.Owner, &info.Plays, &data); err != nil {
			return nil, err
		}
		var doc MapDocument
		if json.Unmarshal([]byte(data), &doc) == nil {
			info.Objects = len(doc.Objects)
		}
		result = append(result, info)
	}
	return result, rows.Err()
}

// IncrementMapPlays bumps a map's play counter
func (db *DB) IncrementMapPlays(id string) error {
	_, err := db.conn.Exec("UPDATE maps SET plays = plays + 1 WHERE id = ?", id)
	return err
}

// AppendGameRecord persists one finished match and its per-player rows
func (db *DB) AppendGameRecord(rec GameRecord) error {
	draw := 0
	if rec.Draw {
		draw = 1
	}
	res, err := db.conn.Exec(`
		INSERT INTO game_records (room_id, map_id, mode, duration, winner_team, winner_name, draw)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RoomID, rec.MapID, rec.Mode, rec.Duration, rec.WinnerTeam, rec.WinnerName, draw,
	)
	if err != nil {
		return err
	}
	recID, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for _, rp := range rec.Players {
		won := 0
		if rp.Won {
			won = 1
		}
		_, err = db.conn.Exec(`
			INSERT INTO record_players (record_id, player_id, name, team, kills, deaths, score, won)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			recID, rp.AuthPlayerID, rp.Name, rp.Team, rp.Kills, rp.Deaths, rp.Score, won,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
