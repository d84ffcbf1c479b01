// Package persistence provides SQLite-based system state storage.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/arlstone/orrery/internal/engine"
	"github.com/arlstone/orrery/internal/planet"
	"github.com/arlstone/orrery/internal/resource"
	"github.com/arlstone/orrery/internal/trade"
)

// DB wraps a SQLite connection for system state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

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
	CREATE TABLE IF NOT EXISTS planets (
		name TEXT PRIMARY KEY,
		gravity REAL NOT NULL,
		distance REAL NOT NULL,
		period REAL NOT NULL,
		angle REAL NOT NULL,
		qol_rate REAL NOT NULL,
		initial_json TEXT NOT NULL,
		raw_json TEXT NOT NULL,
		available_json TEXT NOT NULL,
		rate_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		from_name TEXT NOT NULL,
		to_name TEXT NOT NULL,
		annual_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		day INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sim_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		day INTEGER PRIMARY KEY,
		total_population REAL NOT NULL,
		alive_planets INTEGER NOT NULL,
		dead_planets INTEGER NOT NULL,
		daily_qol REAL NOT NULL,
		score REAL NOT NULL,
		active_transfers INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_snapshots (
		day_id INTEGER PRIMARY KEY,
		state_blob BLOB,
		final_hash TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_day ON events(day);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type planetRow struct {
	Name          string  `db:"name"`
	Gravity       float64 `db:"gravity"`
	Distance      float64 `db:"distance"`
	Period        float64 `db:"period"`
	Angle         float64 `db:"angle"`
	QOLRate       float64 `db:"qol_rate"`
	InitialJSON   string  `db:"initial_json"`
	RawJSON       string  `db:"raw_json"`
	AvailableJSON string  `db:"available_json"`
	RateJSON      string  `db:"rate_json"`
}

// SavePlanets writes all planets to the database (full replace).
func (db *DB) SavePlanets(planets []*planet.Planet) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM planets"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO planets
		(name, gravity, distance, period, angle, qol_rate,
		 initial_json, raw_json, available_json, rate_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range planets {
		initialJSON, _ := json.Marshal(p.Initial)
		rawJSON, _ := json.Marshal(p.Raw)
		availJSON, _ := json.Marshal(p.Available)
		rateJSON, _ := json.Marshal(p.Rate)

		_, err := stmt.Exec(
			p.Name, p.Gravity, p.Distance, p.Period, p.Angle, p.QOLRate,
			string(initialJSON), string(rawJSON), string(availJSON), string(rateJSON),
		)
		if err != nil {
			return fmt.Errorf("insert planet %s: %w", p.Name, err)
		}
	}

	return tx.Commit()
}

// LoadPlanets restores all planets from the database.
func (db *DB) LoadPlanets() ([]*planet.Planet, error) {
	var rows []planetRow
	if err := db.conn.Select(&rows, "SELECT * FROM planets ORDER BY name"); err != nil {
		return nil, err
	}

	planets := make([]*planet.Planet, 0, len(rows))
	for _, r := range rows {
		p := &planet.Planet{
			Name:     r.Name,
			Gravity:  r.Gravity,
			Distance: r.Distance,
			Period:   r.Period,
			Angle:    r.Angle,
			QOLRate:  r.QOLRate,
		}
		for _, pair := range []struct {
			raw  string
			dest *resource.Vector
		}{
			{r.InitialJSON, &p.Initial},
			{r.RawJSON, &p.Raw},
			{r.AvailableJSON, &p.Available},
			{r.RateJSON, &p.Rate},
		} {
			if err := json.Unmarshal([]byte(pair.raw), pair.dest); err != nil {
				return nil, fmt.Errorf("decode planet %s: %w", r.Name, err)
			}
		}
		planets = append(planets, p)
	}

	return planets, nil
}

type transferRow struct {
	ID         string `db:"id"`
	FromName   string `db:"from_name"`
	ToName     string `db:"to_name"`
	AnnualJSON string `db:"annual_json"`
}

// SaveTransfers writes the standing transfer ledger (full replace).
func (db *DB) SaveTransfers(transfers []trade.Transfer) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM transfers"); err != nil {
		return err
	}

	for _, t := range transfers {
		annualJSON, _ := json.Marshal(t.Annual)
		_, err := tx.Exec(
			"INSERT INTO transfers (id, from_name, to_name, annual_json) VALUES (?, ?, ?, ?)",
			t.ID, t.From, t.To, string(annualJSON),
		)
		if err != nil {
			return fmt.Errorf("insert transfer %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// LoadTransfers restores the standing transfer ledger.
func (db *DB) LoadTransfers() ([]trade.Transfer, error) {
	var rows []transferRow
	if err := db.conn.Select(&rows, "SELECT * FROM transfers ORDER BY id"); err != nil {
		return nil, err
	}

	transfers := make([]trade.Transfer, 0, len(rows))
	for _, r := range rows {
		t := trade.Transfer{ID: r.ID, From: r.FromName, To: r.ToName}
		if err := json.Unmarshal([]byte(r.AnnualJSON), &t.Annual); err != nil {
			return nil, fmt.Errorf("decode transfer %s: %w", r.ID, err)
		}
		transfers = append(transfers, t)
	}

	return transfers, nil
}

// SaveEvents mirrors the in-memory event log (full replace). Meta is
// display detail and is not persisted.
func (db *DB) SaveEvents(events []engine.Event) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM events"); err != nil {
		return err
	}

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (day, description, category) VALUES (?, ?, ?)",
			e.Day, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadEvents restores the event log, oldest first.
func (db *DB) LoadEvents() ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT day, description, category FROM events ORDER BY id")
	return events, err
}

// RecentEvents returns the most recent N events.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT day, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}

type statsRow struct {
	Day             uint64  `db:"day"`
	TotalPopulation float64 `db:"total_population"`
	AlivePlanets    int     `db:"alive_planets"`
	DeadPlanets     int     `db:"dead_planets"`
	DailyQOL        float64 `db:"daily_qol"`
	Score           float64 `db:"score"`
	ActiveTransfers int     `db:"active_transfers"`
}

// SaveStats records one day's aggregate statistics.
func (db *DB) SaveStats(s engine.SimStats) error {
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO daily_stats
		(day, total_population, alive_planets, dead_planets, daily_qol, score, active_transfers)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.Day, s.TotalPopulation, s.AlivePlanets, s.DeadPlanets,
		s.DailyQOL, s.Score, s.ActiveTransfers,
	)
	return err
}

// StatsHistory returns daily statistics from a starting day, oldest
// first, capped at limit rows.
func (db *DB) StatsHistory(fromDay uint64, limit int) ([]engine.SimStats, error) {
	var rows []statsRow
	err := db.conn.Select(&rows,
		"SELECT * FROM daily_stats WHERE day >= ? ORDER BY day LIMIT ?",
		fromDay, limit,
	)
	if err != nil {
		return nil, err
	}

	stats := make([]engine.SimStats, 0, len(rows))
	for _, r := range rows {
		stats = append(stats, engine.SimStats{
			Day:             r.Day,
			TotalPopulation: r.TotalPopulation,
			AlivePlanets:    r.AlivePlanets,
			DeadPlanets:     r.DeadPlanets,
			DailyQOL:        r.DailyQOL,
			Score:           r.Score,
			ActiveTransfers: r.ActiveTransfers,
		})
	}
	return stats, nil
}

// SaveMeta stores a key-value pair in system metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO sim_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM sim_meta WHERE key = ?", key)
	return value, err
}

// HasState reports whether a saved system exists.
func (db *DB) HasState() bool {
	var count int
	if err := db.conn.Get(&count, "SELECT COUNT(*) FROM planets"); err != nil {
		return false
	}
	return count > 0
}

// SaveState performs a full save of the simulation.
func (db *DB) SaveState(sim *engine.Simulation) error {
	slog.Info("saving state", "day", sim.Day, "planets", len(sim.Planets))

	if err := db.SavePlanets(sim.Planets); err != nil {
		return fmt.Errorf("save planets: %w", err)
	}
	if err := db.SaveTransfers(sim.Ledger.Transfers()); err != nil {
		return fmt.Errorf("save transfers: %w", err)
	}
	if err := db.SaveEvents(sim.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_day", strconv.FormatUint(sim.Day, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("score", strconv.FormatFloat(sim.Score, 'g', -1, 64)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveStats(sim.Stats); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}

	slog.Info("state saved")
	return nil
}

// LastDay returns the persisted day counter, or 0 for a fresh system.
func (db *DB) LastDay() uint64 {
	v, err := db.GetMeta("last_day")
	if err != nil {
		return 0
	}
	day, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0
	}
	return day
}

// LastScore returns the persisted running score, or 0.
func (db *DB) LastScore() float64 {
	v, err := db.GetMeta("score")
	if err != nil {
		return 0
	}
	score, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return score
}
