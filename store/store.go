// Package store persists leaderboard scores and hire inquiries in SQLite.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidScore = errors.New("invalid score")
)

const (
	DefaultLeaderboardSize = 10
	MaxLeaderboardSize     = 100
)

// Score is one finished game on the leaderboard
type Score struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Player     string    `json:"player"`
	Score      int       `json:"score"`
	Length     int       `json:"length"`
	Ticks      int       `json:"ticks"`
	Cause      string    `json:"cause"`
	ConfigName string    `json:"config_name"`
	CreatedAt  time.Time `json:"created_at"`
}

// Inquiry is a hire request submitted through the contact form
type Inquiry struct {
	ID         int64     `json:"id"`
	UUID       string    `json:"uuid"`
	Company    string    `json:"company"`
	Pay        string    `json:"pay"`
	Contact    string    `json:"contact"`
	JobDetails string    `json:"job_details"`
	HashedIP   string    `json:"hashed_ip"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store wraps the SQLite database
type Store struct {
	db   *sql.DB
	salt string
}

// Open opens (or creates) the database at path and runs the migrations.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database exists per connection
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// SetSalt sets the salt mixed into hashed client addresses
func (s *Store) SetSalt(salt string) {
	s.salt = salt
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS scores (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			player TEXT NOT NULL DEFAULT 'anonymous',
			score INTEGER NOT NULL,
			length INTEGER NOT NULL,
			ticks INTEGER NOT NULL,
			cause TEXT NOT NULL,
			config_name TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scores_rank ON scores (config_name, score DESC, created_at)`,
		`CREATE TABLE IF NOT EXISTS inquiries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			company TEXT NOT NULL,
			pay TEXT,
			contact TEXT NOT NULL,
			job_details TEXT,
			hashed_ip TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inquiries_ip ON inquiries (hashed_ip, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// HashIP hashes a client address so raw IPs are never stored
func (s *Store) HashIP(ip string) string {
	hash := sha256.New()
	hash.Write([]byte(ip + s.salt))
	return hex.EncodeToString(hash.Sum(nil))[:16]
}

// RecordScore inserts a finished game and returns its id
func (s *Store) RecordScore(ctx context.Context, score Score) (int64, error) {
	if score.SessionID == "" || score.Score < 0 {
		return 0, ErrInvalidScore
	}
	if strings.TrimSpace(score.Player) == "" {
		score.Player = "anonymous"
	}
	if score.CreatedAt.IsZero() {
		score.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO scores (session_id, player, score, length, ticks, cause, config_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, score.SessionID, score.Player, score.Score, score.Length, score.Ticks, score.Cause, score.ConfigName, score.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to record score: %w", err)
	}
	return result.LastInsertId()
}

// SetPlayer names the player of a recorded score
func (s *Store) SetPlayer(ctx context.Context, id int64, player string) (*Score, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return nil, fmt.Errorf("%w: player name is required", ErrInvalidScore)
	}
	if len(player) > 32 {
		player = player[:32]
	}

	result, err := s.db.ExecContext(ctx, `UPDATE scores SET player = ? WHERE id = ?`, player, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update score: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetScore(ctx, id)
}

// GetScore returns a single score by id
func (s *Store) GetScore(ctx context.Context, id int64) (*Score, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, player, score, length, ticks, cause, config_name, created_at
		FROM scores WHERE id = ?
	`, id)

	var sc Score
	err := row.Scan(&sc.ID, &sc.SessionID, &sc.Player, &sc.Score, &sc.Length, &sc.Ticks, &sc.Cause, &sc.ConfigName, &sc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read score: %w", err)
	}
	return &sc, nil
}

// TopScores returns the best scores, highest first, ties broken by the
// earlier game. An empty configName ranks across all presets.
func (s *Store) TopScores(ctx context.Context, configName string, limit int) ([]Score, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardSize
	}
	if limit > MaxLeaderboardSize {
		limit = MaxLeaderboardSize
	}

	query := `
		SELECT id, session_id, player, score, length, ticks, cause, config_name, created_at
		FROM scores`
	args := []any{}
	if configName != "" {
		query += ` WHERE config_name = ?`
		args = append(args, configName)
	}
	query += ` ORDER BY score DESC, created_at ASC, id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer rows.Close()

	scores := []Score{}
	for rows.Next() {
		var sc Score
		if err := rows.Scan(&sc.ID, &sc.SessionID, &sc.Player, &sc.Score, &sc.Length, &sc.Ticks, &sc.Cause, &sc.ConfigName, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// SaveInquiry stores a hire inquiry
func (s *Store) SaveInquiry(ctx context.Context, inq Inquiry) (int64, error) {
	if inq.CreatedAt.IsZero() {
		inq.CreatedAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO inquiries (uuid, company, pay, contact, job_details, hashed_ip, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, inq.UUID, inq.Company, inq.Pay, inq.Contact, inq.JobDetails, inq.HashedIP, inq.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to save inquiry: %w", err)
	}
	return result.LastInsertId()
}

// LastInquiryAt returns the time of the latest inquiry from hashedIP
func (s *Store) LastInquiryAt(ctx context.Context, hashedIP string) (time.Time, error) {
	var last time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM inquiries WHERE hashed_ip = ? ORDER BY created_at DESC LIMIT 1
	`, hashedIP).Scan(&last)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query inquiries: %w", err)
	}
	return last, nil
}

// CountInquiries returns the number of stored inquiries
func (s *Store) CountInquiries(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inquiries`).Scan(&n)
	return n, err
}
