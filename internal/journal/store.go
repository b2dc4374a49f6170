// Package journal persists the node's report and instruction history in
// SQLite so operators can audit what the node claimed and what the
// Central Unit decided, across restarts.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"safespace/internal/config"
	"safespace/internal/report"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; users clear the journal database after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match
// the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ReportStatus is the lifecycle of one journaled report.
type ReportStatus string

const (
	ReportSubmitted ReportStatus = "submitted"
	ReportConfirmed ReportStatus = "confirmed"
	ReportExpired   ReportStatus = "expired"
)

// ReportEntry is one journaled accident report.
type ReportEntry struct {
	ID         string
	LaneNumber string
	AIDetected bool
	MediaCount int
	Status     ReportStatus
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// InstructionEntry is one journaled Central Unit instruction.
type InstructionEntry struct {
	ID         int64
	Event      string
	IsAccident bool
	SpeedLimit int
	LaneStates []string
	ReceivedAt time.Time
}

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.JournalPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the journal database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecordReport journals an accepted report as submitted and returns its
// journal id.
func (s *Store) RecordReport(ctx context.Context, rep report.AccidentReport) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO reports (id, lane_number, ai_detected, media_count, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		rep.LaneNumber,
		boolToInt(rep.AIDetected),
		len(rep.MediaPaths),
		ReportSubmitted,
		rep.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// ResolveReport marks a journaled report as confirmed or expired.
func (s *Store) ResolveReport(ctx context.Context, id string, status ReportStatus) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE reports SET status = ?, resolved_at = ? WHERE id = ?`,
		status,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("resolve report: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report %q not found", id)
	}
	return nil
}

// RecordInstruction journals an inbound Central Unit decision.
func (s *Store) RecordInstruction(ctx context.Context, event string, inst report.Instruction) error {
	var laneStates any
	if len(inst.LaneStates) > 0 {
		encoded, err := json.Marshal(inst.LaneStates)
		if err != nil {
			return fmt.Errorf("encode lane states: %w", err)
		}
		laneStates = string(encoded)
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO instructions (event, is_accident, speed_limit, lane_states, received_at)
         VALUES (?, ?, ?, ?, ?)`,
		event,
		boolToInt(inst.IsAccident),
		nullableInt(inst.SpeedLimit),
		laneStates,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert instruction: %w", err)
	}
	return nil
}

// RecentReports returns the last n journaled reports, most recent first.
func (s *Store) RecentReports(ctx context.Context, n int) ([]ReportEntry, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, lane_number, ai_detected, media_count, status, created_at, resolved_at
         FROM reports ORDER BY created_at DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var entries []ReportEntry
	for rows.Next() {
		var (
			entry       ReportEntry
			aiDetected  int
			createdRaw  string
			resolvedRaw sql.NullString
		)
		if err := rows.Scan(&entry.ID, &entry.LaneNumber, &aiDetected, &entry.MediaCount,
			&entry.Status, &createdRaw, &resolvedRaw); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		entry.AIDetected = aiDetected != 0
		if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
			entry.CreatedAt = created
		}
		if resolvedRaw.Valid {
			if resolved, err := time.Parse(time.RFC3339Nano, resolvedRaw.String); err == nil {
				entry.ResolvedAt = &resolved
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RecentInstructions returns the last n journaled instructions, most
// recent first.
func (s *Store) RecentInstructions(ctx context.Context, n int) ([]InstructionEntry, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, event, is_accident, speed_limit, lane_states, received_at
         FROM instructions ORDER BY received_at DESC, id DESC LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("query instructions: %w", err)
	}
	defer rows.Close()

	var entries []InstructionEntry
	for rows.Next() {
		var (
			entry       InstructionEntry
			isAccident  int
			speedLimit  sql.NullInt64
			laneStates  sql.NullString
			receivedRaw string
		)
		if err := rows.Scan(&entry.ID, &entry.Event, &isAccident, &speedLimit,
			&laneStates, &receivedRaw); err != nil {
			return nil, fmt.Errorf("scan instruction: %w", err)
		}
		entry.IsAccident = isAccident != 0
		if speedLimit.Valid {
			entry.SpeedLimit = int(speedLimit.Int64)
		}
		if laneStates.Valid && laneStates.String != "" {
			if err := json.Unmarshal([]byte(laneStates.String), &entry.LaneStates); err != nil {
				return nil, fmt.Errorf("decode lane states: %w", err)
			}
		}
		if received, err := time.Parse(time.RFC3339Nano, receivedRaw); err == nil {
			entry.ReceivedAt = received
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats returns report counts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[ReportStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM reports GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("journal stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[ReportStatus]int)
	for rows.Next() {
		var status ReportStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func nullableInt(value int) any {
	if value <= 0 {
		return nil
	}
	return value
}
