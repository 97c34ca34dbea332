package scriptstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/checksum"
	"github.com/starford/vssflow/internal/models"
)

var newID = uuid.NewString

// ListScripts returns scripts ordered by most recent update. A non-empty
// query filters by case-insensitive name match.
func (db *DB) ListScripts(ctx context.Context, query string) ([]models.Script, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, content
		FROM scripts
		WHERE ? = '' OR name LIKE '%' || ? || '%'
		ORDER BY updated_at DESC, id
	`, query, query)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: list: %w", err)
	}
	defer rows.Close()

	out := []models.Script{}
	for rows.Next() {
		var (
			s       models.Script
			content string
		)
		if err := rows.Scan(&s.ID, &s.Name, &content); err != nil {
			return nil, fmt.Errorf("scriptstore: scan: %w", err)
		}
		s.Content = []byte(content)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetScript returns one script or apperr.ErrNotFound.
func (db *DB) GetScript(ctx context.Context, id string) (*models.Script, error) {
	var (
		s       models.Script
		content string
	)
	err := db.conn.QueryRowContext(ctx, `SELECT id, name, content FROM scripts WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scriptstore: script %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scriptstore: get %s: %w", id, err)
	}
	s.Content = []byte(content)
	return &s, nil
}

// SaveScript creates the script when it has no id and upserts it otherwise.
func (db *DB) SaveScript(ctx context.Context, s models.Script) (*models.Script, error) {
	if s.ID == "" {
		s.ID = db.newID()
	}
	if len(s.Content) == 0 {
		s.Content = []byte("[]")
	}
	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO scripts (id, name, content, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name       = excluded.name,
			content    = excluded.content,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, s.ID, s.Name, string(s.Content), checksum.Content(s.Content), now, now)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: save %s: %w", s.ID, err)
	}
	return &s, nil
}

// DeleteScript removes a script and its run history.
func (db *DB) DeleteScript(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM scripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("scriptstore: delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("scriptstore: script %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// RecordRun stores a run request for an existing script.
func (db *DB) RecordRun(ctx context.Context, scriptID string) (*models.RunReceipt, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM scripts WHERE id = ?`, scriptID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scriptstore: script %s: %w", scriptID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scriptstore: lookup %s: %w", scriptID, err)
	}

	r := models.RunReceipt{ScriptID: scriptID, RunID: db.newID(), StartedAt: time.Now().UTC()}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, script_id, started_at) VALUES (?, ?, ?)`,
		r.RunID, r.ScriptID, r.StartedAt); err != nil {
		return nil, fmt.Errorf("scriptstore: record run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("scriptstore: commit: %w", err)
	}
	return &r, nil
}

// Runs lists the run history of a script, oldest first.
func (db *DB) Runs(ctx context.Context, scriptID string) ([]models.RunReceipt, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, script_id, started_at FROM runs WHERE script_id = ? ORDER BY started_at, id`, scriptID)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunReceipt
	for rows.Next() {
		var r models.RunReceipt
		if err := rows.Scan(&r.RunID, &r.ScriptID, &r.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
