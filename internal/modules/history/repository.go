// Package history persists the append-only action audit trail. Live game
// state never reads from it; the engine keeps playing even if this store
// fails, so writes are best-effort from the session's point of view.
package history

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mr-valente/quacktuaries/internal/database"
	"github.com/mr-valente/quacktuaries/internal/domain"
)

// Repository stores action records in the game database.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a repository over the given database.
func NewRepository(db *database.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db.Conn(),
		log: log.With().Str("component", "history").Logger(),
	}
}

// Append inserts one action record. Implements the session audit sink.
func (r *Repository) Append(rec domain.ActionRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO action_records (id, session_id, player_id, ts, type, payload, delta_score)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.PlayerID, rec.Timestamp.UnixMilli(), rec.Type, string(payload), rec.DeltaScore,
	)
	if err != nil {
		return fmt.Errorf("inserting action record: %w", err)
	}
	return nil
}

// BySession returns a session's records in chronological order. A limit of
// zero means no limit.
func (r *Repository) BySession(ctx context.Context, sessionID string, limit int) ([]domain.ActionRecord, error) {
	query := `
		SELECT id, session_id, player_id, ts, type, payload, delta_score
		FROM action_records
		WHERE session_id = ?
		ORDER BY ts ASC, id ASC`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying action records: %w", err)
	}
	defer rows.Close()

	var records []domain.ActionRecord
	for rows.Next() {
		var (
			rec     domain.ActionRecord
			ts      int64
			payload string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.PlayerID, &ts, &rec.Type, &payload, &rec.DeltaScore); err != nil {
			return nil, fmt.Errorf("scanning action record: %w", err)
		}
		rec.Timestamp = time.UnixMilli(ts).UTC()
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			r.log.Warn().Err(err).Str("record_id", rec.ID).Msg("Skipping malformed payload")
			rec.Payload = map[string]any{}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ExportCSV streams a session's full audit trail as CSV.
func (r *Repository) ExportCSV(ctx context.Context, w io.Writer, sessionID string) error {
	records, err := r.BySession(ctx, sessionID, 0)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "session_id", "player_id", "timestamp", "type", "payload", "delta_score"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, rec := range records {
		payload, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}
		row := []string{
			rec.ID,
			rec.SessionID,
			rec.PlayerID,
			rec.Timestamp.Format(time.RFC3339Nano),
			rec.Type,
			string(payload),
			strconv.Itoa(rec.DeltaScore),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DeleteBySession removes a session's records, used when a session is
// deleted from the registry.
func (r *Repository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM action_records WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("deleting action records: %w", err)
	}
	return res.RowsAffected()
}
