package recorder

import (
	"context"
	"database/sql"
	"time"

	iface "FaceStabilityServer/interface"

	_ "modernc.org/sqlite"
)

type Row struct {
	ID        int64       `json:"id"`
	FrameID   string      `json:"frameId"`
	Label     iface.Label `json:"label"`
	Score     float32     `json:"score"`
	CreatedAt time.Time   `json:"createdAt"`
}

// SQLite mirrors records into a queryable table.
type SQLite struct {
	*sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; the pure-go driver serialises anyway
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS classifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			frame_id TEXT,
			label TEXT NOT NULL,
			score REAL NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_classifications_frame ON classifications(frame_id);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db}, nil
}

func (s *SQLite) Append(label iface.Label, score float32) error {
	return s.AppendFrame("", label, score)
}

func (s *SQLite) AppendFrame(frameID string, label iface.Label, score float32) error {
	_, err := s.Exec("INSERT INTO classifications (frame_id, label, score, created_at) VALUES (?, ?, ?, ?)",
		frameID, string(label), float64(score), time.Now().UnixNano())
	return err
}

// Recent returns up to n rows, newest first.
func (s *SQLite) Recent(ctx context.Context, n int) ([]Row, error) {
	rows, err := s.QueryContext(ctx,
		"SELECT id, frame_id, label, score, created_at FROM classifications ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r     Row
			label string
			score float64
			nanos int64
		)
		if err := rows.Scan(&r.ID, &r.FrameID, &label, &score, &nanos); err != nil {
			return nil, err
		}
		r.Label = iface.Label(label)
		r.Score = float32(score)
		r.CreatedAt = time.Unix(0, nanos)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts returns the number of stored rows per label.
func (s *SQLite) Counts(ctx context.Context) (map[iface.Label]int, error) {
	rows, err := s.QueryContext(ctx, "SELECT label, COUNT(*) FROM classifications GROUP BY label")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[iface.Label]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, err
		}
		out[iface.Label(label)] = n
	}
	return out, rows.Err()
}
