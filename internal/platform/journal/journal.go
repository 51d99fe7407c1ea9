// Package journal records provisioning actions in a local SQLite database
// driven through the sqlite3 binary (WAL mode).
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Journal holds the path to the events database and provides basic helpers.
type Journal struct {
	DataDir  string
	EventsDB string
}

// Event is one recorded provisioning action.
type Event struct {
	ID        int64
	Action    string
	Subject   string
	Details   string
	CreatedAt time.Time
}

// New returns a Journal with a normalized database file path.
func New(dataDir string) *Journal {
	return &Journal{
		DataDir:  dataDir,
		EventsDB: filepath.Join(dataDir, "events.db"),
	}
}

// Init creates the DB file, enforces WAL mode, and applies the schema.
func (j *Journal) Init(ctx context.Context) error {
	if err := os.MkdirAll(j.DataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := j.exec(ctx, "PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		return fmt.Errorf("enable wal for %s: %w", filepath.Base(j.EventsDB), err)
	}
	schema := `
CREATE TABLE IF NOT EXISTS events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  action TEXT NOT NULL,
  subject TEXT NOT NULL,
  details TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
`
	if err := j.exec(ctx, schema); err != nil {
		return fmt.Errorf("apply events schema: %w", err)
	}
	return nil
}

// Record inserts one event row. A nil journal is a no-op so callers can
// treat journaling as optional.
func (j *Journal) Record(ctx context.Context, action, subject, details string) error {
	if j == nil {
		return nil
	}
	insert := fmt.Sprintf(
		"INSERT INTO events(action, subject, details, created_at) VALUES('%s','%s','%s',%d);",
		sqlEscape(action),
		sqlEscape(subject),
		sqlEscape(details),
		time.Now().Unix(),
	)
	return j.exec(ctx, insert)
}

// Recent returns the newest events, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT id, action, subject, details, created_at
FROM events
ORDER BY id DESC
LIMIT %d;`, limit)
	rows, err := j.queryJSON(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events := make([]Event, 0, len(rows))
	for _, row := range rows {
		ev, convErr := mapRowToEvent(row)
		if convErr != nil {
			return nil, convErr
		}
		events = append(events, ev)
	}
	return events, nil
}

func mapRowToEvent(row map[string]any) (Event, error) {
	id, err := toInt64(row["id"])
	if err != nil {
		return Event{}, err
	}
	createdAtUnix, err := toInt64(row["created_at"])
	if err != nil {
		return Event{}, err
	}
	action, _ := row["action"].(string)
	subject, _ := row["subject"].(string)
	details, _ := row["details"].(string)
	return Event{
		ID:        id,
		Action:    action,
		Subject:   subject,
		Details:   details,
		CreatedAt: time.Unix(createdAtUnix, 0).UTC(),
	}, nil
}

func (j *Journal) exec(ctx context.Context, sql string) error {
	cmd := exec.CommandContext(ctx, "sqlite3", j.EventsDB, sql)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("sqlite3 exec: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (j *Journal) queryJSON(ctx context.Context, sql string) ([]map[string]any, error) {
	cmd := exec.CommandContext(ctx, "sqlite3", "-json", j.EventsDB, sql)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("sqlite3 query: %w: %s", err, strings.TrimSpace(string(out)))
	}
	var rows []map[string]any
	if len(out) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(out, &rows); err != nil {
		return nil, fmt.Errorf("decode sqlite json: %w", err)
	}
	return rows, nil
}

func sqlEscape(in string) string {
	return strings.ReplaceAll(in, "'", "''")
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		i, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, err
		}
		return i, nil
	default:
		return 0, fmt.Errorf("unsupported int conversion type %T", v)
	}
}
