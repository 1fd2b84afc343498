package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joescharf/codereview/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite allows a single writer; one pooled connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newULID(t time.Time) string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(t), ulid.Monotonic(entropy, 0)).String()
}

// storedTimeLayout is fixed width so TEXT columns sort chronologically.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Snapshots ---

// SaveSnapshot writes the snapshot and every review in catalog order inside
// one transaction. An empty ID is filled with a new ULID.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	if snap.ID == "" {
		snap.ID = newULID(snap.TakenAt)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, ref, taken_at) VALUES (?, ?, ?)`,
		snap.ID, snap.Ref, formatTime(snap.TakenAt),
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	for i, r := range snap.Reviews {
		pos := i + 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reviews (snapshot_id, position, path, title, source_branch, target_branch, author, body, created_at, merged, abandoned)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, pos, r.Path, r.Title, r.SourceBranch, r.TargetBranch, r.Author, r.Body,
			formatTime(r.CreatedAt), boolToInt(r.Merged), boolToInt(r.Abandoned),
		); err != nil {
			return fmt.Errorf("insert review %d: %w", pos, err)
		}
		for seq, rs := range r.Reviewers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO reviewer_scores (snapshot_id, position, seq, identity, score) VALUES (?, ?, ?, ?, ?)`,
				snap.ID, pos, seq, rs.Identity, rs.Score,
			); err != nil {
				return fmt.Errorf("insert reviewer %s on review %d: %w", rs.Identity, pos, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns a snapshot with its reviews in their saved order.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, id string) (*models.Snapshot, error) {
	snap := &models.Snapshot{}
	var takenAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, ref, taken_at FROM snapshots WHERE id = ?`, id,
	).Scan(&snap.ID, &snap.Ref, &takenAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if snap.TakenAt, err = parseTime(takenAt); err != nil {
		return nil, err
	}

	reviews, err := s.snapshotReviews(ctx, id)
	if err != nil {
		return nil, err
	}
	snap.Reviews = reviews
	return snap, nil
}

func (s *SQLiteStore) snapshotReviews(ctx context.Context, id string) ([]*models.Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, path, title, source_branch, target_branch, author, body, created_at, merged, abandoned
		FROM reviews WHERE snapshot_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list snapshot reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reviews []*models.Review
	byPos := make(map[int]*models.Review)
	for rows.Next() {
		r := &models.Review{}
		var pos int
		var created string
		if err := rows.Scan(&pos, &r.Path, &r.Title, &r.SourceBranch, &r.TargetBranch, &r.Author, &r.Body, &created, &r.Merged, &r.Abandoned); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
		byPos[pos] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	scoreRows, err := s.db.QueryContext(ctx,
		`SELECT position, identity, score FROM reviewer_scores WHERE snapshot_id = ? ORDER BY position, seq`, id)
	if err != nil {
		return nil, fmt.Errorf("list reviewer scores: %w", err)
	}
	defer func() { _ = scoreRows.Close() }()

	for scoreRows.Next() {
		var pos int
		var rs models.ReviewerScore
		if err := scoreRows.Scan(&pos, &rs.Identity, &rs.Score); err != nil {
			return nil, fmt.Errorf("scan reviewer score: %w", err)
		}
		if r, ok := byPos[pos]; ok {
			r.Reviewers = append(r.Reviewers, rs)
		}
	}
	return reviews, scoreRows.Err()
}

// ListSnapshots returns snapshot headers, newest first. An empty ref lists all.
// Reviews are not loaded; use GetSnapshot for those.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, ref string) ([]*models.Snapshot, error) {
	query := `SELECT id, ref, taken_at FROM snapshots`
	var args []any
	if ref != "" {
		query += ` WHERE ref = ?`
		args = append(args, ref)
	}
	query += ` ORDER BY taken_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []*models.Snapshot
	for rows.Next() {
		snap := &models.Snapshot{}
		var takenAt string
		if err := rows.Scan(&snap.ID, &snap.Ref, &takenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if snap.TakenAt, err = parseTime(takenAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *SQLiteStore) DeleteSnapshot(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return nil
}
