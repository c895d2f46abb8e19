// Package trackstore persists tracking runs in SQLite: the spots, the
// trajectory graph edges and the track membership of every run, together
// with the settings and statistics that produced them.
package trackstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/laptrack/internal/monitoring"
	"github.com/banshee-data/laptrack/internal/timeutil"
	"github.com/banshee-data/laptrack/internal/trackio"
	"github.com/banshee-data/laptrack/internal/tracking"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = errors.New("trackstore: run not found")

// Store is a SQLite-backed run store. It uses a single connection, so
// per-connection PRAGMAs hold for every statement.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Option customises a Store.
type Option func(*Store)

// WithClock sets the clock used for run creation times.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema. ":memory:" gives a private in-memory store.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, clock: timeutil.RealClock{}}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is the summary row of one stored tracking run.
type Run struct {
	RunID      string
	CreatedAt  time.Time
	Source     string
	Settings   tracking.Settings
	Stats      trackio.StatsRecord
	SpotCount  int
	EdgeCount  int
	TrackCount int
}

// SaveRun stores doc in one transaction and returns its run ID. A doc
// without a RunID gets a fresh UUID, which is also written back to doc.
// Each track is stored under its own UUID.
func (s *Store) SaveRun(ctx context.Context, source string, settings tracking.Settings, doc *trackio.GraphDocument) (string, error) {
	if doc.RunID == "" {
		doc.RunID = uuid.New().String()
	}
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	statsJSON, err := json.Marshal(doc.Stats)
	if err != nil {
		return "", fmt.Errorf("encode stats: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tracking_runs (
			run_id, created_at, source, settings_json, stats_json,
			spot_count, edge_count, track_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.RunID, s.clock.Now().UnixNano(), source, string(settingsJSON), string(statsJSON),
		len(doc.Spots), len(doc.Edges), len(doc.Tracks),
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	spotStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_spots (run_id, spot_id, frame, x, y, z, radius, features_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare spots: %w", err)
	}
	defer spotStmt.Close()
	for _, sp := range doc.Spots {
		var features interface{}
		if len(sp.Features) > 0 {
			b, err := json.Marshal(sp.Features)
			if err != nil {
				return "", fmt.Errorf("encode features of spot %d: %w", sp.ID, err)
			}
			features = string(b)
		}
		if _, err := spotStmt.ExecContext(ctx, doc.RunID, sp.ID, sp.Frame, sp.X, sp.Y, sp.Z, sp.Radius, features); err != nil {
			return "", fmt.Errorf("insert spot %d: %w", sp.ID, err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_edges (run_id, source_id, target_id, cost, kind)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare edges: %w", err)
	}
	defer edgeStmt.Close()
	for _, e := range doc.Edges {
		if _, err := edgeStmt.ExecContext(ctx, doc.RunID, e.Source, e.Target, e.Cost, e.Kind); err != nil {
			return "", fmt.Errorf("insert edge %d → %d: %w", e.Source, e.Target, err)
		}
	}

	trackStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_tracks (track_id, run_id, track_index, spot_id)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare tracks: %w", err)
	}
	defer trackStmt.Close()
	for i, track := range doc.Tracks {
		trackID := uuid.New().String()
		for _, spotID := range track {
			if _, err := trackStmt.ExecContext(ctx, trackID, doc.RunID, i, spotID); err != nil {
				return "", fmt.Errorf("insert track %d: %w", i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	monitoring.Logf("[trackstore] saved run %s: %d spots, %d edges, %d tracks",
		doc.RunID, len(doc.Spots), len(doc.Edges), len(doc.Tracks))
	return doc.RunID, nil
}

const runColumns = `run_id, created_at, source, settings_json, stats_json, spot_count, edge_count, track_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r                       Run
		createdAt               int64
		settingsJSON, statsJSON string
	)
	if err := row.Scan(&r.RunID, &createdAt, &r.Source, &settingsJSON, &statsJSON,
		&r.SpotCount, &r.EdgeCount, &r.TrackCount); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(settingsJSON), &r.Settings); err != nil {
		return nil, fmt.Errorf("decode settings of run %s: %w", r.RunID, err)
	}
	if err := json.Unmarshal([]byte(statsJSON), &r.Stats); err != nil {
		return nil, fmt.Errorf("decode stats of run %s: %w", r.RunID, err)
	}
	return &r, nil
}

// GetRun returns the summary of one run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM tracking_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM tracking_runs ORDER BY created_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadDocument rebuilds the graph document of a stored run.
func (s *Store) LoadDocument(ctx context.Context, runID string) (trackio.GraphDocument, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return trackio.GraphDocument{}, err
	}
	doc := trackio.GraphDocument{
		RunID:  run.RunID,
		Spots:  make([]trackio.SpotRecord, 0, run.SpotCount),
		Edges:  make([]trackio.EdgeRecord, 0, run.EdgeCount),
		Tracks: make([][]int64, 0, run.TrackCount),
		Stats:  run.Stats,
	}

	if err := s.loadSpots(ctx, &doc); err != nil {
		return doc, err
	}
	if err := s.loadEdges(ctx, &doc); err != nil {
		return doc, err
	}
	if err := s.loadTracks(ctx, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

func (s *Store) loadSpots(ctx context.Context, doc *trackio.GraphDocument) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT spot_id, frame, x, y, z, radius, features_json
		FROM run_spots WHERE run_id = ? ORDER BY frame, spot_id`, doc.RunID)
	if err != nil {
		return fmt.Errorf("query spots: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sp trackio.SpotRecord
		var features sql.NullString
		if err := rows.Scan(&sp.ID, &sp.Frame, &sp.X, &sp.Y, &sp.Z, &sp.Radius, &features); err != nil {
			return fmt.Errorf("scan spot: %w", err)
		}
		if features.Valid {
			if err := json.Unmarshal([]byte(features.String), &sp.Features); err != nil {
				return fmt.Errorf("decode features of spot %d: %w", sp.ID, err)
			}
		}
		doc.Spots = append(doc.Spots, sp)
	}
	return rows.Err()
}

func (s *Store) loadEdges(ctx context.Context, doc *trackio.GraphDocument) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.source_id, e.target_id, e.cost, e.kind
		FROM run_edges e
		JOIN run_spots a ON a.run_id = e.run_id AND a.spot_id = e.source_id
		JOIN run_spots b ON b.run_id = e.run_id AND b.spot_id = e.target_id
		WHERE e.run_id = ?
		ORDER BY a.frame, a.spot_id, b.frame, b.spot_id`, doc.RunID)
	if err != nil {
		return fmt.Errorf("query edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e trackio.EdgeRecord
		if err := rows.Scan(&e.Source, &e.Target, &e.Cost, &e.Kind); err != nil {
			return fmt.Errorf("scan edge: %w", err)
		}
		doc.Edges = append(doc.Edges, e)
	}
	return rows.Err()
}

func (s *Store) loadTracks(ctx context.Context, doc *trackio.GraphDocument) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.track_index, t.spot_id
		FROM run_tracks t
		JOIN run_spots p ON p.run_id = t.run_id AND p.spot_id = t.spot_id
		WHERE t.run_id = ?
		ORDER BY t.track_index, p.frame, p.spot_id`, doc.RunID)
	if err != nil {
		return fmt.Errorf("query tracks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var idx int
		var spotID int64
		if err := rows.Scan(&idx, &spotID); err != nil {
			return fmt.Errorf("scan track: %w", err)
		}
		for len(doc.Tracks) <= idx {
			doc.Tracks = append(doc.Tracks, nil)
		}
		doc.Tracks[idx] = append(doc.Tracks[idx], spotID)
	}
	return rows.Err()
}

// TrackIDs returns the stored UUID of each track of a run, in track order.
func (s *Store) TrackIDs(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT track_index, track_id FROM run_tracks
		WHERE run_id = ? ORDER BY track_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query track ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var idx int
		var id string
		if err := rows.Scan(&idx, &id); err != nil {
			return nil, fmt.Errorf("scan track id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteRun removes a run and everything stored under it.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tracking_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
