// Package sqlite implements store.Store on SQLite using database/sql and the
// pure-Go modernc driver. Records are JSON documents in TEXT columns; owner,
// version and timestamps are mirrored into columns for filtering.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/store"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	id         TEXT PRIMARY KEY,
	owner_kind TEXT NOT NULL DEFAULT '',
	owner_id   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	doc        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS datasets_owner ON datasets (owner_kind, owner_id);
CREATE TABLE IF NOT EXISTS guest_sessions (
	session_id          TEXT PRIMARY KEY,
	created_at          INTEGER NOT NULL,
	visualizations_used INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS session_datasets (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	dataset_id TEXT NOT NULL,
	UNIQUE (session_id, dataset_id)
);
CREATE TABLE IF NOT EXISTS visualizations (
	id         TEXT PRIMARY KEY,
	dataset_id TEXT NOT NULL,
	version    INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	doc        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS visualizations_dataset ON visualizations (dataset_id);
CREATE TABLE IF NOT EXISTS insights (
	id         TEXT PRIMARY KEY,
	viz_id     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	doc        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS insights_viz ON insights (viz_id, created_at);
`

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func init() {
	store.Register("sqlite", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Open connects to dsn (a file path or file: URI) and bootstraps the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// One writer keeps read-modify-write transactions serialized.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;")
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: bootstrap schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func notFound(kind, id string) error { return &store.NotFoundError{Kind: kind, ID: id} }

func ms(t time.Time) int64 { return t.UnixMilli() }

func (s *Store) CreateDataset(ctx context.Context, ds *model.Dataset) error {
	if ds.Visualizations == nil {
		ds.Visualizations = []model.VisualizationRef{}
	}
	doc, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("sqlite: marshal dataset: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO datasets (id, owner_kind, owner_id, created_at, doc) VALUES (?, ?, ?, ?, ?)`,
		ds.ID, string(ds.Owner.Kind), ds.Owner.ID, ms(ds.CreatedAt), string(doc))
	if err != nil {
		return fmt.Errorf("sqlite: insert dataset: %w", err)
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanDataset(sc scanner) (*model.Dataset, error) {
	var kind, ownerID, doc string
	if err := sc.Scan(&kind, &ownerID, &doc); err != nil {
		return nil, err
	}
	var ds model.Dataset
	if err := json.Unmarshal([]byte(doc), &ds); err != nil {
		return nil, fmt.Errorf("sqlite: decode dataset: %w", err)
	}
	ds.Owner = model.Owner{Kind: model.OwnerKind(kind), ID: ownerID}
	return &ds, nil
}

func (s *Store) GetDataset(ctx context.Context, id string) (*model.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `SELECT owner_kind, owner_id, doc FROM datasets WHERE id = ?`, id)
	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(store.KindDataset, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get dataset: %w", err)
	}
	return ds, nil
}

func (s *Store) ListDatasets(ctx context.Context, f store.DatasetFilter) ([]*model.Dataset, error) {
	q := `SELECT owner_kind, owner_id, doc FROM datasets`
	var args []any
	if f.Owner.Kind != model.OwnerNone {
		q += ` WHERE owner_kind = ? AND owner_id = ?`
		args = append(args, string(f.Owner.Kind), f.Owner.ID)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list datasets: %w", err)
	}
	defer rows.Close()
	var out []*model.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: list datasets: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (s *Store) execOne(ctx context.Context, kind, id, q string, args ...any) error {
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("sqlite: update %s: %w", kind, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (s *Store) SetPendingConfig(ctx context.Context, id string, cfg model.Config) error {
	if cfg == nil {
		return s.execOne(ctx, store.KindDataset, id,
			`UPDATE datasets SET doc = json_remove(doc, '$.pendingConfig') WHERE id = ?`, id)
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("sqlite: marshal config: %w", err)
	}
	return s.execOne(ctx, store.KindDataset, id,
		`UPDATE datasets SET doc = json_set(doc, '$.pendingConfig', json(?)) WHERE id = ?`, string(b), id)
}

func (s *Store) LinkVisualization(ctx context.Context, id string, ref model.VisualizationRef) error {
	b, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("sqlite: marshal ref: %w", err)
	}
	return s.execOne(ctx, store.KindDataset, id, `
UPDATE datasets SET doc = json_remove(
	json_set(doc, '$.visualizations', json_insert(
		CASE json_type(doc, '$.visualizations') WHEN 'array' THEN json_extract(doc, '$.visualizations') ELSE '[]' END,
		'$[#]', json(?))),
	'$.pendingConfig')
WHERE id = ?`, string(b), id)
}

func (s *Store) ReassignDatasets(ctx context.Context, ids []string, owner model.Owner) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+2)
	args = append(args, string(owner.Kind), owner.ID)
	for _, id := range ids {
		args = append(args, id)
	}
	q := `UPDATE datasets SET owner_kind = ?, owner_id = ? WHERE id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: reassign datasets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: reassign datasets: %w", err)
	}
	return int(n), nil
}

func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	return s.execOne(ctx, store.KindDataset, id, `DELETE FROM datasets WHERE id = ?`, id)
}

func (s *Store) DeleteGuestDatasets(ctx context.Context, sessionID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+2)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, string(model.OwnerGuest), sessionID)
	q := `DELETE FROM datasets WHERE id IN (?` + strings.Repeat(", ?", len(ids)-1) + `) AND owner_kind = ? AND owner_id = ?`
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete guest datasets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete guest datasets: %w", err)
	}
	return int(n), nil
}

func (s *Store) AddSessionDataset(ctx context.Context, sessionID, datasetID string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO guest_sessions (session_id, created_at) VALUES (?, ?) ON CONFLICT (session_id) DO NOTHING`,
		sessionID, ms(now)); err != nil {
		return fmt.Errorf("sqlite: upsert session: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_datasets (session_id, dataset_id) VALUES (?, ?) ON CONFLICT (session_id, dataset_id) DO NOTHING`,
		sessionID, datasetID); err != nil {
		return fmt.Errorf("sqlite: add session dataset: %w", err)
	}
	return tx.Commit()
}

type querier interface {
	QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row
}

func loadSession(ctx context.Context, q querier, sessionID string) (*model.GuestSession, error) {
	sess := &model.GuestSession{SessionID: sessionID, DatasetIDs: []string{}}
	var created int64
	err := q.QueryRowContext(ctx,
		`SELECT created_at, visualizations_used FROM guest_sessions WHERE session_id = ?`, sessionID).
		Scan(&created, &sess.VisualizationsUsed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(store.KindSession, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get session: %w", err)
	}
	sess.CreatedAt = time.UnixMilli(created).UTC()
	rows, err := q.QueryContext(ctx,
		`SELECT dataset_id FROM session_datasets WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: session datasets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: session datasets: %w", err)
		}
		sess.DatasetIDs = append(sess.DatasetIDs, id)
	}
	return sess, rows.Err()
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*model.GuestSession, error) {
	return loadSession(ctx, s.db, sessionID)
}

func (s *Store) IncrementSessionUsage(ctx context.Context, sessionID string) error {
	return s.execOne(ctx, store.KindSession, sessionID,
		`UPDATE guest_sessions SET visualizations_used = visualizations_used + 1 WHERE session_id = ?`, sessionID)
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `DELETE FROM guest_sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("sqlite: delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(store.KindSession, sessionID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM session_datasets WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("sqlite: delete session datasets: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListExpiredSessions(ctx context.Context, cutoff time.Time) ([]*model.GuestSession, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM guest_sessions WHERE created_at < ? ORDER BY created_at`, ms(cutoff))
	if err != nil {
		return nil, fmt.Errorf("sqlite: expired sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: expired sessions: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: expired sessions: %w", err)
	}
	var out []*model.GuestSession
	for _, id := range ids {
		sess, err := loadSession(ctx, s.db, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *Store) CreateVisualization(ctx context.Context, v *model.Visualization) error {
	if v.InsightIDs == nil {
		v.InsightIDs = []string{}
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sqlite: marshal visualization: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO visualizations (id, dataset_id, version, created_at, doc) VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.DatasetID, v.Version, ms(v.CreatedAt), string(doc))
	if err != nil {
		return fmt.Errorf("sqlite: insert visualization: %w", err)
	}
	return nil
}

func decodeViz(doc string) (*model.Visualization, error) {
	var v model.Visualization
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return nil, fmt.Errorf("sqlite: decode visualization: %w", err)
	}
	return &v, nil
}

func (s *Store) GetVisualization(ctx context.Context, id string) (*model.Visualization, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM visualizations WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(store.KindVisualization, id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get visualization: %w", err)
	}
	return decodeViz(doc)
}

// UpdateVisualization keeps the stored insight ids; they are owned by AppendInsight.
func (s *Store) UpdateVisualization(ctx context.Context, v *model.Visualization, expectedVersion int) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sqlite: marshal visualization: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE visualizations
SET doc = json_set(?, '$.aiMessageIds', json(coalesce(json_extract(doc, '$.aiMessageIds'), '[]'))), version = ?
WHERE id = ? AND version = ?`, string(doc), v.Version, v.ID, expectedVersion)
	if err != nil {
		return fmt.Errorf("sqlite: update visualization: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetVisualization(ctx, v.ID); err != nil {
			return err
		}
		return store.ErrConflict
	}
	return nil
}

func (s *Store) ListVisualizations(ctx context.Context, datasetID string) ([]*model.Visualization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM visualizations WHERE dataset_id = ? ORDER BY created_at`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list visualizations: %w", err)
	}
	defer rows.Close()
	var out []*model.Visualization
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("sqlite: list visualizations: %w", err)
		}
		v, err := decodeViz(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) AppendInsight(ctx context.Context, in *model.Insight) error {
	doc, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("sqlite: marshal insight: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `
UPDATE visualizations SET doc = json_set(doc, '$.aiMessageIds', json_insert(
	CASE json_type(doc, '$.aiMessageIds') WHEN 'array' THEN json_extract(doc, '$.aiMessageIds') ELSE '[]' END,
	'$[#]', ?))
WHERE id = ?`, in.ID, in.VizID)
	if err != nil {
		return fmt.Errorf("sqlite: link insight: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(store.KindVisualization, in.VizID)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO insights (id, viz_id, created_at, doc) VALUES (?, ?, ?, ?)`,
		in.ID, in.VizID, ms(in.CreatedAt), string(doc)); err != nil {
		return fmt.Errorf("sqlite: insert insight: %w", err)
	}
	return tx.Commit()
}

func (s *Store) ListInsights(ctx context.Context, vizID string) ([]*model.Insight, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT doc FROM insights WHERE viz_id = ? ORDER BY created_at, rowid`, vizID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list insights: %w", err)
	}
	defer rows.Close()
	out := []*model.Insight{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("sqlite: list insights: %w", err)
		}
		var in model.Insight
		if err := json.Unmarshal([]byte(doc), &in); err != nil {
			return nil, fmt.Errorf("sqlite: decode insight: %w", err)
		}
		out = append(out, &in)
	}
	return out, rows.Err()
}
