// Package postgres implements store.Store on Postgres using pgx v5. Records are
// JSONB documents; owner, version and timestamps are mirrored into columns.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS datasets (
	id         TEXT PRIMARY KEY,
	owner_kind TEXT NOT NULL DEFAULT '',
	owner_id   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	doc        JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS datasets_owner ON datasets (owner_kind, owner_id);
CREATE TABLE IF NOT EXISTS guest_sessions (
	session_id          TEXT PRIMARY KEY,
	created_at          TIMESTAMPTZ NOT NULL,
	visualizations_used INTEGER NOT NULL DEFAULT 0,
	dataset_ids         TEXT[] NOT NULL DEFAULT '{}'
);
CREATE TABLE IF NOT EXISTS visualizations (
	id         TEXT PRIMARY KEY,
	dataset_id TEXT NOT NULL,
	version    INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	doc        JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS visualizations_dataset ON visualizations (dataset_id);
CREATE TABLE IF NOT EXISTS insights (
	seq        BIGSERIAL PRIMARY KEY,
	id         TEXT NOT NULL UNIQUE,
	viz_id     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	doc        JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS insights_viz ON insights (viz_id, seq);
`

// Store is a Postgres-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func init() {
	store.Register("postgres", func(ctx context.Context, cfg store.Config) (store.Store, error) {
		return Open(ctx, cfg.DSN)
	})
}

// Open connects a pool to dsn and bootstraps the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: bootstrap schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func notFound(kind, id string) error { return &store.NotFoundError{Kind: kind, ID: id} }

func (s *Store) execOne(ctx context.Context, kind, id, q string, args ...any) error {
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("postgres: update %s: %w", kind, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(kind, id)
	}
	return nil
}

func (s *Store) CreateDataset(ctx context.Context, ds *model.Dataset) error {
	if ds.Visualizations == nil {
		ds.Visualizations = []model.VisualizationRef{}
	}
	doc, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("postgres: marshal dataset: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO datasets (id, owner_kind, owner_id, created_at, doc) VALUES ($1, $2, $3, $4, $5)`,
		ds.ID, string(ds.Owner.Kind), ds.Owner.ID, ds.CreatedAt, doc)
	if err != nil {
		return fmt.Errorf("postgres: insert dataset: %w", err)
	}
	return nil
}

func scanDataset(row pgx.Row) (*model.Dataset, error) {
	var kind, ownerID string
	var doc []byte
	if err := row.Scan(&kind, &ownerID, &doc); err != nil {
		return nil, err
	}
	var ds model.Dataset
	if err := json.Unmarshal(doc, &ds); err != nil {
		return nil, fmt.Errorf("postgres: decode dataset: %w", err)
	}
	ds.Owner = model.Owner{Kind: model.OwnerKind(kind), ID: ownerID}
	return &ds, nil
}

func (s *Store) GetDataset(ctx context.Context, id string) (*model.Dataset, error) {
	ds, err := scanDataset(s.pool.QueryRow(ctx, `SELECT owner_kind, owner_id, doc FROM datasets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(store.KindDataset, id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get dataset: %w", err)
	}
	return ds, nil
}

func (s *Store) ListDatasets(ctx context.Context, f store.DatasetFilter) ([]*model.Dataset, error) {
	q := `SELECT owner_kind, owner_id, doc FROM datasets`
	var args []any
	if f.Owner.Kind != model.OwnerNone {
		q += ` WHERE owner_kind = $1 AND owner_id = $2`
		args = append(args, string(f.Owner.Kind), f.Owner.ID)
	}
	q += ` ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list datasets: %w", err)
	}
	defer rows.Close()
	var out []*model.Dataset
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: list datasets: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (s *Store) SetPendingConfig(ctx context.Context, id string, cfg model.Config) error {
	if cfg == nil {
		return s.execOne(ctx, store.KindDataset, id, `UPDATE datasets SET doc = doc - 'pendingConfig' WHERE id = $1`, id)
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("postgres: marshal config: %w", err)
	}
	return s.execOne(ctx, store.KindDataset, id,
		`UPDATE datasets SET doc = jsonb_set(doc, '{pendingConfig}', $2::jsonb) WHERE id = $1`, id, b)
}

func (s *Store) LinkVisualization(ctx context.Context, id string, ref model.VisualizationRef) error {
	b, err := json.Marshal([]model.VisualizationRef{ref})
	if err != nil {
		return fmt.Errorf("postgres: marshal ref: %w", err)
	}
	return s.execOne(ctx, store.KindDataset, id, `
UPDATE datasets SET doc = jsonb_set(doc - 'pendingConfig', '{visualizations}',
	(CASE jsonb_typeof(doc->'visualizations') WHEN 'array' THEN doc->'visualizations' ELSE '[]'::jsonb END) || $2::jsonb)
WHERE id = $1`, id, b)
}

func (s *Store) ReassignDatasets(ctx context.Context, ids []string, owner model.Owner) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE datasets SET owner_kind = $1, owner_id = $2 WHERE id = ANY($3)`,
		string(owner.Kind), owner.ID, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: reassign datasets: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) DeleteDataset(ctx context.Context, id string) error {
	return s.execOne(ctx, store.KindDataset, id, `DELETE FROM datasets WHERE id = $1`, id)
}

func (s *Store) DeleteGuestDatasets(ctx context.Context, sessionID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM datasets WHERE id = ANY($1) AND owner_kind = $2 AND owner_id = $3`,
		ids, string(model.OwnerGuest), sessionID)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete guest datasets: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) AddSessionDataset(ctx context.Context, sessionID, datasetID string, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO guest_sessions (session_id, created_at, dataset_ids) VALUES ($1, $2, ARRAY[$3::text])
ON CONFLICT (session_id) DO UPDATE SET dataset_ids =
	CASE WHEN $3::text = ANY(guest_sessions.dataset_ids) THEN guest_sessions.dataset_ids
	ELSE array_append(guest_sessions.dataset_ids, $3::text) END`,
		sessionID, now, datasetID)
	if err != nil {
		return fmt.Errorf("postgres: upsert session: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*model.GuestSession, error) {
	var sess model.GuestSession
	if err := row.Scan(&sess.SessionID, &sess.CreatedAt, &sess.VisualizationsUsed, &sess.DatasetIDs); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*model.GuestSession, error) {
	sess, err := scanSession(s.pool.QueryRow(ctx,
		`SELECT session_id, created_at, visualizations_used, dataset_ids FROM guest_sessions WHERE session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(store.KindSession, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get session: %w", err)
	}
	return sess, nil
}

func (s *Store) IncrementSessionUsage(ctx context.Context, sessionID string) error {
	return s.execOne(ctx, store.KindSession, sessionID,
		`UPDATE guest_sessions SET visualizations_used = visualizations_used + 1 WHERE session_id = $1`, sessionID)
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return s.execOne(ctx, store.KindSession, sessionID, `DELETE FROM guest_sessions WHERE session_id = $1`, sessionID)
}

func (s *Store) ListExpiredSessions(ctx context.Context, cutoff time.Time) ([]*model.GuestSession, error) {
	rows, err := s.pool.Query(ctx, `
SELECT session_id, created_at, visualizations_used, dataset_ids FROM guest_sessions
WHERE created_at < $1 ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: expired sessions: %w", err)
	}
	defer rows.Close()
	var out []*model.GuestSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: expired sessions: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) CreateVisualization(ctx context.Context, v *model.Visualization) error {
	if v.InsightIDs == nil {
		v.InsightIDs = []string{}
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("postgres: marshal visualization: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO visualizations (id, dataset_id, version, created_at, doc) VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.DatasetID, v.Version, v.CreatedAt, doc)
	if err != nil {
		return fmt.Errorf("postgres: insert visualization: %w", err)
	}
	return nil
}

func decodeViz(doc []byte) (*model.Visualization, error) {
	var v model.Visualization
	if err := json.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("postgres: decode visualization: %w", err)
	}
	return &v, nil
}

func (s *Store) GetVisualization(ctx context.Context, id string) (*model.Visualization, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM visualizations WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(store.KindVisualization, id)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get visualization: %w", err)
	}
	return decodeViz(doc)
}

// UpdateVisualization keeps the stored insight ids; they are owned by AppendInsight.
func (s *Store) UpdateVisualization(ctx context.Context, v *model.Visualization, expectedVersion int) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("postgres: marshal visualization: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
UPDATE visualizations
SET doc = jsonb_set($2::jsonb, '{aiMessageIds}', COALESCE(doc->'aiMessageIds', '[]'::jsonb)), version = $3
WHERE id = $1 AND version = $4`, v.ID, doc, v.Version, expectedVersion)
	if err != nil {
		return fmt.Errorf("postgres: update visualization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetVisualization(ctx, v.ID); err != nil {
			return err
		}
		return store.ErrConflict
	}
	return nil
}

func (s *Store) ListVisualizations(ctx context.Context, datasetID string) ([]*model.Visualization, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM visualizations WHERE dataset_id = $1 ORDER BY created_at`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list visualizations: %w", err)
	}
	defer rows.Close()
	var out []*model.Visualization
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("postgres: list visualizations: %w", err)
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
		return fmt.Errorf("postgres: marshal insight: %w", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx)
	tag, err := tx.Exec(ctx, `
UPDATE visualizations SET doc = jsonb_set(doc, '{aiMessageIds}',
	(CASE jsonb_typeof(doc->'aiMessageIds') WHEN 'array' THEN doc->'aiMessageIds' ELSE '[]'::jsonb END) || to_jsonb($2::text))
WHERE id = $1`, in.VizID, in.ID)
	if err != nil {
		return fmt.Errorf("postgres: link insight: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(store.KindVisualization, in.VizID)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO insights (id, viz_id, created_at, doc) VALUES ($1, $2, $3, $4)`,
		in.ID, in.VizID, in.CreatedAt, doc); err != nil {
		return fmt.Errorf("postgres: insert insight: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *Store) ListInsights(ctx context.Context, vizID string) ([]*model.Insight, error) {
	rows, err := s.pool.Query(ctx, `SELECT doc FROM insights WHERE viz_id = $1 ORDER BY seq`, vizID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list insights: %w", err)
	}
	defer rows.Close()
	out := []*model.Insight{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("postgres: list insights: %w", err)
		}
		var in model.Insight
		if err := json.Unmarshal(doc, &in); err != nil {
			return nil, fmt.Errorf("postgres: decode insight: %w", err)
		}
		out = append(out, &in)
	}
	return out, rows.Err()
}
