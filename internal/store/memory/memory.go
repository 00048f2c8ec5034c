// Package memory is an in-process Store used by tests and single-node runs.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/store"
)

// Store keeps every document in maps guarded by one RWMutex. Values are copied
// on the way in and out.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]*model.Dataset
	sessions map[string]*model.GuestSession
	vizs     map[string]*model.Visualization
	insights map[string][]*model.Insight
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		datasets: map[string]*model.Dataset{},
		sessions: map[string]*model.GuestSession{},
		vizs:     map[string]*model.Visualization{},
		insights: map[string][]*model.Insight{},
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateDataset(_ context.Context, ds *model.Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[ds.ID] = store.CloneDataset(ds)
	return nil
}

func (s *Store) GetDataset(_ context.Context, id string) (*model.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[id]
	if !ok {
		return nil, &store.NotFoundError{Kind: store.KindDataset, ID: id}
	}
	return store.CloneDataset(ds), nil
}

func (s *Store) ListDatasets(_ context.Context, f store.DatasetFilter) ([]*model.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Dataset
	for _, ds := range s.datasets {
		if f.Owner.Kind != model.OwnerNone && ds.Owner != f.Owner {
			continue
		}
		out = append(out, store.CloneDataset(ds))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetPendingConfig(_ context.Context, id string, cfg model.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[id]
	if !ok {
		return &store.NotFoundError{Kind: store.KindDataset, ID: id}
	}
	ds.PendingConfig = cfg.Clone()
	return nil
}

func (s *Store) LinkVisualization(_ context.Context, id string, ref model.VisualizationRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[id]
	if !ok {
		return &store.NotFoundError{Kind: store.KindDataset, ID: id}
	}
	ds.Visualizations = append(ds.Visualizations, ref)
	ds.PendingConfig = nil
	return nil
}

func (s *Store) ReassignDatasets(_ context.Context, ids []string, owner model.Owner) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if ds, ok := s.datasets[id]; ok {
			ds.Owner = owner
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteDataset(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[id]; !ok {
		return &store.NotFoundError{Kind: store.KindDataset, ID: id}
	}
	delete(s.datasets, id)
	return nil
}

func (s *Store) DeleteGuestDatasets(_ context.Context, sessionID string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := model.GuestOwner(sessionID)
	n := 0
	for _, id := range ids {
		if ds, ok := s.datasets[id]; ok && ds.Owner == owner {
			delete(s.datasets, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) AddSessionDataset(_ context.Context, sessionID, datasetID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &model.GuestSession{SessionID: sessionID, CreatedAt: now}
		s.sessions[sessionID] = sess
	}
	if !slices.Contains(sess.DatasetIDs, datasetID) {
		sess.DatasetIDs = append(sess.DatasetIDs, datasetID)
	}
	return nil
}

func (s *Store) GetSession(_ context.Context, sessionID string) (*model.GuestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, &store.NotFoundError{Kind: store.KindSession, ID: sessionID}
	}
	return store.CloneSession(sess), nil
}

func (s *Store) IncrementSessionUsage(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return &store.NotFoundError{Kind: store.KindSession, ID: sessionID}
	}
	sess.VisualizationsUsed++
	return nil
}

func (s *Store) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return &store.NotFoundError{Kind: store.KindSession, ID: sessionID}
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *Store) ListExpiredSessions(_ context.Context, cutoff time.Time) ([]*model.GuestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.GuestSession
	for _, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			out = append(out, store.CloneSession(sess))
		}
	}
	return out, nil
}

func (s *Store) CreateVisualization(_ context.Context, v *model.Visualization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vizs[v.ID] = store.CloneVisualization(v)
	return nil
}

func (s *Store) GetVisualization(_ context.Context, id string) (*model.Visualization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vizs[id]
	if !ok {
		return nil, &store.NotFoundError{Kind: store.KindVisualization, ID: id}
	}
	return store.CloneVisualization(v), nil
}

func (s *Store) UpdateVisualization(_ context.Context, v *model.Visualization, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.vizs[v.ID]
	if !ok {
		return &store.NotFoundError{Kind: store.KindVisualization, ID: v.ID}
	}
	if cur.Version != expectedVersion {
		return store.ErrConflict
	}
	next := store.CloneVisualization(v)
	next.InsightIDs = cur.InsightIDs
	s.vizs[v.ID] = next
	return nil
}

func (s *Store) ListVisualizations(_ context.Context, datasetID string) ([]*model.Visualization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.Visualization
	for _, v := range s.vizs {
		if v.DatasetID == datasetID {
			out = append(out, store.CloneVisualization(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AppendInsight(_ context.Context, in *model.Insight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vizs[in.VizID]
	if !ok {
		return &store.NotFoundError{Kind: store.KindVisualization, ID: in.VizID}
	}
	cp := *in
	s.insights[in.VizID] = append(s.insights[in.VizID], &cp)
	v.InsightIDs = append(v.InsightIDs, in.ID)
	return nil
}

func (s *Store) ListInsights(_ context.Context, vizID string) ([]*model.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.insights[vizID]
	out := make([]*model.Insight, len(list))
	for i, in := range list {
		cp := *in
		out[i] = &cp
	}
	return out, nil
}

func init() {
	store.Register("memory", func(context.Context, store.Config) (store.Store, error) { return New(), nil })
}
