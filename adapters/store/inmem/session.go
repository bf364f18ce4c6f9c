package inmem

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kompox/k8socks/domain"
	"github.com/kompox/k8socks/domain/model"
)

// SessionRepository is a thread-safe in-memory implementation, used when
// the ledger is disabled and in tests.
type SessionRepository struct {
	mu    sync.RWMutex
	items map[string]*model.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{items: make(map[string]*model.Session)}
}

func (r *SessionRepository) Create(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	r.items[s.ID] = clone(s)
	return nil
}

func (r *SessionRepository) Get(_ context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return clone(v), nil
}

// List returns sessions ordered by creation time.
func (r *SessionRepository) List(_ context.Context) ([]*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Session, 0, len(r.items))
	for _, v := range r.items {
		out = append(out, clone(v))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *SessionRepository) Update(_ context.Context, s *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[s.ID]; !ok {
		return model.ErrSessionNotFound
	}
	r.items[s.ID] = clone(s)
	return nil
}

func clone(s *model.Session) *model.Session {
	cp := *s
	if s.DeletedAt != nil {
		t := *s.DeletedAt
		cp.DeletedAt = &t
	}
	return &cp
}

var _ domain.SessionRepository = (*SessionRepository)(nil)
