package domain

import (
	"context"

	"github.com/kompox/k8socks/domain/model"
)

// SessionRepository stores and retrieves Session ledger records.
type SessionRepository interface {
	Create(ctx context.Context, s *model.Session) error
	Get(ctx context.Context, id string) (*model.Session, error)
	List(ctx context.Context) ([]*model.Session, error)
	Update(ctx context.Context, s *model.Session) error
}
