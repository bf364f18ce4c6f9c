package rdb

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kompox/k8socks/domain"
	"github.com/kompox/k8socks/domain/model"
)

type SessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) *SessionRepository { return &SessionRepository{db: db} }

func sessionToRecord(s *model.Session) *SessionRecord {
	return &SessionRecord{
		ID:           s.ID,
		WorkloadName: s.WorkloadName,
		Namespace:    s.Namespace,
		Context:      s.Context,
		Image:        s.Image,
		TTLSeconds:   s.TTLSeconds,
		SocksPort:    s.SocksPort,
		Status:       string(s.Status),
		Message:      s.Message,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		DeletedAt:    s.DeletedAt,
	}
}

func sessionToModel(r *SessionRecord) *model.Session {
	return &model.Session{
		ID:           r.ID,
		WorkloadName: r.WorkloadName,
		Namespace:    r.Namespace,
		Context:      r.Context,
		Image:        r.Image,
		TTLSeconds:   r.TTLSeconds,
		SocksPort:    r.SocksPort,
		Status:       model.SessionStatus(r.Status),
		Message:      r.Message,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		DeletedAt:    r.DeletedAt,
	}
}

func (r *SessionRepository) Create(ctx context.Context, s *model.Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(sessionToRecord(s)).Error
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*model.Session, error) {
	var rec SessionRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrSessionNotFound
		}
		return nil, err
	}
	return sessionToModel(&rec), nil
}

func (r *SessionRepository) List(ctx context.Context) ([]*model.Session, error) {
	var recs []SessionRecord
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]*model.Session, 0, len(recs))
	for i := range recs {
		out = append(out, sessionToModel(&recs[i]))
	}
	return out, nil
}

// Update overwrites every column, including zero values.
func (r *SessionRepository) Update(ctx context.Context, s *model.Session) error {
	res := r.db.WithContext(ctx).Model(&SessionRecord{}).Where("id = ?", s.ID).Select("*").Updates(sessionToRecord(s))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrSessionNotFound
	}
	return nil
}

var _ domain.SessionRepository = (*SessionRepository)(nil)
