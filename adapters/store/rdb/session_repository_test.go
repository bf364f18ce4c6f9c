package rdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kompox/k8socks/domain/model"
)

func newTestRepo(t *testing.T, url string) *SessionRepository {
	t.Helper()
	db, err := OpenFromURL(url)
	if err != nil {
		t.Fatalf("OpenFromURL() error = %v", err)
	}
	t.Cleanup(func() { _ = Close(db) })
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	return NewSessionRepository(db)
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "sqlite:"+filepath.Join(t.TempDir(), "nested", "sessions.db"))

	now := time.Now().UTC().Truncate(time.Second)
	s := &model.Session{
		WorkloadName: "k8socks-abc123",
		Namespace:    "default",
		Image:        "linuxserver/openssh-server:latest",
		TTLSeconds:   900,
		SocksPort:    1080,
		Status:       model.SessionDeployed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	got, err := repo.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.WorkloadName != s.WorkloadName || got.Status != model.SessionDeployed || got.DeletedAt != nil {
		t.Errorf("Get() = %+v", got)
	}

	deletedAt := now.Add(time.Minute)
	got.Status = model.SessionDeleted
	got.Message = ""
	got.DeletedAt = &deletedAt
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 1 || list[0].Status != model.SessionDeleted || list[0].DeletedAt == nil {
		t.Errorf("List() = %+v", list)
	}
	if !list[0].DeletedAt.Equal(deletedAt) {
		t.Errorf("DeletedAt = %v, want %v", list[0].DeletedAt, deletedAt)
	}
}

func TestSessionRepositoryNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "sqlite:"+filepath.Join(t.TempDir(), "sessions.db"))
	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("Get() err = %v", err)
	}
	if err := repo.Update(ctx, &model.Session{ID: "missing", Status: model.SessionFailed}); !errors.Is(err, model.ErrSessionNotFound) {
		t.Errorf("Update() err = %v", err)
	}
}

func TestOpenFromURLUnsupported(t *testing.T) {
	if _, err := OpenFromURL("postgres://localhost/db"); err == nil {
		t.Error("expected error for unsupported scheme")
	}
	if _, err := OpenFromURL("sqlite:"); err == nil {
		t.Error("expected error for empty dsn")
	}
}
