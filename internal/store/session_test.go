package store

import (
	"context"
	"testing"
	"time"
)

func TestSessionCreate(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()
	_, _, child := s.seedFamily(t, "")

	sess, err := s.sessions.Create(ctx, child.ID, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 { // 32 bytes hex-encoded
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}
	if sess.AccountID != child.ID {
		t.Errorf("account_id = %d, want %d", sess.AccountID, child.ID)
	}
}

func TestSessionGetByToken(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()
	_, _, child := s.seedFamily(t, "")

	now := time.Now()
	created, _ := s.sessions.Create(ctx, child.ID, time.Hour, now)

	sess, err := s.sessions.GetByToken(ctx, created.Token, now)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil || sess.ID != created.ID {
		t.Fatalf("session = %+v, want id %d", sess, created.ID)
	}

	expired, err := s.sessions.GetByToken(ctx, created.Token, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("get expired: %v", err)
	}
	if expired != nil {
		t.Error("expected nil for expired session")
	}
}

func TestSessionDelete(t *testing.T) {
	s := setupStoreTestDB(t)
	ctx := context.Background()
	_, _, child := s.seedFamily(t, "")

	now := time.Now()
	sess, _ := s.sessions.Create(ctx, child.ID, time.Hour, now)
	if _, err := s.sessions.Create(ctx, child.ID, -time.Minute, now); err != nil {
		t.Fatalf("create expired: %v", err)
	}

	n, err := s.sessions.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := s.sessions.GetByToken(ctx, sess.Token, now)
	if got != nil {
		t.Error("expected session to be gone")
	}
}
