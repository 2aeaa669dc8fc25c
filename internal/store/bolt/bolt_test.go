package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytebuddy/bytebuddy/internal/model"
	"github.com/bytebuddy/bytebuddy/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newCredential(email string) *model.Credential {
	now := time.Now().UTC()
	return &model.Credential{
		Identity:     model.Identity{ID: model.NewIdentityID(), Name: "Jane", Email: email},
		PasswordHash: "hash",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestStore_Users(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	c := newCredential("Jane@Example.com")
	if err := s.CreateUser(ctx, c); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if c.Email != "jane@example.com" {
		t.Errorf("email not normalized: %q", c.Email)
	}

	byEmail, err := s.GetUserByEmail(ctx, "JANE@example.COM")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != c.ID || byEmail.Name != "Jane" {
		t.Errorf("unexpected user: %+v", byEmail)
	}

	byID, err := s.GetUserByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Email != "jane@example.com" {
		t.Errorf("unexpected email: %q", byID.Email)
	}

	if err := s.CreateUser(ctx, newCredential("jane@EXAMPLE.com")); !errors.Is(err, store.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	if err := s.UpdatePassword(ctx, c.ID, "new-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	updated, _ := s.GetUserByID(ctx, c.ID)
	if updated.PasswordHash != "new-hash" {
		t.Errorf("password hash not updated")
	}

	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if err := s.UpdatePassword(ctx, "missing", "x"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestStore_ResetCodes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.GetResetCode(ctx, "a@b.c"); !errors.Is(err, store.ErrResetCodeNotFound) {
		t.Fatalf("expected ErrResetCodeNotFound, got %v", err)
	}

	exp := time.Now().Add(model.ResetCodeTTL).UTC()
	if err := s.PutResetCode(ctx, model.ResetCode{Email: "A@b.c", Code: "111111", ExpiresAt: exp}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutResetCode(ctx, model.ResetCode{Email: "a@b.c", Code: "222222", ExpiresAt: exp}); err != nil {
		t.Fatalf("put: %v", err)
	}

	code, err := s.GetResetCode(ctx, "a@B.c")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if code.Code != "222222" {
		t.Errorf("expected newer code to replace older, got %s", code.Code)
	}

	if err := s.DeleteResetCode(ctx, "a@b.c"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteResetCode(ctx, "a@b.c"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := s.GetResetCode(ctx, "a@b.c"); !errors.Is(err, store.ErrResetCodeNotFound) {
		t.Fatalf("expected ErrResetCodeNotFound after delete, got %v", err)
	}
}

func TestStore_RevokeSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	if err := s.RevokeSession(ctx, "old", now.Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := s.IsSessionRevoked(ctx, "old")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v %v", revoked, err)
	}

	now = now.Add(2 * time.Minute)
	if err := s.RevokeSession(ctx, "new", now.Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if revoked, _ := s.IsSessionRevoked(ctx, "old"); revoked {
		t.Error("expired revocation should have been swept")
	}
	if revoked, _ := s.IsSessionRevoked(ctx, "new"); !revoked {
		t.Error("new revocation missing")
	}
	if revoked, _ := s.IsSessionRevoked(ctx, "unknown"); revoked {
		t.Error("unknown token reported revoked")
	}
}

func TestStore_Conversations(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	owner := model.NewIdentityID()
	other := model.NewIdentityID()

	first := model.NewConversation()
	second := model.NewConversation()
	second.CreatedAt = first.CreatedAt.Add(time.Second)

	for _, c := range []model.Conversation{first, second} {
		if err := s.CreateConversation(ctx, owner, c); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := s.AppendMessage(ctx, owner, first.ID, model.NewMessage(model.RoleUser, "hi")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.AppendMessage(ctx, owner, first.ID, model.NewMessage(model.RoleAssistant, "hello")); err != nil {
		t.Fatalf("append: %v", err)
	}
	renamedAt := model.Now()
	if err := s.UpdateTitle(ctx, owner, first.ID, "Greetings", renamedAt); err != nil {
		t.Fatalf("update title: %v", err)
	}

	list, err := s.ListConversations(ctx, owner)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if list[1].Title != "Greetings" {
		t.Errorf("title = %q", list[1].Title)
	}
	if !list[1].UpdatedAt.Equal(renamedAt) {
		t.Errorf("updated_at = %v, want %v", list[1].UpdatedAt, renamedAt)
	}
	if len(list[1].Messages) != 2 || list[1].Messages[0].Content != "hi" || list[1].Messages[1].Content != "hello" {
		t.Errorf("unexpected messages: %+v", list[1].Messages)
	}

	otherList, err := s.ListConversations(ctx, other)
	if err != nil {
		t.Fatalf("list other: %v", err)
	}
	if len(otherList) != 0 {
		t.Errorf("conversations leaked across identities: %+v", otherList)
	}
	if err := s.AppendMessage(ctx, other, first.ID, model.NewMessage(model.RoleUser, "x")); !errors.Is(err, store.ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound for other identity, got %v", err)
	}

	if err := s.DeleteConversation(ctx, owner, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteConversation(ctx, owner, first.ID); !errors.Is(err, store.ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
	list, _ = s.ListConversations(ctx, owner)
	if len(list) != 1 || list[0].ID != second.ID {
		t.Errorf("unexpected list after delete: %+v", list)
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	c := newCredential("persist@example.com")
	if err := s.CreateUser(ctx, c); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	if _, err := s.GetUserByID(ctx, c.ID); err != nil {
		t.Fatalf("user lost after reopen: %v", err)
	}
}
