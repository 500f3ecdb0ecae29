package subscription

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/runherald/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

// mockSubRepo はSubscriptionRepositoryのテスト用モック。
type mockSubRepo struct {
	subs      map[string]*model.Subscription
	created   *model.Subscription
	updated   *model.Subscription
	deletedID string
	err       error
}

func newMockSubRepo() *mockSubRepo {
	return &mockSubRepo{subs: make(map[string]*model.Subscription)}
}

func (m *mockSubRepo) ListActive(_ context.Context) ([]*model.Subscription, error) {
	return nil, nil
}

func (m *mockSubRepo) List(_ context.Context) ([]*model.Subscription, error) {
	if m.err != nil {
		return nil, m.err
	}
	var subs []*model.Subscription
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	return subs, nil
}

func (m *mockSubRepo) FindByID(_ context.Context, id string) (*model.Subscription, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.subs[id], nil
}

func (m *mockSubRepo) Create(_ context.Context, sub *model.Subscription) error {
	if m.err != nil {
		return m.err
	}
	m.created = sub
	m.subs[sub.ID] = sub
	return nil
}

func (m *mockSubRepo) Update(_ context.Context, sub *model.Subscription) error {
	if m.err != nil {
		return m.err
	}
	m.updated = sub
	m.subs[sub.ID] = sub
	return nil
}

func (m *mockSubRepo) Delete(_ context.Context, id string) error {
	if m.err != nil {
		return m.err
	}
	m.deletedID = id
	delete(m.subs, id)
	return nil
}

// mockMsgRepo はMessageRepositoryのテスト用モック。
type mockMsgRepo struct {
	messages []*model.Message
}

func (m *mockMsgRepo) ListRunIDsWithMessage(_ context.Context, _ string, _ []string) (map[string]struct{}, error) {
	return nil, nil
}

func (m *mockMsgRepo) Create(_ context.Context, _ *model.Message) error { return nil }

func (m *mockMsgRepo) ListBySubscriptionID(_ context.Context, _ string) ([]*model.Message, error) {
	return m.messages, nil
}

func newTestService(subRepo *mockSubRepo, msgRepo *mockMsgRepo) *Service {
	var buf bytes.Buffer
	return NewService(subRepo, msgRepo, newTestLogger(&buf))
}

// --- 作成のテスト ---

func TestCreate_AssignsUUIDAndTimestamps(t *testing.T) {
	subRepo := newMockSubRepo()
	s := newTestService(subRepo, &mockMsgRepo{})

	sub, err := s.Create(context.Background(), "m1zg3360", "ja", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if sub.ID == "" {
		t.Error("expected generated ID")
	}
	if sub.GameID != "m1zg3360" || sub.Locale != "ja" || !sub.Active {
		t.Errorf("subscription = %+v", sub)
	}
	if sub.CreatedAt.IsZero() || sub.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
	if subRepo.created == nil {
		t.Error("expected repository Create to be called")
	}
}

func TestCreate_EmptyGameID_ReturnsAPIError(t *testing.T) {
	s := newTestService(newMockSubRepo(), &mockMsgRepo{})

	_, err := s.Create(context.Background(), "", "en", true)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidGameID {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeInvalidGameID)
	}
}

func TestCreate_InvalidLocale_ReturnsAPIError(t *testing.T) {
	s := newTestService(newMockSubRepo(), &mockMsgRepo{})

	_, err := s.Create(context.Background(), "game1", "not a locale", true)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidLocale {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeInvalidLocale)
	}
}

// --- 取得のテスト ---

func TestGet_NotFound_ReturnsAPIError(t *testing.T) {
	s := newTestService(newMockSubRepo(), &mockMsgRepo{})

	_, err := s.Get(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeSubscriptionNotFound {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeSubscriptionNotFound)
	}
}

// --- 更新のテスト ---

func TestUpdate_PartialPatch(t *testing.T) {
	subRepo := newMockSubRepo()
	subRepo.subs["sub1"] = &model.Subscription{
		ID:        "sub1",
		GameID:    "game1",
		Locale:    "en",
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s := newTestService(subRepo, &mockMsgRepo{})

	active := false
	sub, err := s.Update(context.Background(), "sub1", UpdatePatch{Active: &active})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// activeのみ変更され、他のフィールドは保存される
	if sub.Active {
		t.Error("expected active = false")
	}
	if sub.GameID != "game1" || sub.Locale != "en" {
		t.Errorf("unchanged fields were modified: %+v", sub)
	}
}

func TestUpdate_InvalidLocaleInPatch_ReturnsAPIError(t *testing.T) {
	subRepo := newMockSubRepo()
	subRepo.subs["sub1"] = &model.Subscription{ID: "sub1", GameID: "game1", Locale: "en"}
	s := newTestService(subRepo, &mockMsgRepo{})

	bad := "!!!"
	_, err := s.Update(context.Background(), "sub1", UpdatePatch{Locale: &bad})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != model.ErrCodeInvalidLocale {
		t.Errorf("code = %q, want %q", apiErr.Code, model.ErrCodeInvalidLocale)
	}
}

func TestUpdate_NotFound_ReturnsAPIError(t *testing.T) {
	s := newTestService(newMockSubRepo(), &mockMsgRepo{})

	active := true
	_, err := s.Update(context.Background(), "missing", UpdatePatch{Active: &active})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

// --- 削除のテスト ---

func TestDelete_ExistingSubscription(t *testing.T) {
	subRepo := newMockSubRepo()
	subRepo.subs["sub1"] = &model.Subscription{ID: "sub1", GameID: "game1", Locale: "en"}
	s := newTestService(subRepo, &mockMsgRepo{})

	if err := s.Delete(context.Background(), "sub1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if subRepo.deletedID != "sub1" {
		t.Errorf("deletedID = %q, want sub1", subRepo.deletedID)
	}
}

func TestDelete_NotFound_ReturnsAPIError(t *testing.T) {
	s := newTestService(newMockSubRepo(), &mockMsgRepo{})

	err := s.Delete(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

// --- 台帳参照のテスト ---

func TestListMessages_ReturnsLedgerRows(t *testing.T) {
	subRepo := newMockSubRepo()
	subRepo.subs["sub1"] = &model.Subscription{ID: "sub1", GameID: "game1", Locale: "en"}
	msgRepo := &mockMsgRepo{messages: []*model.Message{
		{ID: "msg1", RunID: "run1", SubscriptionID: "sub1"},
	}}
	s := newTestService(subRepo, msgRepo)

	msgs, err := s.ListMessages(context.Background(), "sub1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "msg1" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestListMessages_UnknownSubscription_ReturnsAPIError(t *testing.T) {
	s := newTestService(newMockSubRepo(), &mockMsgRepo{})

	_, err := s.ListMessages(context.Background(), "missing")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}
