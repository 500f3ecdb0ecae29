// Package subscription は購読の管理機能を提供する。
// 購読の作成・更新はこのサービス（管理API）経由でのみ行われ、
// アナウンスサイクルは購読を読み取り専用で参照する。
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/runherald/internal/format"
	"github.com/hitoshi/runherald/internal/model"
	"github.com/hitoshi/runherald/internal/repository"
)

// Service は購読管理のアプリケーションサービス。
type Service struct {
	subRepo repository.SubscriptionRepository
	msgRepo repository.MessageRepository
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	subRepo repository.SubscriptionRepository,
	msgRepo repository.MessageRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		subRepo: subRepo,
		msgRepo: msgRepo,
		logger:  logger,
	}
}

// List は全購読を返す。
func (s *Service) List(ctx context.Context) ([]*model.Subscription, error) {
	return s.subRepo.List(ctx)
}

// Get は指定IDの購読を返す。見つからない場合はAPIErrorを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Subscription, error) {
	sub, err := s.subRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, model.NewSubscriptionNotFoundError(id)
	}
	return sub, nil
}

// Create は新しい購読を作成する。IDはUUIDで採番される。
// ゲームIDが空、またはロケールが解釈できない場合はAPIErrorを返す。
func (s *Service) Create(ctx context.Context, gameID, locale string, active bool) (*model.Subscription, error) {
	if gameID == "" {
		return nil, model.NewInvalidGameIDError()
	}
	if !format.IsValidLocale(locale) {
		return nil, model.NewInvalidLocaleError(locale)
	}

	now := time.Now().UTC()
	sub := &model.Subscription{
		ID:        uuid.NewString(),
		GameID:    gameID,
		Locale:    locale,
		Active:    active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.subRepo.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("購読の作成に失敗しました: %w", err)
	}

	s.logger.Info("購読を作成しました",
		slog.String("subscription_id", sub.ID),
		slog.String("game_id", sub.GameID),
		slog.String("locale", sub.Locale),
	)
	return sub, nil
}

// UpdatePatch は購読更新の部分更新内容。nilフィールドは変更しない。
type UpdatePatch struct {
	GameID *string
	Locale *string
	Active *bool
}

// Update は購読を部分更新する。
func (s *Service) Update(ctx context.Context, id string, patch UpdatePatch) (*model.Subscription, error) {
	sub, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.GameID != nil {
		if *patch.GameID == "" {
			return nil, model.NewInvalidGameIDError()
		}
		sub.GameID = *patch.GameID
	}
	if patch.Locale != nil {
		if !format.IsValidLocale(*patch.Locale) {
			return nil, model.NewInvalidLocaleError(*patch.Locale)
		}
		sub.Locale = *patch.Locale
	}
	if patch.Active != nil {
		sub.Active = *patch.Active
	}

	if err := s.subRepo.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("購読の更新に失敗しました: %w", err)
	}

	s.logger.Info("購読を更新しました",
		slog.String("subscription_id", sub.ID),
		slog.Bool("active", sub.Active),
	)
	return sub, nil
}

// Delete は購読を削除する。関連する台帳行もCASCADE削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.subRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("購読の削除に失敗しました: %w", err)
	}

	s.logger.Info("購読を削除しました",
		slog.String("subscription_id", id),
	)
	return nil
}

// ListMessages は購読の配信台帳を作成日時降順で返す。
func (s *Service) ListMessages(ctx context.Context, id string) ([]*model.Message, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.msgRepo.ListBySubscriptionID(ctx, id)
}
