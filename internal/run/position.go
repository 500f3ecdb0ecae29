// Package run は検証済み記録の取得・正規化・順位解決を提供する。
// speedrun APIのレスポンスから適格性判定を経てmodel.Runを構築する。
package run

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/runherald/internal/model"
	"github.com/hitoshi/runherald/internal/speedrun"
)

// LeaderboardGetter はリーダーボード取得のインターフェース。
type LeaderboardGetter interface {
	GetLeaderboard(ctx context.Context, gameID, categoryID, levelID string) (*speedrun.Leaderboard, error)
}

// PositionResolver は記録の順位をリーダーボードスナップショットから導出する。
// 記録1件につき1回のリーダーボード取得を行う。
type PositionResolver struct {
	client LeaderboardGetter
	logger *slog.Logger
}

// NewPositionResolver はPositionResolverの新しいインスタンスを生成する。
func NewPositionResolver(client LeaderboardGetter, logger *slog.Logger) *PositionResolver {
	return &PositionResolver{
		client: client,
		logger: logger,
	}
}

// Resolve は指定カテゴリ（およびレベル）のリーダーボードを取得し、
// runIDの順位を返す。記録がスナップショットに存在しない場合は
// model.ErrPositionNotFoundを返す。これはエラーではなく、
// 候補を除外する理由として呼び出し元が扱う（記録の更新等で起こり得る）。
func (r *PositionResolver) Resolve(ctx context.Context, runID, gameID, categoryID, levelID string) (int, error) {
	lb, err := r.client.GetLeaderboard(ctx, gameID, categoryID, levelID)
	if err != nil {
		return 0, fmt.Errorf("リーダーボードの取得に失敗しました: %w", err)
	}

	for _, entry := range lb.Entries {
		if entry.RunID == runID {
			return entry.Place, nil
		}
	}

	r.logger.Debug("記録がリーダーボードに存在しません",
		slog.String("run_id", runID),
		slog.String("category_id", categoryID),
		slog.String("level_id", levelID),
	)
	return 0, model.ErrPositionNotFound
}
