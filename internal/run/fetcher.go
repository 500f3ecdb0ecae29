package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/runherald/internal/metrics"
	"github.com/hitoshi/runherald/internal/model"
	"github.com/hitoshi/runherald/internal/security"
	"github.com/hitoshi/runherald/internal/speedrun"
)

// RunLister は検証済み記録一覧取得のインターフェース。
type RunLister interface {
	ListVerifiedRuns(ctx context.Context, gameID string) ([]speedrun.Run, error)
}

// Resolver は記録の順位解決のインターフェース。
type Resolver interface {
	Resolve(ctx context.Context, runID, gameID, categoryID, levelID string) (int, error)
}

// Fetcher は検証済み記録を取得し、適格性判定と順位解決を経て
// model.Runの列へ正規化する。出力順は保証されず、呼び出し元は
// 順序なしとして扱うこと。
type Fetcher struct {
	client    RunLister
	resolver  Resolver
	sanitizer security.NameSanitizerService
	collector metrics.MetricsCollector
	logger    *slog.Logger
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	client RunLister,
	resolver Resolver,
	sanitizer security.NameSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Fetcher {
	return &Fetcher{
		client:    client,
		resolver:  resolver,
		sanitizer: sanitizer,
		collector: collector,
		logger:    logger,
	}
}

// FetchRuns は指定ゲームのstartDate以降に検証された記録を正規化して返す。
// 適格性を満たさない候補（検証日時欠損、カットオフ以前、カテゴリ未解決、
// 順位未解決）はエラーとせず黙って除外する。除外は観測可能性のために
// ログとメトリクスへ記録される。
// 下層クライアントのトランスポート・パース失敗は呼び出し全体の失敗として返す。
func (f *Fetcher) FetchRuns(ctx context.Context, gameID string, startDate time.Time) ([]model.Run, error) {
	rawRuns, err := f.client.ListVerifiedRuns(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("検証済み記録の取得に失敗しました: %w", err)
	}

	f.collector.RecordRunsFetched(len(rawRuns))
	startMillis := startDate.UnixMilli()

	allRuns := make([]model.Run, 0, len(rawRuns))
	for _, raw := range rawRuns {
		// 検証日時が欠損・解釈不能な候補は除外
		if raw.VerifyDate == "" {
			f.skip(raw.ID, metrics.SkipReasonNoVerifyDate)
			continue
		}
		verifiedAt, err := time.Parse(time.RFC3339, raw.VerifyDate)
		if err != nil {
			f.skip(raw.ID, metrics.SkipReasonNoVerifyDate)
			continue
		}
		verifiedMillis := verifiedAt.UnixMilli()

		// カットオフ以前に検証された候補は除外
		if verifiedMillis < startMillis {
			f.skip(raw.ID, metrics.SkipReasonBeforeCutoff)
			continue
		}

		// カテゴリが解決できない候補は除外
		if raw.Category == nil || raw.Category.ID == "" || raw.Category.Name == "" {
			f.skip(raw.ID, metrics.SkipReasonNoCategory)
			continue
		}

		levelID := ""
		levelName := ""
		if raw.Level != nil {
			levelID = raw.Level.ID
			levelName = f.sanitizer.Sanitize(raw.Level.Name)
		}

		// 順位解決: スナップショットに存在しない記録は除外、
		// トランスポート失敗はフェッチ全体の失敗
		position, err := f.resolver.Resolve(ctx, raw.ID, gameID, raw.Category.ID, levelID)
		if err != nil {
			if errors.Is(err, model.ErrPositionNotFound) {
				f.skip(raw.ID, metrics.SkipReasonNoPosition)
				continue
			}
			return nil, fmt.Errorf("順位の解決に失敗しました: %w", err)
		}
		if position < 1 {
			f.skip(raw.ID, metrics.SkipReasonNoPosition)
			continue
		}

		allRuns = append(allRuns, model.Run{
			RunID:        raw.ID,
			Weblink:      raw.Weblink,
			CategoryID:   raw.Category.ID,
			CategoryName: f.sanitizer.Sanitize(raw.Category.Name),
			LevelID:      levelID,
			LevelName:    levelName,
			Position:     position,
			PrimaryTime:  raw.PrimaryTime,
			PlayerNames:  f.playerNames(raw.Players),
			VerifiedAt:   verifiedMillis,
		})
	}

	return allRuns, nil
}

// playerNames は走者一覧を表示名リストへ変換する。
// 日本語名と国際名の両方がある場合は「日本語名 (国際名)」、
// どちらか一方の場合はその名前、ゲスト走者はゲスト名を使用する。
// 走者情報がembedされていない場合はnilを返す。
func (f *Fetcher) playerNames(players []speedrun.Player) []string {
	if players == nil {
		return nil
	}

	names := make([]string, 0, len(players))
	for _, p := range players {
		japanese := f.sanitizer.Sanitize(p.Japanese)
		international := f.sanitizer.Sanitize(p.International)

		var name string
		switch {
		case japanese != "" && international != "":
			name = fmt.Sprintf("%s (%s)", japanese, international)
		case japanese != "":
			name = japanese
		case international != "":
			name = international
		default:
			name = f.sanitizer.Sanitize(p.Name)
		}
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

// skip は候補除外をログとメトリクスへ記録する。
func (f *Fetcher) skip(runID, reason string) {
	f.collector.RecordRunSkipped(reason)
	f.logger.Info("適格性を満たさない記録を除外しました",
		slog.String("run_id", runID),
		slog.String("reason", reason),
	)
}
