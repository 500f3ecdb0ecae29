// Package announce はアナウンスサイクルのオーケストレーションを提供する。
// 各アクティブ購読について記録を取得し、配信台帳と突き合わせ、
// 未配信の記録ごとに「送信してから記録する」ステップを実行する。
package announce

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/runherald/internal/format"
	"github.com/hitoshi/runherald/internal/metrics"
	"github.com/hitoshi/runherald/internal/model"
	"github.com/hitoshi/runherald/internal/repository"
)

// RunFetcher は正規化済み記録の取得インターフェース。
type RunFetcher interface {
	FetchRuns(ctx context.Context, gameID string, startDate time.Time) ([]model.Run, error)
}

// WebhookSender は通知送信のインターフェース。
// 成功時に耐久的なメッセージIDを返す。
type WebhookSender interface {
	Send(ctx context.Context, content string) (string, error)
}

// Worker はアナウンスサイクルを駆動する。
// 購読は読み込まれた順に逐次処理され、購読内の候補配信も厳密に逐次実行される。
// 並行して実行されるI/Oは存在しない。
type Worker struct {
	subRepo   repository.SubscriptionRepository
	msgRepo   repository.MessageRepository
	fetcher   RunFetcher
	sender    WebhookSender
	collector metrics.MetricsCollector
	logger    *slog.Logger
	startDate time.Time
}

// NewWorker はWorkerの新しいインスタンスを生成する。
// startDateはプロセス全体のカットオフで、これより前に検証された記録は配信対象にならない。
func NewWorker(
	subRepo repository.SubscriptionRepository,
	msgRepo repository.MessageRepository,
	fetcher RunFetcher,
	sender WebhookSender,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	startDate time.Time,
) *Worker {
	return &Worker{
		subRepo:   subRepo,
		msgRepo:   msgRepo,
		fetcher:   fetcher,
		sender:    sender,
		collector: collector,
		logger:    logger,
		startDate: startDate,
	}
}

// RunCycle はアナウンスサイクルを1回実行する。
// 購読ごとの致命エラーは隔離され、残りの購読の処理は継続される。
// 1件でも購読処理が失敗した場合は、全購読の処理完了後にエラーを返す
// （プロセスの終了コードを1にするため）。
func (w *Worker) RunCycle(ctx context.Context) error {
	start := time.Now()

	w.logger.Info("アクティブな購読を読み込んでいます")
	subs, err := w.subRepo.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("アクティブな購読の取得に失敗しました: %w", err)
	}
	w.logger.Info("アクティブな購読を読み込みました",
		slog.Int("subscription_count", len(subs)),
	)

	failed := 0
	for _, sub := range subs {
		if err := w.processSubscription(ctx, sub); err != nil {
			failed++
			w.collector.RecordSubscriptionProcessed(false)
			w.logger.Error("購読の処理に失敗しました",
				slog.String("subscription_id", sub.ID),
				slog.String("game_id", sub.GameID),
				slog.String("error", err.Error()),
			)
			continue
		}
		w.collector.RecordSubscriptionProcessed(true)
	}

	duration := time.Since(start)
	w.collector.RecordCycleDuration(duration)
	w.logger.Info("アナウンスサイクルが完了しました",
		slog.Int("subscription_count", len(subs)),
		slog.Int("failed_count", failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	if failed > 0 {
		return fmt.Errorf("%d of %d subscription(s) failed during the cycle", failed, len(subs))
	}
	return nil
}

// processSubscription は1件の購読を処理する。
// 記録の取得 → 台帳との差分 → 検証日時昇順での逐次配信の順で進み、
// 配信ステップが失敗した時点で当該購読の残り候補を打ち切る（fail-fast）。
func (w *Worker) processSubscription(ctx context.Context, sub *model.Subscription) error {
	w.logger.Info("購読の処理を開始します",
		slog.String("subscription_id", sub.ID),
		slog.String("game_id", sub.GameID),
	)

	runs, err := w.fetcher.FetchRuns(ctx, sub.GameID, w.startDate)
	if err != nil {
		return fmt.Errorf("記録の取得に失敗しました: %w", err)
	}
	w.logger.Info("記録を取得しました",
		slog.String("subscription_id", sub.ID),
		slog.Int("run_count", len(runs)),
	)

	if len(runs) == 0 {
		w.logger.Info("処理対象の記録はありません",
			slog.String("subscription_id", sub.ID),
		)
		return nil
	}

	// 取得結果に含まれる一意な記録IDの集合
	runIDSet := make(map[string]struct{}, len(runs))
	runIDs := make([]string, 0, len(runs))
	for _, r := range runs {
		if _, ok := runIDSet[r.RunID]; ok {
			continue
		}
		runIDSet[r.RunID] = struct{}{}
		runIDs = append(runIDs, r.RunID)
	}

	delivered, err := w.msgRepo.ListRunIDsWithMessage(ctx, sub.ID, runIDs)
	if err != nil {
		return fmt.Errorf("既存メッセージの検索に失敗しました: %w", err)
	}

	// 候補 = 取得結果のうち未配信の記録。検証日時の古い順に並べ替える。
	// 取得結果は新しい順だが、アナウンスは時系列順で行う。同時刻の
	// 並びは取得順を保存する（安定ソート）。
	candidates := make([]model.Run, 0, len(runs))
	for _, r := range runs {
		if _, ok := delivered[r.RunID]; ok {
			w.collector.RecordRunSkipped(metrics.SkipReasonAlreadyDelivered)
			continue
		}
		candidates = append(candidates, r)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].VerifiedAt < candidates[j].VerifiedAt
	})

	if len(candidates) == 0 {
		w.logger.Info("新規に配信する記録はありません",
			slog.String("subscription_id", sub.ID),
		)
		return nil
	}

	candidateIDs := make([]string, len(candidates))
	for i, r := range candidates {
		candidateIDs[i] = r.RunID
	}
	w.logger.Info("新規配信対象の記録",
		slog.String("subscription_id", sub.ID),
		slog.String("run_ids", strings.Join(candidateIDs, ", ")),
	)

	// 逐次配信: 前の候補のステップが完全にコミットまたは致命的に
	// 失敗するまで、次の候補には着手しない。
	for _, r := range candidates {
		if err := w.deliverAndRecord(ctx, sub, r); err != nil {
			return err
		}
	}

	w.logger.Info("購読の処理が完了しました",
		slog.String("subscription_id", sub.ID),
		slog.Int("delivered_count", len(candidates)),
	)
	return nil
}

// deliverAndRecord は1件の記録に対する配信ステップを実行する。
// (a) 台帳行がコミットされメッセージが1通送信されたか、
// (b) 台帳行がコミットされずエラーが返るか、のいずれかに終わる。
// 送信成功後の記録失敗は「送信済みだが未記録」という最重大の異常であり、
// model.ErrUnrecordedDeliveryを含むエラーとして呼び出し元に伝わる。
// 送信済みメッセージの補償削除は行わない。
func (w *Worker) deliverAndRecord(ctx context.Context, sub *model.Subscription, r model.Run) error {
	w.logger.Info("メッセージをwebhookへ送信します",
		slog.String("subscription_id", sub.ID),
		slog.String("run_id", r.RunID),
	)

	content := format.Message(r, sub.Locale)

	messageID, err := w.sender.Send(ctx, content)
	if err != nil {
		// メッセージID取得前の失敗: 台帳行は作られず、次サイクルで再試行される
		w.collector.RecordDeliveryFailure()
		return fmt.Errorf("メッセージの送信に失敗しました (run %s): %w", r.RunID, err)
	}
	w.collector.RecordMessageSent()

	msg := &model.Message{
		ID:             messageID,
		RunID:          r.RunID,
		SubscriptionID: sub.ID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := w.msgRepo.Create(ctx, msg); err != nil {
		w.collector.RecordRecordFailure()
		w.logger.Error("メッセージは送信されましたが台帳への記録に失敗しました",
			slog.String("subscription_id", sub.ID),
			slog.String("run_id", r.RunID),
			slog.String("message_id", messageID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w (run %s, message %s): %w", model.ErrUnrecordedDelivery, r.RunID, messageID, err)
	}

	w.logger.Info("メッセージを送信し台帳へ記録しました",
		slog.String("subscription_id", sub.ID),
		slog.String("run_id", r.RunID),
		slog.String("message_id", messageID),
	)
	return nil
}
