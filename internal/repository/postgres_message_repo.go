package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/runherald/internal/model"
)

// PostgresMessageRepo はPostgreSQLを使用した配信台帳リポジトリ。
type PostgresMessageRepo struct {
	db *sql.DB
}

// NewPostgresMessageRepo はPostgresMessageRepoを生成する。
func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

// ListRunIDsWithMessage は指定購読について、runIDsのうち既に台帳行が存在する
// 記録IDの集合を返す。runIDsが空の場合は空集合を返す。
func (r *PostgresMessageRepo) ListRunIDsWithMessage(ctx context.Context, subscriptionID string, runIDs []string) (map[string]struct{}, error) {
	delivered := make(map[string]struct{}, len(runIDs))
	if len(runIDs) == 0 {
		return delivered, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id FROM messages
		 WHERE subscription_id = $1 AND run_id = ANY($2)`,
		subscriptionID, pq.Array(runIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("既存メッセージの検索に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var runID string
		if err := rows.Scan(&runID); err != nil {
			return nil, fmt.Errorf("メッセージ行の読み取りに失敗しました: %w", err)
		}
		delivered[runID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メッセージ一覧の走査に失敗しました: %w", err)
	}
	return delivered, nil
}

// Create は台帳行を単一トランザクション内で挿入する。
// 送信済みメッセージIDの記録であり、コミット成功をもって配信が完了したとみなす。
func (r *PostgresMessageRepo) Create(ctx context.Context, msg *model.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, run_id, subscription_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		msg.ID, msg.RunID, msg.SubscriptionID, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("台帳行の挿入に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListBySubscriptionID は指定購読の台帳行を作成日時降順で返す。
func (r *PostgresMessageRepo) ListBySubscriptionID(ctx context.Context, subscriptionID string) ([]*model.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, run_id, subscription_id, created_at
		 FROM messages WHERE subscription_id = $1 ORDER BY created_at DESC`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("メッセージ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var msgs []*model.Message
	for rows.Next() {
		msg := &model.Message{}
		if err := rows.Scan(&msg.ID, &msg.RunID, &msg.SubscriptionID, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("メッセージ行の読み取りに失敗しました: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メッセージ一覧の走査に失敗しました: %w", err)
	}
	return msgs, nil
}

// compile-time interface check
var _ MessageRepository = (*PostgresMessageRepo)(nil)
