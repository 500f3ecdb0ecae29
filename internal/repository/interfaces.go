// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/runherald/internal/model"
)

// SubscriptionRepository は購読データの永続化インターフェース。
// 購読行の作成・更新は管理API経由でのみ行われ、アナウンスサイクルからは読み取り専用。
type SubscriptionRepository interface {
	// ListActive はactive=trueの購読を作成日時昇順で返す。
	// サイクル内の購読処理順はこの並びに従う（再ソートしない）。
	ListActive(ctx context.Context) ([]*model.Subscription, error)

	// List は全購読を作成日時昇順で返す。管理API用。
	List(ctx context.Context) ([]*model.Subscription, error)

	// FindByID は指定IDの購読を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Subscription, error)

	// Create は購読を作成する。
	Create(ctx context.Context, sub *model.Subscription) error

	// Update は購読のゲームID・ロケール・activeフラグを更新する。
	Update(ctx context.Context, sub *model.Subscription) error

	// Delete は指定IDの購読を削除する。関連するmessagesはCASCADE削除される。
	Delete(ctx context.Context, id string) error
}

// MessageRepository は配信台帳の永続化インターフェース。
// 台帳行は作成のみで、更新・削除の操作は存在しない。
type MessageRepository interface {
	// ListRunIDsWithMessage は指定購読について、runIDsのうち既に台帳行が
	// 存在する記録IDの集合を返す。他の購読の台帳行は結果に影響しない。
	ListRunIDsWithMessage(ctx context.Context, subscriptionID string, runIDs []string) (map[string]struct{}, error)

	// Create は台帳行を単一トランザクション内で挿入する。
	// (run_id, subscription_id) の一意制約違反を含め、コミットに失敗した場合はエラーを返す。
	Create(ctx context.Context, msg *model.Message) error

	// ListBySubscriptionID は指定購読の台帳行を作成日時降順で返す。管理API用。
	ListBySubscriptionID(ctx context.Context, subscriptionID string) ([]*model.Message, error)
}
