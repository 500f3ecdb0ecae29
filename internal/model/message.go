package model

import "time"

// Message は配信台帳の1行を表す。
// 「どの記録が、どの購読に対して、どの送信済みメッセージを生んだか」の耐久的な証跡であり、
// (RunID, SubscriptionID) の組に対して高々1行しか存在しない。
// 作成後に更新・削除されることはない。
type Message struct {
	// ID はNotification Sinkが返した耐久的なメッセージ識別子。
	ID             string
	RunID          string
	SubscriptionID string
	CreatedAt      time.Time
}
