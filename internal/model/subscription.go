// Package model はドメインモデルを定義する。
package model

import "time"

// Subscription は監視対象のゲームと通知ロケールの組み合わせを表す。
// activeがtrueの購読のみがアナウンスサイクルで処理される。
type Subscription struct {
	ID        string
	GameID    string
	Locale    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
