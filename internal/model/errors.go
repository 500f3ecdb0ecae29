package model

import (
	"errors"
	"fmt"
)

// ErrPositionNotFound は記録が現在のリーダーボードスナップショットに
// 存在しない場合にPosition Resolverが返すセンチネルエラー。
// 呼び出し元はこれをエラーではなく候補の除外理由として扱う。
var ErrPositionNotFound = errors.New("run not present in leaderboard snapshot")

// ErrUnrecordedDelivery は「メッセージは送信されたが台帳への記録に失敗した」
// 状態を表すセンチネルエラー。最も重大な失敗モードであり、
// 同一サイクル内での重複送信を避けるため当該購読の残り候補の処理を中断する。
var ErrUnrecordedDelivery = errors.New("message sent but not recorded in ledger")

// APIError は管理APIの統一エラーフォーマットを表す。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, subscription, system
	Action   string // 利用者向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidLocale        = "INVALID_LOCALE"
	ErrCodeInvalidGameID        = "INVALID_GAME_ID"
	ErrCodeSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
)

// NewSubscriptionNotFoundError は購読が見つからない場合のエラーを生成する。
func NewSubscriptionNotFoundError(subscriptionID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionNotFound,
		Message:  fmt.Sprintf("指定された購読が見つかりません: %s", subscriptionID),
		Category: "subscription",
		Action:   "購読IDを確認してください。",
	}
}

// NewInvalidLocaleError はロケールが解釈できない場合のエラーを生成する。
func NewInvalidLocaleError(locale string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLocale,
		Message:  fmt.Sprintf("無効なロケールです: %s", locale),
		Category: "validation",
		Action:   "BCP 47形式のロケール（例: en, ja）を指定してください。",
	}
}

// NewInvalidGameIDError はゲームIDが空の場合のエラーを生成する。
func NewInvalidGameIDError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidGameID,
		Message:  "ゲームIDが指定されていません。",
		Category: "validation",
		Action:   "speedrun.comのゲームID（例: m1zg3360）を指定してください。",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}
