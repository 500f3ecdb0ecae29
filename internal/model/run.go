package model

// Run は検証済み走者記録の正規化表現。
// speedrun.com APIのレスポンスからカテゴリ・レベル・順位の解決を経て構築される。
// カテゴリが解決できない記録、順位が取得できない記録はRunにならない。
type Run struct {
	RunID        string
	Weblink      string
	CategoryID   string
	CategoryName string
	// LevelID / LevelName はレベル関連付けがない記録では空文字列。
	LevelID   string
	LevelName string
	// Position はカテゴリ（およびレベル）スコープ内の1始まりの順位。
	Position int
	// PrimaryTime は主計時の秒数（小数精度）。
	PrimaryTime float64
	// PlayerNames は表示名の順序付きリスト。ゲスト走者等で不明の場合はnil。
	PlayerNames []string
	// VerifiedAt は検証日時のエポックミリ秒。
	VerifiedAt int64
}

// HasLevel はこの記録がレベル（個別ステージ）に関連付いているかを返す。
func (r *Run) HasLevel() bool {
	return r.LevelID != ""
}
