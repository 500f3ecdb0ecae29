// Package format は正規化済み記録から通知メッセージ本文を組み立てる。
// 純粋関数のみで構成され、I/Oや失敗経路を持たない。
package format

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/hitoshi/runherald/internal/model"
)

// supportedTags はメッセージカタログを持つロケール。先頭がフォールバック。
var supportedTags = []language.Tag{
	language.English,
	language.Japanese,
}

var matcher = language.NewMatcher(supportedTags)

// Message は記録とロケールから通知メッセージ本文を生成する。
// ロケールが解釈できない・カタログにない場合は英語にフォールバックする。
func Message(r model.Run, locale string) string {
	_, index := language.MatchStrings(matcher, locale)

	switch supportedTags[index] {
	case language.Japanese:
		return japaneseMessage(r)
	default:
		return englishMessage(r)
	}
}

// IsValidLocale はロケール文字列がBCP 47として解釈できるかを返す。
// 管理APIの入力検証に使用する。
func IsValidLocale(locale string) bool {
	if locale == "" {
		return false
	}
	_, err := language.Parse(locale)
	return err == nil
}

func englishMessage(r model.Run) string {
	scope := r.CategoryName
	if r.HasLevel() {
		scope = fmt.Sprintf("%s: %s", r.LevelName, r.CategoryName)
	}

	players := "A guest runner"
	if len(r.PlayerNames) > 0 {
		players = joinNames(r.PlayerNames, ", ", " & ")
	}

	return fmt.Sprintf("New verified run! %s achieved %s place in %s with a time of %s.\n%s",
		players, englishOrdinal(r.Position), scope, FormatTime(r.PrimaryTime), r.Weblink)
}

func japaneseMessage(r model.Run) string {
	scope := r.CategoryName
	if r.HasLevel() {
		scope = fmt.Sprintf("%s（%s）", r.LevelName, r.CategoryName)
	}

	players := "ゲスト走者"
	if len(r.PlayerNames) > 0 {
		players = strings.Join(r.PlayerNames, "、")
	}

	return fmt.Sprintf("新しい記録が承認されました！ %s が %s で %d位 を獲得しました。タイム: %s\n%s",
		players, scope, r.Position, FormatTime(r.PrimaryTime), r.Weblink)
}

// englishOrdinal は1始まりの順位を英語の序数表現にする。
func englishOrdinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
		suffix = "th"
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// joinNames は名前リストを区切り文字と最終接続詞で連結する。
func joinNames(names []string, sep, lastSep string) string {
	if len(names) == 1 {
		return names[0]
	}
	return strings.Join(names[:len(names)-1], sep) + lastSep + names[len(names)-1]
}

// FormatTime は秒数（小数精度）を h:mm:ss.mmm 形式の文字列にする。
// 1時間未満は m:ss.mmm、ミリ秒が0の場合は小数部を省略する。
func FormatTime(seconds float64) string {
	millis := int64(seconds*1000 + 0.5)

	ms := millis % 1000
	totalSec := millis / 1000
	sec := totalSec % 60
	min := (totalSec / 60) % 60
	hour := totalSec / 3600

	var base string
	if hour > 0 {
		base = fmt.Sprintf("%d:%02d:%02d", hour, min, sec)
	} else {
		base = fmt.Sprintf("%d:%02d", min, sec)
	}

	if ms > 0 {
		return fmt.Sprintf("%s.%03d", base, ms)
	}
	return base
}
