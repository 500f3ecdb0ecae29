package speedrun

import "encoding/json"

// Run はspeedrun.com APIの1件の記録（RawRecord）の型付き表現。
// embedされたカテゴリ・レベル・走者データはパース時に解決済みで、
// 呼び出し側でのフィールド存在チェック（ダックタイピング）は不要。
type Run struct {
	ID      string
	Weblink string
	// VerifyDate は検証日時のRFC3339文字列。未検証・欠損時は空文字列。
	VerifyDate string
	// Category / Level はembedが解決できなかった場合nil。
	Category *Category
	Level    *Level
	// Players はembedされた走者一覧。embedなし・欠損時はnil。
	Players []Player
	// PrimaryTime は主計時の秒数。
	PrimaryTime float64
}

// Category は記録のカテゴリ。
type Category struct {
	ID   string
	Name string
}

// Level は記録のレベル（個別ステージ）。
type Level struct {
	ID   string
	Name string
}

// Player は記録の走者1名。登録ユーザーはNamesを、ゲストはNameのみを持つ。
type Player struct {
	Rel           string
	Name          string // ゲスト走者の表示名
	International string
	Japanese      string
}

// Leaderboard は特定カテゴリ（およびレベル）のランキングスナップショット。
type Leaderboard struct {
	Entries []LeaderboardEntry
}

// LeaderboardEntry はリーダーボード上の1エントリ。
// Placeは上流APIが付与した1始まりの順位で、同着の扱いも上流の並びに従う。
type LeaderboardEntry struct {
	Place int
	RunID string
}

// --- wire format ---
//
// speedrun.com APIはembedが解決できない場合、オブジェクトの代わりに
// 空配列を "data" に入れて返す。embeddedData系の型はその揺れを吸収する。

type runsEnvelope struct {
	Data []wireRun `json:"data"`
}

type wireRun struct {
	ID       string           `json:"id"`
	Weblink  string           `json:"weblink"`
	Status   wireStatus       `json:"status"`
	Category embeddedCategory `json:"category"`
	Level    embeddedLevel    `json:"level"`
	Players  embeddedPlayers  `json:"players"`
	Times    wireTimes        `json:"times"`
}

type wireStatus struct {
	Status     string `json:"status"`
	VerifyDate string `json:"verify-date"`
}

type wireTimes struct {
	PrimaryT float64 `json:"primary_t"`
}

type wireCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireLevel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wirePlayer struct {
	Rel   string `json:"rel"`
	Name  string `json:"name"`
	Names struct {
		International string `json:"international"`
		Japanese      string `json:"japanese"`
	} `json:"names"`
}

// embeddedCategory は {"data": {...}} または {"data": []} を受け付ける。
type embeddedCategory struct {
	Value *wireCategory
}

func (e *embeddedCategory) UnmarshalJSON(b []byte) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return err
	}
	if !isObject(envelope.Data) {
		e.Value = nil
		return nil
	}
	var cat wireCategory
	if err := json.Unmarshal(envelope.Data, &cat); err != nil {
		return err
	}
	e.Value = &cat
	return nil
}

// embeddedLevel は {"data": {...}} または {"data": []} を受け付ける。
type embeddedLevel struct {
	Value *wireLevel
}

func (e *embeddedLevel) UnmarshalJSON(b []byte) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return err
	}
	if !isObject(envelope.Data) {
		e.Value = nil
		return nil
	}
	var lvl wireLevel
	if err := json.Unmarshal(envelope.Data, &lvl); err != nil {
		return err
	}
	e.Value = &lvl
	return nil
}

// embeddedPlayers は {"data": [...]} を受け付ける。
type embeddedPlayers struct {
	Values []wirePlayer
}

func (e *embeddedPlayers) UnmarshalJSON(b []byte) error {
	var envelope struct {
		Data []wirePlayer `json:"data"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		// embedなしの場合、playersは {"rel":..,"uri":..} 形式のオブジェクトになる。
		// 走者情報なしとして扱う。
		e.Values = nil
		return nil
	}
	e.Values = envelope.Data
	return nil
}

// isObject はJSON値がオブジェクトであるかを判定する。
func isObject(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

type leaderboardEnvelope struct {
	Data struct {
		Runs []struct {
			Place int `json:"place"`
			Run   struct {
				ID string `json:"id"`
			} `json:"run"`
		} `json:"runs"`
	} `json:"data"`
}
