// Package speedrun はspeedrun.com REST APIのクライアントを提供する。
// 検証済み記録の一覧取得とリーダーボード取得を型付きで公開し、
// レスポンスの揺れ（embedの欠損等）はすべてこのパッケージ内で吸収する。
package speedrun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// maxResponseSize はAPIレスポンスボディの読み取り上限。
const maxResponseSize = 10 * 1024 * 1024

// Client はspeedrun.com APIのクライアント。
// 上流APIはグローバルなレート制限を持つため、全リクエストは
// クライアント側リミッターを通過してから送信される。
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient はClientの新しいインスタンスを生成する。
// requestsPerSecが0以下の場合はデフォルト値1を使用する。
func NewClient(httpClient *http.Client, baseURL, userAgent string, requestsPerSec float64, burst int, logger *slog.Logger) *Client {
	if requestsPerSec <= 0 {
		requestsPerSec = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  userAgent,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSec), burst),
		logger:     logger,
	}
}

// ListVerifiedRuns は指定ゲームの検証済み記録を検証日時降順で取得する。
// カテゴリ・レベル・走者データは同一レスポンスにembedされる。
// トランスポート・パースの失敗は呼び出し全体の失敗として返す（部分結果は返さない）。
func (c *Client) ListVerifiedRuns(ctx context.Context, gameID string) ([]Run, error) {
	query := url.Values{}
	query.Set("game", gameID)
	query.Set("status", "verified")
	query.Set("orderby", "verify-date")
	query.Set("direction", "desc")
	query.Set("embed", "category,level,players")

	body, err := c.get(ctx, "/runs", query)
	if err != nil {
		return nil, err
	}

	var envelope runsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.logger.Error("記録一覧レスポンスのパースに失敗しました",
			slog.String("game_id", gameID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("記録一覧レスポンスのパースに失敗しました: %w", err)
	}

	runs := make([]Run, 0, len(envelope.Data))
	for _, w := range envelope.Data {
		runs = append(runs, convertWireRun(w))
	}
	return runs, nil
}

// GetLeaderboard は指定カテゴリ（levelIDが空でない場合はレベル込み）の
// ランキングスナップショットを取得する。順位の並べ替えは行わず、
// 上流APIが返したplaceをそのまま保持する。
func (c *Client) GetLeaderboard(ctx context.Context, gameID, categoryID, levelID string) (*Leaderboard, error) {
	var path string
	if levelID != "" {
		path = fmt.Sprintf("/leaderboards/%s/level/%s/%s", gameID, levelID, categoryID)
	} else {
		path = fmt.Sprintf("/leaderboards/%s/category/%s", gameID, categoryID)
	}

	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var envelope leaderboardEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		c.logger.Error("リーダーボードレスポンスのパースに失敗しました",
			slog.String("game_id", gameID),
			slog.String("category_id", categoryID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("リーダーボードレスポンスのパースに失敗しました: %w", err)
	}

	lb := &Leaderboard{Entries: make([]LeaderboardEntry, 0, len(envelope.Data.Runs))}
	for _, entry := range envelope.Data.Runs {
		lb.Entries = append(lb.Entries, LeaderboardEntry{
			Place: entry.Place,
			RunID: entry.Run.ID,
		})
	}
	return lb, nil
}

// get はレートリミッターを通過してからGETリクエストを実行し、ボディを返す。
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("レートリミッターの待機が中断されました: %w", err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("speedrun APIの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("speedrun APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("speedrun APIがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("speedrun APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	c.logger.Debug("speedrun APIリクエスト完了",
		slog.String("path", path),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return body, nil
}

// convertWireRun はwire表現を型付きRunに変換する。
func convertWireRun(w wireRun) Run {
	run := Run{
		ID:          w.ID,
		Weblink:     w.Weblink,
		VerifyDate:  w.Status.VerifyDate,
		PrimaryTime: w.Times.PrimaryT,
	}
	if w.Category.Value != nil {
		run.Category = &Category{ID: w.Category.Value.ID, Name: w.Category.Value.Name}
	}
	if w.Level.Value != nil {
		run.Level = &Level{ID: w.Level.Value.ID, Name: w.Level.Value.Name}
	}
	if w.Players.Values != nil {
		players := make([]Player, 0, len(w.Players.Values))
		for _, p := range w.Players.Values {
			players = append(players, Player{
				Rel:           p.Rel,
				Name:          p.Name,
				International: p.Names.International,
				Japanese:      p.Names.Japanese,
			})
		}
		run.Players = players
	}
	return run
}
