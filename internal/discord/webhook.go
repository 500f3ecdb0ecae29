// Package discord はDiscord webhookによる通知送信を提供する。
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// maxResponseSize はwebhookレスポンスボディの読み取り上限。
const maxResponseSize = 1 * 1024 * 1024

// WebhookClient はDiscord webhookエンドポイントへのメッセージ送信クライアント。
// ?wait=true を付与して送信することで、Discordが採番した耐久的な
// メッセージIDをレスポンスから取得する。
type WebhookClient struct {
	httpClient *http.Client
	webhookURL string
	userAgent  string
	logger     *slog.Logger
}

// NewWebhookClient はWebhookClientの新しいインスタンスを生成する。
func NewWebhookClient(httpClient *http.Client, webhookURL, userAgent string, logger *slog.Logger) *WebhookClient {
	return &WebhookClient{
		httpClient: httpClient,
		webhookURL: webhookURL,
		userAgent:  userAgent,
		logger:     logger,
	}
}

// webhookPayload はwebhook送信リクエストのボディ。
type webhookPayload struct {
	Content string `json:"content"`
}

// webhookResponse はwebhook送信レスポンスのうち消費するフィールド。
type webhookResponse struct {
	ID string `json:"id"`
}

// Send はプレーンテキストをwebhookへ送信し、メッセージIDを返す。
// 2xx以外のステータス、またはメッセージIDを含まないレスポンスはエラー。
// エラー時に部分的な成功状態は存在しない。
func (c *WebhookClient) Send(ctx context.Context, content string) (string, error) {
	payload, err := json.Marshal(webhookPayload{Content: content})
	if err != nil {
		return "", fmt.Errorf("webhookリクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL+"?wait=true", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("webhookリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("webhookの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("webhookの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("webhookがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", fmt.Errorf("webhookがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("webhookレスポンスの読み取りに失敗しました: %w", err)
	}

	var result webhookResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("webhookレスポンスのパースに失敗しました: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("webhookレスポンスにメッセージIDが含まれていません")
	}

	return result.ID, nil
}
