package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func newTestClient(serverURL string) *WebhookClient {
	var buf bytes.Buffer
	return NewWebhookClient(&http.Client{}, serverURL, "runherald-test/1.0", newTestLogger(&buf))
}

func TestSend_Success_ReturnsMessageID(t *testing.T) {
	var gotWait string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotWait = r.URL.Query().Get("wait")
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": "1234567890", "channel_id": "42"}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	id, err := c.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if id != "1234567890" {
		t.Errorf("message ID = %q, want %q", id, "1234567890")
	}
	// ?wait=true でメッセージIDを同期取得する
	if gotWait != "true" {
		t.Errorf("wait query = %q, want %q", gotWait, "true")
	}
	if gotBody["content"] != "hello" {
		t.Errorf("content = %q, want %q", gotBody["content"], "hello")
	}
}

func TestSend_NonSuccessStatus_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}

func TestSend_ResponseWithoutMessageID_ReturnsError(t *testing.T) {
	// 2xxでもメッセージIDを含まないレスポンスは失敗として扱う
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"channel_id": "42"}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when response lacks message ID")
	}
}

func TestSend_MalformedResponse_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for malformed response body")
	}
}

func TestSend_ConnectionFailure_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 即座に閉じて接続エラーを起こす

	c := newTestClient(server.URL)
	if _, err := c.Send(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when webhook endpoint is unreachable")
	}
}
