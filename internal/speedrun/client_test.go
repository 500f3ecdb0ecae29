package speedrun

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func newTestClient(serverURL string) *Client {
	var buf bytes.Buffer
	return NewClient(&http.Client{}, serverURL, "runherald-test/1.0", 100, 100, newTestLogger(&buf))
}

// --- 記録一覧のテスト ---

func TestListVerifiedRuns_ParsesEmbeddedData(t *testing.T) {
	var gotQuery map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"game":      r.URL.Query().Get("game"),
			"status":    r.URL.Query().Get("status"),
			"orderby":   r.URL.Query().Get("orderby"),
			"direction": r.URL.Query().Get("direction"),
			"embed":     r.URL.Query().Get("embed"),
		}
		fmt.Fprint(w, `{"data": [{
			"id": "run1",
			"weblink": "https://www.speedrun.com/game/run/run1",
			"status": {"status": "verified", "verify-date": "2026-01-15T12:00:00Z"},
			"category": {"data": {"id": "cat1", "name": "Any%"}},
			"level": {"data": {"id": "lvl1", "name": "World 1"}},
			"players": {"data": [
				{"rel": "user", "names": {"international": "runner", "japanese": "走者"}},
				{"rel": "guest", "name": "anonymous"}
			]},
			"times": {"primary_t": 123.456}
		}]}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	runs, err := c.ListVerifiedRuns(context.Background(), "game1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// クエリパラメータの確認
	if gotQuery["game"] != "game1" || gotQuery["status"] != "verified" {
		t.Errorf("query = %v, want game=game1 status=verified", gotQuery)
	}
	if gotQuery["orderby"] != "verify-date" || gotQuery["direction"] != "desc" {
		t.Errorf("query = %v, want orderby=verify-date direction=desc", gotQuery)
	}
	if gotQuery["embed"] != "category,level,players" {
		t.Errorf("embed = %q, want %q", gotQuery["embed"], "category,level,players")
	}

	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != "run1" {
		t.Errorf("ID = %q, want %q", r.ID, "run1")
	}
	if r.VerifyDate != "2026-01-15T12:00:00Z" {
		t.Errorf("VerifyDate = %q, want %q", r.VerifyDate, "2026-01-15T12:00:00Z")
	}
	if r.Category == nil || r.Category.Name != "Any%" {
		t.Errorf("Category = %+v, want Any%%", r.Category)
	}
	if r.Level == nil || r.Level.Name != "World 1" {
		t.Errorf("Level = %+v, want World 1", r.Level)
	}
	if len(r.Players) != 2 {
		t.Fatalf("Players = %d, want 2", len(r.Players))
	}
	if r.Players[0].International != "runner" || r.Players[0].Japanese != "走者" {
		t.Errorf("Players[0] = %+v", r.Players[0])
	}
	if r.Players[1].Rel != "guest" || r.Players[1].Name != "anonymous" {
		t.Errorf("Players[1] = %+v", r.Players[1])
	}
	if r.PrimaryTime != 123.456 {
		t.Errorf("PrimaryTime = %v, want 123.456", r.PrimaryTime)
	}
}

func TestListVerifiedRuns_EmptyArrayEmbeds_AreNil(t *testing.T) {
	// embedが解決できない場合、APIはオブジェクトの代わりに空配列を返す
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [{
			"id": "run1",
			"weblink": "https://example.com",
			"status": {"status": "verified", "verify-date": "2026-01-15T12:00:00Z"},
			"category": {"data": []},
			"level": {"data": []},
			"players": {"data": []},
			"times": {"primary_t": 10}
		}]}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	runs, err := c.ListVerifiedRuns(context.Background(), "game1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d, want 1", len(runs))
	}

	r := runs[0]
	if r.Category != nil {
		t.Errorf("Category = %+v, want nil", r.Category)
	}
	if r.Level != nil {
		t.Errorf("Level = %+v, want nil", r.Level)
	}
	if len(r.Players) != 0 {
		t.Errorf("Players = %+v, want empty", r.Players)
	}
}

func TestListVerifiedRuns_MissingVerifyDate_IsEmptyString(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": [{
			"id": "run1",
			"status": {"status": "verified"},
			"category": {"data": {"id": "cat1", "name": "Any%"}},
			"level": {"data": []},
			"players": {"data": []},
			"times": {"primary_t": 10}
		}]}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	runs, err := c.ListVerifiedRuns(context.Background(), "game1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if runs[0].VerifyDate != "" {
		t.Errorf("VerifyDate = %q, want empty", runs[0].VerifyDate)
	}
}

func TestListVerifiedRuns_ErrorStatus_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.ListVerifiedRuns(context.Background(), "game1"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestListVerifiedRuns_MalformedBody_ReturnsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data": "oops"`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.ListVerifiedRuns(context.Background(), "game1"); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestListVerifiedRuns_SetsUserAgent(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.ListVerifiedRuns(context.Background(), "game1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotUA != "runherald-test/1.0" {
		t.Errorf("User-Agent = %q, want %q", gotUA, "runherald-test/1.0")
	}
}

// --- リーダーボードのテスト ---

func TestGetLeaderboard_CategoryScope(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"data": {"runs": [
			{"place": 1, "run": {"id": "run-gold"}},
			{"place": 2, "run": {"id": "run-silver"}}
		]}}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	lb, err := c.GetLeaderboard(context.Background(), "game1", "cat1", "")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotPath != "/leaderboards/game1/category/cat1" {
		t.Errorf("path = %q, want %q", gotPath, "/leaderboards/game1/category/cat1")
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(lb.Entries))
	}
	if lb.Entries[0].Place != 1 || lb.Entries[0].RunID != "run-gold" {
		t.Errorf("Entries[0] = %+v", lb.Entries[0])
	}
}

func TestGetLeaderboard_LevelScope(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"data": {"runs": []}}`)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	if _, err := c.GetLeaderboard(context.Background(), "game1", "cat1", "lvl1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotPath != "/leaderboards/game1/level/lvl1/cat1" {
		t.Errorf("path = %q, want %q", gotPath, "/leaderboards/game1/level/lvl1/cat1")
	}
}
