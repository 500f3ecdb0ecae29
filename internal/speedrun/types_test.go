package speedrun

import (
	"encoding/json"
	"testing"
)

func TestEmbeddedPlayers_NonEmbeddedObject_IsNil(t *testing.T) {
	// embedを指定しない場合、playersは {"rel":...,"uri":...} のオブジェクトになる。
	// 走者情報なしとして扱い、パースエラーにはしない。
	var w wireRun
	raw := `{
		"id": "run1",
		"players": {"rel": "abstract", "uri": "https://example.com/runs/run1/players"}
	}`
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if w.Players.Values != nil {
		t.Errorf("Players.Values = %+v, want nil", w.Players.Values)
	}
}

func TestIsObject(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{`{}`, true},
		{`  {"id": "x"}`, true},
		{"\n\t{\"id\": \"x\"}", true},
		{`[]`, false},
		{`[{"id": "x"}]`, false},
		{`"string"`, false},
		{`null`, false},
		{``, false},
	}
	for _, tt := range tests {
		if got := isObject(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("isObject(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
