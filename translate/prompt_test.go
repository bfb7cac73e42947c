package translate

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
)

// ---------------------------------------------------------------------------
// BuildPrompts
// ---------------------------------------------------------------------------

func TestBuildPrompts_Default(t *testing.T) {
	content := job.NewEntries()
	content.Set("b.key", "Second")
	content.Set("a.key", "First")

	system, user, err := BuildPrompts(&Request{Content: content, TargetLanguage: "ja_jp"}, "")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if !strings.Contains(system, "into Japanese") {
		t.Errorf("system prompt missing target language: %s", system)
	}
	if !strings.Contains(system, "from English") {
		t.Errorf("system prompt missing source language: %s", system)
	}
	if !strings.Contains(system, "translate: 2") {
		t.Errorf("system prompt missing entry count: %s", system)
	}
	if strings.Index(user, "b.key") > strings.Index(user, "a.key") {
		t.Errorf("user prompt must keep chunk order: %s", user)
	}

	var decoded map[string]string
	if err := json.Unmarshal([]byte(user), &decoded); err != nil {
		t.Fatalf("user prompt is not JSON: %v", err)
	}
	if decoded["a.key"] != "First" {
		t.Errorf("got %q", decoded["a.key"])
	}
}

func TestBuildPrompts_TemplateAndInstructions(t *testing.T) {
	content := job.NewEntries()
	content.Set("k", "v")

	system, _, err := BuildPrompts(&Request{
		Content:        content,
		TargetLanguage: "ko_kr",
		Instructions:   "Use polite form.",
	}, "To {{targetLang}}: {line_count} line(s)")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if !strings.HasPrefix(system, "To Korean: 1 line(s)") {
		t.Errorf("unexpected system prompt: %q", system)
	}
	if !strings.HasSuffix(system, "Use polite form.") {
		t.Errorf("instructions not appended: %q", system)
	}
}

// ---------------------------------------------------------------------------
// ParseResponse
// ---------------------------------------------------------------------------

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    map[string]string
		wantErr bool
	}{
		{
			name: "plain object",
			in:   `{"a":"あ","b":"い"}`,
			want: map[string]string{"a": "あ", "b": "い"},
		},
		{
			name: "markdown fence",
			in:   "```json\n{\"a\": \"あ\"}\n```",
			want: map[string]string{"a": "あ"},
		},
		{
			name: "surrounding prose",
			in:   "Here you go:\n{\"a\": \"あ\"}\nEnjoy!",
			want: map[string]string{"a": "あ"},
		},
		{
			name: "non-string values dropped",
			in:   `{"a":"あ","n":3,"o":{"x":"y"}}`,
			want: map[string]string{"a": "あ"},
		},
		{name: "no object", in: "I cannot help with that", wantErr: true},
		{name: "broken json", in: `{"a": "あ",}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: got %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
