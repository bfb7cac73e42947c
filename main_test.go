package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/config"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/history"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/langfile"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/lockfile"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/settings"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/storage"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		bar     string
		suffix  string
	}{
		{"clamps below zero", -10, "░░░░", "   0%"},
		{"mid range", 50, "██░░", "  50%"},
		{"clamps above hundred", 120, "████", " 100%"},
	}
	for _, tc := range tests {
		got := progressBar(tc.percent, 4)
		if !strings.Contains(got, tc.bar) || !strings.HasSuffix(got, tc.suffix) {
			t.Fatalf("%s: progressBar() = %q, want bar %q and suffix %q", tc.name, got, tc.bar, tc.suffix)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" ja_jp, ,ko_kr,")
	if want := []string{"ja_jp", "ko_kr"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("splitList() = %#v, want %#v", got, want)
	}
	if got := splitList(""); got != nil {
		t.Fatalf("splitList(empty) = %#v, want nil", got)
	}
}

func TestSourceIDFor(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"work/assets/create/lang/en_us.json", "create"},
		{"work/assets/create/lang/en_US.lang", "create"},
		{"work/quests/en_us.json", "quests"},
		{"work/custom/chapter1.json", "chapter1"},
	}
	for _, tc := range tests {
		if got := sourceIDFor(tc.path, "en_us"); got != tc.want {
			t.Fatalf("sourceIDFor(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "assets", "create", "lang", "en_us.json"), "{}")
	writeFile(t, filepath.Join(dir, "assets", "create", "lang", "ja_jp.json"), "{}")
	writeFile(t, filepath.Join(dir, "assets", "jei", "lang", "en_us.lang"), "")
	writeFile(t, filepath.Join(dir, "assets", "jei", "textures", "en_us.png"), "")
	extra := filepath.Join(dir, "extra", "book.json")
	writeFile(t, extra, "{}")

	inputs, err := collectInputs([]string{dir, extra, dir}, "en_us")
	if err != nil {
		t.Fatalf("collectInputs() error: %v", err)
	}
	var ids []string
	for _, in := range inputs {
		ids = append(ids, in.sourceID)
	}
	if want := []string{"create", "jei", "book"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("source ids = %#v, want %#v", ids, want)
	}

	if _, err := collectInputs([]string{filepath.Join(dir, "missing")}, "en_us"); err == nil {
		t.Fatalf("collectInputs(missing) should fail")
	}
}

func TestApplyTranslateFlags(t *testing.T) {
	var a translateArgs
	cmd := newTranslateCmd()
	if err := cmd.ParseFlags([]string{
		"--type", "quest",
		"--lang", "ko_kr,zh_cn",
		"--provider", "ollama",
		"--chunk-size", "3",
		"--request-interval", "1500ms",
		"--format", "lang",
	}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	a = argsFromFlags(t, cmd)

	cfg := config.Default()
	cfg.LLM.Model = "gpt-4o"
	if err := applyTranslateFlags(cmd, cfg, a); err != nil {
		t.Fatalf("applyTranslateFlags() error: %v", err)
	}
	if cfg.Translation.TargetLanguage != "ko_kr" || !reflect.DeepEqual(cfg.Translation.AdditionalLanguages, []string{"zh_cn"}) {
		t.Fatalf("languages not applied: %#v", cfg.Translation)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "" {
		t.Fatalf("provider switch should reset model: %#v", cfg.LLM)
	}
	if cfg.Translation.QuestChunkSize != 3 || cfg.Translation.ModChunkSize != 0 {
		t.Fatalf("chunk size applied to wrong domain: %#v", cfg.Translation)
	}
	if cfg.LLM.RequestInterval != 1.5 || cfg.Translation.OutputFormat != "lang" {
		t.Fatalf("unexpected config: %#v", cfg)
	}

	bad := newTranslateCmd()
	if err := bad.ParseFlags([]string{"--format", "xml"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if err := applyTranslateFlags(bad, config.Default(), argsFromFlags(t, bad)); err == nil {
		t.Fatalf("invalid format should fail validation")
	}
}

// argsFromFlags reads back the parsed values the RunE closure would see.
func argsFromFlags(t *testing.T, cmd *cobra.Command) translateArgs {
	t.Helper()
	f := cmd.Flags()
	var a translateArgs
	a.domain, _ = f.GetString("type")
	a.langs, _ = f.GetString("lang")
	a.provider, _ = f.GetString("provider")
	a.format, _ = f.GetString("format")
	a.chunkSize, _ = f.GetInt("chunk-size")
	a.requestInterval, _ = f.GetDuration("request-interval")
	return a
}

func TestResolveProvider(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("MMLOCALIZER_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if err := settings.SetAPIKey("custom-openai", "sk-stored", "http://stored.local/v1"); err != nil {
		t.Fatalf("SetAPIKey: %v", err)
	}

	cfg := config.Default()
	cfg.LLM.Provider = "custom-openai"
	cfg.LLM.Model = "local"
	cfg.LLM.Timeout = 5
	prov, err := resolveProvider(cfg, "")
	if err != nil {
		t.Fatalf("resolveProvider() error: %v", err)
	}
	if prov.APIKey != "sk-stored" || prov.BaseURL != "http://stored.local/v1" || prov.Model != "local" {
		t.Fatalf("unexpected provider: %#v", prov)
	}
	if prov.Timeout.Seconds() != 5 {
		t.Fatalf("timeout = %v", prov.Timeout)
	}

	cfg.LLM.Provider = "nope"
	if _, err := resolveProvider(cfg, ""); err == nil {
		t.Fatalf("unknown provider should fail")
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	filePath := filepath.Join(dir, "file.txt")
	writeFile(t, filePath, "ok")

	if !fileExists(filePath) {
		t.Fatalf("fileExists(file) = false, want true")
	}
	if fileExists(dir) {
		t.Fatalf("fileExists(directory) = true, want false")
	}
	if fileExists(filepath.Join(dir, "missing.txt")) {
		t.Fatalf("fileExists(missing) = true, want false")
	}
}

// fakeChatServer answers chat/completions by prefixing every value.
func fakeChatServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil || len(req.Messages) != 2 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		src := map[string]string{}
		if err := json.Unmarshal([]byte(req.Messages[1].Content), &src); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		out := map[string]string{}
		for k, v := range src {
			out[k] = "訳 " + v
		}
		content, _ := json.Marshal(out)
		resp := map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": string(content)}}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestRunTranslateEndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("MMLOCALIZER_API_KEY", "")

	calls := 0
	srv := fakeChatServer(t, &calls)
	defer srv.Close()

	src := filepath.Join(dir, "assets", "create", "lang", "en_us.json")
	writeFile(t, src, `{"item.create.cog": "Cogwheel", "item.create.shaft": "Shaft", "item.create.done": "済み"}`)

	cfg := config.Default()
	cfg.LLM.Provider = "custom-openai"
	cfg.LLM.BaseURL = srv.URL + "/v1"
	cfg.LLM.Model = "local"
	cfg.LLM.MaxRetries = 1
	cfg.Translation.ModChunkSize = 1
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	cfg.Logging.Level = "error"

	args := translateArgs{incremental: true}
	if err := runTranslate(context.Background(), cfg, job.DomainMod, []string{filepath.Join(dir, "assets")}, args); err != nil {
		t.Fatalf("runTranslate() error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("backend calls = %d, want 2 (already-translated value skipped)", calls)
	}

	out, err := langfile.ReadFile(filepath.Join(dir, "out", "create", "ja_jp.json"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if v, _ := out.Get("item.create.cog"); v != "訳 Cogwheel" {
		t.Fatalf("output cog = %q", v)
	}

	lock, err := lockfile.Open(storage.OS{}, cfg.Paths.OutputDir)
	if err != nil {
		t.Fatalf("lockfile.Open: %v", err)
	}
	if list := lock.List(); len(list) != 1 || list[0].Name != "create/ja_jp" || list[0].Keys != 2 {
		t.Fatalf("lock targets = %+v, want create/ja_jp with 2 keys", list)
	}

	store, err := history.Open(filepath.Join(dir, "data", "mmlocalizer", "history"), nil)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	sessions, err := store.Sessions(context.Background(), 0)
	if err != nil || len(sessions) != 1 {
		store.Close()
		t.Fatalf("sessions = %#v, err = %v", sessions, err)
	}
	if sessions[0].Completed != 1 || sessions[0].TotalTokens != 30 {
		store.Close()
		t.Fatalf("unexpected session: %#v", sessions[0])
	}
	store.Close()

	// nothing changed: the second run sends nothing
	calls = 0
	if err := runTranslate(context.Background(), cfg, job.DomainMod, []string{filepath.Join(dir, "assets")}, args); err != nil {
		t.Fatalf("second runTranslate() error: %v", err)
	}
	if calls != 0 {
		t.Fatalf("incremental run made %d calls, want 0", calls)
	}
}

// omittingChatServer translates like fakeChatServer but leaves out the
// keys in omit, and records the keys it was asked for.
func omittingChatServer(t *testing.T, omit map[string]bool, asked *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		src := map[string]string{}
		if err := json.Unmarshal(body, &req); err != nil || len(req.Messages) != 2 ||
			json.Unmarshal([]byte(req.Messages[1].Content), &src) != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		out := map[string]string{}
		for k, v := range src {
			*asked = append(*asked, k)
			if !omit[k] {
				out[k] = "訳 " + v
			}
		}
		content, _ := json.Marshal(out)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": string(content)}}},
		})
	}))
}

func TestRunTranslateResendsPlaceholders(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("MMLOCALIZER_API_KEY", "")

	omit := map[string]bool{"item.create.gear": true}
	var asked []string
	srv := omittingChatServer(t, omit, &asked)
	defer srv.Close()

	src := filepath.Join(dir, "assets", "create", "lang", "en_us.json")
	writeFile(t, src, `{"item.create.cog": "Cogwheel", "item.create.gear": "Gear"}`)

	cfg := config.Default()
	cfg.LLM.Provider = "custom-openai"
	cfg.LLM.BaseURL = srv.URL + "/v1"
	cfg.LLM.Model = "local"
	cfg.LLM.MaxRetries = 1
	cfg.Translation.SkipTranslated = false
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	cfg.Logging.Level = "error"
	args := translateArgs{incremental: true}
	outPath := filepath.Join(dir, "out", "create", "ja_jp.json")

	if err := runTranslate(context.Background(), cfg, job.DomainMod, []string{src}, args); err != nil {
		t.Fatalf("runTranslate() error: %v", err)
	}
	out, err := langfile.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if v, _ := out.Get("item.create.gear"); v != "[ja_jp] Gear" {
		t.Fatalf("gear = %q, want placeholder", v)
	}
	lock, err := lockfile.Open(storage.OS{}, cfg.Paths.OutputDir)
	if err != nil {
		t.Fatalf("lockfile.Open: %v", err)
	}
	if list := lock.List(); len(list) != 1 || list[0].Keys != 1 {
		t.Fatalf("lock targets = %+v, want only the translated key", list)
	}

	// the backend recovers: only the placeholder key is sent again
	delete(omit, "item.create.gear")
	asked = nil
	if err := runTranslate(context.Background(), cfg, job.DomainMod, []string{src}, args); err != nil {
		t.Fatalf("second runTranslate() error: %v", err)
	}
	if !reflect.DeepEqual(asked, []string{"item.create.gear"}) {
		t.Fatalf("second run asked for %v, want only item.create.gear", asked)
	}
	out, err = langfile.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if v, _ := out.Get("item.create.gear"); v != "訳 Gear" {
		t.Fatalf("gear = %q after rerun", v)
	}
	if v, _ := out.Get("item.create.cog"); v != "訳 Cogwheel" {
		t.Fatalf("cog = %q, merge lost it", v)
	}

	// the overwritten first output was backed up under the session
	backups, err := filepath.Glob(filepath.Join(dir, "data", "mmlocalizer", "backups", "*", "create", "ja_jp", "original_files", "ja_jp.json"))
	if err != nil || len(backups) != 1 {
		t.Fatalf("backups = %v, err = %v", backups, err)
	}
	data, err := os.ReadFile(backups[0])
	if err != nil || !strings.Contains(string(data), "[ja_jp] Gear") {
		t.Fatalf("backup content = %q, err = %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(backups[0])), "metadata.json")); err != nil {
		t.Fatalf("backup metadata: %v", err)
	}

	logs, err := filepath.Glob(filepath.Join(dir, "data", "mmlocalizer", "logs", "session-*"))
	if err != nil || len(logs) == 0 {
		t.Fatalf("session logs = %v, err = %v", logs, err)
	}
}

func TestRunTranslateDryRun(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "book.json")
	writeFile(t, src, `{"a": "A", "b": "B"}`)

	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(dir, "out")
	cfg.Logging.Level = "error"

	if err := runTranslate(context.Background(), cfg, job.DomainCustom, []string{src}, translateArgs{dryRun: true}); err != nil {
		t.Fatalf("dry run error: %v", err)
	}
	if _, err := os.Stat(cfg.Paths.OutputDir); !os.IsNotExist(err) {
		t.Fatalf("dry run must not write output, stat err = %v", err)
	}
}

func TestLockCommand(t *testing.T) {
	out := t.TempDir()
	lock, err := lockfile.Open(storage.OS{}, out)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	e := job.NewEntries()
	e.Set("k", "v")
	lock.Record("create/ja_jp", e, e)
	lock.Record("jei/ja_jp", e, e)
	if err := lock.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var buf bytes.Buffer
	if err := printLock(&buf, lock); err != nil {
		t.Fatalf("printLock: %v", err)
	}
	if !strings.Contains(buf.String(), "create/ja_jp") || !strings.Contains(buf.String(), "2 targets, 2 keys") {
		t.Fatalf("unexpected listing:\n%s", buf.String())
	}

	cmd := newLockCmd()
	cmd.SetArgs([]string{"reset", "--out", out, "create"})
	cmd.SetOut(io.Discard)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("lock reset: %v", err)
	}
	after, err := lockfile.Open(storage.OS{}, out)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if list := after.List(); len(list) != 1 || list[0].Name != "jei/ja_jp" {
		t.Fatalf("after reset = %+v", list)
	}
}
