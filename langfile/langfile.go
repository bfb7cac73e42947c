// Package langfile reads and writes Minecraft language files.
//
// Supported formats, chosen by extension:
//
//	.json  modern lang files (1.13+), a flat object of key → string
//	.lang  legacy lang files, key=value lines with # comments
//	.po    gettext catalogs, msgid → msgstr (msgid when untranslated)
//
// Reading yields an ordered job.Entries; writing always sorts keys so
// output diffs stay stable between runs.
package langfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/langmeta"
)

// Format identifies a language file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatLang Format = "lang"
	FormatPO   Format = "po"
)

// DetectFormat returns the format for path's extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".lang":
		return FormatLang, nil
	case ".po", ".pot":
		return FormatPO, nil
	default:
		return "", fmt.Errorf("%s: unsupported language file format", path)
	}
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// ReadFile parses a language file from disk.
func ReadFile(path string) (*job.Entries, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	entries, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return entries, nil
}

// Parse parses data in the given format.
func Parse(data []byte, format Format) (*job.Entries, error) {
	switch format {
	case FormatJSON:
		return ParseJSON(data)
	case FormatLang:
		return ParseLang(data), nil
	case FormatPO:
		return ParsePO(data), nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// ParseJSON reads a flat JSON object in document order. Keys starting
// with "_comment" and non-string values are skipped. A UTF-8 BOM is
// tolerated.
func ParseJSON(data []byte) (*job.Entries, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	entries := job.NewEntries()
	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	t, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := t.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected {, got %v", t)
	}

	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %T", kt)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value for key %q: %w", key, err)
		}
		if strings.HasPrefix(key, "_comment") {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		entries.Set(key, value)
	}
	return entries, nil
}

// ParseLang reads legacy key=value lines. Blank lines, lines starting
// with '#' and lines without '=' are ignored. Only the first '=' splits.
func ParseLang(data []byte) *job.Entries {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	entries := job.NewEntries()
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	for _, raw := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.IndexByte(trimmed, '=')
		if idx <= 0 {
			continue
		}
		entries.Set(strings.TrimSpace(trimmed[:idx]), strings.TrimSpace(trimmed[idx+1:]))
	}
	return entries
}

// ParsePO reads a gettext catalog. Each msgid becomes a key; the value is
// its translation, or the msgid itself when untranslated. The header
// entry is skipped. Keys are sorted since catalogs carry no stable order.
func ParsePO(data []byte) *job.Entries {
	po := gotext.NewPo()
	po.Parse(data)

	out := map[string]string{}
	for id, tr := range po.GetDomain().GetTranslations() {
		if id == "" {
			continue
		}
		out[id] = tr.Get()
	}
	return job.EntriesFromMap(out)
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// Marshal encodes entries with sorted keys. PO output is not supported.
func Marshal(entries *job.Entries, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return MarshalJSON(entries)
	case FormatLang:
		return MarshalLang(entries), nil
	default:
		return nil, fmt.Errorf("writing %q files is not supported", format)
	}
}

// MarshalJSON writes a sorted, 2-space indented JSON object with a
// trailing newline. HTML characters are not escaped.
func MarshalJSON(entries *job.Entries) ([]byte, error) {
	m := entries.Map()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encoding lang json: %w", err)
	}
	return buf.Bytes(), nil
}

// MarshalLang writes sorted key=value lines.
func MarshalLang(entries *job.Entries) []byte {
	keys := entries.Keys()
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		v, _ := entries.Get(k)
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.ReplaceAll(v, "\n", "\\n"))
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// ---------------------------------------------------------------------------
// Filtering
// ---------------------------------------------------------------------------

// FilterUntranslated drops entries whose value is already written in the
// script of lang (for example kana for ja_jp). Languages without a known
// script keep every entry. Order is preserved.
func FilterUntranslated(entries *job.Entries, lang string) *job.Entries {
	meta := langmeta.Resolve(lang)
	if len(meta.Scripts) == 0 {
		return entries.Clone()
	}
	out := job.NewEntries()
	entries.Range(func(k, v string) bool {
		if !meta.InScript(v) {
			out.Set(k, v)
		}
		return true
	})
	return out
}

// Merge returns base overlaid with update. Keys keep base order; new keys
// are appended in update order.
func Merge(base, update *job.Entries) *job.Entries {
	out := base.Clone()
	update.Range(func(k, v string) bool {
		out.Set(k, v)
		return true
	})
	return out
}
