package translate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/langmeta"
)

// DefaultSystemPrompt is used when no prompt template is configured.
// {{sourceLang}}, {{targetLang}} and {{line_count}} are substituted.
const DefaultSystemPrompt = `You are a professional translator localizing Minecraft mods, quests and guidebooks.
Translate every value of the JSON object in the user message from {{sourceLang}} into {{targetLang}}.

# The number of entries to translate: {{line_count}}

# Pay attention to the details below
- Reply with a single JSON object only. No greeting, no explanation, no markdown.
- Keep every key exactly as given. Never add, drop, merge or split entries.
- Translate each value on its own, even when neighbouring values read like one sentence.
- Keep Minecraft formatting codes such as §6, §r and §l where they are.
- Keep placeholders such as %s, %d, %1$s, {0} and $(item) unchanged.
- Keep backslash escapes such as \n unchanged.
- Proper nouns may be transliterated.`

// BuildPrompts renders the system and user prompts for req. An empty
// template selects DefaultSystemPrompt.
func BuildPrompts(req *Request, template string) (system, user string, err error) {
	if template == "" {
		template = DefaultSystemPrompt
	}
	source := req.SourceLanguage
	if source == "" {
		source = "en_us"
	}

	system = strings.NewReplacer(
		"{{targetLang}}", langmeta.Resolve(req.TargetLanguage).Name,
		"{{sourceLang}}", langmeta.Resolve(source).Name,
		"{{line_count}}", strconv.Itoa(req.Content.Len()),
		"{line_count}", strconv.Itoa(req.Content.Len()),
	).Replace(template)
	if req.Instructions != "" {
		system += "\n\n# Additional instructions\n" + req.Instructions
	}

	data, err := json.MarshalIndent(req.Content, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encoding chunk: %w", err)
	}
	return system, string(data), nil
}

var markdownCodeBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ParseResponse extracts the JSON object of translations from model
// output. Markdown fences and surrounding prose are ignored; non-string
// values are dropped.
func ParseResponse(text string) (map[string]string, error) {
	content := strings.TrimSpace(text)

	if m := markdownCodeBlock.FindStringSubmatch(content); len(m) > 1 {
		content = m[1]
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response: %s", truncate(content, 300))
	}
	content = content[start : end+1]

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse translation response as JSON object: %w\nResponse: %s", err, truncate(content, 300))
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out, nil
}

// truncate truncates a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
