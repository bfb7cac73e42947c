// Package config loads mmlocalizer.yaml / mmlocalizer.toml.
//
// The file format follows the extension. Missing keys keep their
// defaults, environment variables override the file, and the result is
// validated before use.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/job"
	"github.com/Y-RyuZU/MinecraftModsLocalizer-sub001/langmeta"
)

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

// Config is the top-level configuration.
type Config struct {
	LLM         LLMConfig         `yaml:"llm" toml:"llm"`
	Translation TranslationConfig `yaml:"translation" toml:"translation"`
	Paths       PathsConfig       `yaml:"paths" toml:"paths"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// LLMConfig selects and tunes the translation backend.
type LLMConfig struct {
	Provider string `yaml:"provider" toml:"provider" validate:"required,oneof=openai anthropic gemini ollama custom-openai"`
	APIKey   string `yaml:"api_key,omitempty" toml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty" toml:"base_url,omitempty" validate:"omitempty,url"`
	Model    string `yaml:"model,omitempty" toml:"model,omitempty"`
	Proxy    string `yaml:"proxy,omitempty" toml:"proxy,omitempty" validate:"omitempty,url"`
	// Temperature zero leaves the provider default.
	Temperature float64 `yaml:"temperature" toml:"temperature" validate:"gte=0,lte=2"`
	// MaxRetries is the total number of attempts per chunk.
	MaxRetries int `yaml:"max_retries" toml:"max_retries" validate:"gte=1,lte=20"`
	// RequestInterval is the minimum pause between API requests, in seconds.
	RequestInterval float64 `yaml:"request_interval" toml:"request_interval" validate:"gte=0"`
	// Timeout is the per-request timeout in seconds; zero keeps the
	// provider default.
	Timeout        float64 `yaml:"timeout" toml:"timeout" validate:"gte=0"`
	PromptTemplate string  `yaml:"prompt_template,omitempty" toml:"prompt_template,omitempty"`
	Instructions   string  `yaml:"instructions,omitempty" toml:"instructions,omitempty"`
}

// TranslationConfig controls chunking and languages.
type TranslationConfig struct {
	// Chunk sizes are entries per request. Zero defers to the provider's
	// preferred size, then to the planner default.
	ModChunkSize       int `yaml:"mod_chunk_size" toml:"mod_chunk_size" validate:"gte=0"`
	QuestChunkSize     int `yaml:"quest_chunk_size" toml:"quest_chunk_size" validate:"gte=0"`
	GuidebookChunkSize int `yaml:"guidebook_chunk_size" toml:"guidebook_chunk_size" validate:"gte=0"`
	CustomChunkSize    int `yaml:"custom_chunk_size" toml:"custom_chunk_size" validate:"gte=0"`

	UseTokenBasedChunking bool `yaml:"use_token_based_chunking" toml:"use_token_based_chunking"`
	MaxTokensPerChunk     int  `yaml:"max_tokens_per_chunk" toml:"max_tokens_per_chunk" validate:"gte=0"`
	FallbackToEntryBased  bool `yaml:"fallback_to_entry_based" toml:"fallback_to_entry_based"`

	// MaxConcurrency is reserved; chunks run one at a time.
	MaxConcurrency int `yaml:"max_concurrency" toml:"max_concurrency" validate:"gte=1"`

	TargetLanguage      string   `yaml:"target_language" toml:"target_language" validate:"required"`
	AdditionalLanguages []string `yaml:"additional_languages,omitempty" toml:"additional_languages,omitempty"`
	SourceLanguage      string   `yaml:"source_language" toml:"source_language" validate:"required"`
	// SkipTranslated drops source values already written in the target
	// language's script.
	SkipTranslated bool `yaml:"skip_translated" toml:"skip_translated"`
	// OutputFormat is json or lang.
	OutputFormat string `yaml:"output_format" toml:"output_format" validate:"oneof=json lang"`
}

// PathsConfig holds file locations.
type PathsConfig struct {
	OutputDir string `yaml:"output_dir" toml:"output_dir" validate:"required"`
	// DataDir holds history and lock files; empty uses the user data dir.
	DataDir string `yaml:"data_dir,omitempty" toml:"data_dir,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level" validate:"oneof=trace debug info warn error"`
}

// ---------------------------------------------------------------------------
// Defaults
// ---------------------------------------------------------------------------

// DefaultFileNames are searched in order when no path is given.
var DefaultFileNames = []string{"mmlocalizer.yaml", "mmlocalizer.yml", "mmlocalizer.toml"}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   "openai",
			MaxRetries: 5,
		},
		Translation: TranslationConfig{
			QuestChunkSize:       1,
			GuidebookChunkSize:   1,
			MaxTokensPerChunk:    3000,
			FallbackToEntryBased: true,
			MaxConcurrency:       1,
			TargetLanguage:       "ja_jp",
			SourceLanguage:       "en_us",
			SkipTranslated:       true,
			OutputFormat:         "json",
		},
		Paths: PathsConfig{
			OutputDir: "MinecraftModsLocalizer",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads path, or the first of DefaultFileNames found in dir when
// path is empty. With no file the defaults are used. Environment
// overrides are applied and the result is validated.
func Load(path, dir string) (*Config, string, error) {
	if path == "" {
		for _, name := range DefaultFileNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, "", err
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("%s: %w", displayPath(path), err)
	}
	return cfg, path, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%s: unsupported config format (use .yaml or .toml)", path)
	}
	return nil
}

// Env variable names.
const (
	EnvAPIKey         = "MMLOCALIZER_API_KEY"
	EnvProvider       = "MMLOCALIZER_PROVIDER"
	EnvModel          = "MMLOCALIZER_MODEL"
	EnvTargetLanguage = "MMLOCALIZER_TARGET_LANGUAGE"
)

// ApplyEnv overrides values from MMLOCALIZER_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(EnvProvider); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv(EnvTargetLanguage); v != "" {
		c.Translation.TargetLanguage = v
	}
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Translation.UseTokenBasedChunking && c.Translation.MaxTokensPerChunk <= 0 {
		return errors.New("invalid configuration: use_token_based_chunking requires max_tokens_per_chunk > 0")
	}
	if c.LLM.Provider == "custom-openai" && c.LLM.BaseURL == "" {
		return errors.New("invalid configuration: provider custom-openai requires base_url")
	}
	return nil
}

// Save writes the configuration, choosing the format from the extension.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		data, err = toml.Marshal(c)
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		return fmt.Errorf("%s: unsupported config format (use .yaml or .toml)", path)
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ---------------------------------------------------------------------------
// Derived values
// ---------------------------------------------------------------------------

// ChunkSizes returns the per-domain chunk sizes.
func (c *Config) ChunkSizes() map[job.Domain]int {
	return map[job.Domain]int{
		job.DomainMod:       c.Translation.ModChunkSize,
		job.DomainQuest:     c.Translation.QuestChunkSize,
		job.DomainGuidebook: c.Translation.GuidebookChunkSize,
		job.DomainCustom:    c.Translation.CustomChunkSize,
	}
}

// ChunkSizeFor returns the chunk size for domain.
func (c *Config) ChunkSizeFor(d job.Domain) int {
	return c.ChunkSizes()[d]
}

// Languages returns the target language followed by additional
// languages, canonicalized and without duplicates.
func (c *Config) Languages() []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range append([]string{c.Translation.TargetLanguage}, c.Translation.AdditionalLanguages...) {
		code := langmeta.Canonicalize(l)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, code)
	}
	return out
}

// RequestIntervalDuration converts RequestInterval to a duration.
func (c *Config) RequestIntervalDuration() time.Duration {
	return seconds(c.LLM.RequestInterval)
}

// TimeoutDuration converts Timeout to a duration.
func (c *Config) TimeoutDuration() time.Duration {
	return seconds(c.LLM.Timeout)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func displayPath(path string) string {
	if path == "" {
		return "defaults"
	}
	return path
}
