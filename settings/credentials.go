// Package settings manages per-user state outside the project: provider
// credentials and the location of the history database.
//
// Both live under the user data directory, $XDG_DATA_HOME/mmlocalizer
// (~/.local/share/mmlocalizer when unset):
//
//	auth.json  provider credentials, mode 0600
//	history/   translation history database
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	appDirName    = "mmlocalizer"
	authFileName  = "auth.json"
	authVersion   = 1
	envGenericKey = "MMLOCALIZER_API_KEY"
)

// Info is what is stored for one provider.
type Info struct {
	Key       string    `json:"key,omitempty"`
	BaseURL   string    `json:"base_url,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credentials is the content of auth.json.
type Credentials struct {
	Version   int              `json:"version"`
	Providers map[string]*Info `json:"providers"`
}

// Source tells where a resolved API key came from.
type Source string

const (
	SourceNone   Source = ""
	SourceFlag   Source = "--api-key"
	SourceConfig Source = "config file"
	SourceStore  Source = "credential store"
)

// DataDir returns the user data directory for mmlocalizer.
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", appDirName), nil
}

// ResolveDataDir returns override when set, else DataDir.
func ResolveDataDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return DataDir()
}

// FilePath returns the auth.json location, or "" when the home directory
// is unknown.
func FilePath() string {
	dir, err := DataDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, authFileName)
}

// Load reads auth.json. A missing or unreadable file gives empty
// credentials so callers fall back to the other key sources.
func Load() *Credentials {
	c := &Credentials{Version: authVersion, Providers: map[string]*Info{}}
	path := FilePath()
	if path == "" {
		return c
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var onDisk Credentials
	if err := json.Unmarshal(data, &onDisk); err != nil {
		return c
	}
	for id, info := range onDisk.Providers {
		if info != nil {
			c.Providers[id] = info
		}
	}
	return c
}

// Save writes the credentials, readable by the owner only.
func (c *Credentials) Save() error {
	path := FilePath()
	if path == "" {
		return errors.New("cannot determine data directory")
	}
	c.Version = authVersion
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}

// IDs returns the stored provider IDs in sorted order.
func (c *Credentials) IDs() []string {
	ids := make([]string, 0, len(c.Providers))
	for id := range c.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the stored entry for providerID, or nil.
func Get(providerID string) *Info {
	return Load().Providers[providerID]
}

// SetAPIKey stores key for providerID. A non-empty baseURL replaces the
// stored endpoint; an empty one keeps it.
func SetAPIKey(providerID, key, baseURL string) error {
	c := Load()
	info := c.Providers[providerID]
	if info == nil {
		info = &Info{}
		c.Providers[providerID] = info
	}
	info.Key = key
	if baseURL != "" {
		info.BaseURL = baseURL
	}
	info.UpdatedAt = time.Now().UTC()
	return c.Save()
}

// GetAPIKey returns the stored key for providerID, or "".
func GetAPIKey(providerID string) string {
	if info := Get(providerID); info != nil {
		return info.Key
	}
	return ""
}

// GetBaseURL returns the stored endpoint for providerID, or "".
func GetBaseURL(providerID string) string {
	if info := Get(providerID); info != nil {
		return info.BaseURL
	}
	return ""
}

// Remove forgets providerID. Unknown providers are ignored.
func Remove(providerID string) error {
	c := Load()
	if _, ok := c.Providers[providerID]; !ok {
		return nil
	}
	delete(c.Providers, providerID)
	return c.Save()
}

// RemoveAll deletes auth.json.
func RemoveAll() error {
	path := FilePath()
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}

// EnvVarForProvider returns the vendor's conventional key variable, or
// "" for providers without one.
func EnvVarForProvider(providerID string) string {
	switch providerID {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	}
	return ""
}

// ResolveAPIKey picks the key for providerID. The first non-empty of
// these wins: the flag, MMLOCALIZER_API_KEY, the vendor variable, the
// config file and the credential store.
func ResolveAPIKey(flagKey, providerID, configKey string) (string, Source) {
	if flagKey != "" {
		return flagKey, SourceFlag
	}
	for _, name := range []string{envGenericKey, EnvVarForProvider(providerID)} {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			return v, Source("$" + name)
		}
	}
	if configKey != "" {
		return configKey, SourceConfig
	}
	if key := GetAPIKey(providerID); key != "" {
		return key, SourceStore
	}
	return "", SourceNone
}

// MaskKey shortens key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
