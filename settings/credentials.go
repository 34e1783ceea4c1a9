// Package settings stores per-user lokscan settings: translation provider
// credentials and an optional translation prompt.
//
// Everything lives in the XDG data directory:
//
//	$XDG_DATA_HOME/lokscan/  (default: ~/.local/share/lokscan/)
//
// Files stored:
//   - auth.json     API keys and endpoints, keyed by provider ID
//   - prompts.json  a custom system prompt for AI providers
//
// auth.json is written with 0600 permissions.
//
// Lookup order for API keys:
//  1. --api-key flag (highest priority)
//  2. the provider's environment variable (see EnvVarForProvider)
//  3. this credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	dataDirName     = "lokscan"
	fileName        = "auth.json"
	promptsFileName = "prompts.json"
)

// Info is the entry stored per provider in auth.json.
type Info struct {
	// Type is "api"; kept so entries can be told apart if other kinds of
	// credentials are added.
	Type string `json:"type"`
	Key  string `json:"key,omitempty"`
	// BaseURL overrides the provider endpoint (custom-openai, ollama).
	BaseURL string `json:"baseUrl,omitempty"`
	// Model is the default model for the provider.
	Model string `json:"model,omitempty"`
}

// IsAPI returns true if this is an API key entry.
func (i *Info) IsAPI() bool {
	return i.Type == "api"
}

// Store holds all provider credentials, keyed by provider ID.
type Store map[string]*Info

// Providers returns the provider IDs in the store, sorted.
func (s Store) Providers() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir respects $XDG_DATA_HOME and falls back to ~/.local/share.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json file path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// PromptsFilePath returns the path to the prompts.json file.
func PromptsFilePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, promptsFileName), nil
}

// DataDir returns the lokscan data directory path.
func DataDir() (string, error) {
	return dataDir()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}
	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the entry for a provider, or nil if not found.
func Get(providerID string) *Info {
	return Load()[providerID]
}

// Set stores an entry for a provider (upsert).
func Set(providerID string, info *Info) error {
	store := Load()
	store[providerID] = info
	return Save(store)
}

// Remove deletes credentials for a provider.
func Remove(providerID string) error {
	store := Load()
	if _, ok := store[providerID]; !ok {
		return nil
	}
	delete(store, providerID)
	return Save(store)
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// API key helpers
// ---------------------------------------------------------------------------

// SetAPIKey stores an API key for a provider, keeping a stored endpoint
// and model.
func SetAPIKey(providerID, key string) error {
	info := &Info{Type: "api", Key: key}
	if existing := Get(providerID); existing != nil {
		info.BaseURL = existing.BaseURL
		info.Model = existing.Model
	}
	return Set(providerID, info)
}

// SetAPIKeyWithBaseURL stores an API key and base URL for custom-openai.
func SetAPIKeyWithBaseURL(providerID, key, baseURL string) error {
	return Set(providerID, &Info{Type: "api", Key: key, BaseURL: baseURL})
}

// GetAPIKey retrieves the stored API key for a provider.
func GetAPIKey(providerID string) string {
	info := Get(providerID)
	if info == nil || !info.IsAPI() {
		return ""
	}
	return info.Key
}

// GetBaseURL retrieves the stored base URL for a provider.
func GetBaseURL(providerID string) string {
	info := Get(providerID)
	if info == nil {
		return ""
	}
	return info.BaseURL
}

// EnvVarForProvider returns the environment variable holding the API key
// of a provider, or "" for providers without one.
func EnvVarForProvider(providerID string) string {
	switch providerID {
	case "google":
		return "GOOGLE_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	case "opencode":
		return "OPENCODE_API_KEY"
	case "custom-openai":
		return "OPENAI_API_KEY"
	}
	return ""
}

// ResolveAPIKey returns the API key for a provider: flagValue if set,
// then the provider's environment variable (or LOKSCAN_API_KEY), then
// the credential store.
func ResolveAPIKey(providerID, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := EnvVarForProvider(providerID); env != "" {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	if v := os.Getenv("LOKSCAN_API_KEY"); v != "" {
		return v
	}
	return GetAPIKey(providerID)
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// ---------------------------------------------------------------------------
// Prompts
// ---------------------------------------------------------------------------

type prompts struct {
	System string `json:"system"`
}

// SystemPrompt returns the custom system prompt from prompts.json, or ""
// when there is none.
func SystemPrompt() string {
	path, err := PromptsFilePath()
	if err != nil {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var p prompts
	if err := json.Unmarshal(data, &p); err != nil {
		return ""
	}
	return strings.TrimSpace(p.System)
}

// SaveSystemPrompt writes a custom system prompt. An empty prompt removes
// the file.
func SaveSystemPrompt(prompt string) error {
	path, err := PromptsFilePath()
	if err != nil {
		return err
	}
	if strings.TrimSpace(prompt) == "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing prompts file: %w", err)
		}
		return nil
	}
	data, err := json.MarshalIndent(prompts{System: prompt}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling prompts: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
