package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Server       Server              `yaml:"server"`
	Storage      Storage             `yaml:"storage"`
	LLM          LLM                 `yaml:"llm"`
	Auth         Auth                `yaml:"auth"`
	Email        Email               `yaml:"email"`
	Privacy      Privacy             `yaml:"privacy"`
	RiskTaxonomy map[string][]string `yaml:"risk_taxonomy"`
	Logging      Logging             `yaml:"logging"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Storage struct {
	DataDir string `yaml:"data_dir"`
}

type LLM struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
	MaxTokens   int    `yaml:"max_tokens"`
	ThemeTopK   int    `yaml:"theme_top_k"`
}

type Auth struct {
	Enabled       bool   `yaml:"enabled"`
	SecretEnv     string `yaml:"secret_env"`
	Issuer        string `yaml:"issuer"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

type Email struct {
	APIKeyEnv string `yaml:"api_key_env"`
	From      string `yaml:"from"`
	To        string `yaml:"to"`
	AlertTo   string `yaml:"alert_to"`
}

type Privacy struct {
	StoreFullText bool `yaml:"store_full_text"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for safechat.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "safechat")
}

// DataDir returns the XDG data directory for safechat.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "safechat")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/safechat/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'safechat init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the built-in configuration, including the full risk taxonomy.
func Default() (*Config, error) {
	return parse(nil)
}

// parse layers user YAML over the embedded defaults. The default taxonomy is
// replaced wholesale when the user config defines its own risk_taxonomy
// section, so a deployment can pin an older or stricter phrase set.
func parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(DefaultConfigYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing built-in config: %w", err)
	}

	if len(data) > 0 {
		user := &Config{}
		if err := yaml.Unmarshal(data, user); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		merge(cfg, user)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func merge(base, user *Config) {
	if user.Server.Port != 0 {
		base.Server.Port = user.Server.Port
	}
	if user.Storage.DataDir != "" {
		base.Storage.DataDir = user.Storage.DataDir
	}
	if user.LLM.Provider != "" {
		base.LLM.Provider = user.LLM.Provider
	}
	if user.LLM.Model != "" {
		base.LLM.Model = user.LLM.Model
	}
	if user.LLM.BaseURL != "" {
		base.LLM.BaseURL = user.LLM.BaseURL
	}
	if user.LLM.APIKeyEnv != "" {
		base.LLM.APIKeyEnv = user.LLM.APIKeyEnv
	}
	if user.LLM.OllamaURL != "" {
		base.LLM.OllamaURL = user.LLM.OllamaURL
	}
	if user.LLM.OllamaModel != "" {
		base.LLM.OllamaModel = user.LLM.OllamaModel
	}
	if user.LLM.MaxTokens != 0 {
		base.LLM.MaxTokens = user.LLM.MaxTokens
	}
	if user.LLM.ThemeTopK != 0 {
		base.LLM.ThemeTopK = user.LLM.ThemeTopK
	}
	if user.Auth.Enabled {
		base.Auth.Enabled = true
	}
	if user.Auth.SecretEnv != "" {
		base.Auth.SecretEnv = user.Auth.SecretEnv
	}
	if user.Auth.Issuer != "" {
		base.Auth.Issuer = user.Auth.Issuer
	}
	if user.Auth.TokenTTLHours != 0 {
		base.Auth.TokenTTLHours = user.Auth.TokenTTLHours
	}
	if user.Email.APIKeyEnv != "" {
		base.Email.APIKeyEnv = user.Email.APIKeyEnv
	}
	if user.Email.From != "" {
		base.Email.From = user.Email.From
	}
	if user.Email.To != "" {
		base.Email.To = user.Email.To
	}
	if user.Email.AlertTo != "" {
		base.Email.AlertTo = user.Email.AlertTo
	}
	if user.Privacy.StoreFullText {
		base.Privacy.StoreFullText = true
	}
	if len(user.RiskTaxonomy) > 0 {
		base.RiskTaxonomy = user.RiskTaxonomy
	}
	if user.Logging.Level != "" {
		base.Logging.Level = user.Logging.Level
	}
}

// validate enforces the taxonomy invariant: a trigger phrase belongs to
// exactly one category.
func (c *Config) validate() error {
	seen := make(map[string]string)
	for category, phrases := range c.RiskTaxonomy {
		for _, p := range phrases {
			if p == "" {
				return fmt.Errorf("risk_taxonomy: empty phrase in category %q", category)
			}
			if prev, ok := seen[p]; ok && prev != category {
				return fmt.Errorf("risk_taxonomy: phrase %q appears in both %q and %q", p, prev, category)
			}
			seen[p] = category
		}
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
