package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for the follow checker.
const (
	DefaultFollowConfigPath = "config.yaml"
	DefaultExclusionsFile   = "exclusions.txt"
	DefaultFollowMaxPages   = 5000
	DefaultMinDelay         = 1500 * time.Millisecond
	DefaultMaxDelay         = 2500 * time.Millisecond
	DefaultAppID            = "936619743392459"
	DefaultUserAgent        = "Mozilla/5.0"
	DefaultWebBaseURL       = "https://www.instagram.com"
	DefaultAPIBaseURL       = "https://i.instagram.com"
)

// FollowConfig is the follow checker's YAML configuration.
type FollowConfig struct {
	// SessionID is the browser session cookie value. Treat it as a secret.
	SessionID     string `yaml:"sessionid"`
	TargetAccount string `yaml:"target_account"`

	ExclusionsFile string `yaml:"exclusions_file"`
	// OutputDir receives the formatted lists and debug snapshots.
	OutputDir string `yaml:"output_dir"`

	MaxPages int           `yaml:"max_pages"`
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`

	AppID      string `yaml:"app_id"`
	UserAgent  string `yaml:"user_agent"`
	WebBaseURL string `yaml:"web_base_url"`
	APIBaseURL string `yaml:"api_base_url"`
}

// FollowOverrides carries command-line values. Empty fields are ignored.
type FollowOverrides struct {
	TargetAccount  string
	ExclusionsFile string
	OutputDir      string
	MaxPages       int
}

// Normalize fills in zero values with defaults.
func (c *FollowConfig) Normalize() {
	setDefault(&c.ExclusionsFile, DefaultExclusionsFile)
	setDefault(&c.OutputDir, ".")
	setDefault(&c.AppID, DefaultAppID)
	setDefault(&c.UserAgent, DefaultUserAgent)
	setDefault(&c.WebBaseURL, DefaultWebBaseURL)
	setDefault(&c.APIBaseURL, DefaultAPIBaseURL)
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultFollowMaxPages
	}
	if c.MinDelay == 0 && c.MaxDelay == 0 {
		c.MinDelay = DefaultMinDelay
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
	c.TargetAccount = strings.TrimPrefix(strings.TrimSpace(c.TargetAccount), "@")
}

// LoadFollowConfig reads the YAML file at path, then applies a .env file (if
// present), environment variables, and flags, in increasing precedence.
// A missing YAML file is tolerated when the environment supplies the required values.
func LoadFollowConfig(path, envFile string, flags FollowOverrides) (*FollowConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var cfg FollowConfig
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
			// env may still provide everything
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if v := os.Getenv("IG_SESSIONID"); v != "" {
		cfg.SessionID = v
	}
	if v := os.Getenv("IG_TARGET_ACCOUNT"); v != "" {
		cfg.TargetAccount = v
	}

	setString(&cfg.TargetAccount, flags.TargetAccount)
	setString(&cfg.ExclusionsFile, flags.ExclusionsFile)
	setString(&cfg.OutputDir, flags.OutputDir)
	if flags.MaxPages > 0 {
		cfg.MaxPages = flags.MaxPages
	}

	cfg.Normalize()

	if cfg.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionid must be provided in %s or via IG_SESSIONID", ErrConfigMissing, path)
	}
	if cfg.TargetAccount == "" {
		return nil, fmt.Errorf("%w: target_account must be provided in %s, via IG_TARGET_ACCOUNT, or --target", ErrConfigMissing, path)
	}
	if cfg.MinDelay < 0 {
		return nil, fmt.Errorf("min_delay must not be negative, got %s", cfg.MinDelay)
	}

	return &cfg, nil
}
