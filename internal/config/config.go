package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ErrConfigMissing marks a required file or setting that is absent.
var ErrConfigMissing = errors.New("required configuration missing")

// Defaults for the calendar tool.
const (
	DefaultTokenPath         = "token.json"
	DefaultWriteTokenPath    = "token_write.json"
	DefaultCredentialsPath   = "credentials.json"
	DefaultCalendarID        = "primary"
	DefaultTimeMin           = "2023-11-01T00:00:00Z"
	DefaultPageSize          = 250
	DefaultMaxPages          = 100
	DefaultKeywordsFile      = "keywords.txt"
	DefaultIDsFile           = "delete_ids.txt"
	DefaultOutputICS         = "filtered_entries.ics"
	DefaultConfirmToken      = "yes"
	DefaultRequestsPerSecond = 5
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", fmt.Errorf("%w: credentials file %s: %v", ErrConfigMissing, path, err)
		}
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Desktop apps use "installed"; fall back to "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// Config holds the configuration for the calendar tool.
type Config struct {
	// TokenPath stores the read-only token used by select and export.
	TokenPath string `json:"token_path,omitempty"`
	// WriteTokenPath stores the read-write token used by delete.
	WriteTokenPath        string `json:"write_token_path,omitempty"`
	GoogleCredentialsPath string `json:"google_credentials_path,omitempty"`
	CalendarID            string `json:"calendar_id,omitempty"`

	// TimeMin is the RFC 3339 lower bound for listed events.
	TimeMin  string `json:"time_min,omitempty"`
	PageSize int64  `json:"page_size,omitempty"`
	MaxPages int    `json:"max_pages,omitempty"`

	KeywordsFile string `json:"keywords_file,omitempty"`
	IDsFile      string `json:"ids_file,omitempty"`
	OutputICS    string `json:"output_ics,omitempty"`

	// MinDelay and MaxDelay bound the random pause between event pages.
	MinDelay Duration `json:"min_delay,omitempty"`
	MaxDelay Duration `json:"max_delay,omitempty"`

	ConfirmToken      string  `json:"confirm_token,omitempty"`
	RequestsPerSecond float64 `json:"requests_per_second,omitempty"`
}

// Duration is a time.Duration read from JSON as a string such as "1.5s".
type Duration time.Duration

// UnmarshalJSON accepts a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"1.5s\": %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON writes the duration in its string form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Overrides carries command-line values. Empty fields are ignored.
type Overrides struct {
	TokenPath             string
	WriteTokenPath        string
	GoogleCredentialsPath string
	CalendarID            string
	TimeMin               string
	KeywordsFile          string
	IDsFile               string
	OutputICS             string
	MaxPages              int
	MinDelay              time.Duration
	MaxDelay              time.Duration
}

// LoadConfigFromFile loads configuration from a JSON file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
func LoadConfig(configFile string, flags Overrides) (*Config, error) {
	var config Config

	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	if v := os.Getenv("CALMOD_TOKEN_PATH"); v != "" {
		config.TokenPath = v
	}
	if v := os.Getenv("CALMOD_WRITE_TOKEN_PATH"); v != "" {
		config.WriteTokenPath = v
	}
	if v := os.Getenv("GOOGLE_CREDENTIALS_PATH"); v != "" {
		config.GoogleCredentialsPath = v
	}
	if v := os.Getenv("CALMOD_CALENDAR_ID"); v != "" {
		config.CalendarID = v
	}
	if v := os.Getenv("CALMOD_TIME_MIN"); v != "" {
		config.TimeMin = v
	}
	if v := os.Getenv("CALMOD_MAX_PAGES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CALMOD_MAX_PAGES value: %w", err)
		}
		config.MaxPages = n
	}

	setString(&config.TokenPath, flags.TokenPath)
	setString(&config.WriteTokenPath, flags.WriteTokenPath)
	setString(&config.GoogleCredentialsPath, flags.GoogleCredentialsPath)
	setString(&config.CalendarID, flags.CalendarID)
	setString(&config.TimeMin, flags.TimeMin)
	setString(&config.KeywordsFile, flags.KeywordsFile)
	setString(&config.IDsFile, flags.IDsFile)
	setString(&config.OutputICS, flags.OutputICS)
	if flags.MaxPages > 0 {
		config.MaxPages = flags.MaxPages
	}
	if flags.MinDelay > 0 {
		config.MinDelay = Duration(flags.MinDelay)
	}
	if flags.MaxDelay > 0 {
		config.MaxDelay = Duration(flags.MaxDelay)
	}

	config.applyDefaults()

	if _, err := time.Parse(time.RFC3339, config.TimeMin); err != nil {
		return nil, fmt.Errorf("time_min must be an RFC 3339 timestamp: %w", err)
	}
	if config.MaxPages < 0 {
		return nil, fmt.Errorf("max_pages must not be negative, got %d", config.MaxPages)
	}
	if config.PageSize < 1 || config.PageSize > 2500 {
		return nil, fmt.Errorf("page_size must be between 1 and 2500, got %d", config.PageSize)
	}
	if config.MinDelay < 0 || config.MaxDelay < 0 {
		return nil, fmt.Errorf("min_delay and max_delay must not be negative, got %s..%s",
			time.Duration(config.MinDelay), time.Duration(config.MaxDelay))
	}
	if config.TokenPath == config.WriteTokenPath {
		return nil, fmt.Errorf("token_path and write_token_path must differ (got %s)", config.TokenPath)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	setDefault(&c.TokenPath, DefaultTokenPath)
	setDefault(&c.WriteTokenPath, DefaultWriteTokenPath)
	setDefault(&c.GoogleCredentialsPath, DefaultCredentialsPath)
	setDefault(&c.CalendarID, DefaultCalendarID)
	setDefault(&c.TimeMin, DefaultTimeMin)
	setDefault(&c.KeywordsFile, DefaultKeywordsFile)
	setDefault(&c.IDsFile, DefaultIDsFile)
	setDefault(&c.OutputICS, DefaultOutputICS)
	setDefault(&c.ConfirmToken, DefaultConfirmToken)
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.MaxPages == 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.MaxDelay < c.MinDelay {
		c.MaxDelay = c.MinDelay
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDefault(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
