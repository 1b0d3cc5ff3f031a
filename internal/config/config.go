package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings shared by the CLI and the console server.
type Config struct {
	// Finance backend
	APIURL      string
	APIToken    string
	HTTPTimeout time.Duration

	// Rule application
	ApplyPageSize        int
	LargeUpdateThreshold int

	// Local preferences
	PrefsDBPath string

	// Console server
	ConsolePort string
	LogLevel    string

	// Optional integrations
	ImportArchiveBucket string
	BQProjectID         string
	BQDataset           string
	NotionToken         string
	NotionReportsDBID   string
	GeminiModel         string
}

// Load reads the configuration from the environment. Variables found in the
// given env files (".env" when none are given) are applied first without
// overriding variables that are already set.
func Load(envFiles ...string) *Config {
	_ = godotenv.Load(envFiles...)

	return &Config{
		APIURL:      getEnv("FINANCE_API_URL", "http://localhost:8080/api"),
		APIToken:    getEnv("FINANCE_API_TOKEN", ""),
		HTTPTimeout: getEnvDuration("FINANCE_HTTP_TIMEOUT", 30*time.Second),

		ApplyPageSize:        getEnvInt("APPLY_PAGE_SIZE", 1000),
		LargeUpdateThreshold: getEnvInt("LARGE_UPDATE_THRESHOLD", 100),

		PrefsDBPath: getEnv("PREFS_DB_PATH", "./data/prefs.db"),

		ConsolePort: getEnv("CONSOLE_PORT", "8090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		ImportArchiveBucket: getEnv("IMPORT_ARCHIVE_BUCKET", ""),
		BQProjectID:         getEnv("BQ_PROJECT_ID", ""),
		BQDataset:           getEnv("BQ_DATASET", "finance_reports"),
		NotionToken:         getEnv("NOTION_TOKEN", ""),
		NotionReportsDBID:   getEnv("NOTION_REPORTS_DB_ID", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if parsed, err := url.Parse(c.APIURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': %v", c.APIURL, err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", parsed.Scheme))
	}

	if c.HTTPTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid HTTP timeout %v: must be at least 1 second", c.HTTPTimeout))
	}

	if c.ApplyPageSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid apply page size %d: must be at least 1", c.ApplyPageSize))
	} else if c.ApplyPageSize > 5000 {
		errors = append(errors, fmt.Sprintf("invalid apply page size %d: must be at most 5000", c.ApplyPageSize))
	}

	if c.LargeUpdateThreshold < 1 {
		errors = append(errors, fmt.Sprintf("invalid large update threshold %d: must be at least 1", c.LargeUpdateThreshold))
	}

	if port, err := strconv.Atoi(c.ConsolePort); err != nil {
		errors = append(errors, fmt.Sprintf("invalid console port '%s': must be a number", c.ConsolePort))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid console port %d: must be between 1 and 65535", port))
	}

	if c.PrefsDBPath == "" {
		errors = append(errors, "preferences database path cannot be empty")
	}

	if c.NotionReportsDBID != "" && c.NotionToken == "" {
		errors = append(errors, "NOTION_TOKEN is required when NOTION_REPORTS_DB_ID is set")
	}

	if c.BQProjectID != "" && c.BQDataset == "" {
		errors = append(errors, "BQ_DATASET cannot be empty when BQ_PROJECT_ID is set")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ArchiveEnabled reports whether imported files are copied to cloud storage.
func (c *Config) ArchiveEnabled() bool { return c.ImportArchiveBucket != "" }

// BigQueryEnabled reports whether report snapshots can be exported.
func (c *Config) BigQueryEnabled() bool { return c.BQProjectID != "" }

// NotionEnabled reports whether monthly reports can be pushed to Notion.
func (c *Config) NotionEnabled() bool { return c.NotionToken != "" && c.NotionReportsDBID != "" }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
