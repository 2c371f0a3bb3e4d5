// Package config holds the settings of one scr-lifecycle-policy invocation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"scr-lifecycle-policy/internal/grace"
	"scr-lifecycle-policy/internal/registry"
	"scr-lifecycle-policy/internal/retention"
)

// Config holds all values for a retention run. Flags populate it; every
// field has an environment variable fallback, see Defaults.
type Config struct {
	// Token is the registry secret key. Required.
	Token string
	// ImageID is the unique ID of the image to clean. Required.
	ImageID string
	// Grace is the grace period, e.g. "30d". Required.
	Grace string
	// DryRun is "yes" or "no". Defaults to "yes".
	DryRun string
	// Region defaults to fr-par.
	Region string

	APIURL    string
	MaxPages  int
	PageSize  int
	Timeout   time.Duration
	LogLevel  string
	LogFormat string
	HistoryDB string
}

// Defaults returns a Config filled from environment variables, falling back
// to built-in defaults.
func Defaults() Config {
	return Config{
		Token:     os.Getenv("SCR_TOKEN"),
		ImageID:   os.Getenv("SCR_IMAGE_ID"),
		Grace:     os.Getenv("SCR_GRACE"),
		DryRun:    getEnv("SCR_DRY_RUN", "yes"),
		Region:    getEnv("SCR_REGION", registry.DefaultRegion),
		APIURL:    getEnv("SCR_API_URL", registry.DefaultBaseURL),
		MaxPages:  getEnvInt("SCR_MAX_PAGES", retention.DefaultMaxPages),
		PageSize:  getEnvInt("SCR_PAGE_SIZE", registry.DefaultPageSize),
		Timeout:   getEnvDuration("SCR_TIMEOUT", registry.DefaultTimeout),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		HistoryDB: os.Getenv("SCR_HISTORY_DB"),
	}
}

// Validate checks the configuration before any network activity and returns
// the parsed retention policy.
func (c Config) Validate() (retention.Policy, error) {
	var missing []string
	if c.Token == "" {
		missing = append(missing, "--token")
	}
	if c.ImageID == "" {
		missing = append(missing, "--image-id")
	}
	if c.Grace == "" {
		missing = append(missing, "--grace")
	}
	if len(missing) > 0 {
		return retention.Policy{}, fmt.Errorf("required flags not set: %s", strings.Join(missing, ", "))
	}

	g, err := grace.Parse(c.Grace)
	if err != nil {
		return retention.Policy{}, err
	}

	dryRun, err := ParseDryRun(c.DryRun)
	if err != nil {
		return retention.Policy{}, err
	}

	if !registry.ValidRegion(c.Region) {
		return retention.Policy{}, fmt.Errorf("unsupported region %q, possible values are %s", c.Region, strings.Join(registry.Regions, ", "))
	}
	if c.MaxPages < 1 {
		return retention.Policy{}, fmt.Errorf("--max-pages must be at least 1, got %d", c.MaxPages)
	}
	if c.PageSize < 1 {
		return retention.Policy{}, fmt.Errorf("--page-size must be at least 1, got %d", c.PageSize)
	}
	if c.Timeout <= 0 {
		return retention.Policy{}, fmt.Errorf("--timeout must be positive, got %s", c.Timeout)
	}

	return retention.Policy{
		ImageID:  c.ImageID,
		Region:   c.Region,
		Grace:    g,
		DryRun:   dryRun,
		MaxPages: c.MaxPages,
	}, nil
}

// ParseDryRun maps the --dry-run value to a bool
func ParseDryRun(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid --dry-run value %q, expected yes or no", v)
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}
