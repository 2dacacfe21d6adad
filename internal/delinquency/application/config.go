package application

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config tunes the delinquency sweeper and its notifications.
type Config struct {
	// WarnOncePerDay suppresses duplicate final warnings within the same
	// calendar day when the sweeper runs more than once.
	WarnOncePerDay bool `yaml:"warn_once_per_day"`
	// DashboardURL is attached to notifications so merchants land on the
	// billing page.
	DashboardURL string `yaml:"dashboard_url"`
	// WebhookURL is the push-delivery webhook; empty falls back to the
	// logging notifier.
	WebhookURL string `yaml:"webhook_url"`
	// NotifyTimeout bounds each webhook delivery.
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
	// DailyAt is the HH:MM (UTC) the in-process scheduler fires the
	// billing jobs.
	DailyAt string `yaml:"daily_at"`
}

// LoadConfig loads config from yaml or env. Env fills whatever the yaml
// file leaves empty.
func LoadConfig() (Config, error) {
	cfg := Config{
		WarnOncePerDay: getenvBoolDefault("DELINQUENCY_WARN_ONCE_PER_DAY", true),
		DashboardURL:   os.Getenv("DELINQUENCY_DASHBOARD_URL"),
		WebhookURL:     os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyTimeout:  getenvDuration("NOTIFY_TIMEOUT", 5*time.Second),
	}

	if path := os.Getenv("DELINQUENCY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.DailyAt == "" {
		cfg.DailyAt = getenvDefault("BILLING_JOBS_DAILY_AT", "03:00")
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
