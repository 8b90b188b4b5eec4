package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: REVWATCH_[SECTION]_[KEY] (e.g., REVWATCH_MONITOR_RETENTION).
func ApplyEnvOverrides(cfg *Config) {
	// Repository
	setEnvString(&cfg.Repository.Driver, "REVWATCH_REPOSITORY_DRIVER")
	setEnvString(&cfg.Repository.Path, "REVWATCH_REPOSITORY_PATH")
	setEnvList(&cfg.Repository.WatchPaths, "REVWATCH_REPOSITORY_WATCH_PATHS")
	setEnvString(&cfg.Repository.P4Port, "REVWATCH_REPOSITORY_P4_PORT")
	setEnvString(&cfg.Repository.P4User, "REVWATCH_REPOSITORY_P4_USER")
	setEnvString(&cfg.Repository.P4Client, "REVWATCH_REPOSITORY_P4_CLIENT")
	setEnvString(&cfg.Repository.P4Bin, "REVWATCH_REPOSITORY_P4_BIN")
	setEnvDuration(&cfg.Repository.CommandTimeout, "REVWATCH_REPOSITORY_COMMAND_TIMEOUT")
	setEnvBool(&cfg.Repository.WatchRefs, "REVWATCH_REPOSITORY_WATCH_REFS")

	// Monitor
	setEnvDuration(&cfg.Monitor.PollInterval, "REVWATCH_MONITOR_POLL_INTERVAL")
	setEnvInt(&cfg.Monitor.Retention, "REVWATCH_MONITOR_RETENTION")
	setEnvInt(&cfg.Monitor.ClassifySlack, "REVWATCH_MONITOR_CLASSIFY_SLACK")
	setEnvDuration(&cfg.Monitor.StopTimeout, "REVWATCH_MONITOR_STOP_TIMEOUT")
	setEnvString(&cfg.Monitor.Author, "REVWATCH_MONITOR_AUTHOR")

	// Archive
	setEnvString(&cfg.Archive.ConfigPath, "REVWATCH_ARCHIVE_CONFIG_PATH")
	setEnvInt(&cfg.Archive.MaxRevisions, "REVWATCH_ARCHIVE_MAX_REVISIONS")

	// Client
	setEnvFloat64(&cfg.Client.RateLimit, "REVWATCH_CLIENT_RATE_LIMIT")
	setEnvInt(&cfg.Client.Burst, "REVWATCH_CLIENT_BURST")

	// Database
	setEnvBool(&cfg.DB.Enabled, "REVWATCH_DB_ENABLED")
	setEnvString(&cfg.DB.Path, "REVWATCH_DB_PATH")

	// Observability
	setEnvBool(&cfg.Observability.Enabled, "REVWATCH_OBSERVABILITY_ENABLED")
	setEnvString(&cfg.Observability.Address, "REVWATCH_OBSERVABILITY_ADDRESS")
	setEnvString(&cfg.Observability.OTLPEndpoint, "REVWATCH_OBSERVABILITY_OTLP_ENDPOINT")
	setEnvBool(&cfg.Observability.EnableTracing, "REVWATCH_OBSERVABILITY_ENABLE_TRACING")

	normalize(cfg)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		log.Printf("Applying env override: %s=%s", key, val)
		*target = val
	}
}

// setEnvList splits a comma separated value.
func setEnvList(target *[]string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		var items []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		if len(items) > 0 {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = items
		}
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			log.Printf("Applying env override: %s=%s", key, val)
			*target = d
		}
	}
}
