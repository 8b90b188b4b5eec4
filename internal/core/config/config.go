package config

import (
	"time"
)

const DefaultConfigFile = "revwatch.toml"

type Config struct {
	Version       int           `toml:"version"`
	Repository    Repository    `toml:"repository"`
	Monitor       Monitor       `toml:"monitor"`
	Archive       Archive       `toml:"archive"`
	Rewrite       Rewrite       `toml:"rewrite"`
	Client        Client        `toml:"client"`
	DB            Database      `toml:"db"`
	Observability Observability `toml:"observability"`
}

type Repository struct {
	Driver         string        `toml:"driver"`
	Path           string        `toml:"path"`
	WatchPaths     []string      `toml:"watch_paths"`
	P4Port         string        `toml:"p4_port"`
	P4User         string        `toml:"p4_user"`
	P4Client       string        `toml:"p4_client"`
	P4Bin          string        `toml:"p4_bin"`
	CommandTimeout time.Duration `toml:"command_timeout"`
	// WatchRefs requests a refresh as soon as a local git ref moves.
	WatchRefs   bool          `toml:"watch_refs"`
	RefDebounce time.Duration `toml:"ref_debounce"`
}

type Monitor struct {
	PollInterval   time.Duration `toml:"poll_interval"`
	Retention      int           `toml:"retention"`
	ClassifySlack  int           `toml:"classify_slack"`
	StopTimeout    time.Duration `toml:"stop_timeout"`
	Author         string        `toml:"author"`
	CodeExtensions []string      `toml:"code_extensions"`
}

// Archive locates the build config that names where archived binaries live.
type Archive struct {
	ConfigPath   string `toml:"config_path"`
	Section      string `toml:"section"`
	Key          string `toml:"key"`
	MaxRevisions int    `toml:"max_revisions"`
}

type Rewrite struct {
	Marker      string `toml:"marker"`
	Replacement string `toml:"replacement"`
}

type Client struct {
	RateLimit     float64 `toml:"rate_limit"` // requests per second, 0 = unlimited
	Burst         int     `toml:"burst"`
	DiffCacheSize int     `toml:"diff_cache_size"`
}

type Database struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
	KeepCycles  int           `toml:"keep_cycles"`
}

type Observability struct {
	Enabled       bool   `toml:"enabled"`
	Address       string `toml:"address"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	EnableTracing bool   `toml:"enable_tracing"`
}

var DefaultCodeExtensions = []string{
	".c", ".cc", ".cpp", ".cs", ".go", ".h", ".hpp", ".inl", ".m", ".mm", ".py", ".rs",
}

// Default returns a configuration with every default applied, as if an empty file was loaded.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
