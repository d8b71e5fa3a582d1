package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/rendis/conclave/internal/scheduler"
)

// Config holds all conclave configuration.
// Priority: flags > env vars (.env included) > settings.json > defaults.
type Config struct {
	ListenAddr     string   `json:"listen_addr"`
	BaseURL        string   `json:"base_url"`
	LogLevel       string   `json:"log_level"`
	LogFormat      string   `json:"log_format"`
	Pace           float64  `json:"pace"`
	Script         string   `json:"script,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty"`
	// Autoplay starts demo runs on a cron schedule while serving.
	Autoplay []scheduler.JobSpec `json:"autoplay,omitempty"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr: ":4100",
		LogLevel:   "info",
		LogFormat:  "text",
		Pace:       1,
	}
}

func conclaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".conclave"
	}
	return filepath.Join(home, ".conclave")
}

func settingsPath() string {
	return filepath.Join(conclaveDir(), "settings.json")
}

func binDir() string {
	return filepath.Join(conclaveDir(), "bin")
}

func pidPath() string {
	return filepath.Join(conclaveDir(), "conclave.pid")
}

// loadConfig reads settings.json, then .env from the working directory, then
// CONCLAVE_* variables.
func loadConfig() Config {
	// Variables already set in the environment win over .env.
	_ = godotenv.Load()
	return loadConfigFrom(settingsPath(), os.Getenv)
}

func loadConfigFrom(settings string, getenv func(string) string) Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settings); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := getenv("CONCLAVE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := getenv("CONCLAVE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := getenv("CONCLAVE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("CONCLAVE_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("CONCLAVE_PACE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.Pace = f
		}
	}
	if v := getenv("CONCLAVE_SCRIPT"); v != "" {
		cfg.Script = v
	}
	if v := getenv("CONCLAVE_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if sched, task := getenv("CONCLAVE_AUTOPLAY_SCHEDULE"), getenv("CONCLAVE_AUTOPLAY_TASK"); sched != "" && task != "" {
		cfg.Autoplay = []scheduler.JobSpec{{Schedule: sched, Task: task}}
	}

	deriveBaseURL(&cfg)
	return cfg
}

// applyFlags overrides cfg with every flag the user set explicitly.
func applyFlags(flags *pflag.FlagSet, cfg *Config) {
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}
	if changed("listen-addr") {
		derived := cfg.BaseURL == baseURLFor(cfg.ListenAddr)
		cfg.ListenAddr, _ = flags.GetString("listen-addr")
		if derived {
			cfg.BaseURL = ""
		}
	}
	if changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if changed("pace") {
		cfg.Pace, _ = flags.GetFloat64("pace")
	}
	if changed("script") {
		cfg.Script, _ = flags.GetString("script")
	}
	if changed("allowed-origins") {
		cfg.AllowedOrigins, _ = flags.GetStringSlice("allowed-origins")
	}
	deriveBaseURL(cfg)
}

// deriveBaseURL fills base_url from listen_addr when empty.
func deriveBaseURL(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURLFor(cfg.ListenAddr)
	}
}

func baseURLFor(listenAddr string) string {
	if strings.HasPrefix(listenAddr, ":") {
		return "http://localhost" + listenAddr
	}
	return "http://" + listenAddr
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	LogLevelChanged bool
	OriginsChanged  bool
	RestartNeeded   []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
	}
	if !slices.Equal(old.AllowedOrigins, new.AllowedOrigins) {
		d.OriginsChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.BaseURL != new.BaseURL {
		d.RestartNeeded = append(d.RestartNeeded, "base_url")
	}
	if old.LogFormat != new.LogFormat {
		d.RestartNeeded = append(d.RestartNeeded, "log_format")
	}
	if old.Pace != new.Pace {
		d.RestartNeeded = append(d.RestartNeeded, "pace")
	}
	if old.Script != new.Script {
		d.RestartNeeded = append(d.RestartNeeded, "script")
	}
	if !slices.Equal(old.Autoplay, new.Autoplay) {
		d.RestartNeeded = append(d.RestartNeeded, "autoplay")
	}
	return d
}
