// Package config provides application configuration management with support
// for command-line flags, environment variables, .env files and an optional
// YAML settings file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Version is set at build time with -ldflags "-X ...config.Version=...".
var Version = "dev"

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Paths  PathsConfig
	Server ServerConfig
	Watch  WatchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	Version     string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	// Home is the per-user BlueKit directory (default: ~/.bluekit).
	Home string
	// SettingsFile is the YAML file that was loaded, if any.
	SettingsFile string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WatchConfig holds filesystem watch configuration.
type WatchConfig struct {
	Backend      string
	Overflow     string
	QueueSize    int
	BlockTimeout time.Duration
	Debounce     time.Duration
	// IgnorePatterns is nil when unset so the watch defaults apply.
	IgnorePatterns []string
	// RegistryOnStart watches the project registry at startup.
	RegistryOnStart bool
}

// fileSettings mirrors the YAML settings file. Every field is optional.
type fileSettings struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	Home     string `yaml:"home"`
	Server   struct {
		Host         string   `yaml:"host"`
		Port         *int     `yaml:"port"`
		CORSOrigins  []string `yaml:"cors_origins"`
		ReadTimeout  string   `yaml:"read_timeout"`
		WriteTimeout string   `yaml:"write_timeout"`
		IdleTimeout  string   `yaml:"idle_timeout"`
	} `yaml:"server"`
	Watch struct {
		Backend         string   `yaml:"backend"`
		QueueSize       *int     `yaml:"queue_size"`
		Overflow        string   `yaml:"overflow"`
		BlockTimeout    string   `yaml:"block_timeout"`
		Debounce        string   `yaml:"debounce"`
		Ignore          []string `yaml:"ignore"`
		RegistryOnStart *bool    `yaml:"registry_on_start"`
	} `yaml:"watch"`
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. YAML settings file.
// 5. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("bluekitd", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	home := fs.String("home", "", "BlueKit home directory (default: ~/.bluekit)")
	settingsFile := fs.String("config", "", "Path to YAML settings file (default: <home>/settings.yaml)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	host := fs.String("host", "", "Server host (default: 127.0.0.1)")
	port := fs.String("port", "", "Server port (default: 7420)")
	corsOrigins := fs.String("cors-origins", "", "Comma-separated allowed CORS origins")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")

	watchBackend := fs.String("watch-backend", "", "Watch backend: fsnotify, inotify or notify (default: fsnotify)")
	watchQueueSize := fs.String("watch-queue-size", "", "Per-watch delivery queue size (default: 256)")
	watchOverflow := fs.String("watch-overflow", "", "Queue overflow policy: drop-oldest or block (default: drop-oldest)")
	watchBlockTimeout := fs.String("watch-block-timeout", "", "Wait for queue room under the block policy (default: 50ms)")
	watchDebounce := fs.String("watch-debounce", "", "Coalesce notifications within this window (default: 0, off)")
	watchIgnore := fs.String("watch-ignore", "", "Comma-separated ignore globs for directory watches")
	watchRegistry := fs.String("watch-registry-on-start", "", "Watch the project registry at startup (default: true)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	homePath, err := expandPath(getConfigValue(*home, "BLUEKIT_HOME", ""), defaultHome())
	if err != nil {
		return nil, fmt.Errorf("invalid home path: %w", err)
	}

	settings, settingsPath, err := loadSettings(getConfigValue(*settingsFile, "BLUEKIT_CONFIG", ""), homePath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", or(settings.Env, "development")),
			Version:     Version,
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", or(settings.LogLevel, "info")),
		},
		Paths: PathsConfig{
			Home:         homePath,
			SettingsFile: settingsPath,
		},
		Server: ServerConfig{
			Host: getConfigValue(*host, "SERVER_HOST", or(settings.Server.Host, "127.0.0.1")),
			Port: getConfigValue(*port, "SERVER_PORT", or(intString(settings.Server.Port), "7420")),
			CORSOrigins: getListConfigValue(*corsOrigins, "CORS_ORIGINS",
				orList(settings.Server.CORSOrigins, []string{"tauri://localhost", "http://localhost:1420"})),
		},
		Watch: WatchConfig{
			Backend:         getConfigValue(*watchBackend, "WATCH_BACKEND", or(settings.Watch.Backend, "fsnotify")),
			Overflow:        getConfigValue(*watchOverflow, "WATCH_OVERFLOW", or(settings.Watch.Overflow, "drop-oldest")),
			QueueSize:       getIntConfigValue(*watchQueueSize, "WATCH_QUEUE_SIZE", intOr(settings.Watch.QueueSize, 256)),
			IgnorePatterns:  getListConfigValue(*watchIgnore, "WATCH_IGNORE", settings.Watch.Ignore),
			RegistryOnStart: getBoolConfigValue(*watchRegistry, "WATCH_REGISTRY_ON_START", boolOr(settings.Watch.RegistryOnStart, true)),
		},
	}

	durations := []struct {
		dst   *time.Duration
		flag  string
		env   string
		file  string
		def   string
		label string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", settings.Server.ReadTimeout, "15s", "read timeout"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", settings.Server.WriteTimeout, "15s", "write timeout"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", settings.Server.IdleTimeout, "60s", "idle timeout"},
		{&cfg.Watch.BlockTimeout, *watchBlockTimeout, "WATCH_BLOCK_TIMEOUT", settings.Watch.BlockTimeout, "50ms", "watch block timeout"},
		{&cfg.Watch.Debounce, *watchDebounce, "WATCH_DEBOUNCE", settings.Watch.Debounce, "0s", "watch debounce"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.env, or(d.file, d.def))
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.label, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Paths.Home == "" {
		return errors.New("home path cannot be empty")
	}

	if p, err := strconv.Atoi(c.Server.Port); err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid server port: %q", c.Server.Port)
	}

	switch c.Watch.Backend {
	case "fsnotify", "inotify", "notify":
	default:
		return fmt.Errorf("invalid watch backend: %q (must be fsnotify, inotify, or notify)", c.Watch.Backend)
	}

	switch strings.ToLower(c.Watch.Overflow) {
	case "drop-oldest", "drop_oldest", "block":
	default:
		return fmt.Errorf("invalid watch overflow policy: %q (must be drop-oldest or block)", c.Watch.Overflow)
	}

	if c.Watch.QueueSize < 1 {
		return fmt.Errorf("watch queue size must be positive, got %d", c.Watch.QueueSize)
	}
	if c.Watch.Debounce < 0 {
		return errors.New("watch debounce cannot be negative")
	}

	return nil
}

func defaultHome() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".bluekit")
}

// loadSettings reads the YAML settings file. An explicit path must exist;
// the default <home>/settings.yaml is optional.
func loadSettings(explicit, home string) (*fileSettings, string, error) {
	settings := &fileSettings{}

	path := explicit
	if path == "" {
		path = filepath.Join(home, "settings.yaml")
	}
	path, err := expandPath(path, "")
	if err != nil {
		return nil, "", fmt.Errorf("invalid settings path: %w", err)
	}

	data, err := os.ReadFile(path) //#nosec G304 -- settings path is user configuration
	if err != nil {
		if explicit == "" && os.IsNotExist(err) {
			return settings, "", nil
		}
		return nil, "", fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, "", fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	return settings, path, nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, uses defaultPath.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or fallback.
func getConfigValue(flagValue, envKey, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return fallback
}

// getBoolConfigValue returns a bool from flag, env var, or fallback.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, fallback bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return fallback
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or fallback.
func getIntConfigValue(flagValue, envKey string, fallback int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return fallback
	}
	result, err := strconv.Atoi(strings.TrimSpace(strValue))
	if err != nil {
		return fallback
	}
	return result
}

// getListConfigValue splits a comma-separated flag or env value. The
// fallback is returned untouched, including nil.
func getListConfigValue(flagValue, envKey string, fallback []string) []string {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func or(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

func orList(value, fallback []string) []string {
	if len(value) > 0 {
		return value
	}
	return fallback
}

func intString(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Env vars already set win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
