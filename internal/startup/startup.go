package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-curator/internal/indexer"
	"media-curator/internal/logging"
	"media-curator/internal/workers"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	Port            string
	MediaRoot       string
	DatabaseDir     string
	CacheDir        string
	MediaTypesFile  string
	Exclude         []string
	MetricsEnabled  bool
	LogHealthChecks bool
	ShutdownTimeout time.Duration

	// Processor tunes batch size, inter-batch delay, pause polling and
	// in-batch concurrency.
	Processor indexer.ProcessorConfig

	// Derived paths
	DatabasePath string

	// CacheWritable reports whether CacheDir passed the write check. HTTP
	// start requests that omit a cache directory use CacheDir.
	CacheWritable bool
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	section("CONFIGURATION")

	config := loadFromEnv()

	for _, setting := range config.settings() {
		logging.Info("  %-20s %s", setting[0]+":", setting[1])
	}

	section("DIRECTORY SETUP")

	var err error
	config.DatabaseDir, err = filepath.Abs(config.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", config.DatabaseDir)

	config.CacheDir, err = filepath.Abs(config.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cache directory path: %w", err)
	}
	logging.Info("  Cache directory (absolute): %s", config.CacheDir)

	config.DatabasePath = filepath.Join(config.DatabaseDir, "catalog.db")

	// Ensure base database directory exists (required for database)
	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	// Test write access for database (required)
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	config.CacheWritable = setupOptionalDir(config.CacheDir, "cache")

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Catalog:     ENABLED (required)")
	logging.Info("    Cache dir:   %s", enabledString(config.CacheWritable))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// settings lists the effective value of every environment setting in the
// order they are logged.
func (c *Config) settings() [][2]string {
	return [][2]string{
		{"LISTEN_PORT", c.Port},
		{"MEDIA_ROOT", c.MediaRoot},
		{"DATABASE_DIR", c.DatabaseDir},
		{"CACHE_DIR", c.CacheDir},
		{"MEDIA_TYPES_FILE", valueOrDash(c.MediaTypesFile)},
		{"INDEX_EXCLUDE", valueOrDash(strings.Join(c.Exclude, ","))},
		{"INDEX_BATCH_SIZE", strconv.Itoa(c.Processor.BatchSize)},
		{"INDEX_BATCH_DELAY", c.Processor.BatchDelay.String()},
		{"INDEX_PAUSE_POLL", c.Processor.PausePoll.String()},
		{workers.EnvOverride, strconv.Itoa(c.Processor.Workers)},
		{"METRICS_ENABLED", strconv.FormatBool(c.MetricsEnabled)},
		{"LOG_HEALTH_CHECKS", strconv.FormatBool(c.LogHealthChecks)},
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout.String()},
		{"MEMORY_LIMIT", valueOrDash(os.Getenv("MEMORY_LIMIT"))},
		{"LOG_LEVEL", logging.GetLevel().String()},
	}
}

// loadFromEnv reads every setting from the environment. Invalid values are
// logged and replaced by their defaults.
func loadFromEnv() *Config {
	processor := indexer.DefaultProcessorConfig()
	processor.BatchSize = getEnvInt("INDEX_BATCH_SIZE", processor.BatchSize)
	processor.BatchDelay = getEnvDuration("INDEX_BATCH_DELAY", processor.BatchDelay)
	processor.PausePoll = getEnvDuration("INDEX_PAUSE_POLL", processor.PausePoll)

	return &Config{
		Port:            getEnv("LISTEN_PORT", "8080"),
		MediaRoot:       getEnv("MEDIA_ROOT", "/media"),
		DatabaseDir:     getEnv("DATABASE_DIR", "/database"),
		CacheDir:        getEnv("CACHE_DIR", "/cache"),
		MediaTypesFile:  os.Getenv("MEDIA_TYPES_FILE"),
		Exclude:         getEnvList("INDEX_EXCLUDE"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		Processor:       processor,
	}
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		return false
	}

	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		return false
	}

	logging.Debug("    [OK] %s directory ready", name)
	return true
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	section("DATABASE INITIALIZATION")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogMediaTypes logs the loaded extension tables.
func LogMediaTypes(source string, videos, photos int) {
	logging.Info("  Media types: %d video, %d photo extensions (%s)", videos, photos, source)
}

// LogIndexerInit logs controller initialization
func LogIndexerInit(cfg indexer.ProcessorConfig, exclude []string) {
	section("INDEXER INITIALIZATION")
	logging.Info("  Batch size:      %d", cfg.BatchSize)
	logging.Info("  Batch delay:     %v", cfg.BatchDelay)
	logging.Info("  Pause poll:      %v", cfg.PausePoll)
	logging.Info("  Workers:         %d", cfg.Workers)
	if len(exclude) > 0 {
		logging.Info("  Exclude:         %s", strings.Join(exclude, ", "))
	}
	logging.Info("  Starting controller...")
}

// LogIndexerStarted logs successful controller start
func LogIndexerStarted() {
	logging.Info("  [OK] Indexing controller started, waiting for commands")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	section("SERVER STARTED")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	logging.Info("    Events:        http://0.0.0.0:%s/api/index/events", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.Port)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("%s", rule)
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	section("SHUTDOWN INITIATED (received %s)", signal)
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...any) {
	logging.Fatal(format, args...)
}

// section logs a blank line and a ruled section title.
func section(format string, args ...any) {
	logging.Info("")
	logging.Info("%s", rule)
	logging.Info(format, args...)
	logging.Info("%s", rule)
}

const rule = "------------------------------------------------------------"

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___          ______                __
   /  |/  /__  ____/ (_)___ _   / ____/_  ___________ / /_____  _____
  / /|_/ / _ \/ __  / / __ '/  / /   / / / / ___/ __ '/ __/ __ \/ ___/
 / /  / /  __/ /_/ / / /_/ /  / /___/ /_/ / /  / /_/ / /_/ /_/ / /
/_/  /_/\___/\__,_/_/\__,_/   \____/\__,_/_/   \__,_/\__/\____/_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	section("SYSTEM INFORMATION")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}
		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		logging.Warn("Invalid positive integer for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
