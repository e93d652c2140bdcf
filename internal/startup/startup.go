package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"

	"smartlists/internal/logging"
	"smartlists/internal/smartlist"
	"smartlists/internal/workers"
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
	DatabaseDir               string        `envconfig:"DATABASE_DIR" default:"/database"`
	ListsDir                  string        `envconfig:"LISTS_DIR" default:"/config/lists"`
	ExportDir                 string        `envconfig:"EXPORT_DIR"`
	Port                      string        `envconfig:"PORT" default:"8080"`
	MetricsPort               string        `envconfig:"METRICS_PORT" default:"9090"`
	MetricsEnabled            bool          `envconfig:"METRICS_ENABLED" default:"true"`
	RefreshWorkers            int           `envconfig:"REFRESH_WORKERS" default:"0"`
	MaxConcurrentLists        int           `envconfig:"MAX_CONCURRENT_LISTS" default:"4"`
	DebounceWindow            time.Duration `envconfig:"DEBOUNCE_WINDOW" default:"5s"`
	ChangePollInterval        time.Duration `envconfig:"CHANGE_POLL_INTERVAL" default:"10s"`
	DefinitionsReloadInterval time.Duration `envconfig:"DEFINITIONS_RELOAD_INTERVAL" default:"1m"`
	ScheduleTimezone          string        `envconfig:"SCHEDULE_TIMEZONE" default:"Local"`
	CollectionNamePrefix      string        `envconfig:"COLLECTION_NAME_PREFIX"`
	CollectionNameSuffix      string        `envconfig:"COLLECTION_NAME_SUFFIX"`
	APITokenHash              string        `envconfig:"API_TOKEN_HASH"`
	LogHealthChecks           bool          `envconfig:"LOG_HEALTH_CHECKS" default:"true"`
	MemoryLimit               int64         `envconfig:"MEMORY_LIMIT"`
	MemoryRatio               float64       `envconfig:"MEMORY_RATIO" default:"0.85"`

	// Derived
	DatabasePath  string         `ignored:"true"`
	Location      *time.Location `ignored:"true"`
	ExportEnabled bool           `ignored:"true"`
}

// Affixes returns the collection name decoration.
func (c *Config) Affixes() smartlist.NameAffixes {
	return smartlist.NameAffixes{Prefix: c.CollectionNamePrefix, Suffix: c.CollectionNameSuffix}
}

// Process reads the environment into a Config and validates the values
// without touching the filesystem.
func Process() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}

	if cfg.MaxConcurrentLists < 1 {
		return nil, fmt.Errorf("MAX_CONCURRENT_LISTS must be at least 1, got %d", cfg.MaxConcurrentLists)
	}
	if cfg.RefreshWorkers < 0 {
		return nil, fmt.Errorf("REFRESH_WORKERS must not be negative, got %d", cfg.RefreshWorkers)
	}
	if cfg.MemoryLimit < 0 {
		return nil, fmt.Errorf("MEMORY_LIMIT must not be negative, got %d", cfg.MemoryLimit)
	}
	if cfg.MemoryRatio <= 0 || cfg.MemoryRatio > 1 {
		return nil, fmt.Errorf("MEMORY_RATIO must be in (0, 1], got %v", cfg.MemoryRatio)
	}
	for name, d := range map[string]time.Duration{
		"DEBOUNCE_WINDOW":             cfg.DebounceWindow,
		"CHANGE_POLL_INTERVAL":        cfg.ChangePollInterval,
		"DEFINITIONS_RELOAD_INTERVAL": cfg.DefinitionsReloadInterval,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %v", name, d)
		}
	}

	loc, err := time.LoadLocation(cfg.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_TIMEZONE %q: %w", cfg.ScheduleTimezone, err)
	}
	cfg.Location = loc

	return cfg, nil
}

// LoadConfig loads configuration from the environment, logs it and prepares
// the directories the service needs.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	config, err := Process()
	if err != nil {
		return nil, err
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  DATABASE_DIR:                %s", config.DatabaseDir)
	logging.Info("  LISTS_DIR:                   %s", config.ListsDir)
	logging.Info("  EXPORT_DIR:                  %s", orNone(config.ExportDir))
	logging.Info("  PORT:                        %s", config.Port)
	logging.Info("  METRICS_PORT:                %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:             %v", config.MetricsEnabled)
	logging.Info("  REFRESH_WORKERS:             %d (resolved %d)", config.RefreshWorkers, workers.Resolve(config.RefreshWorkers))
	logging.Info("  MAX_CONCURRENT_LISTS:        %d", config.MaxConcurrentLists)
	logging.Info("  DEBOUNCE_WINDOW:             %v", config.DebounceWindow)
	logging.Info("  CHANGE_POLL_INTERVAL:        %v", config.ChangePollInterval)
	logging.Info("  DEFINITIONS_RELOAD_INTERVAL: %v", config.DefinitionsReloadInterval)
	logging.Info("  SCHEDULE_TIMEZONE:           %s", config.Location)
	logging.Info("  COLLECTION_NAME_PREFIX:      %q", config.CollectionNamePrefix)
	logging.Info("  COLLECTION_NAME_SUFFIX:      %q", config.CollectionNameSuffix)
	logging.Info("  API_TOKEN_HASH:              %s", redacted(config.APITokenHash))
	logging.Info("  LOG_HEALTH_CHECKS:           %v", config.LogHealthChecks)
	logging.Info("  MEMORY_LIMIT:                %d", config.MemoryLimit)
	logging.Info("  MEMORY_RATIO:                %.2f", config.MemoryRatio)
	logging.Info("  LOG_LEVEL:                   %s", logging.GetLevel())

	if err := PrepareDirectories(config); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:         ENABLED (required)")
	logging.Info("    Playlist export:  %s", enabledString(config.ExportEnabled))
	logging.Info("    Metrics:          %s", enabledString(config.MetricsEnabled))
	logging.Info("    API auth:         %s", enabledString(config.APITokenHash != ""))

	return config, nil
}

// PrepareDirectories resolves the configured paths and checks access. The
// database directory must be writable and the lists directory readable; an
// unwritable export directory only disables export.
func PrepareDirectories(config *Config) error {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	if config.DatabaseDir, err = filepath.Abs(config.DatabaseDir); err != nil {
		return fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	if config.ListsDir, err = filepath.Abs(config.ListsDir); err != nil {
		return fmt.Errorf("failed to resolve lists directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", config.DatabaseDir)
	logging.Info("  Lists directory (absolute):    %s", config.ListsDir)

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")
	config.DatabasePath = filepath.Join(config.DatabaseDir, "smartlists.db")

	if err := ensureDirectory(config.ListsDir, "lists"); err != nil {
		return fmt.Errorf("lists directory error: %w", err)
	}
	if _, err := os.ReadDir(config.ListsDir); err != nil {
		return fmt.Errorf("lists directory is not readable: %w", err)
	}
	logging.Info("  [OK] Lists directory is readable")

	if config.ExportDir != "" {
		if config.ExportDir, err = filepath.Abs(config.ExportDir); err != nil {
			return fmt.Errorf("failed to resolve export directory path: %w", err)
		}
		config.ExportEnabled = setupOptionalDir(config.ExportDir, "playlist export")
	}
	return nil
}

func setupOptionalDir(path, name string) bool {
	logging.Debug("  Setting up %s directory: %s", name, path)

	if err := os.MkdirAll(path, 0o755); err != nil {
		logging.Warn("    Failed to create %s directory: %v", name, err)
		logging.Warn("    %s will be disabled", name)
		return false
	}
	if err := testWriteAccess(path); err != nil {
		logging.Warn("    %s directory is not writable: %v", name, err)
		logging.Warn("    %s will be disabled", name)
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

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func redacted(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "(set)"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogDefinitionsInit logs the result of the first definitions load.
func LogDefinitionsInit(dir string, enabled, disabled, problems int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SMART LIST DEFINITIONS")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Directory:  %s", dir)
	logging.Info("  Enabled:    %d", enabled)
	logging.Info("  Disabled:   %d", disabled)
	if problems > 0 {
		logging.Warn("  Skipped:    %d (see /api/definitions/problems)", problems)
	}
}

// LogOrchestratorInit logs refresh orchestrator sizing.
func LogOrchestratorInit(workerCount, maxLists int, debounce time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("REFRESH ORCHESTRATOR")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Evaluation workers per list: %d", workerCount)
	logging.Info("  Concurrent list refreshes:   %d", maxLists)
	logging.Info("  Debounce window:             %v", debounce)
}

// LogWatcherStarted logs the change watcher start.
func LogWatcherStarted(poll, reload time.Duration) {
	logging.Info("  [OK] Change watcher started (poll %v, definitions reload %v)", poll, reload)
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

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

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
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
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

func printBanner() {
	banner := `
------------------------------------------------------------
   ____                       __  __    _      __
  / __/_ _  ___ _____ ______ / / / /   (_)__  / /____
 _\ \/  ' \/ _ '/ __/ __/ _ '/ /_/ /__/ (_-< / __(_-<
/___/_/_/_/\_,_/_/  \__/\_,_/\____/____/_/___/\__/___/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
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
