package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Dashboard   DashboardConfig
	Reports     ReportsConfig
	Uploads     UploadsConfig
	Navigation  NavigationConfig
	Rollup      RollupConfig
	Performance PerformanceConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs dashboard exposure and cache tuning.
type DashboardConfig struct {
	Enabled  bool
	CacheTTL time.Duration
}

// ReportsConfig configures asynchronous report generation.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

// UploadsConfig controls document upload storage and limits.
type UploadsConfig struct {
	StorageDir       string
	PublicBaseURL    string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// NavigationConfig bounds the sparse module/topic walker.
type NavigationConfig struct {
	MaxModuleProbes int
	MaxTopicProbes  int
	ProbeDelay      time.Duration
	StepOverrides   []StepOverride
}

// StepOverride makes a role advance more than one module when it navigates
// out of the given module. Supplied as a JSON array, e.g.
// [{"role":"BATTALION","module_id":4,"step":2}].
type StepOverride struct {
	Role     string `json:"role"`
	ModuleID int64  `json:"module_id"`
	Step     int    `json:"step"`
}

// RollupConfig carries the company roll-up mapping tables. The maps are
// configuration data, not code: they translate each summary-topic field to its
// source field in the company-scoped deployment topic.
type RollupConfig struct {
	SummaryTopicID int64
	SourceTopicID  int64
	QuestionMap    map[int64]int64
	SubTopicMap    map[int64]int64
}

// PerformanceConfig tunes the performance form API.
type PerformanceConfig struct {
	MetadataCacheTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		Enabled:  v.GetBool("ENABLE_DASHBOARD"),
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Reports = ReportsConfig{
		Enabled:           v.GetBool("ENABLE_REPORTS"),
		StorageDir:        v.GetString("REPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("REPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("REPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("REPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("REPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REPORTS_WORKER_RETRIES"),
	}

	maxUploadSize := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 10 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		PublicBaseURL:    strings.TrimRight(v.GetString("UPLOADS_PUBLIC_BASE_URL"), "/"),
		MaxFileSizeBytes: maxUploadSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
	}

	overrides, err := parseStepOverrides(v.GetString("NAVIGATION_STEP_OVERRIDES"))
	if err != nil {
		return nil, err
	}
	cfg.Navigation = NavigationConfig{
		MaxModuleProbes: v.GetInt("NAVIGATION_MAX_MODULE_PROBES"),
		MaxTopicProbes:  v.GetInt("NAVIGATION_MAX_TOPIC_PROBES"),
		ProbeDelay:      parseDuration(v.GetString("NAVIGATION_PROBE_DELAY"), 150*time.Millisecond),
		StepOverrides:   overrides,
	}

	rollup, err := parseRollup(
		v.GetInt64("ROLLUP_SUMMARY_TOPIC_ID"),
		v.GetInt64("ROLLUP_SOURCE_TOPIC_ID"),
		v.GetString("ROLLUP_QUESTION_MAP"),
		v.GetString("ROLLUP_SUBTOPIC_MAP"),
	)
	if err != nil {
		return nil, err
	}
	cfg.Rollup = rollup

	cfg.Performance = PerformanceConfig{
		MetadataCacheTTL: parseDuration(v.GetString("PERFORMANCE_METADATA_CACHE_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "pps_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_DASHBOARD", true)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)

	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_PUBLIC_BASE_URL", "/api/v1/uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "application/pdf,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document")

	v.SetDefault("NAVIGATION_MAX_MODULE_PROBES", 10)
	v.SetDefault("NAVIGATION_MAX_TOPIC_PROBES", 15)
	v.SetDefault("NAVIGATION_PROBE_DELAY", "150ms")
	v.SetDefault("NAVIGATION_STEP_OVERRIDES", "[]")

	v.SetDefault("ROLLUP_SUMMARY_TOPIC_ID", 0)
	v.SetDefault("ROLLUP_SOURCE_TOPIC_ID", 0)
	v.SetDefault("ROLLUP_QUESTION_MAP", "{}")
	v.SetDefault("ROLLUP_SUBTOPIC_MAP", "{}")

	v.SetDefault("PERFORMANCE_METADATA_CACHE_TTL", "10m")
}

func parseRollup(summaryTopicID, sourceTopicID int64, questionMapJSON, subTopicMapJSON string) (RollupConfig, error) {
	cfg := RollupConfig{
		SummaryTopicID: summaryTopicID,
		SourceTopicID:  sourceTopicID,
	}
	var err error
	if cfg.QuestionMap, err = parseIDMap(questionMapJSON); err != nil {
		return cfg, fmt.Errorf("parse ROLLUP_QUESTION_MAP: %w", err)
	}
	if cfg.SubTopicMap, err = parseIDMap(subTopicMapJSON); err != nil {
		return cfg, fmt.Errorf("parse ROLLUP_SUBTOPIC_MAP: %w", err)
	}
	return cfg, nil
}

func parseStepOverrides(raw string) ([]StepOverride, error) {
	if raw == "" {
		return nil, nil
	}
	var overrides []StepOverride
	if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
		return nil, fmt.Errorf("parse NAVIGATION_STEP_OVERRIDES: %w", err)
	}
	for _, o := range overrides {
		if o.Role == "" || o.ModuleID == 0 || o.Step < 1 {
			return nil, fmt.Errorf("parse NAVIGATION_STEP_OVERRIDES: incomplete override %+v", o)
		}
	}
	return overrides, nil
}

// parseIDMap reads a JSON object of the form {"664":1078} into an int64 map.
func parseIDMap(raw string) (map[int64]int64, error) {
	if raw == "" {
		return map[int64]int64{}, nil
	}
	var asStrings map[string]int64
	if err := json.Unmarshal([]byte(raw), &asStrings); err != nil {
		return nil, err
	}
	result := make(map[int64]int64, len(asStrings))
	for key, target := range asStrings {
		var id int64
		if _, err := fmt.Sscanf(key, "%d", &id); err != nil {
			return nil, fmt.Errorf("invalid id %q", key)
		}
		result[id] = target
	}
	return result, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
