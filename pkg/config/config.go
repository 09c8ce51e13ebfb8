package config

import (
	"errors"
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

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Uploads      UploadsConfig
	Analysis     AnalysisConfig
	Achievements AchievementsConfig
	Rankings     RankingsConfig
	Reports      ReportsConfig
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

// UploadsConfig controls where submitted archives are extracted and how big
// they may be.
type UploadsConfig struct {
	StorageDir       string
	MaxFileSizeBytes int64
	CleanupInterval  time.Duration
	RetainWorkspaces bool
}

// AnalysisConfig tunes the scan pipeline.
type AnalysisConfig struct {
	ToolTimeout    time.Duration
	MissionCap     int
	LineTolerance  int
	MavenCommand   string
	SemgrepCommand string
	ESLintCommand  string
}

type AchievementsConfig struct {
	Enabled bool
}

// RankingsConfig governs leaderboard exposure and cache behaviour.
type RankingsConfig struct {
	Enabled  bool
	CacheTTL time.Duration
	TopLimit int
}

// ReportsConfig configures export generation and signed downloads.
type ReportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
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
		if !errors.As(err, &notFound) && !strings.Contains(err.Error(), "no such file") {
			return nil, err
		}
	}

	cfg := &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
	}

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

	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		MaxFileSizeBytes: v.GetInt64("UPLOADS_MAX_FILE_SIZE"),
		CleanupInterval:  parseDuration(v.GetString("UPLOADS_CLEANUP_INTERVAL"), time.Hour),
		RetainWorkspaces: v.GetBool("UPLOADS_RETAIN_WORKSPACES"),
	}

	cfg.Analysis = AnalysisConfig{
		ToolTimeout:    parseDuration(v.GetString("ANALYSIS_TOOL_TIMEOUT"), 5*time.Minute),
		MissionCap:     v.GetInt("ANALYSIS_MISSION_CAP"),
		LineTolerance:  v.GetInt("ANALYSIS_LINE_TOLERANCE"),
		MavenCommand:   v.GetString("ANALYSIS_MAVEN_BIN"),
		SemgrepCommand: v.GetString("ANALYSIS_SEMGREP_BIN"),
		ESLintCommand:  v.GetString("ANALYSIS_ESLINT_BIN"),
	}

	cfg.Achievements = AchievementsConfig{
		Enabled: v.GetBool("ENABLE_ACHIEVEMENTS"),
	}

	cfg.Rankings = RankingsConfig{
		Enabled:  v.GetBool("ENABLE_RANKINGS"),
		CacheTTL: parseDuration(v.GetString("RANKINGS_CACHE_TTL"), 5*time.Minute),
		TopLimit: v.GetInt("RANKINGS_TOP_LIMIT"),
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

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "codequest")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret_change_me")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPLOADS_STORAGE_DIR", "./uploads")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 50*1024*1024)
	v.SetDefault("UPLOADS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("UPLOADS_RETAIN_WORKSPACES", false)

	v.SetDefault("ANALYSIS_TOOL_TIMEOUT", "5m")
	v.SetDefault("ANALYSIS_MISSION_CAP", 200)
	v.SetDefault("ANALYSIS_LINE_TOLERANCE", 2)
	v.SetDefault("ANALYSIS_MAVEN_BIN", "mvn")
	v.SetDefault("ANALYSIS_SEMGREP_BIN", "semgrep")
	v.SetDefault("ANALYSIS_ESLINT_BIN", "eslint")

	v.SetDefault("ENABLE_ACHIEVEMENTS", true)

	v.SetDefault("ENABLE_RANKINGS", true)
	v.SetDefault("RANKINGS_CACHE_TTL", "5m")
	v.SetDefault("RANKINGS_TOP_LIMIT", 20)

	v.SetDefault("ENABLE_REPORTS", false)
	v.SetDefault("REPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("REPORTS_SIGNED_URL_SECRET", "dev_reports_secret")
	v.SetDefault("REPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("REPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("REPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("REPORTS_WORKER_RETRIES", 3)
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
