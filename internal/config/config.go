package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Database drivers
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Lock backends
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config 애플리케이션 설정
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Lock      LockConfig      `yaml:"lock"`
	Audit     AuditConfig     `yaml:"audit"`
	AI        AIConfig        `yaml:"ai"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port             int    `yaml:"port"`
	Mode             string `yaml:"mode"` // debug, release, test
	Env              string `yaml:"env"`  // local, dev, staging, prod
	CORSAllowOrigins string `yaml:"cors_allow_origins"`
	MaxUploadMB      int    `yaml:"max_upload_mb"`
}

// DatabaseConfig 데이터베이스 설정
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
	Seed            bool   `yaml:"seed"`
}

// GetDSN returns the configured DSN, building a MySQL one from parts when unset
func (d DatabaseConfig) GetDSN() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case DriverSQLite:
		return "campaign.db"
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBName)
	}
	return ""
}

// RedisConfig Redis 설정
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// LockConfig per-campaign write lock
type LockConfig struct {
	Backend string `yaml:"backend"`
	// TTL of the redis lock key, renewed every TTL/3 while held.
	// A crashed holder blocks the campaign for at most this long.
	TTL  time.Duration `yaml:"ttl"`
	Wait time.Duration `yaml:"wait"`
}

// AuditConfig audit log / rollback 설정
type AuditConfig struct {
	RecordRollbacks bool `yaml:"record_rollbacks"`
	DefaultLimit    int  `yaml:"default_limit"`
	MaxLimit        int  `yaml:"max_limit"`
}

// AIConfig document extraction provider
type AIConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig applies to rollback and import endpoints
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// Load reads the YAML file at path, then applies env overrides and defaults.
// A missing file is not an error: defaults and env alone are a valid setup.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config 파싱 실패 (%s): %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config 읽기 실패 (%s): %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("AI_BASE_URL"); v != "" {
		c.AI.BaseURL = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SERVER_PORT must be a number: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Mode == "" {
		c.Server.Mode = "debug"
	}
	if c.Server.Env == "" {
		c.Server.Env = "local"
	}
	if c.Server.CORSAllowOrigins == "" {
		c.Server.CORSAllowOrigins = "http://localhost:5173"
	}
	if c.Server.MaxUploadMB <= 0 {
		c.Server.MaxUploadMB = 10
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverMemory
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 10
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 50
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 300
	}

	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize <= 0 {
		c.Redis.PoolSize = 10
	}

	if c.Lock.Backend == "" {
		c.Lock.Backend = LockLocal
	}
	if c.Lock.TTL <= 0 {
		c.Lock.TTL = 30 * time.Second
	}
	if c.Lock.Wait <= 0 {
		c.Lock.Wait = 10 * time.Second
	}

	if c.Audit.DefaultLimit <= 0 {
		c.Audit.DefaultLimit = 50
	}
	if c.Audit.MaxLimit <= 0 {
		c.Audit.MaxLimit = 500
	}
	if c.Audit.DefaultLimit > c.Audit.MaxLimit {
		c.Audit.DefaultLimit = c.Audit.MaxLimit
	}

	if c.AI.BaseURL == "" {
		c.AI.BaseURL = "https://api.openai.com/v1"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gpt-4o-mini"
	}
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 60 * time.Second
	}

	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 30
	}
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unknown database driver %q (memory, sqlite, mysql)", c.Database.Driver)
	}
	if c.Database.Driver == DriverMySQL && c.Database.DSN == "" && c.Database.Host == "" {
		return errors.New("database.dsn or database.host is required for mysql")
	}

	switch c.Lock.Backend {
	case LockLocal:
	case LockRedis:
		if !c.Redis.Enabled {
			return errors.New("lock.backend=redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unknown lock backend %q (local, redis)", c.Lock.Backend)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.AI.Enabled && c.AI.APIKey == "" {
		return errors.New("ai.enabled requires AI_API_KEY")
	}
	return nil
}

// IsDevelopment reports whether the server runs in a local/dev environment
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Server.Env) {
	case "local", "dev", "development":
		return true
	}
	return false
}

// CORSOrigins splits the comma separated allow list
func (c *Config) CORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.CORSAllowOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// LogResolved logs the effective configuration without secrets
func (c *Config) LogResolved(log zerolog.Logger) {
	log.Info().
		Str("env", c.Server.Env).
		Int("port", c.Server.Port).
		Str("db_driver", c.Database.Driver).
		Bool("db_seed", c.Database.Seed).
		Bool("redis", c.Redis.Enabled).
		Str("lock_backend", c.Lock.Backend).
		Dur("lock_wait", c.Lock.Wait).
		Bool("record_rollbacks", c.Audit.RecordRollbacks).
		Bool("ai", c.AI.Enabled).
		Str("ai_model", c.AI.Model).
		Int("rate_limit_rpm", c.RateLimit.RequestsPerMinute).
		Msg("config resolved")
}
