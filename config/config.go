package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"salescadence/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type Config struct {
	Environment    string `json:"environment"`
	LogLevel       string `json:"log_level"`
	ServerPort     string `json:"server_port"`
	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	JWTSecret     string `json:"-"`
	WebhookSecret string `json:"-"`
	SentryDSN     string `json:"-"`

	Redis RedisConfig `json:"redis"`

	// Activity log requests allowed per user per minute.
	RateLimitActivity int `json:"rate_limit_activity"`

	WorkerInterval  time.Duration  `json:"worker_interval"`
	CadenceTimezone string         `json:"cadence_timezone"`
	Location        *time.Location `json:"-"`
	CORSOrigins     []string       `json:"cors_origins"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	cfg := Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "salescadence"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		SentryDSN:     getEnv("SENTRY_DSN", ""),

		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "false") == "true",
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		RateLimitActivity: getEnvAsInt("RATE_LIMIT_ACTIVITY", 60),
		WorkerInterval:    getEnvAsDuration("CADENCE_WORKER_INTERVAL", 5*time.Minute),
		CadenceTimezone:   getEnv("CADENCE_TIMEZONE", "UTC"),
		CORSOrigins:       splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
	}

	// Validate required configurations
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Environment == "production" {
		if cfg.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required in production")
		}
		if cfg.WebhookSecret == "" {
			return fmt.Errorf("WEBHOOK_SECRET is required in production")
		}
	}
	if cfg.WorkerInterval <= 0 {
		return fmt.Errorf("CADENCE_WORKER_INTERVAL must be positive")
	}
	loc, err := time.LoadLocation(cfg.CadenceTimezone)
	if err != nil {
		return fmt.Errorf("invalid CADENCE_TIMEZONE %q: %w", cfg.CadenceTimezone, err)
	}
	cfg.Location = loc

	AppConfig = cfg
	logConfig()
	return nil
}

// DSN builds the postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost,
		c.DBPort,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBSSLMode,
	)
}

// ConnectDB opens the postgres pool and runs migrations.
func ConnectDB() error {
	log := logrus.WithField("component", "database")
	dsn := AppConfig.DSN()
	log.WithField("dsn", maskPassword(dsn)).Info("Connecting to database")

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), GormConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("Connected to database")

	if err := Migrate(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	log.Info("Database migration completed")
	return nil
}

// GormConfig is shared by the server and the test harness. Unique
// violations surface as gorm.ErrDuplicatedKey. SQL warnings go through
// logrus; a missing row is an expected lookup result and is not logged.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// Models lists every table the service owns, in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.Lead{},
		&models.Cadence{},
		&models.CadenceStep{},
		&models.CadenceAssignment{},
		&models.StepProgress{},
		&models.ActivityLogEntry{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"environment":      AppConfig.Environment,
		"server_port":      AppConfig.ServerPort,
		"database":         fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName),
		"redis":            AppConfig.Redis.Enabled,
		"sentry":           AppConfig.SentryDSN != "",
		"worker_interval":  AppConfig.WorkerInterval.String(),
		"cadence_timezone": AppConfig.CadenceTimezone,
	}).Info("Loaded configuration")
}
