package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"leadmailer/models"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	DB        *gorm.DB
	AppConfig Config
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	Redis RedisConfig `json:"redis"`

	// Signing key for unsubscribe tokens
	EncryptionKey string `json:"-"`

	SentryDSN string `json:"-"`

	// Public base URL used to build unsubscribe links
	PublicBaseURL string `json:"public_base_url"`

	// Scheduler tick intervals
	TransmissionTickSeconds int `json:"transmission_tick_seconds"`
	FunnelTickSeconds       int `json:"funnel_tick_seconds"`

	// Which TryLock backend coordinates scheduler processes: postgres, redis
	// or memory (single process)
	LockBackend string `json:"lock_backend"`

	// Funnel delay strategy: relative by default, timezone-aware when set
	FunnelTZMode bool `json:"funnel_tz_mode"`

	// Rotation across multiple sender accounts bypasses the global daily cap
	SenderRotation bool `json:"sender_rotation"`

	// AI rewrite collaborator endpoint for content variations
	RewriteURL    string `json:"rewrite_url"`
	RewriteAPIKey string `json:"-"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
}

func LoadConfig() error {
	AppConfig = Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "5000"),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "leadmailer"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		SentryDSN:     getEnv("SENTRY_DSN", ""),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:5000"),

		TransmissionTickSeconds: getEnvAsInt("TRANSMISSION_TICK_SECONDS", 15),
		FunnelTickSeconds:       getEnvAsInt("FUNNEL_TICK_SECONDS", 300),

		LockBackend:    getEnv("LOCK_BACKEND", "postgres"),
		FunnelTZMode:   getEnvAsBool("FUNNEL_TZ_MODE", false),
		SenderRotation: getEnvAsBool("SENDER_ROTATION", false),

		RewriteURL:    getEnv("REWRITE_URL", ""),
		RewriteAPIKey: getEnv("REWRITE_API_KEY", ""),
	}

	// Validate required configurations
	if AppConfig.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if AppConfig.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	switch AppConfig.LockBackend {
	case "postgres", "redis", "memory":
	default:
		return fmt.Errorf("LOCK_BACKEND must be postgres, redis or memory, got %q", AppConfig.LockBackend)
	}
	if AppConfig.LockBackend == "redis" && !AppConfig.Redis.Enabled {
		return fmt.Errorf("LOCK_BACKEND=redis requires REDIS_ENABLED=true")
	}

	logConfig()
	return nil
}

func ConnectDB() error {
	log.Println("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	log.Println("Using connection string:", maskPassword(dsn))

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
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

	log.Println("Successfully connected to the database")
	log.Println("Starting database migration...")
	if err := MigrateDB(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	if err := models.CreateDefaultSendingConfig(DB); err != nil {
		return fmt.Errorf("failed to seed sending config: %w", err)
	}
	log.Println("Database migration completed")
	return nil
}

// MigrateDB runs schema migration for every persisted entity
func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Lead{},
		&models.SenderAccount{},
		&models.SendingConfig{},
		&models.Transmission{},
		&models.TransmissionRecipient{},
		&models.Funnel{},
		&models.FunnelTemplate{},
		&models.FunnelLeadProgress{},
		&models.FunnelSendHistory{},
		&models.ContentVariation{},
	)
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var value int
	_, err := fmt.Sscanf(valueStr, "%d", &value)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
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
	log.Println("Loaded configuration:")
	log.Printf("Environment: %s", AppConfig.Environment)
	log.Printf("Server Port: %s", AppConfig.ServerPort)
	log.Printf("Database: %s@%s:%s/%s",
		AppConfig.DBUser,
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBName)
	log.Printf("Lock backend: %s, Redis(%t), Sender rotation(%t), TZ funnels(%t)",
		AppConfig.LockBackend,
		AppConfig.Redis.Enabled,
		AppConfig.SenderRotation,
		AppConfig.FunnelTZMode)
}
