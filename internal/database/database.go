package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"courseboard-backend/internal/model"
)

// DB is the process-wide database handle.
var DB *gorm.DB

// Config database connection settings.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	TimeZone string
}

// LoadConfig reads DB settings from the environment.
func LoadConfig() *Config {
	return &Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "courseboard"),
		SSLMode:  getEnv("DB_SSLMODE", "require"),
		TimeZone: getEnv("DB_TIMEZONE", "UTC"),
	}
}

// ConnectDB opens the database connection and migrates the schema.
func ConnectDB() (*gorm.DB, error) {
	cfg := LoadConfig()

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode, cfg.TimeZone,
	)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	DB = db

	if err := db.AutoMigrate(
		&model.User{},
		&model.Course{},
		&model.CourseMembership{},
		&model.WhiteboardSession{},
		&model.WhiteboardStroke{},
		&model.WhiteboardEvent{},
	); err != nil {
		log.Printf("AutoMigrate warning: %v", err)
	}

	// Explicit DDL for the stroke log: AutoMigrate does not emit the ON DELETE
	// clauses, and the cascade is what makes session deletion remove strokes
	// and events atomically.
	sql := `CREATE TABLE IF NOT EXISTS whiteboard_strokes (
		id bigserial PRIMARY KEY,
		session_id uuid NOT NULL REFERENCES whiteboard_sessions (id) ON DELETE CASCADE,
		user_id bigint REFERENCES users (id) ON DELETE SET NULL,
		seq bigint NOT NULL,
		data jsonb NOT NULL,
		created_at timestamptz DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_whiteboard_strokes_session_seq ON whiteboard_strokes (session_id, seq);
	CREATE TABLE IF NOT EXISTS whiteboard_events (
		id bigserial PRIMARY KEY,
		session_id uuid NOT NULL REFERENCES whiteboard_sessions (id) ON DELETE CASCADE,
		sender_id bigint REFERENCES users (id) ON DELETE SET NULL,
		action varchar(32) NOT NULL,
		payload jsonb NOT NULL DEFAULT '{}',
		created_at timestamptz DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_whiteboard_events_session ON whiteboard_events (session_id);`

	if err := db.Exec(sql).Error; err != nil {
		log.Printf("Manual table creation warning: %v", err)
	}

	return db, nil
}

// Ping verifies the database connection.
func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

// getEnv fetches an environment variable with a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
