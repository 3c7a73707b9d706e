package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Neo4j    Neo4jConfig
	Valkey   ValkeyConfig
	AWS      AWSConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type Neo4jConfig struct {
	URI      string
	User     string
	Password string
	Database string
}

type ValkeyConfig struct {
	Addr     string
	Password string
	DB       int
}

type AWSConfig struct {
	Region    string
	Profile   string
	AccountID string
}

type SyncConfig struct {
	// BatchSize caps rows per ingestion statement; CleanupBatchSize caps
	// entities deleted per cleanup pass.
	BatchSize        int
	CleanupBatchSize int
	// Modules selects the intel modules to run, e.g. "aws:s3".
	Modules []string
	// Concurrency bounds how many independent schemas sync in parallel.
	Concurrency int
}

func Load() (*Config, error) {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT_SECS", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT_SECS", 60)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "assetgraph"),
			Password: getEnv("DB_PASSWORD", "assetgraph"),
			Name:     getEnv("DB_NAME", "assetgraph"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 5)),
		},
		Neo4j: Neo4jConfig{
			URI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
			User:     getEnv("NEO4J_USER", "neo4j"),
			Password: getEnv("NEO4J_PASSWORD", "assetgraph"),
			Database: getEnv("NEO4J_DATABASE", ""),
		},
		Valkey: ValkeyConfig{
			Addr:     getEnv("VALKEY_ADDR", "localhost:6379"),
			Password: getEnv("VALKEY_PASSWORD", ""),
			DB:       getEnvInt("VALKEY_DB", 0),
		},
		AWS: AWSConfig{
			Region:    getEnv("AWS_REGION", ""),
			Profile:   getEnv("AWS_PROFILE", ""),
			AccountID: getEnv("AWS_ACCOUNT_ID", ""),
		},
		Sync: SyncConfig{
			BatchSize:        getEnvInt("SYNC_BATCH_SIZE", 500),
			CleanupBatchSize: getEnvInt("SYNC_CLEANUP_BATCH_SIZE", 10000),
			Modules:          getEnvList("SYNC_MODULES", []string{"aws:s3"}),
			Concurrency:      getEnvInt("SYNC_CONCURRENCY", 1),
		},
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
