// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/aristath/frontier/internal/domain"
)

// Output formats understood by the simulate command and the sinks.
const (
	FormatCSV     = "csv"
	FormatMsgpack = "msgpack"
)

// Config holds application configuration
type Config struct {
	ReturnsFile    string  // Returns CSV used by serve (stream + scheduler) and as simulate default
	Trials         int     // Number of random portfolios per run
	RiskFreeRate   float64 // Annual risk-free rate, e.g. 0.02
	Annualize      bool    // Report on an annual basis
	PeriodsPerYear float64 // Trading periods per year, used only when Annualize is set
	Seed           uint64

	OutputPath string // Portfolio rows file written by simulate
	Format     string // csv or msgpack
	ChartPath  string // Optional frontier PNG

	DataDir  string // Base directory for the run store (always absolute)
	Port     int
	Schedule string // Cron expression for periodic re-runs; empty disables
	LogLevel string
	DevMode  bool

	S3 *S3Config
}

// S3Config holds optional object storage settings for uploading outputs
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // Custom endpoint for S3-compatible stores (MinIO, R2)
	AccessKeyID     string // Optional static credentials; default chain when empty
	SecretAccessKey string
}

// Enabled reports whether uploads are configured
func (c *S3Config) Enabled() bool {
	return c != nil && c.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FRONTIER_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	cfg := &Config{
		ReturnsFile:    getEnv("FRONTIER_RETURNS_FILE", "returns.csv"),
		Trials:         getEnvAsInt("FRONTIER_TRIALS", 10000),
		RiskFreeRate:   getEnvAsFloat("FRONTIER_RISK_FREE_RATE", 0.02),
		Annualize:      getEnvAsBool("FRONTIER_ANNUALIZE", true),
		PeriodsPerYear: getEnvAsFloat("FRONTIER_PERIODS_PER_YEAR", 252),
		Seed:           uint64(getEnvAsInt("FRONTIER_SEED", 42)),
		OutputPath:     getEnv("FRONTIER_OUTPUT", "portfolios.csv"),
		Format:         getEnv("FRONTIER_FORMAT", FormatCSV),
		ChartPath:      getEnv("FRONTIER_CHART", ""),
		DataDir:        absDataDir,
		Port:           getEnvAsInt("FRONTIER_PORT", 8001),
		Schedule:       getEnv("FRONTIER_SCHEDULE", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		S3:             loadS3Config(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration describes a runnable simulation
func (c *Config) Validate() error {
	if c.Trials < 0 {
		return fmt.Errorf("%w: trials must be non-negative, got %d", domain.ErrInvalidParameter, c.Trials)
	}
	if c.Annualize && c.PeriodsPerYear <= 0 {
		return fmt.Errorf("%w: periods per year must be positive, got %g", domain.ErrInvalidParameter, c.PeriodsPerYear)
	}
	if c.Format != FormatCSV && c.Format != FormatMsgpack {
		return fmt.Errorf("%w: unknown output format %q", domain.ErrInvalidParameter, c.Format)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port out of range: %d", domain.ErrInvalidParameter, c.Port)
	}
	return nil
}

// StorePath returns the SQLite file holding stored runs
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "runs.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func loadS3Config() *S3Config {
	return &S3Config{
		Bucket:          getEnv("FRONTIER_S3_BUCKET", ""),
		Prefix:          getEnv("FRONTIER_S3_PREFIX", "frontier/"),
		Region:          getEnv("FRONTIER_S3_REGION", "us-east-1"),
		Endpoint:        getEnv("FRONTIER_S3_ENDPOINT", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}
}
