package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Location LocationConfig
	GeoIP    GeoIPConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Env            string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// LocationConfig carries the feature settings the location service is
// constructed with: search ceilings, accuracy thresholds and the
// virtual-location feature flag.
type LocationConfig struct {
	MaxRadiusKm          float64
	DefaultRadiusKm      float64
	NearbyLimit          int
	VirtualEnabled       bool
	MapProvider          string
	HighAccuracyMeters   float64
	MediumAccuracyMeters float64
}

type GeoIPConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

type LoggingConfig struct {
	Level string
}

// Load loads configuration from environment variables or .env file
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Try to read from .env file, but don't fail if it doesn't exist
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("ENV", "development")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("LOCATION_MAX_RADIUS_KM", 50.0)
	viper.SetDefault("LOCATION_DEFAULT_RADIUS_KM", 5.0)
	viper.SetDefault("LOCATION_NEARBY_LIMIT", 50)
	viper.SetDefault("LOCATION_VIRTUAL_ENABLED", true)
	viper.SetDefault("LOCATION_MAP_PROVIDER", "openstreetmap")
	viper.SetDefault("LOCATION_HIGH_ACCURACY_METERS", 50.0)
	viper.SetDefault("LOCATION_MEDIUM_ACCURACY_METERS", 500.0)
	viper.SetDefault("GEOIP_ENABLED", true)
	viper.SetDefault("GEOIP_BASE_URL", "http://ip-api.com/json")
	viper.SetDefault("GEOIP_TIMEOUT_SECONDS", 3)
	viper.SetDefault("LOG_LEVEL", "info")

	config := &Config{
		Server: ServerConfig{
			Host:           viper.GetString("SERVER_HOST"),
			Port:           viper.GetInt("SERVER_PORT"),
			Env:            viper.GetString("ENV"),
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSL_MODE"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Location: LocationConfig{
			MaxRadiusKm:          viper.GetFloat64("LOCATION_MAX_RADIUS_KM"),
			DefaultRadiusKm:      viper.GetFloat64("LOCATION_DEFAULT_RADIUS_KM"),
			NearbyLimit:          viper.GetInt("LOCATION_NEARBY_LIMIT"),
			VirtualEnabled:       viper.GetBool("LOCATION_VIRTUAL_ENABLED"),
			MapProvider:          viper.GetString("LOCATION_MAP_PROVIDER"),
			HighAccuracyMeters:   viper.GetFloat64("LOCATION_HIGH_ACCURACY_METERS"),
			MediumAccuracyMeters: viper.GetFloat64("LOCATION_MEDIUM_ACCURACY_METERS"),
		},
		GeoIP: GeoIPConfig{
			Enabled: viper.GetBool("GEOIP_ENABLED"),
			BaseURL: viper.GetString("GEOIP_BASE_URL"),
			Timeout: time.Duration(viper.GetInt("GEOIP_TIMEOUT_SECONDS")) * time.Second,
		},
		Logging: LoggingConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
	}

	// Validate critical configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates critical configuration values
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.Location.MaxRadiusKm <= 0 {
		return fmt.Errorf("location max radius must be positive")
	}
	if c.Location.NearbyLimit <= 0 {
		return fmt.Errorf("location nearby limit must be positive")
	}
	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr returns Redis address
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
