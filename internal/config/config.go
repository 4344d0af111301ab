package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Mongo     MongoConfig
	MQTT      MQTTConfig
	Influx    InfluxConfig
	Alerts    AlertConfig
	Sync      SyncConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	Environment string
	LogLevel    string
}

// StoreConfig selects the persistence backend for devices and readings.
type StoreConfig struct {
	Driver string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type MongoConfig struct {
	URI          string
	Database     string
	Transactions bool
	Timeout      time.Duration
}

type MQTTConfig struct {
	Enabled        bool
	Broker         string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	KeepAlive      int
	ConnectTimeout int
}

type InfluxConfig struct {
	Enabled       bool
	URL           string
	Token         string
	Org           string
	Bucket        string
	BatchSize     int
	FlushInterval int
}

type AlertConfig struct {
	FluorideMax float64
	HumidityMax float64
	HumidityMin float64
}

// SyncConfig drives the headless monitor client.
type SyncConfig struct {
	APIBaseURL     string
	Interval       time.Duration
	Window         int
	RequestTimeout time.Duration
}

type RateLimitConfig struct {
	GeneralRPS   float64 // Requests per second for general endpoints
	GeneralBurst int     // Burst size for general endpoints
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

func setDefaults() {
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", "3000")
	viper.SetDefault("ENVIRONMENT", "development")

	viper.SetDefault("STORE_DRIVER", StoreMemory)

	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("MONGODB_DATABASE", "fluoride_monitor")
	viper.SetDefault("MONGODB_TRANSACTIONS", false)
	viper.SetDefault("MONGODB_TIMEOUT", 5*time.Second)

	viper.SetDefault("MQTT_ENABLED", false)
	viper.SetDefault("MQTT_CLIENT_ID", "fluoride-monitor")
	viper.SetDefault("MQTT_TOPIC_PREFIX", "devices")
	viper.SetDefault("MQTT_QOS", 1)
	viper.SetDefault("MQTT_KEEP_ALIVE", 30)
	viper.SetDefault("MQTT_CONNECT_TIMEOUT", 10)

	viper.SetDefault("INFLUX_ENABLED", false)
	viper.SetDefault("INFLUX_BATCH_SIZE", 100)
	viper.SetDefault("INFLUX_FLUSH_INTERVAL", 10)

	viper.SetDefault("ALERT_FLUORIDE_MAX", 1.5)
	viper.SetDefault("ALERT_HUMIDITY_MAX", 70.0)
	viper.SetDefault("ALERT_HUMIDITY_MIN", 30.0)

	viper.SetDefault("SYNC_API_BASE_URL", "http://localhost:3000/api")
	viper.SetDefault("SYNC_INTERVAL", 10*time.Second)
	viper.SetDefault("SYNC_WINDOW", 50)
	viper.SetDefault("SYNC_REQUEST_TIMEOUT", 8*time.Second)

	viper.SetDefault("RATE_LIMIT_GENERAL_RPS", 50.0)
	viper.SetDefault("RATE_LIMIT_GENERAL_BURST", 100)

	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	viper.SetDefault("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "OPTIONS"})
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "X-Request-ID"})
	viper.SetDefault("CORS_ALLOW_CREDENTIALS", true)
	viper.SetDefault("CORS_MAX_AGE", 12*60*60)
}

func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(homeDir)
	}
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		log.Printf("Warning: config file not found: %v. Falling back to environment variables only.", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:        viper.GetString("SERVER_PORT"),
			Host:        viper.GetString("SERVER_HOST"),
			Environment: viper.GetString("ENVIRONMENT"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(viper.GetString("STORE_DRIVER")),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		Mongo: MongoConfig{
			URI:          viper.GetString("MONGODB_URI"),
			Database:     viper.GetString("MONGODB_DATABASE"),
			Transactions: viper.GetBool("MONGODB_TRANSACTIONS"),
			Timeout:      viper.GetDuration("MONGODB_TIMEOUT"),
		},
		MQTT: MQTTConfig{
			Enabled:        viper.GetBool("MQTT_ENABLED"),
			Broker:         viper.GetString("MQTT_BROKER"),
			ClientID:       viper.GetString("MQTT_CLIENT_ID"),
			Username:       viper.GetString("MQTT_USERNAME"),
			Password:       viper.GetString("MQTT_PASSWORD"),
			TopicPrefix:    strings.Trim(viper.GetString("MQTT_TOPIC_PREFIX"), "/"),
			QoS:            byte(viper.GetUint("MQTT_QOS")),
			KeepAlive:      viper.GetInt("MQTT_KEEP_ALIVE"),
			ConnectTimeout: viper.GetInt("MQTT_CONNECT_TIMEOUT"),
		},
		Influx: InfluxConfig{
			Enabled:       viper.GetBool("INFLUX_ENABLED"),
			URL:           viper.GetString("INFLUX_URL"),
			Token:         viper.GetString("INFLUX_TOKEN"),
			Org:           viper.GetString("INFLUX_ORG"),
			Bucket:        viper.GetString("INFLUX_BUCKET"),
			BatchSize:     viper.GetInt("INFLUX_BATCH_SIZE"),
			FlushInterval: viper.GetInt("INFLUX_FLUSH_INTERVAL"),
		},
		Alerts: AlertConfig{
			FluorideMax: viper.GetFloat64("ALERT_FLUORIDE_MAX"),
			HumidityMax: viper.GetFloat64("ALERT_HUMIDITY_MAX"),
			HumidityMin: viper.GetFloat64("ALERT_HUMIDITY_MIN"),
		},
		Sync: SyncConfig{
			APIBaseURL:     strings.TrimRight(viper.GetString("SYNC_API_BASE_URL"), "/"),
			Interval:       viper.GetDuration("SYNC_INTERVAL"),
			Window:         viper.GetInt("SYNC_WINDOW"),
			RequestTimeout: viper.GetDuration("SYNC_REQUEST_TIMEOUT"),
		},
		RateLimit: RateLimitConfig{
			GeneralRPS:   viper.GetFloat64("RATE_LIMIT_GENERAL_RPS"),
			GeneralBurst: viper.GetInt("RATE_LIMIT_GENERAL_BURST"),
		},
		CORS: CORSConfig{
			AllowedOrigins:   viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods:   viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders:   viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
			ExposedHeaders:   viper.GetStringSlice("CORS_EXPOSED_HEADERS"),
			AllowCredentials: viper.GetBool("CORS_ALLOW_CREDENTIALS"),
			MaxAge:           viper.GetInt("CORS_MAX_AGE"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the combinations Load cannot express as defaults.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Database.Host == "" || c.Database.DBName == "" {
			return errors.New("postgres store requires DB_HOST and DB_NAME")
		}
	case StoreMongo:
		if c.Mongo.URI == "" {
			return errors.New("mongo store requires MONGODB_URI")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("MQTT_ENABLED requires MQTT_BROKER")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	if c.Influx.Enabled && (c.Influx.URL == "" || c.Influx.Bucket == "") {
		return errors.New("INFLUX_ENABLED requires INFLUX_URL and INFLUX_BUCKET")
	}
	if c.Alerts.HumidityMin > c.Alerts.HumidityMax {
		return errors.New("ALERT_HUMIDITY_MIN must not exceed ALERT_HUMIDITY_MAX")
	}
	if c.Sync.Interval <= 0 {
		return errors.New("SYNC_INTERVAL must be positive")
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
