package config

import (
	"fmt"
	"os"
	"strings"

	httpapi "github.com/jekabolt/grbpwr-attribution/internal/api/http"
	"github.com/jekabolt/grbpwr-attribution/internal/engine"
	"github.com/jekabolt/grbpwr-attribution/internal/source"
	"github.com/jekabolt/grbpwr-attribution/internal/store"
	"github.com/jekabolt/grbpwr-attribution/log"
	"github.com/spf13/viper"
)

// Config represents the global configuration for the service.
type Config struct {
	DB          store.Config           `mapstructure:"mysql"`
	Logger      log.Config             `mapstructure:"logger"`
	HTTP        httpapi.Config         `mapstructure:"http"`
	BigQuery    source.BigQueryConfig  `mapstructure:"bigquery"`
	Warehouse   source.WarehouseConfig `mapstructure:"warehouse"`
	Events      source.EventsConfig    `mapstructure:"events"`
	Attribution engine.Config          `mapstructure:"attribution"`
}

// LoadConfig loads the configuration from a file and/or environment variables.
// Environment variables take precedence over config file values.
// Nested config keys use double underscore, e.g., MYSQL__DSN for mysql.dsn
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.AutomaticEnv()
	// e.g., mysql.dsn -> MYSQL__DSN, bigquery.project_id -> BIGQUERY__PROJECT_ID
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__", "-", "__"))

	bindEnvVars(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %v", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/config/grbpwr-attribution")
		v.AddConfigPath("/etc/grbpwr-attribution")
		// optional
		_ = v.ReadInConfig()
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config into struct: %v", err)
	}

	if config.DB.DSN == "" {
		config.DB.DSN = mysqlDSNFromEnv()
	}
	return &config, nil
}

// mysqlDSNFromEnv builds the DSN from DigitalOcean's db.* env vars or MYSQL_* vars.
func mysqlDSNFromEnv() string {
	var host, port, user, password, database string
	if dbHost := os.Getenv("db.HOSTNAME"); dbHost != "" {
		host = dbHost
		port = os.Getenv("db.PORT")
		user = os.Getenv("db.USERNAME")
		password = os.Getenv("db.PASSWORD")
		database = os.Getenv("db.DATABASE")
	} else {
		host = os.Getenv("MYSQL_HOST")
		port = os.Getenv("MYSQL_PORT")
		user = os.Getenv("MYSQL_USER")
		password = os.Getenv("MYSQL_PASSWORD")
		database = os.Getenv("MYSQL_DATABASE")
	}
	if host == "" || user == "" || password == "" || database == "" {
		return ""
	}
	if port == "" {
		port = "3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8&parseTime=true&tls=custom",
		user, password, host, port, database)
}

// bindEnvVars binds flat environment variables to config keys.
func bindEnvVars(v *viper.Viper) {
	// MySQL
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("mysql.automigrate", "MYSQL_AUTOMIGRATE")
	v.BindEnv("mysql.max_open_connections", "MYSQL_MAX_OPEN_CONNECTIONS")
	v.BindEnv("mysql.max_idle_connections", "MYSQL_MAX_IDLE_CONNECTIONS")
	v.BindEnv("mysql.tls_ca_path", "MYSQL_TLS_CA_PATH")

	// Logger
	v.BindEnv("logger.level", "LOG_LEVEL")
	v.BindEnv("logger.add_source", "LOG_ADD_SOURCE")

	// HTTP
	v.BindEnv("http.port", "HTTP_PORT")
	v.BindEnv("http.address", "HTTP_ADDRESS")
	v.BindEnv("http.allowed_origins", "HTTP_ALLOWED_ORIGINS")
	v.BindEnv("http.request_timeout", "HTTP_REQUEST_TIMEOUT")
	v.BindEnv("http.rate_limit.window", "HTTP_RATE_LIMIT_WINDOW")
	v.BindEnv("http.rate_limit.max", "HTTP_RATE_LIMIT_MAX")

	// BigQuery
	v.BindEnv("bigquery.enabled", "BIGQUERY_ENABLED")
	v.BindEnv("bigquery.project_id", "BIGQUERY_PROJECT_ID")
	v.BindEnv("bigquery.dataset", "BIGQUERY_DATASET")
	v.BindEnv("bigquery.location", "BIGQUERY_LOCATION")
	v.BindEnv("bigquery.credentials_json", "BIGQUERY_CREDENTIALS_JSON")
	v.BindEnv("bigquery.query_timeout", "BIGQUERY_QUERY_TIMEOUT")

	// Warehouse
	v.BindEnv("warehouse.enabled", "WAREHOUSE_ENABLED")
	v.BindEnv("warehouse.driver", "WAREHOUSE_DRIVER")
	v.BindEnv("warehouse.dsn", "WAREHOUSE_DSN")
	v.BindEnv("warehouse.max_open_connections", "WAREHOUSE_MAX_OPEN_CONNECTIONS")
	v.BindEnv("warehouse.query_timeout", "WAREHOUSE_QUERY_TIMEOUT")

	// Events fixture
	v.BindEnv("events.enabled", "EVENTS_ENABLED")
	v.BindEnv("events.fixture", "EVENTS_FIXTURE")

	// Attribution
	v.BindEnv("attribution.default_model", "ATTRIBUTION_DEFAULT_MODEL")
	v.BindEnv("attribution.default_mode", "ATTRIBUTION_DEFAULT_MODE")
	v.BindEnv("attribution.window_days", "ATTRIBUTION_WINDOW_DAYS")
	v.BindEnv("attribution.paid_channels", "ATTRIBUTION_PAID_CHANNELS")
	v.BindEnv("attribution.timeout", "ATTRIBUTION_TIMEOUT")
}
