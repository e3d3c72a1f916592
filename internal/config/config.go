package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// AuthConfig holds authentication configuration for change methods
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// ContractConfig holds parameters of the contract runtime itself
type ContractConfig struct {
	// AccountID is the account this contract lives on, handed to the
	// linkdrop facility for claim callbacks
	AccountID string `mapstructure:"account_id"`
	// TokenStorageCost is the flat per-token storage cost in yoctoNEAR
	TokenStorageCost string `mapstructure:"token_storage_cost"`
	// RaffleSeed fixes the token id raffle; 0 derives a seed from the clock
	RaffleSeed int64 `mapstructure:"raffle_seed"`
	// ReceiverTimeout bounds a transfer_call receiver hook invocation
	ReceiverTimeout time.Duration `mapstructure:"receiver_timeout"`
	// ResolverWorkers sizes the async resolution worker pool
	ResolverWorkers int `mapstructure:"resolver_workers"`
}

// LinkdropConfig holds the external linkdrop facility configuration
type LinkdropConfig struct {
	// ContractID is the account of the linkdrop facility
	ContractID string `mapstructure:"contract_id"`
	// URL is the facility endpoint
	URL string `mapstructure:"url"`
	// BaseCost is the facility's key registration deposit in yoctoNEAR
	BaseCost string `mapstructure:"base_cost"`
	// RequestTimeout bounds facility HTTP calls
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// NodeConfig is the configuration of the contract node binary
type NodeConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	NATS       NATSConfig     `mapstructure:"nats"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Contract   ContractConfig `mapstructure:"contract"`
	Linkdrop   LinkdropConfig `mapstructure:"linkdrop"`
}

// LoadNodeConfig loads the node configuration from file and environment
func LoadNodeConfig(configFile string, envPath string) (*NodeConfig, error) {
	v := configureViper(configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.stream_name", "NFT_EVENTS")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.connection_name", "cheddar-nft-minter")
	v.SetDefault("contract.token_storage_cost", "7020000000000000000000")
	v.SetDefault("contract.receiver_timeout", 30*time.Second)
	v.SetDefault("contract.resolver_workers", 4)
	v.SetDefault("linkdrop.base_cost", "20000000000000000000000")
	v.SetDefault("linkdrop.request_timeout", 30*time.Second)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func configureViper(configFile string, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("cmd/node/")
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("CHEDDAR_NFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

func loadEnv(envPath string) {
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range []string{".env", ".env.local"} {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}
