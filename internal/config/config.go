package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Redis    RedisConfig    `yaml:"redis"`
	Chain    ChainConfig    `yaml:"chain"`
	Payment  PaymentConfig  `yaml:"payment"`
	Metadata MetadataConfig `yaml:"metadata"`
	CORS     CORSConfig     `yaml:"cors"`
	Admin    AdminConfig    `yaml:"admin"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL        string `yaml:"url"`
	StreamName string `yaml:"streamName"`
	Timeout    int    `yaml:"timeout"`
}

// RedisConfig Redis cache configuration
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ChainConfig ledger network configuration
type ChainConfig struct {
	RPCURL    string `yaml:"rpcUrl"`
	ProgramID string `yaml:"programId"`
	USDCMint  string `yaml:"usdcMint"`

	// Backend verifier identity (base58 private key). When set, the service
	// submits verifySkill transactions itself after payment settles.
	VerifierKey string `yaml:"verifierKey"`

	// Native payment amount in lamports for the fallback transfer path.
	NativeFeeLamports uint64 `yaml:"nativeFeeLamports"`

	ConfirmTimeoutSeconds int `yaml:"confirmTimeoutSeconds"`
}

// PaymentConfig x402 payment layer configuration
type PaymentConfig struct {
	// Endpoint advertising payment requirements and verifying proofs.
	EndpointURL string `yaml:"endpointUrl"`
	// Optional HTTP relay for environments where direct access fails.
	RelayURL string `yaml:"relayUrl"`
	// Requirement cache TTL in seconds. Zero disables caching.
	CacheTTLSeconds int `yaml:"cacheTtlSeconds"`
}

// MetadataConfig metadata pinning service configuration
type MetadataConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// AdminConfig admin API access configuration
type AdminConfig struct {
	JWTSecret  string   `yaml:"jwtSecret"`
	AllowedIPs []string `yaml:"allowedIPs"`
}

var AppConfig *Config

// LoadConfig loads the configuration file, preferring config.local.yaml when
// present, then applies environment overrides.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)
	applyDefaults(&config)

	AppConfig = &config
	return nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.NATS.StreamName == "" {
		config.NATS.StreamName = "MOVEREGISTRY_EVENTS"
	}
	if config.Chain.NativeFeeLamports == 0 {
		config.Chain.NativeFeeLamports = 1_000_000 // 0.001 SOL
	}
	if config.Chain.ConfirmTimeoutSeconds == 0 {
		config.Chain.ConfirmTimeoutSeconds = 60
	}
	if config.Payment.CacheTTLSeconds == 0 {
		config.Payment.CacheTTLSeconds = 300
	}
}

// overrideFromEnv applies environment variable overrides
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}

	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		config.Redis.Host = redisHost
	}
	if redisPort := os.Getenv("REDIS_PORT"); redisPort != "" {
		if p, err := strconv.Atoi(redisPort); err == nil {
			config.Redis.Port = p
		}
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		config.Redis.Password = redisPassword
	}

	if rpcURL := os.Getenv("SOLANA_RPC_URL"); rpcURL != "" {
		config.Chain.RPCURL = rpcURL
	}
	if programID := os.Getenv("PROGRAM_ID"); programID != "" {
		config.Chain.ProgramID = programID
	}
	if usdcMint := os.Getenv("USDC_MINT"); usdcMint != "" {
		config.Chain.USDCMint = usdcMint
	}
	if verifierKey := os.Getenv("VERIFIER_KEY"); verifierKey != "" {
		config.Chain.VerifierKey = verifierKey
	}

	if endpoint := os.Getenv("X402_ENDPOINT"); endpoint != "" {
		config.Payment.EndpointURL = endpoint
	}
	if relayURL := os.Getenv("RELAY_URL"); relayURL != "" {
		config.Payment.RelayURL = relayURL
	}

	if metadataURL := os.Getenv("METADATA_BASE_URL"); metadataURL != "" {
		config.Metadata.BaseURL = metadataURL
	}

	if jwtSecret := os.Getenv("ADMIN_JWT_SECRET"); jwtSecret != "" {
		config.Admin.JWTSecret = jwtSecret
	}
}

// GetServerAddr returns the server listen address
func GetServerAddr() string {
	if AppConfig == nil {
		return ":8080"
	}
	return fmt.Sprintf("%s:%d", AppConfig.Server.Host, AppConfig.Server.Port)
}

// GetRedisAddr returns the Redis address
func GetRedisAddr() string {
	if AppConfig == nil {
		return "localhost:6379"
	}
	return fmt.Sprintf("%s:%d", AppConfig.Redis.Host, AppConfig.Redis.Port)
}
