package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr    string `mapstructure:"LISTEN_ADDR"`
	DatabasePath  string `mapstructure:"DB_PATH"`
	AdminPassword string `mapstructure:"ADMIN_PASSWORD"`

	RPCEndpoint      string `mapstructure:"RPC_ENDPOINT"`
	TokenMint        string `mapstructure:"TOKEN_MINT"`
	BalanceThreshold uint64 `mapstructure:"BALANCE_THRESHOLD"`

	BotAPIURL string `mapstructure:"BOT_API_URL"`
	BotToken  string `mapstructure:"BOT_TOKEN"`
	ChatID    int64  `mapstructure:"CHAT_ID"`

	NonceStore string `mapstructure:"NONCE_STORE"` // memory, redis, database
	RedisAddr  string `mapstructure:"REDIS_ADDR"`
	RedisPass  string `mapstructure:"REDIS_PASS"`

	NonceTTL          time.Duration `mapstructure:"NONCE_TTL"`
	InviteTTL         time.Duration `mapstructure:"INVITE_TTL"`
	ReconcileWindow   time.Duration `mapstructure:"RECONCILE_WINDOW"`
	ReconcileInterval time.Duration `mapstructure:"RECONCILE_INTERVAL"`

	NonceRateWindow time.Duration `mapstructure:"NONCE_RATE_WINDOW"`
	NonceRateMax    int           `mapstructure:"NONCE_RATE_MAX"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.SetDefault("DB_PATH", "whalegate.db")
	viper.SetDefault("RPC_ENDPOINT", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("BALANCE_THRESHOLD", 10000000)
	viper.SetDefault("BOT_API_URL", "https://api.telegram.org")
	viper.SetDefault("NONCE_STORE", "memory")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("NONCE_TTL", 5*time.Minute)
	viper.SetDefault("INVITE_TTL", 10*time.Minute)
	viper.SetDefault("RECONCILE_WINDOW", 15*time.Minute)
	viper.SetDefault("RECONCILE_INTERVAL", 10*time.Second)
	viper.SetDefault("NONCE_RATE_WINDOW", time.Minute)
	viper.SetDefault("NONCE_RATE_MAX", 10)

	viper.SetEnvPrefix("WHALEGATE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigFile(".env")
	// Ignore err if .env doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
