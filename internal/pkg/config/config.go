package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration, loaded once at startup.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	CryptoPay  CryptoPayConfig  `mapstructure:"cryptopay"`
	Delivery   DeliveryConfig   `mapstructure:"delivery"`
	Rates      RatesConfig      `mapstructure:"rates"`
	Referral   ReferralConfig   `mapstructure:"referral"`
	Withdrawal WithdrawalConfig `mapstructure:"withdrawal"`
	Confirm    ConfirmConfig    `mapstructure:"confirm"`
	Queue      QueueConfig      `mapstructure:"queue"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig covers the service token the chat front-end presents on the
// internal surface. The webhook endpoint authenticates by signature instead.
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

// WalletConfig is the receiving side of the on-chain rail.
type WalletConfig struct {
	Address    string `mapstructure:"address"`
	MemoPrefix string `mapstructure:"memo_prefix"`
}

// ChainConfig points at the on-chain API (transfer listing and payouts).
type ChainConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	Mnemonics string `mapstructure:"mnemonics"`
}

// GatewayConfig is the bank-transfer (SBP) gateway.
type GatewayConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	MerchantID string `mapstructure:"merchant_id"`
	Secret     string `mapstructure:"secret"`
	MethodSBP  int    `mapstructure:"method_sbp"`
	ReturnURL  string `mapstructure:"return_url"`
	FailedURL  string `mapstructure:"failed_url"`
}

// CryptoPayConfig is the crypto-invoice provider (invoices, payouts, webhook).
type CryptoPayConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	MerchantID      string `mapstructure:"merchant_id"`
	PaymentKey      string `mapstructure:"payment_key"`
	PayoutKey       string `mapstructure:"payout_key"`
	CallbackURL     string `mapstructure:"callback_url"`
	InvoiceLifetime int    `mapstructure:"invoice_lifetime"`
}

// DeliveryConfig is the fulfillment provider.
type DeliveryConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	APIKey        string `mapstructure:"api_key"`
	Phone         string `mapstructure:"phone"`
	WalletVersion string `mapstructure:"wallet_version"`
	Mnemonics     string `mapstructure:"mnemonics"`
	TokenTTLHours int    `mapstructure:"token_ttl_hours"`
}

type RatesConfig struct {
	SpotURL string `mapstructure:"spot_url"`
	FiatURL string `mapstructure:"fiat_url"`
}

type ReferralConfig struct {
	Percent float64 `mapstructure:"percent"`
}

type WithdrawalConfig struct {
	MinAmount            float64 `mapstructure:"min_amount"`
	MaxAmount            float64 `mapstructure:"max_amount"`
	Provider             string  `mapstructure:"provider"` // onchain | cryptopay
	ReconcileIntervalSec int     `mapstructure:"reconcile_interval_sec"`
}

type ConfirmConfig struct {
	TimeoutSec       int `mapstructure:"timeout_sec"`
	PollIntervalSec  int `mapstructure:"poll_interval_sec"`
	SweepIntervalSec int `mapstructure:"sweep_interval_sec"`
}

type QueueConfig struct {
	Workers        int `mapstructure:"workers"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	BaseBackoffSec int `mapstructure:"base_backoff_sec"`
}

var GlobalConfig Config

func (c *WithdrawalConfig) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSec) * time.Second
}

func (c *ConfirmConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

func (c *ConfirmConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

func (c *ConfirmConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSec) * time.Second
}

// MnemonicWords splits the configured seed phrase, tolerating comma or
// space separators.
func (c *ChainConfig) MnemonicWords() []string {
	return splitWords(c.Mnemonics)
}

func (c *DeliveryConfig) MnemonicWords() []string {
	return splitWords(c.Mnemonics)
}

func splitWords(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ','
	})
	out := make([]string, 0, len(fields))
	for _, w := range fields {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Validate rejects configurations that would only fail later at request time.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" || len(c.Auth.Secret) < 32 {
		return errors.New("auth secret must be set and at least 32 characters")
	}
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}
	if c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}
	if c.Wallet.Address == "" {
		return errors.New("wallet address is required")
	}
	if c.Referral.Percent < 0 || c.Referral.Percent > 100 {
		return errors.New("referral percent must be within [0, 100]")
	}
	if c.Withdrawal.MinAmount <= 0 || c.Withdrawal.MaxAmount < c.Withdrawal.MinAmount {
		return errors.New("withdrawal limits are invalid")
	}
	return nil
}

// LoadConfig reads config.yaml (or config.<env>.yaml) and applies env
// overrides. Fatal on validation failure: a misconfigured payment core must
// not start.
func LoadConfig() {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	configName := "config"
	if env != "" && env != "dev" {
		configName = "config." + env
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	viper.SetDefault("server.port", "8081")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("wallet.memo_prefix", "INV-")
	viper.SetDefault("chain.base_url", "https://toncenter.com/api/v2")
	viper.SetDefault("gateway.method_sbp", 2)
	viper.SetDefault("cryptopay.base_url", "https://api.heleket.com")
	viper.SetDefault("cryptopay.invoice_lifetime", 1800)
	viper.SetDefault("delivery.wallet_version", "W5")
	viper.SetDefault("delivery.token_ttl_hours", 24)
	viper.SetDefault("rates.spot_url", "https://api.coingecko.com/api/v3/simple/price")
	viper.SetDefault("rates.fiat_url", "https://api.exchangerate.host/convert")
	viper.SetDefault("referral.percent", 40)
	viper.SetDefault("withdrawal.min_amount", 1)
	viper.SetDefault("withdrawal.max_amount", 1000)
	viper.SetDefault("withdrawal.provider", "onchain")
	viper.SetDefault("withdrawal.reconcile_interval_sec", 30)
	viper.SetDefault("confirm.timeout_sec", 900)
	viper.SetDefault("confirm.poll_interval_sec", 10)
	viper.SetDefault("confirm.sweep_interval_sec", 300)
	viper.SetDefault("queue.workers", 5)
	viper.SetDefault("queue.max_attempts", 5)
	viper.SetDefault("queue.base_backoff_sec", 10)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: config file not found, using defaults and env vars: %v", err)
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}

	// Explicit overrides for values viper's AutomaticEnv does not reach
	// through nested keys.
	if host := os.Getenv("DB_HOST"); host != "" {
		GlobalConfig.Database.Host = host
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		GlobalConfig.Redis.Addr = addr
	}
	if secret := os.Getenv("AUTH_SECRET"); secret != "" {
		GlobalConfig.Auth.Secret = secret
	}
	if wallet := os.Getenv("WALLET_ADDRESS"); wallet != "" {
		GlobalConfig.Wallet.Address = wallet
	}

	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated. Environment: %s", env)
}
