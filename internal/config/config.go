package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	GRPC    GRPCConfig    `mapstructure:"grpc"`
	MySQL   MySQLConfig   `mapstructure:"mysql"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Backend BackendConfig `mapstructure:"backend"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Store   StoreConfig   `mapstructure:"store"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

type HTTPConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type GRPCConfig struct {
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	PoolSize   int           `mapstructure:"pool_size"`
	DeviceTTL  time.Duration `mapstructure:"device_ttl"`
	ProductTTL time.Duration `mapstructure:"product_ttl"`
}

type BackendConfig struct {
	URL         string        `mapstructure:"url"`
	AnonKey     string        `mapstructure:"anon_key"`
	ServiceKey  string        `mapstructure:"service_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ImageBucket string        `mapstructure:"image_bucket"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type StoreConfig struct {
	CourierFee      string        `mapstructure:"courier_fee"`
	ReferencePrefix string        `mapstructure:"reference_prefix"`
	DefaultCity     string        `mapstructure:"default_city"`
	VisitorIdleTTL  time.Duration `mapstructure:"visitor_idle_ttl"`
	AddOns          []AddOnConfig `mapstructure:"addons"`
	Bank            BankConfig    `mapstructure:"bank"`
}

type AddOnConfig struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Price string `mapstructure:"price"`
}

type BankConfig struct {
	Bank          string `mapstructure:"bank"`
	AccountName   string `mapstructure:"account_name"`
	AccountNumber string `mapstructure:"account_number"`
	BranchCode    string `mapstructure:"branch_code"`
	ProofEmail    string `mapstructure:"proof_email"`
}

var defaultAddOns = []AddOnConfig{
	{ID: "glass-vase", Name: "Glass Vase", Price: "150"},
	{ID: "gift-card", Name: "Handwritten Card", Price: "35"},
	{ID: "chocolates", Name: "Belgian Chocolates", Price: "120"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "liora-storefront")
	v.SetDefault("app.env", "prod")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_body_bytes", 10<<20)

	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.token", "")

	v.SetDefault("mysql.dsn", "root:root@tcp(localhost:3306)/liora?parseTime=true&multiStatements=true")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 25)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 100)
	v.SetDefault("redis.device_ttl", 30*24*time.Hour)
	v.SetDefault("redis.product_ttl", 15*time.Minute)

	v.SetDefault("backend.url", "http://localhost:54321")
	v.SetDefault("backend.anon_key", "")
	v.SetDefault("backend.service_key", "")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.image_bucket", "product-images")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "storefront.orders")

	v.SetDefault("store.courier_fee", "85")
	v.SetDefault("store.reference_prefix", "LB")
	v.SetDefault("store.default_city", "Johannesburg")
	v.SetDefault("store.visitor_idle_ttl", 30*time.Minute)
	v.SetDefault("store.bank.bank", "Standard Bank")
	v.SetDefault("store.bank.account_name", "Liora Bloom (Pty) Ltd")
	v.SetDefault("store.bank.account_number", "101 234 567 89")
	v.SetDefault("store.bank.branch_code", "051 001")
	v.SetDefault("store.bank.proof_email", "orders@liorabloom.co.za")
}

// Load reads path (optional) and LIORA_* environment variables on top of
// the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LIORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Store.AddOns) == 0 {
		cfg.Store.AddOns = append([]AddOnConfig(nil), defaultAddOns...)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.CourierFee(); err != nil {
		return err
	}
	for _, a := range c.Store.AddOns {
		if a.ID == "" {
			return errors.New("config: add-on without id")
		}
		if _, err := decimal.NewFromString(a.Price); err != nil {
			return fmt.Errorf("config: add-on %s price %q: %w", a.ID, a.Price, err)
		}
	}
	if c.Store.ReferencePrefix == "" {
		return errors.New("config: store.reference_prefix is empty")
	}
	return nil
}

func (c *Config) CourierFee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(c.Store.CourierFee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: store.courier_fee %q: %w", c.Store.CourierFee, err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("config: store.courier_fee is negative")
	}
	return fee, nil
}

// CheckBackOffice fails when the back-office RPCs would be served without a
// token. Only dev may run without one, and then the service is not exposed.
func (c *Config) CheckBackOffice() error {
	if c.GRPC.Token == "" && c.App.Env != "dev" {
		return fmt.Errorf("config: grpc.token is required when app.env=%s", c.App.Env)
	}
	return nil
}
