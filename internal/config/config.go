package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type Config struct {
	ServiceName string     `mapstructure:"service_name"`
	Env         string     `mapstructure:"env"`
	LogLevel    string     `mapstructure:"log_level"`
	HTTP        HTTPConfig `mapstructure:"http"`

	// GRPCHealthPort serves the gRPC health endpoint for orchestrator probes.
	GRPCHealthPort int `mapstructure:"grpc_health_port"`

	// MySQLDSN backs the fee vault and event journal; empty means in-memory.
	MySQLDSN string `mapstructure:"mysql_dsn"`
	// RedisAddr backs the order existence map; empty means in-memory.
	RedisAddr string `mapstructure:"redis_addr"`

	// FeeRate is the initial fee rate in thousandths.
	FeeRate int64 `mapstructure:"fee_rate"`
	// Admins and FeeExempt seed the access-control adapter (hex addresses).
	Admins    []string `mapstructure:"admins"`
	FeeExempt []string `mapstructure:"fee_exempt"`
}

// Load reads configuration from an optional YAML file and ESCROW_* env vars,
// env taking precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ESCROW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "escrow-engine")
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("grpc_health_port", 50051)
	v.SetDefault("mysql_dsn", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("fee_rate", 4)
	v.SetDefault("admins", []string{})
	v.SetDefault("fee_exempt", []string{})
}
