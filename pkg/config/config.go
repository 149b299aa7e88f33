package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var config = viper.New()

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	AppName  string `mapstructure:"APP_NAME"`
	Database struct {
		Type           string `mapstructure:"TYPE"`
		Host           string `mapstructure:"HOST"`
		Port           string `mapstructure:"PORT"`
		DBNAME         string `mapstructure:"DBNAME"`
		User           string `mapstructure:"USER"`
		Password       string `mapstructure:"PASSWORD"`
		SSLMode        string `mapstructure:"SSLMODE"`
		Timezone       string `mapstructure:"TIMEZONE"`
		ConnectionPool struct {
			MaxIdleConn     int           `mapstructure:"MAX_IDLE_CONN"`
			MaxOpenConns    int           `mapstructure:"MAX_OPEN_CONNS"`
			ConnMaxLifetime time.Duration `mapstructure:"CONN_MAX_LIFETIME"`
			ConnMaxIdleTime time.Duration `mapstructure:"CONN_MAX_IDLE_TIME"`
		} `mapstructure:"CONNECTION_POOL"`
	} `mapstructure:"DATABASE"`
	Redis struct {
		Addr        string        `mapstructure:"ADDR"`
		Password    string        `mapstructure:"PASSWORD"`
		DB          int           `mapstructure:"DB"`
		PoolSize    int           `mapstructure:"POOL_SIZE"`
		PoolTimeout time.Duration `mapstructure:"POOL_TIMEOUT"`
	} `mapstructure:"REDIS"`
	Engine struct {
		ReconcileInterval time.Duration `mapstructure:"RECONCILE_INTERVAL"`
		DefaultRowLimit   int           `mapstructure:"DEFAULT_ROW_LIMIT"`
		ThrottleSeconds   int           `mapstructure:"THROTTLE_SECONDS"`
		LockBackend       string        `mapstructure:"LOCK_BACKEND"` // memory | advisory | redis
	} `mapstructure:"ENGINE"`
	Mail struct {
		Sender string `mapstructure:"SENDER"`
	} `mapstructure:"MAIL"`
}

var Module = fx.Module("config", fx.Provide(LoadConfig))

func LoadConfig() *Config {

	config.SetConfigName("config")
	config.SetConfigType("yaml")
	config.AddConfigPath(".")

	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()

	if err := config.ReadInConfig(); err != nil {
		zap.L().Error("failed to read config", zap.Error(err))
		os.Exit(1)
	}

	var cfg Config
	if err := config.Unmarshal(&cfg); err != nil {
		zap.L().Error("failed to unmarshal config", zap.Error(err))
		os.Exit(1)
	}

	applyDefaults(&cfg)

	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Engine.ReconcileInterval <= 0 {
		cfg.Engine.ReconcileInterval = 5 * time.Minute
	}
	if cfg.Engine.DefaultRowLimit <= 0 {
		cfg.Engine.DefaultRowLimit = 200
	}
	if cfg.Engine.ThrottleSeconds < 0 {
		cfg.Engine.ThrottleSeconds = 0
	}
	if cfg.Engine.LockBackend == "" {
		cfg.Engine.LockBackend = "memory"
	}
}
