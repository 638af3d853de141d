package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       string        `mapstructure:"server"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	Tokens       []string      `mapstructure:"tokens"`
	Insecure     bool          `mapstructure:"insecure"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
	LogLevel     string        `mapstructure:"log_level"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("server", "localhost:64738")
	v.SetDefault("username", "mumlink")
	v.SetDefault("insecure", false)
	v.SetDefault("ping_interval", "10s")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Server: %s | User: %s\n", cfg.Server, cfg.Username)
	return &cfg, nil
}
