package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// NoticeTTL is how long a room notification stays up before the server
	// broadcasts a matching clear. Zero disables auto-clearing.
	NoticeTTL time.Duration `mapstructure:"notice_ttl"`
	// RoomIdleTTL evicts rooms left empty longer than this. Zero keeps
	// rooms for the process lifetime.
	RoomIdleTTL time.Duration `mapstructure:"room_idle_ttl"`

	SubmitLimit    int           `mapstructure:"submit_limit"`
	SubmitInterval time.Duration `mapstructure:"submit_interval"`
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

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("notice_ttl", "6s")
	v.SetDefault("room_idle_ttl", "10m")
	v.SetDefault("submit_limit", 5)
	v.SetDefault("submit_interval", "30s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
