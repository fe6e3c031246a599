// Package config loads process configuration from file, environment and
// flags via viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Version is the build version, set via -ldflags.
var Version = "dev"

// Config holds application-wide configuration
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	Debug  bool         `mapstructure:"debug"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listenAddr"`
}

// DBConfig carries the two connection forms. URIs (comma-separated) takes
// full precedence over the discrete parameter set; they are never merged.
type DBConfig struct {
	URIs     string `mapstructure:"uris"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Dialect  string `mapstructure:"dialect"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddr: ":8080",
	}
}

// Load reads config from file or environment
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("autorest")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("AUTOREST")

	// Legacy env contract, kept for drop-in compatibility with earlier
	// deployments. The unprefixed names win over nothing: they are plain
	// aliases for the keys below.
	bindings := map[string]string{
		"db.uris":     "SQLALCHEMY_URIS",
		"db.host":     "DB_HOST",
		"db.port":     "DB_PORT",
		"db.user":     "DB_USER",
		"db.password": "DB_PASSWORD",
		"db.dialect":  "DB_DIALECT",
		"debug":       "DEBUG",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	v.SetDefault("server.listenAddr", DefaultServerConfig().ListenAddr)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}
