// Package config loads service configuration from defaults, an optional
// config file, and PAKMIRROR_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the resolved service configuration.
type Config struct {
	Server struct {
		Host            string        `mapstructure:"host"`
		Port            int           `mapstructure:"port"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Jobs struct {
		// HomeDir is the default working root for mirror jobs.
		HomeDir string `mapstructure:"home_dir"`
		// DownloaderCommand is the argv prefix of the case-package
		// downloader tool.
		DownloaderCommand []string      `mapstructure:"downloader_command"`
		PollInterval      time.Duration `mapstructure:"poll_interval"`
		GracePeriod       time.Duration `mapstructure:"grace_period"`
		LogTailLines      int           `mapstructure:"log_tail_lines"`
	} `mapstructure:"jobs"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")

	v.SetDefault("jobs.home_dir", "/opt/mirror")
	v.SetDefault("jobs.downloader_command", []string{"pak-downloader"})
	v.SetDefault("jobs.poll_interval", "30s")
	v.SetDefault("jobs.grace_period", "5s")
	v.SetDefault("jobs.log_tail_lines", 50)
}

// Load resolves configuration. path names an explicit config file; empty
// means search the working directory for pakmirror.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PAKMIRROR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("pakmirror")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
