package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Env     string        `mapstructure:"env"`
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Redis   RedisConfig   `mapstructure:"redis"`
	NATS    NATSConfig    `mapstructure:"nats"`
}

type ServerConfig struct {
	Port            string `mapstructure:"port"`
	StaticDir       string `mapstructure:"static_dir"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_seconds"`
}

// StorageConfig selects where the three JSON documents live.
// Driver is "file" (documents under Dir) or "redis".
type StorageConfig struct {
	Driver                string `mapstructure:"driver"`
	Dir                   string `mapstructure:"dir"`
	UsersDocument         string `mapstructure:"users_document"`
	StudentsDocument      string `mapstructure:"students_document"`
	NotificationsDocument string `mapstructure:"notifications_document"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// NATSConfig enables notification events when URL is set.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

const (
	DriverFile  = "file"
	DriverRedis = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.static_dir", ".")
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.dir", ".")
	v.SetDefault("storage.users_document", "users.json")
	v.SetDefault("storage.students_document", "students.json")
	v.SetDefault("storage.notifications_document", "notifications.json")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "payments:")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "notifications")
}

// Load reads config.<ENV>.yaml (optional) and applies environment overrides.
// Extra search paths are tried before the defaults.
func Load(paths ...string) (*Config, error) {
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath("/configs") // Kubernetes mount
	v.AddConfigPath("./configs")

	// Config file is optional - continue with defaults and ENV variables
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("server.port", "PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind PORT: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverFile, DriverRedis:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	return nil
}
