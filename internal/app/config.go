package app

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"
)

const (
	defaultCookieName      = "milestones_session"
	defaultMigrationsDir   = "./migrations"
	defaultTimestampFormat = "2006-01-02 15:04:05"
	defaultExportSchedule  = "0 18 * * *"
	defaultExportPath      = "./exports"
	defaultSessionIdle     = 12 * time.Hour
)

type Config struct {
	Server struct {
		Port string `toml:"port"`
	} `toml:"server"`

	Storage struct {
		DSN           string `toml:"dsn"`
		Key           string `toml:"key"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"storage"`

	Redis struct {
		DialTimeout  string `toml:"dial_timeout"`
		ReadTimeout  string `toml:"read_timeout"`
		WriteTimeout string `toml:"write_timeout"`
	} `toml:"redis"`

	Session struct {
		CookieName  string `toml:"cookie_name"`
		Secret      string `toml:"secret"`
		MaxAge      int    `toml:"max_age"`
		IdleTimeout string `toml:"idle_timeout"`
	} `toml:"session"`

	Export struct {
		Schedule string `toml:"schedule"`
		Path     string `toml:"path"`
	} `toml:"export"`

	Display struct {
		TimestampFormat string `toml:"timestamp_format"`
	} `toml:"display"`

	timeouts    redisTimeouts
	sessionIdle time.Duration
}

type redisTimeouts struct {
	dial, read, write time.Duration
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return ParseConfig(path, data)
}

// ParseConfig decodes TOML data and fills defaults. path is only used in
// error messages.
func ParseConfig(path string, data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf(
			"error reading config file %s\n> Error: %w\n> Content:\n%s",
			path,
			err,
			string(data),
		)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("Server port is not specified in config, use a value like :9999")
	}
	if config.Storage.DSN == "" {
		return nil, fmt.Errorf("Storage DSN is not specified in config, use redis://, postgres:// or a sqlite file path")
	}

	for _, d := range []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"dial_timeout", config.Redis.DialTimeout, &config.timeouts.dial},
		{"read_timeout", config.Redis.ReadTimeout, &config.timeouts.read},
		{"write_timeout", config.Redis.WriteTimeout, &config.timeouts.write},
		{"idle_timeout", config.Session.IdleTimeout, &config.sessionIdle},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.name, d.value, err)
		}
		*d.dst = parsed
	}

	if config.Storage.MigrationsDir == "" {
		config.Storage.MigrationsDir = defaultMigrationsDir
	}
	if config.Session.CookieName == "" {
		config.Session.CookieName = defaultCookieName
	}
	if config.Session.Secret == "" {
		logger.Info.Println("Session secret is not set, editing sessions will not survive a restart")
	}
	if config.sessionIdle <= 0 {
		config.sessionIdle = defaultSessionIdle
		if config.Session.MaxAge > 0 {
			config.sessionIdle = time.Duration(config.Session.MaxAge) * time.Second
		}
	}
	if config.Export.Schedule == "" {
		config.Export.Schedule = defaultExportSchedule
	}
	if config.Export.Path == "" {
		config.Export.Path = defaultExportPath
	}
	if config.Display.TimestampFormat == "" {
		config.Display.TimestampFormat = defaultTimestampFormat
	}

	logger.Debug.Printf("Loaded storage config: dsn scheme=%s key=%q", dsnScheme(config.Storage.DSN), config.Storage.Key)

	return &config, nil
}

// SessionIdleTimeout is how long an editing session may go unused before
// it is swept. It follows session.max_age unless idle_timeout is set.
func (c *Config) SessionIdleTimeout() time.Duration {
	return c.sessionIdle
}
