package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SysConfig system configuration
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location" env:"WAGATE_SYSTEM_LOCATION"`
	Workdir  string `yaml:"workdir" env:"WAGATE_SYSTEM_WORKDIR"`
	Debug    bool   `yaml:"debug" env:"WAGATE_SYSTEM_DEBUG"`
}

// WebConfig web server configuration
type WebConfig struct {
	Host string `yaml:"host" env:"WAGATE_WEB_HOST"`
	Port int    `yaml:"port" env:"PORT"`
}

// DBConfig database configuration
type DBConfig struct {
	Type     string `yaml:"type" env:"WAGATE_DB_TYPE"` // postgres or sqlite
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	Name     string `yaml:"name" env:"DB_NAME"`
	User     string `yaml:"user" env:"DB_USER"`
	Passwd   string `yaml:"passwd" env:"DB_PASSWORD"`
	MaxConn  int    `yaml:"max_conn" env:"WAGATE_DB_MAX_CONN"`
	IdleConn int    `yaml:"idle_conn" env:"WAGATE_DB_IDLE_CONN"`
	Debug    bool   `yaml:"debug" env:"WAGATE_DB_DEBUG"`
}

// WhatsappConfig session orchestration settings
type WhatsappConfig struct {
	MaxInstances     int           `yaml:"max_instances" env:"MAX_INSTANCES"`
	RestartDelay     time.Duration `yaml:"restart_delay" env:"WAGATE_RESTART_DELAY"`
	ReconnectDelay   time.Duration `yaml:"reconnect_delay" env:"WAGATE_RECONNECT_DELAY"`
	EventBuffer      int           `yaml:"event_buffer" env:"WAGATE_EVENT_BUFFER"`
	LogoutOnShutdown bool          `yaml:"logout_on_shutdown" env:"WAGATE_LOGOUT_ON_SHUTDOWN"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout" env:"WAGATE_SHUTDOWN_TIMEOUT"`
	DeviceName       string        `yaml:"device_name" env:"WAGATE_DEVICE_NAME"`
}

// WebhookConfig outbound callback settings
type WebhookConfig struct {
	Enabled       bool          `yaml:"enabled" env:"WEBHOOK_ENABLED"`
	URL           string        `yaml:"url" env:"WEBHOOK_URL"`
	Secret        string        `yaml:"secret" env:"WEBHOOK_SECRET"`
	Timeout       time.Duration `yaml:"timeout" env:"WEBHOOK_TIMEOUT"`
	RetryAttempts int           `yaml:"retry_attempts" env:"WEBHOOK_RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `yaml:"retry_delay" env:"WEBHOOK_RETRY_DELAY"`
	Workers       int           `yaml:"workers" env:"WEBHOOK_WORKERS"`
	QueueSize     int           `yaml:"queue_size" env:"WEBHOOK_QUEUE_SIZE"`
}

// LogConfig logging configuration
type LogConfig struct {
	Mode       string `yaml:"mode" env:"LOG_MODE"`
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	FileEnable bool   `yaml:"file_enable" env:"LOG_FILE_ENABLE"`
	Filename   string `yaml:"filename" env:"LOG_FILENAME"`
}

// RetentionConfig message history housekeeping
type RetentionConfig struct {
	MessageDays int `yaml:"message_days" env:"WAGATE_MESSAGE_RETENTION_DAYS"`
}

type AppConfig struct {
	System    SysConfig       `yaml:"system"`
	Web       WebConfig       `yaml:"web"`
	Database  DBConfig        `yaml:"database"`
	Whatsapp  WhatsappConfig  `yaml:"whatsapp"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logger    LogConfig       `yaml:"logger"`
	Retention RetentionConfig `yaml:"retention"`
}

func (c *AppConfig) GetLogDir() string {
	return filepath.Join(c.System.Workdir, "logs")
}

func (c *AppConfig) GetDataDir() string {
	return filepath.Join(c.System.Workdir, "data")
}

// Active reports whether outbound callbacks have a destination.
func (c WebhookConfig) Active() bool {
	return c.Enabled && c.URL != ""
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "wagate",
		Location: "Local",
		Workdir:  "/var/wagate",
		Debug:    true,
	},
	Web: WebConfig{
		Host: "0.0.0.0",
		Port: 3000,
	},
	Database: DBConfig{
		Type:     "postgres",
		Host:     "127.0.0.1",
		Port:     5432,
		Name:     "wagate",
		User:     "postgres",
		Passwd:   "postgres",
		MaxConn:  100,
		IdleConn: 10,
	},
	Whatsapp: WhatsappConfig{
		MaxInstances:     10,
		RestartDelay:     time.Second,
		ReconnectDelay:   5 * time.Second,
		EventBuffer:      256,
		LogoutOnShutdown: true,
		ShutdownTimeout:  15 * time.Second,
		DeviceName:       "wagate",
	},
	Webhook: WebhookConfig{
		Enabled:       true,
		Timeout:       10 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Second,
		Workers:       64,
		QueueSize:     1024,
	},
	Logger: LogConfig{
		Mode:       "development",
		Level:      "info",
		FileEnable: false,
		Filename:   "/var/wagate/wagate.log",
	},
	Retention: RetentionConfig{
		MessageDays: 90,
	},
}

// LoadConfig reads the YAML file at path (if present) over the defaults and
// applies environment overrides on top.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := *DefaultAppConfig
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Whatsapp.MaxInstances <= 0 {
		return errors.New("whatsapp.max_instances must be positive")
	}
	if c.Whatsapp.RestartDelay <= 0 || c.Whatsapp.ReconnectDelay <= 0 {
		return errors.New("whatsapp reconnect delays must be positive")
	}
	if c.Whatsapp.EventBuffer <= 0 {
		c.Whatsapp.EventBuffer = DefaultAppConfig.Whatsapp.EventBuffer
	}
	if c.Whatsapp.ShutdownTimeout <= 0 {
		c.Whatsapp.ShutdownTimeout = DefaultAppConfig.Whatsapp.ShutdownTimeout
	}
	if c.Webhook.Timeout <= 0 {
		c.Webhook.Timeout = DefaultAppConfig.Webhook.Timeout
	}
	if c.Webhook.RetryAttempts <= 0 {
		c.Webhook.RetryAttempts = 1
	}
	if c.Webhook.Workers <= 0 {
		c.Webhook.Workers = DefaultAppConfig.Webhook.Workers
	}
	if c.Webhook.QueueSize <= 0 {
		c.Webhook.QueueSize = DefaultAppConfig.Webhook.QueueSize
	}
	return nil
}
