package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel      string           `yaml:"log_level"`
	FatalCooldown time.Duration    `yaml:"fatal_cooldown"`
	Store         StoreConfig      `yaml:"store"`
	Scheduler     LoopConfig       `yaml:"scheduler"`
	Monitor       LoopConfig       `yaml:"monitor"`
	Platforms     PlatformsConfig  `yaml:"platforms"`
	LLM           LLMConfig        `yaml:"llm"`
	Database      DatabaseConfig   `yaml:"database"`
	RabbitMQ      RabbitMQConfig   `yaml:"rabbitmq"`
	Telegram      TelegramConfig   `yaml:"telegram"`
	API           APIConfig        `yaml:"api"`
	Supervisor    SupervisorConfig `yaml:"supervisor"`
}

type StoreConfig struct {
	Backend      string `yaml:"backend"`
	Path         string `yaml:"path"`
	CommentsDir  string `yaml:"comments_dir"`
	ResponsesDir string `yaml:"responses_dir"`
}

type LoopConfig struct {
	Interval    time.Duration `yaml:"interval"`
	TickTimeout time.Duration `yaml:"tick_timeout"`
	// MetricsAddr exposes /metrics for the loop process; empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

type PlatformsConfig struct {
	Timeout  time.Duration  `yaml:"timeout"`
	Retry    RetryConfig    `yaml:"retry"`
	LinkedIn LinkedInConfig `yaml:"linkedin"`
	Twitter  TwitterConfig  `yaml:"twitter"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type LinkedInConfig struct {
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
}

// Enabled reports whether the adapter has credentials to work with.
func (l LinkedInConfig) Enabled() bool {
	return l.AccessToken != ""
}

type TwitterConfig struct {
	BaseURL           string `yaml:"base_url"`
	UploadURL         string `yaml:"upload_url"`
	APIKey            string `yaml:"api_key"`
	APISecret         string `yaml:"api_secret"`
	AccessToken       string `yaml:"access_token"`
	AccessTokenSecret string `yaml:"access_token_secret"`
}

func (t TwitterConfig) Enabled() bool {
	return t.APIKey != "" && t.APISecret != "" && t.AccessToken != "" && t.AccessTokenSecret != ""
}

type LLMConfig struct {
	APIKey        string `yaml:"api_key"`
	Model         string `yaml:"model"`
	FallbackModel string `yaml:"fallback_model"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	QueueName  string `yaml:"queue_name"`
}

func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID string `yaml:"chat_id"`
}

func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != ""
}

type APIConfig struct {
	Addr string `yaml:"addr"`
}

type ChildConfig struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type SupervisorConfig struct {
	Children       []ChildConfig `yaml:"children"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	StableAfter    time.Duration `yaml:"stable_after"`
	StopTimeout    time.Duration `yaml:"stop_timeout"`
	MetricsAddr    string        `yaml:"metrics_addr"`
}

func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied, used when no
// config file exists.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (c *Config) validate() error {
	switch c.Store.Backend {
	case "json", "memory":
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Scheduler.Interval < 0 || c.Monitor.Interval < 0 {
		return fmt.Errorf("loop interval must be positive")
	}
	for i, child := range c.Supervisor.Children {
		if child.Name == "" || child.Command == "" {
			return fmt.Errorf("supervisor child %d: name and command are required", i)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.FatalCooldown == 0 {
		c.FatalCooldown = 60 * time.Second
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "json"
	}
	if c.Store.Path == "" {
		c.Store.Path = "data/scheduled_posts.json"
	}
	if c.Store.CommentsDir == "" {
		c.Store.CommentsDir = "data/comments"
	}
	if c.Store.ResponsesDir == "" {
		c.Store.ResponsesDir = "data/responses"
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = 60 * time.Second
	}
	if c.Scheduler.TickTimeout == 0 {
		c.Scheduler.TickTimeout = 30 * time.Minute
	}
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = 300 * time.Second
	}
	if c.Monitor.TickTimeout == 0 {
		c.Monitor.TickTimeout = 30 * time.Minute
	}
	if c.Platforms.Timeout == 0 {
		c.Platforms.Timeout = 30 * time.Second
	}
	if c.Platforms.Retry.MaxAttempts == 0 {
		c.Platforms.Retry.MaxAttempts = 3
	}
	if c.Platforms.Retry.InitialBackoff == 0 {
		c.Platforms.Retry.InitialBackoff = 1 * time.Second
	}
	if c.Platforms.Retry.MaxBackoff == 0 {
		c.Platforms.Retry.MaxBackoff = 30 * time.Second
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gemini-2.5-flash"
	}
	if c.LLM.FallbackModel == "" {
		c.LLM.FallbackModel = "gemini-2.5-flash-lite"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Exchange == "" {
		c.RabbitMQ.Exchange = "social_scheduler"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "posts"
	}
	if c.RabbitMQ.QueueName == "" {
		c.RabbitMQ.QueueName = "social_posts"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.Supervisor.InitialBackoff == 0 {
		c.Supervisor.InitialBackoff = 1 * time.Second
	}
	if c.Supervisor.MaxBackoff == 0 {
		c.Supervisor.MaxBackoff = 60 * time.Second
	}
	if c.Supervisor.StableAfter == 0 {
		c.Supervisor.StableAfter = 2 * time.Minute
	}
	if c.Supervisor.StopTimeout == 0 {
		c.Supervisor.StopTimeout = 5 * time.Second
	}
}
