package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Classifier struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
	} `yaml:"classifier"`
	Detection struct {
		Threshold          float64  `yaml:"threshold"`
		LookupBudgetMs     int64    `yaml:"lookup_budget_ms"`
		BusinessHoursStart int      `yaml:"business_hours_start"`
		BusinessHoursEnd   int      `yaml:"business_hours_end"`
		AllowedSenders     []string `yaml:"allowed_senders"`
		AllowedChatRooms   []string `yaml:"allowed_chat_rooms"`
		AllowedKeywords    []string `yaml:"allowed_keywords"`
		OfficialKeywords   []string `yaml:"official_keywords"`
	} `yaml:"detection"`
	Routing struct {
		TimeoutSeconds    int64    `yaml:"timeout_seconds"`
		MaxWorkers        int      `yaml:"max_workers"`
		FallbackChannels  []string `yaml:"fallback_channels"`
		WorkHoursStart    int      `yaml:"work_hours_start"`
		WorkHoursEnd      int      `yaml:"work_hours_end"`
		EmergencyOverride bool     `yaml:"emergency_override"`
	} `yaml:"routing"`
	Throttle struct {
		RoomTTLSeconds int64 `yaml:"room_ttl_seconds"`
		HourlyMax      int64 `yaml:"hourly_max"`
		FailOpen       bool  `yaml:"fail_open"`
	} `yaml:"throttle"`
	Queue struct {
		Stream           string `yaml:"stream"`
		DeadLetterStream string `yaml:"dead_letter_stream"`
		ConsumerGroup    string `yaml:"consumer_group"`
		ConsumerName     string `yaml:"consumer_name"`
	} `yaml:"queue"`
	Channels struct {
		Telegram struct {
			Enabled       bool    `yaml:"enabled"`
			BotToken      string  `yaml:"bot_token"`
			ChatID        int64   `yaml:"chat_id"`
			RatePerSecond float64 `yaml:"rate_per_second"`
		} `yaml:"telegram"`
		Email struct {
			Enabled  bool     `yaml:"enabled"`
			SMTPHost string   `yaml:"smtp_host"`
			SMTPPort int      `yaml:"smtp_port"`
			Username string   `yaml:"username"`
			Password string   `yaml:"password"`
			From     string   `yaml:"from"`
			To       []string `yaml:"to"`
		} `yaml:"email"`
		Webhook struct {
			Enabled bool   `yaml:"enabled"`
			URL     string `yaml:"url"`
		} `yaml:"webhook"`
		Console struct {
			Enabled bool `yaml:"enabled"`
		} `yaml:"console"`
	} `yaml:"channels"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	// Secrets may come from the environment instead of the YAML file.
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		config.Channels.Telegram.BotToken = token
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		config.Channels.Email.Password = pass
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Detection.Threshold == 0 {
		c.Detection.Threshold = 0.7
	}
	if c.Detection.LookupBudgetMs == 0 {
		c.Detection.LookupBudgetMs = 1000
	}
	if c.Routing.TimeoutSeconds == 0 {
		c.Routing.TimeoutSeconds = 10
	}
	if c.Routing.MaxWorkers == 0 {
		c.Routing.MaxWorkers = 4
	}
	if c.Throttle.RoomTTLSeconds == 0 {
		c.Throttle.RoomTTLSeconds = 300
	}
	if c.Throttle.HourlyMax == 0 {
		c.Throttle.HourlyMax = 100
	}
	if c.Queue.Stream == "" {
		c.Queue.Stream = "chatwatch:messages"
	}
	if c.Queue.DeadLetterStream == "" {
		c.Queue.DeadLetterStream = "chatwatch:messages:dead"
	}
	if c.Queue.ConsumerGroup == "" {
		c.Queue.ConsumerGroup = "chatwatch"
	}
	if c.Channels.Telegram.RatePerSecond == 0 {
		c.Channels.Telegram.RatePerSecond = 1
	}
}
