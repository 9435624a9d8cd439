package internal

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// Server holds HTTP receiver configuration.
	Server struct {
		Port           int    `yaml:"port"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
		WebhookPath    string `yaml:"webhook_path"`
	} `yaml:"server"`
	// Render holds the vendor API and webhook signing configuration.
	Render struct {
		APIBase              string `yaml:"api_base"`
		APIKey               string `yaml:"api_key"`
		WebhookSecret        string `yaml:"webhook_secret"`
		SignatureToleranceMS int64  `yaml:"signature_tolerance_ms"`
	} `yaml:"render"`
	// Discord holds the chat delivery configuration.
	Discord struct {
		Token     string `yaml:"token"`
		ChannelID string `yaml:"channel_id"`
	} `yaml:"discord"`
	// Watermill holds configuration for the in-process dispatch layer.
	Watermill WatermillConfig `yaml:"watermill"`
	// Rules route payloads to topics. When empty, a single rule routing
	// server_failed events to the notify.server_failed topic is installed.
	Rules       []Rule `yaml:"rules"`
	RulesStrict bool   `yaml:"rules_strict"`
	// Worker holds subscriber-side configuration.
	Worker struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"worker"`
}

// WatermillConfig holds the configuration for the message dispatch layer.
type WatermillConfig struct {
	Driver    string          `yaml:"driver"`
	GoChannel GoChannelConfig `yaml:"gochannel"`
}

// GoChannelConfig holds configuration for the GoChannel pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// LoadConfig loads the application configuration from a YAML file. It expands
// environment variables, applies defaults, normalizes rules, and fails when a
// required value is missing - misconfiguration is a startup-fatal condition,
// never a deferred runtime failure.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)
	normalized, err := normalizeRules(cfg.Rules)
	if err != nil {
		return cfg, err
	}
	cfg.Rules = normalized

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = "/webhook"
	}
	if cfg.Render.APIBase == "" {
		cfg.Render.APIBase = "https://api.render.com/v1"
	}
	if cfg.Render.SignatureToleranceMS == 0 {
		cfg.Render.SignatureToleranceMS = 300000
	}
	if cfg.Watermill.Driver == "" {
		cfg.Watermill.Driver = "gochannel"
	}
	if cfg.Watermill.GoChannel.OutputChannelBuffer == 0 {
		cfg.Watermill.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = []Rule{
			{When: `type == "server_failed"`, Emit: TopicServerFailed},
		}
	}
}

// TopicServerFailed is the topic the default rule routes server_failed
// events to.
const TopicServerFailed = "notify.server_failed"

func normalizeRules(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for i := range rules {
		rule := rules[i]
		rule.When = strings.TrimSpace(rule.When)
		rule.Emit = strings.TrimSpace(rule.Emit)
		if rule.When == "" || rule.Emit == "" {
			return nil, fmt.Errorf("rule %d is missing when or emit", i)
		}
		out = append(out, rule)
	}
	return out, nil
}

func validate(cfg Config) error {
	var missing []string
	if cfg.Render.APIKey == "" {
		missing = append(missing, "render.api_key")
	}
	if cfg.Render.WebhookSecret == "" {
		missing = append(missing, "render.webhook_secret")
	}
	if cfg.Discord.Token == "" {
		missing = append(missing, "discord.token")
	}
	if cfg.Discord.ChannelID == "" {
		missing = append(missing, "discord.channel_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}
