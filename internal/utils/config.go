package utils

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wuwenbin0122/webhook-chat/internal/chat"
)

// disabledGreeting turns the greeting off when used as CHAT_GREETING.
const disabledGreeting = "-"

type Config struct {
	ServerPort string
	Webhook    WebhookConfig
	Widget     WidgetConfig
	Logging    LoggingConfig
}

type WebhookConfig struct {
	Endpoint string
	Timeout  time.Duration
}

type WidgetConfig struct {
	SessionPrefix string
	Greeting      string
}

type LoggingConfig struct {
	Level        string
	Encoding     string
	Development  bool
	EnableCaller bool
	ServiceName  string
	OutputPath   string
}

// SessionOptions maps the widget settings onto chat.Options.
func (w WidgetConfig) SessionOptions() chat.Options {
	return chat.Options{
		IDPrefix: w.SessionPrefix,
		Greeting: w.Greeting,
	}
}

func LoadConfig() (*Config, error) {
	endpoint := strings.TrimSpace(os.Getenv("CHAT_WEBHOOK_URL"))
	if endpoint == "" {
		endpoint = strings.TrimSpace(os.Getenv("N8N_ENDPOINT"))
	}

	greeting := envOrDefault("CHAT_GREETING", chat.DefaultGreeting)
	if strings.TrimSpace(greeting) == disabledGreeting {
		greeting = ""
	}

	cfg := &Config{
		ServerPort: envOrDefault("PORT", "8080"),
		Webhook: WebhookConfig{
			Endpoint: endpoint,
			Timeout:  parseDuration(envOrDefault("CHAT_WEBHOOK_TIMEOUT", "30s"), 30*time.Second),
		},
		Widget: WidgetConfig{
			SessionPrefix: envOrDefault("CHAT_SESSION_PREFIX", chat.DefaultIDPrefix),
			Greeting:      greeting,
		},
		Logging: LoggingConfig{
			Level:        strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
			Encoding:     strings.ToLower(envOrDefault("LOG_ENCODING", "console")),
			Development:  parseBool(envOrDefault("LOG_DEVELOPMENT", "false"), false),
			EnableCaller: parseBool(envOrDefault("LOG_CALLER", "false"), false),
			ServiceName:  envOrDefault("SERVICE_NAME", "webhook-chat"),
			OutputPath:   envOrDefault("LOG_FILE", "stdout"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports every missing or malformed setting at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Webhook.Endpoint == "" {
		problems = append(problems, "CHAT_WEBHOOK_URL is required")
	} else if err := validateEndpoint(c.Webhook.Endpoint); err != nil {
		problems = append(problems, fmt.Sprintf("CHAT_WEBHOOK_URL: %v", err))
	}

	if port, err := strconv.Atoi(c.ServerPort); err != nil || port <= 0 || port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT: invalid port %q", c.ServerPort))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}

	return nil
}

func validateEndpoint(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("host is missing")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}
