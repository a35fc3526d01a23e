package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/wuwenbin0122/webhook-chat/internal/chat"
	"github.com/wuwenbin0122/webhook-chat/internal/utils"
	"github.com/wuwenbin0122/webhook-chat/internal/webhook"
	"github.com/wuwenbin0122/webhook-chat/internal/widget"
)

func main() {
	_ = godotenv.Load()

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to initialise: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	sugar := logger.Sugar()

	client := webhook.NewClient(cfg.Webhook.Endpoint, cfg.Webhook.Timeout, sugar.Named("webhook"))
	relay := widget.NewRelay(sugar.Named("widget"))

	opts := cfg.Widget.SessionOptions()
	opts.Listener = relay
	opts.Logger = sugar.Named("session")
	session := chat.NewSession(chat.NewCoordinator(client, sugar.Named("chat")), opts)
	sugar.Infow("widget session mounted", "session_id", session.ID(), "webhook", client.Endpoint())

	p := tea.NewProgram(widget.NewModel(session, relay), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "widget: %v\n", err)
		os.Exit(1)
	}

	session.Discard()
}

// newLogger keeps the terminal clean: logs go to LOG_FILE or nowhere.
func newLogger(cfg utils.LoggingConfig) (*zap.Logger, error) {
	if strings.TrimSpace(os.Getenv("LOG_FILE")) == "" {
		return zap.NewNop(), nil
	}
	return utils.NewLogger(cfg)
}
