package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/wuwenbin0122/webhook-chat/internal/webhook"
	"go.uber.org/zap"
)

// FailureNotice is the only text shown to the user when an exchange fails.
const FailureNotice = "Failed to send message. Please check your n8n endpoint configuration."

// Exchanger performs one request/response round trip with the webhook.
type Exchanger interface {
	Exchange(ctx context.Context, text, conversationID string) (string, error)
}

// Coordinator runs exchanges on behalf of sessions and routes the outcome back
// to them.
type Coordinator struct {
	exchanger Exchanger
	logger    *zap.SugaredLogger
}

// NewCoordinator wires a Coordinator to exchanger.
func NewCoordinator(exchanger Exchanger, logger *zap.SugaredLogger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Coordinator{exchanger: exchanger, logger: logger}
}

func (c *Coordinator) run(ctx context.Context, s *Session, text string) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("exchange panicked: %v", r)
			c.logger.Errorw("error sending message", "session_id", s.ID(), "error", err)
			s.OnFailure(err)
		}
	}()

	if c.exchanger == nil {
		err := errors.New("no exchanger configured")
		c.logger.Errorw("error sending message", "session_id", s.ID(), "error", err)
		s.OnFailure(err)
		return
	}

	reply, err := c.exchanger.Exchange(ctx, text, s.ID())
	if err != nil {
		fields := []interface{}{"session_id", s.ID(), "error", err}
		var exchangeErr *webhook.ExchangeError
		if errors.As(err, &exchangeErr) {
			fields = append(fields, "kind", exchangeErr.Kind, "status", exchangeErr.StatusCode)
		}
		c.logger.Errorw("error sending message", fields...)
		s.OnFailure(err)
		return
	}

	s.OnResult(reply)
}
