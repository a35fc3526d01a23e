package webhook

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const maxSnippetBytes = 256

// ErrExchangeFailed is matched by every error returned from Client.Exchange.
var ErrExchangeFailed = errors.New("webhook: exchange failed")

// Kind narrows down why an exchange failed. Callers that only need the user-facing
// outcome can ignore it and test for ErrExchangeFailed.
type Kind string

const (
	KindTransport Kind = "transport"
	KindStatus    Kind = "status"
	KindDecode    Kind = "decode"
)

// ExchangeError describes a failed webhook round trip.
type ExchangeError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *ExchangeError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("webhook %s error (%d): %v", e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("webhook %s error (%d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("webhook %s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("webhook %s error", e.Kind)
	}
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}

func (e *ExchangeError) Is(target error) bool {
	return target == ErrExchangeFailed
}

func transportError(err error) error {
	return &ExchangeError{Kind: KindTransport, Err: err}
}

func decodeError(statusCode int, err error) error {
	return &ExchangeError{Kind: KindDecode, StatusCode: statusCode, Err: err}
}

func statusError(statusCode int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if snippet == "" {
		snippet = http.StatusText(statusCode)
	}
	if len(snippet) > maxSnippetBytes {
		cut := maxSnippetBytes
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut]
	}

	return &ExchangeError{Kind: KindStatus, StatusCode: statusCode, Err: errors.New(snippet)}
}
