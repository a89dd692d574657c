package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// PushoverEndpoint is the Pushover message API.
const PushoverEndpoint = "https://api.pushover.net/1/messages.json"

// PushoverConfig holds the credentials of one Pushover destination.
type PushoverConfig struct {
	Token string // application token
	User  string // user or group key

	// Endpoint overrides PushoverEndpoint.
	Endpoint string
	Breaker  BreakerSettings
	Client   *http.Client
}

// Pushover sends notifications through the Pushover API.
type Pushover struct {
	cfg    PushoverConfig
	sender *httpSender
	logger Logger
}

// NewPushover creates a Pushover channel.
func NewPushover(cfg PushoverConfig, logger Logger) (*Pushover, error) {
	if cfg.Token == "" || cfg.User == "" {
		return nil, fmt.Errorf("%w: pushover needs token and user", ErrMissingCredentials)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = PushoverEndpoint
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pushover{
		cfg:    cfg,
		sender: newHTTPSender("pushover", cfg.Client, cfg.Breaker, logger),
		logger: logger,
	}, nil
}

// SendTextMessage posts title and body as one Pushover message.
func (p *Pushover) SendTextMessage(ctx context.Context, title, body string) {
	if err := p.Send(ctx, title, body); err != nil {
		p.logger.Error("pushover notification failed", "title", title, "error", err)
	}
}

// Send is SendTextMessage with the delivery error returned.
func (p *Pushover) Send(ctx context.Context, title, body string) error {
	form := url.Values{
		"token":   {p.cfg.Token},
		"user":    {p.cfg.User},
		"title":   {title},
		"message": {body},
	}
	return p.sender.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

// BreakerState reports the circuit breaker state.
func (p *Pushover) BreakerState() string {
	return p.sender.State()
}
