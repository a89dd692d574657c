package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// PushbulletEndpoint is the Pushbullet pushes API.
const PushbulletEndpoint = "https://api.pushbullet.com/v2/pushes"

// PushbulletConfig holds the access token of one Pushbullet account.
type PushbulletConfig struct {
	Token string

	// Endpoint overrides PushbulletEndpoint.
	Endpoint string
	Breaker  BreakerSettings
	Client   *http.Client
}

// Pushbullet sends notifications as Pushbullet notes.
type Pushbullet struct {
	cfg    PushbulletConfig
	sender *httpSender
	logger Logger
}

type pushbulletNote struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewPushbullet creates a Pushbullet channel.
func NewPushbullet(cfg PushbulletConfig, logger Logger) (*Pushbullet, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: pushbullet needs a token", ErrMissingCredentials)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = PushbulletEndpoint
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pushbullet{
		cfg:    cfg,
		sender: newHTTPSender("pushbullet", cfg.Client, cfg.Breaker, logger),
		logger: logger,
	}, nil
}

// SendTextMessage pushes a note with title and body.
func (p *Pushbullet) SendTextMessage(ctx context.Context, title, body string) {
	if err := p.Send(ctx, title, body); err != nil {
		p.logger.Error("pushbullet notification failed", "title", title, "error", err)
	}
}

// Send is SendTextMessage with the delivery error returned.
func (p *Pushbullet) Send(ctx context.Context, title, body string) error {
	payload, err := json.Marshal(pushbulletNote{Type: "note", Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("marshalling note: %w", err)
	}
	return p.sender.do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Access-Token", p.cfg.Token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// BreakerState reports the circuit breaker state.
func (p *Pushbullet) BreakerState() string {
	return p.sender.State()
}
