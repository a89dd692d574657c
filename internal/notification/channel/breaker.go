package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Default circuit breaker and HTTP settings.
const (
	DefaultFailureThreshold = 5
	DefaultOpenTimeout      = 60 * time.Second
	DefaultRequestTimeout   = 10 * time.Second

	// maxErrorBody bounds how much of a provider's error response is logged.
	maxErrorBody = 512
)

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// BreakerSettings configures the circuit breaker around a provider.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold uint32

	// OpenTimeout is how long the breaker stays open before letting a
	// probe request through.
	OpenTimeout time.Duration
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = DefaultOpenTimeout
	}
	return s
}

// httpSender posts requests to a provider through a circuit breaker.
type httpSender struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  Logger
}

func newHTTPSender(name string, client *http.Client, settings BreakerSettings, logger Logger) *httpSender {
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if logger == nil {
		logger = noopLogger{}
	}
	settings = settings.withDefaults()

	s := &httpSender{name: name, client: client, logger: logger}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("notification channel breaker state changed",
				"channel", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return s
}

// do runs the request built by newReq through the breaker. Any non-2xx
// status counts as a failure.
func (s *httpSender) do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) error {
	_, err := s.breaker.Execute(func() (any, error) {
		req, err := newReq(ctx)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best-effort diagnostics
			return nil, fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, body)
		}
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for keep-alive
		return nil, nil
	})
	return err
}

// State reports the breaker state ("closed", "half-open" or "open").
func (s *httpSender) State() string {
	return s.breaker.State().String()
}
