package channel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/gray-logic-hub/internal/notification"
)

var (
	_ notification.Channel = (*Pushover)(nil)
	_ notification.Channel = (*Pushbullet)(nil)
	_ notification.Channel = (*MQTT)(nil)
	_ notification.Channel = (*Log)(nil)
)

func TestPushover_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		got = map[string]string{
			"token":   r.PostForm.Get("token"),
			"user":    r.PostForm.Get("user"),
			"title":   r.PostForm.Get("title"),
			"message": r.PostForm.Get("message"),
		}
		w.Write([]byte(`{"status":1}`)) //nolint:errcheck
	}))
	defer srv.Close()

	p, err := NewPushover(PushoverConfig{Token: "app", User: "me", Endpoint: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewPushover() error = %v", err)
	}
	if err := p.Send(context.Background(), "Kitchen window", "window opened"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	want := map[string]string{"token": "app", "user": "me", "title": "Kitchen window", "message": "window opened"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("form[%s] = %q, want %q", k, got[k], v)
		}
	}
}

func TestPushover_MissingCredentials(t *testing.T) {
	if _, err := NewPushover(PushoverConfig{Token: "app"}, nil); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("NewPushover() error = %v, want ErrMissingCredentials", err)
	}
}

func TestPushbullet_Send(t *testing.T) {
	var note pushbulletNote
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("Access-Token")
		if err := json.NewDecoder(r.Body).Decode(&note); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p, err := NewPushbullet(PushbulletConfig{Token: "secret", Endpoint: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewPushbullet() error = %v", err)
	}
	if err := p.Send(context.Background(), "Smoke", "smoke detected"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if token != "secret" {
		t.Errorf("Access-Token = %q, want secret", token)
	}
	if note != (pushbulletNote{Type: "note", Title: "Smoke", Body: "smoke detected"}) {
		t.Errorf("note = %+v", note)
	}
}

func TestPushbullet_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := NewPushbullet(PushbulletConfig{Token: "bad", Endpoint: srv.URL}, nil)
	if err != nil {
		t.Fatalf("NewPushbullet() error = %v", err)
	}
	if err := p.Send(context.Background(), "t", "b"); !errors.Is(err, ErrDeliveryFailed) {
		t.Errorf("Send() error = %v, want ErrDeliveryFailed", err)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, err := NewPushover(PushoverConfig{
		Token:    "app",
		User:     "me",
		Endpoint: srv.URL,
		Breaker:  BreakerSettings{FailureThreshold: 2, OpenTimeout: time.Hour},
	}, nil)
	if err != nil {
		t.Fatalf("NewPushover() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := p.Send(context.Background(), "t", "b"); !errors.Is(err, ErrDeliveryFailed) {
			t.Fatalf("Send() #%d error = %v, want ErrDeliveryFailed", i, err)
		}
	}
	if state := p.BreakerState(); state != "open" {
		t.Fatalf("BreakerState() = %q, want open", state)
	}

	if err := p.Send(context.Background(), "t", "b"); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Send() with open breaker error = %v, want ErrOpenState", err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("provider calls = %d, want 2", n)
	}
}

// mockPublisher records MQTT publishes.
type mockPublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (m *mockPublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	m.payloads = append(m.payloads, payload)
	return m.err
}

func TestMQTT_SendTextMessage(t *testing.T) {
	pub := &mockPublisher{}
	ch := NewMQTT(pub, "graylogic/ui/panel-1/notification", 1, nil)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ch.now = func() time.Time { return fixed }

	ch.SendTextMessage(context.Background(), "Front door", "opened")

	if len(pub.topics) != 1 || pub.topics[0] != "graylogic/ui/panel-1/notification" {
		t.Fatalf("topics = %v", pub.topics)
	}
	var n uiNotification
	if err := json.Unmarshal(pub.payloads[0], &n); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if n.Title != "Front door" || n.Message != "opened" || !n.Timestamp.Equal(fixed) {
		t.Errorf("payload = %+v", n)
	}
}

func TestMQTT_PublishErrorIsSwallowed(t *testing.T) {
	pub := &mockPublisher{err: errors.New("not connected")}
	ch := NewMQTT(pub, "t", 0, nil)
	ch.SendTextMessage(context.Background(), "a", "b")
	if len(pub.topics) != 1 {
		t.Errorf("publishes = %d, want 1", len(pub.topics))
	}
}
