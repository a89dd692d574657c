package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/event"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/eventbus"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-hub/internal/notification"
	"github.com/nerrad567/gray-logic-hub/internal/statehistory"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceRegistry is the read side of the device registry.
type DeviceRegistry interface {
	Lookup(id device.Identity) (device.Device, error)
	List() []device.Device
	Count() int
}

// EventBus is the part of the event bus the server uses.
type EventBus interface {
	Subscribe(ctx context.Context, kind event.Kind, handler eventbus.Handler) error
	Stats() eventbus.Stats
}

// ReadingsProvider returns the last known readings of a live device.
type ReadingsProvider interface {
	Readings(id device.Identity) (map[string]string, bool)
}

// ConnectionChecker reports transport connectivity.
type ConnectionChecker interface {
	IsConnected() bool
}

// DiscoveryStats exposes discovery counters.
type DiscoveryStats interface {
	Stats() discovery.Stats
}

// HistoryStats exposes state history recorder counters.
type HistoryStats interface {
	Stats() statehistory.Stats
}

// Deps holds the dependencies required by the API server. Logger, Registry
// and Router are required; everything else is optional.
type Deps struct {
	Config        config.APIConfig
	WS            config.WebSocketConfig
	Logger        *logging.Logger
	Registry      DeviceRegistry
	Router        *notification.Router
	Subscriptions notification.Repository
	History       statehistory.Repository
	Readings      ReadingsProvider
	Bus           EventBus
	MQTT          ConnectionChecker
	Discovery     DiscoveryStats
	Recorder      HistoryStats
	DB            *sql.DB
	Version       string
}

// Server is the HTTP API server of the hub.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg           config.APIConfig
	wsCfg         config.WebSocketConfig
	logger        *logging.Logger
	registry      DeviceRegistry
	router        *notification.Router
	subscriptions notification.Repository
	history       statehistory.Repository
	readings      ReadingsProvider
	bus           EventBus
	mqtt          ConnectionChecker
	discovery     DiscoveryStats
	recorder      HistoryStats
	db            *sql.DB
	version       string
	startTime     time.Time
	server        *http.Server
	hub           *Hub
	cancel        context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("notification router is required")
	}

	return &Server{
		cfg:           deps.Config,
		wsCfg:         deps.WS,
		logger:        deps.Logger,
		registry:      deps.Registry,
		router:        deps.Router,
		subscriptions: deps.Subscriptions,
		history:       deps.History,
		readings:      deps.Readings,
		bus:           deps.Bus,
		mqtt:          deps.MQTT,
		discovery:     deps.Discovery,
		recorder:      deps.Recorder,
		db:            deps.DB,
		version:       deps.Version,
		startTime:     time.Now(),
		hub:           NewHub(deps.WS, deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes the hub to the event bus, and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	if s.bus != nil {
		if err := s.hub.Attach(srvCtx, s.bus); err != nil {
			s.logger.Warn("failed to subscribe websocket hub to events", "error", err)
		}
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// Handler returns the HTTP handler with every route and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}
