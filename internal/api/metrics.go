package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-hub/internal/discovery"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/eventbus"
	"github.com/nerrad567/gray-logic-hub/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-hub/internal/statehistory"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string              `json:"timestamp"`
	Version       string              `json:"version"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	Runtime       RuntimeMetrics      `json:"runtime"`
	WebSocket     WSMetrics           `json:"websocket"`
	MQTT          MQTTMetrics         `json:"mqtt"`
	Devices       DeviceMetrics       `json:"devices"`
	Events        *eventbus.Stats     `json:"events,omitempty"`
	Discovery     *discovery.Stats    `json:"discovery,omitempty"`
	History       *statehistory.Stats `json:"history,omitempty"`
	Notifications NotificationMetrics `json:"notifications"`
	Database      *DatabaseMetrics    `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	Delivered        uint64 `json:"delivered"`
	Dropped          uint64 `json:"dropped"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
	*mqtt.Stats
}

// mqttStatser is implemented by transports that count their traffic.
type mqttStatser interface {
	Stats() mqtt.Stats
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
}

// NotificationMetrics summarises the routing table.
type NotificationMetrics struct {
	Channels      int `json:"channels"`
	Subscriptions int `json:"subscriptions"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: s.wsMetrics(),
		Notifications: NotificationMetrics{
			Channels:      len(s.router.ChannelIDs()),
			Subscriptions: len(s.router.Subscriptions()),
		},
	}

	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{Connected: s.mqtt.IsConnected()}
		if st, ok := s.mqtt.(mqttStatser); ok {
			stats := st.Stats()
			metrics.MQTT.Stats = &stats
		}
	}

	devices := s.registry.List()
	metrics.Devices = DeviceMetrics{Total: len(devices), ByType: make(map[string]int)}
	for _, d := range devices {
		metrics.Devices.ByType[d.Identity.Type]++
	}

	if s.bus != nil {
		stats := s.bus.Stats()
		metrics.Events = &stats
	}
	if s.discovery != nil {
		stats := s.discovery.Stats()
		metrics.Discovery = &stats
	}
	if s.recorder != nil {
		stats := s.recorder.Stats()
		metrics.History = &stats
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

func (s *Server) wsMetrics() WSMetrics {
	delivered, dropped := s.hub.Counters()
	return WSMetrics{
		ConnectedClients: s.hub.ClientCount(),
		Delivered:        delivered,
		Dropped:          dropped,
	}
}
