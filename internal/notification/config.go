package notification

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// FileConfig is the notification subscription file.
//
//	push_notifications:
//	  - channel_id: phoneA
//	    events:
//	      - type: WindowStateChanged
//	        devices:
//	          - { id: win-1, type: window }
//	      - type: ConfigSaveFailed
type FileConfig struct {
	PushNotifications []ChannelConfig `yaml:"push_notifications"`
}

// ChannelConfig lists the events routed to one channel.
type ChannelConfig struct {
	ChannelID string        `yaml:"channel_id"`
	Events    []EventConfig `yaml:"events"`
}

// EventConfig names a kind and, for device kinds, an optional device scope.
type EventConfig struct {
	Type    string      `yaml:"type"`
	Devices []DeviceRef `yaml:"devices"`
}

// DeviceRef identifies one device in a subscription scope.
type DeviceRef struct {
	ID   string `yaml:"id" json:"id"`
	Type string `yaml:"type" json:"type"`
}

// Identity converts the reference to a device identity.
func (d DeviceRef) Identity() device.Identity {
	return device.NewIdentity(d.ID, d.Type)
}

// ReadFileConfig parses the subscription file at path.
// A missing file yields an empty config and an error wrapping os.ErrNotExist.
func ReadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading notification config: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing notification config: %w", err)
	}
	return &cfg, nil
}

// LoadSubscriptions reads the subscription file at path and applies it to
// router. A missing file is not an error. See Apply for entry handling.
func LoadSubscriptions(path string, router *Router, logger Logger) (int, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	cfg, err := ReadFileConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("no notification config found", "path", path)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return cfg.Apply(router, logger)
}

// Apply registers every entry with router and returns how many were added.
//
// An unknown event type skips that entry with a warning. An entry naming an
// unknown channel fails on its own; loading continues and the failures are
// returned joined.
func (c *FileConfig) Apply(router *Router, logger Logger) (int, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	var errs []error
	added := 0
	for _, ch := range c.PushNotifications {
		for _, ev := range ch.Events {
			sub, err := ev.toSubscription(ch.ChannelID)
			if err != nil {
				logger.Warn("skipping notification subscription",
					"channel_id", ch.ChannelID,
					"type", ev.Type,
					"error", err,
				)
				continue
			}
			if err := Apply(router, sub); err != nil {
				logger.Error("notification subscription rejected",
					"channel_id", ch.ChannelID,
					"type", ev.Type,
					"error", err,
				)
				errs = append(errs, err)
				continue
			}
			added++
		}
	}

	logger.Info("notification subscriptions loaded", "count", added)
	return added, errors.Join(errs...)
}

func (e EventConfig) toSubscription(channelID string) (Subscription, error) {
	kind, err := event.ParseKind(e.Type)
	if err != nil {
		return Subscription{}, fmt.Errorf("%w: %w", ErrUnsupportedEventKind, err)
	}

	sub := Subscription{Kind: kind, ChannelID: channelID, Global: !kind.DeviceScoped()}
	if sub.Global {
		return sub, nil
	}
	for _, ref := range e.Devices {
		id := ref.Identity()
		if err := id.Validate(); err != nil {
			return Subscription{}, fmt.Errorf("%w: %w", ErrInvalidSubscription, err)
		}
		sub.Devices = append(sub.Devices, id)
	}
	return sub, nil
}

// Apply registers sub with router, choosing Subscribe or SubscribeGlobal.
func Apply(router *Router, sub Subscription) error {
	if sub.Global {
		return router.SubscribeGlobal(sub.Kind, sub.ChannelID)
	}
	return router.Subscribe(sub.Kind, sub.ChannelID, sub.Devices...)
}
