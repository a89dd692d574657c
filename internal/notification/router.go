package notification

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nerrad567/gray-logic-hub/internal/device"
	"github.com/nerrad567/gray-logic-hub/internal/event"
)

// DefaultResolveCacheSize is the number of resolve results kept by NewRouter
// when no size is given.
const DefaultResolveCacheSize = 1024

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Channel is a push notification destination.
//
// SendTextMessage is fire-and-forget: delivery failures are the channel's own
// concern and are logged by the implementation.
type Channel interface {
	SendTextMessage(ctx context.Context, title, body string)
}

// Target is a resolved channel together with the id it is registered under.
type Target struct {
	ID      string
	Channel Channel
}

// Subscription is a read-only view of one routing entry.
type Subscription struct {
	Kind      event.Kind        `json:"kind"`
	ChannelID string            `json:"channel_id"`
	Global    bool              `json:"global"`
	Devices   []device.Identity `json:"devices,omitempty"`
}

// scopedSub is a device subscription. A nil devices set matches every device.
type scopedSub struct {
	channelID string
	devices   map[device.Identity]struct{}
}

func (s scopedSub) matches(id device.Identity) bool {
	if s.devices == nil {
		return true
	}
	_, ok := s.devices[id]
	return ok
}

// cacheKey identifies a resolve result for one routing generation.
type cacheKey struct {
	gen    uint64
	kind   event.Kind
	device device.Identity
	global bool
}

// Router maps event kinds to notification channels.
//
// Subscriptions are stored per kind. Resolving an event walks the event
// kind's lineage (most specific first) and collects every subscription
// registered on any kind in it, so a subscription on an abstract kind
// receives all of its concrete subtypes.
//
// Writes bump a generation counter; resolve results are cached per
// generation, so a write invalidates all cached results at once.
//
// All public methods are thread-safe.
type Router struct {
	mu       sync.RWMutex
	channels map[string]Channel
	scoped   map[event.Kind][]scopedSub
	global   map[event.Kind]map[string]struct{}
	gen      uint64 // guarded by mu

	cache  *lru.Cache[cacheKey, []string] // nil when caching is disabled
	logger Logger
}

// NewRouter creates an empty router. cacheSize bounds the resolve cache;
// zero or a negative size disables caching.
func NewRouter(cacheSize int) *Router {
	r := &Router{
		channels: make(map[string]Channel),
		scoped:   make(map[event.Kind][]scopedSub),
		global:   make(map[event.Kind]map[string]struct{}),
		logger:   noopLogger{},
	}
	if cacheSize > 0 {
		// lru.New only fails for non-positive sizes.
		r.cache, _ = lru.New[cacheKey, []string](cacheSize) //nolint:errcheck // size checked above
	}
	return r
}

// SetLogger sets the logger for the router.
func (r *Router) SetLogger(logger Logger) {
	r.logger = logger
}

// AddChannel registers ch under id, replacing any channel already there.
func (r *Router) AddChannel(id string, ch Channel) {
	r.mu.Lock()
	_, replaced := r.channels[id]
	r.channels[id] = ch
	r.gen++
	r.mu.Unlock()

	r.logger.Info("notification channel added", "channel_id", id, "replaced", replaced)
}

// RemoveChannel drops the channel registered under id. Subscriptions that
// point at it stay recorded but resolve to nothing until a channel with the
// same id is added again.
func (r *Router) RemoveChannel(id string) {
	r.mu.Lock()
	delete(r.channels, id)
	r.gen++
	r.mu.Unlock()
}

// Subscribe routes events of kind (and its subtypes) about the given devices
// to channelID. With no devices the subscription matches every device.
//
// It fails with ErrUnsupportedEventKind for kinds outside the catalog and
// with ErrUnknownChannel when channelID has not been added.
func (r *Router) Subscribe(kind event.Kind, channelID string, devices ...device.Identity) error {
	if !kind.Known() {
		return fmt.Errorf("%w: %q", ErrUnsupportedEventKind, kind)
	}

	sub := scopedSub{channelID: channelID}
	if len(devices) > 0 {
		sub.devices = make(map[device.Identity]struct{}, len(devices))
		for _, d := range devices {
			sub.devices[d] = struct{}{}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[channelID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channelID)
	}
	r.scoped[kind] = append(r.scoped[kind], sub)
	r.gen++
	return nil
}

// SubscribeGlobal routes events of kind that carry no device context to
// channelID.
func (r *Router) SubscribeGlobal(kind event.Kind, channelID string) error {
	if !kind.Known() {
		return fmt.Errorf("%w: %q", ErrUnsupportedEventKind, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.channels[channelID]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownChannel, channelID)
	}
	ids, ok := r.global[kind]
	if !ok {
		ids = make(map[string]struct{})
		r.global[kind] = ids
	}
	ids[channelID] = struct{}{}
	r.gen++
	return nil
}

// Resolve returns the channels subscribed to kind, or to any supertype of
// it, whose device scope is empty or contains id. Targets are unique and
// ordered by channel id.
func (r *Router) Resolve(kind event.Kind, id device.Identity) []Target {
	return r.resolve(cacheKey{kind: kind, device: id}, func() []string {
		set := make(map[string]struct{})
		for _, k := range kind.Lineage() {
			for _, sub := range r.scoped[k] {
				if sub.matches(id) {
					set[sub.channelID] = struct{}{}
				}
			}
		}
		return sortedKeys(set)
	})
}

// ResolveGlobal returns the channels subscribed to kind, or to any
// supertype of it, without device scoping.
func (r *Router) ResolveGlobal(kind event.Kind) []Target {
	return r.resolve(cacheKey{kind: kind, global: true}, func() []string {
		set := make(map[string]struct{})
		for _, k := range kind.Lineage() {
			for channelID := range r.global[k] {
				set[channelID] = struct{}{}
			}
		}
		return sortedKeys(set)
	})
}

// resolve serves ids from the cache when possible and maps them through the
// live channel table, dropping ids whose channel has been removed.
// match runs under the read lock.
func (r *Router) resolve(key cacheKey, match func() []string) []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key.gen = r.gen
	var ids []string
	cached := false
	if r.cache != nil {
		ids, cached = r.cache.Get(key)
	}
	if !cached {
		ids = match()
		if r.cache != nil {
			r.cache.Add(key, ids)
		}
	}

	targets := make([]Target, 0, len(ids))
	for _, channelID := range ids {
		if ch, ok := r.channels[channelID]; ok {
			targets = append(targets, Target{ID: channelID, Channel: ch})
		}
	}
	return targets
}

// Channel returns the channel registered under id.
func (r *Router) Channel(id string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[id]
	return ch, ok
}

// ChannelIDs returns the registered channel ids in order.
func (r *Router) ChannelIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make(map[string]struct{}, len(r.channels))
	for id := range r.channels {
		set[id] = struct{}{}
	}
	return sortedKeys(set)
}

// Subscriptions returns a snapshot of every routing entry, global entries
// last, ordered by kind then channel id.
func (r *Router) Subscriptions() []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var subs []Subscription
	for kind, entries := range r.scoped {
		for _, e := range entries {
			s := Subscription{Kind: kind, ChannelID: e.channelID}
			for id := range e.devices {
				s.Devices = append(s.Devices, id)
			}
			slices.SortFunc(s.Devices, func(a, b device.Identity) int {
				return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.ID, b.ID))
			})
			subs = append(subs, s)
		}
	}
	for kind, ids := range r.global {
		for channelID := range ids {
			subs = append(subs, Subscription{Kind: kind, ChannelID: channelID, Global: true})
		}
	}

	slices.SortStableFunc(subs, func(a, b Subscription) int {
		return cmp.Or(
			compareBool(a.Global, b.Global),
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.ChannelID, b.ChannelID),
		)
	})
	return subs
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// compareBool orders false before true.
func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}
