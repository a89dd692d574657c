package mqtt

import "fmt"

// Subscribe registers handler for filter. Filters may use the "+" and "#"
// wildcards; overlapping filters each receive a matching message.
//
// Subscriptions are tracked and restored after a reconnect. A handler may
// call Subscribe itself: discovery does this to attach a new device's
// canonical topic from inside the tree-wide handler.
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	switch {
	case filter == "":
		return ErrInvalidTopic
	case !ValidFilter(filter):
		return fmt.Errorf("%w: malformed filter %q", ErrInvalidTopic, filter)
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	case !c.IsConnected():
		return ErrNotConnected
	}

	c.track(subscription{topic: filter, qos: qos, handler: handler})
	if err := await(c.client.Subscribe(filter, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		c.untrack(filter)
		return err
	}
	return nil
}

// Unsubscribe removes the subscription for filter. Messages already in
// flight may still be delivered.
func (c *Client) Unsubscribe(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.untrack(filter)
	return await(c.client.Unsubscribe(filter), ErrUnsubscribeFailed)
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

func (c *Client) track(sub subscription) {
	c.subMu.Lock()
	c.subscriptions[sub.topic] = sub
	c.subMu.Unlock()
}

func (c *Client) untrack(filter string) {
	c.subMu.Lock()
	delete(c.subscriptions, filter)
	c.subMu.Unlock()
}
