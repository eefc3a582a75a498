package htm

// ConnectionsEventHandler is the capability set a subscriber to a
// Connections instance implements. All five methods are invoked
// synchronously, before the mutating call that triggered them returns.
type ConnectionsEventHandler interface {
	OnCreateSegment(segment Segment)
	OnDestroySegment(segment Segment)
	OnCreateSynapse(synapse Synapse)
	OnDestroySynapse(synapse Synapse)
	OnUpdateSynapsePermanence(synapse Synapse, permanence float32)
}

type subscriberEntry struct {
	token   uint32
	handler ConnectionsEventHandler
}

// Subscribe registers handler and returns a token that Unsubscribe
// accepts to remove it. Handlers are notified in subscription order.
func (c *Connections) Subscribe(handler ConnectionsEventHandler) uint32 {
	token := c.nextEventToken
	c.nextEventToken++
	c.subscribers = append(c.subscribers, subscriberEntry{token: token, handler: handler})
	return token
}

// Unsubscribe removes the handler registered under token. It returns
// InvalidArgument if token is not currently registered.
func (c *Connections) Unsubscribe(token uint32) error {
	for i, e := range c.subscribers {
		if e.token == token {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			return nil
		}
	}
	return newError(InvalidArgument, "unknown subscriber token %d", token)
}

func (c *Connections) notifyCreateSegment(segment Segment) {
	for _, e := range c.subscribers {
		e.handler.OnCreateSegment(segment)
	}
}

func (c *Connections) notifyDestroySegment(segment Segment) {
	for _, e := range c.subscribers {
		e.handler.OnDestroySegment(segment)
	}
}

func (c *Connections) notifyCreateSynapse(synapse Synapse) {
	for _, e := range c.subscribers {
		e.handler.OnCreateSynapse(synapse)
	}
}

func (c *Connections) notifyDestroySynapse(synapse Synapse) {
	for _, e := range c.subscribers {
		e.handler.OnDestroySynapse(synapse)
	}
}

func (c *Connections) notifyUpdateSynapsePermanence(synapse Synapse, permanence float32) {
	for _, e := range c.subscribers {
		e.handler.OnUpdateSynapsePermanence(synapse, permanence)
	}
}
