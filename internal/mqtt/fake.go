package mqtt

import "sync"

// Message is a message recorded by FakeClient.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeClient records publishes for test assertions.
type FakeClient struct {
	mu sync.Mutex

	// Published contains every message accepted, in order.
	Published []Message

	// Subscriptions maps subscribed topics to their handlers.
	Subscriptions map[string]func(topic string, payload []byte)

	// PublishError, if set, is returned by Publish.
	PublishError error

	// SubscribeError, if set, is returned by Subscribe.
	SubscribeError error

	// Connected controls the return value of IsConnected.
	Connected bool

	// Disconnected tracks if Disconnect was called.
	Disconnected bool
}

// NewFakeClient creates a connected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Connected:     true,
		Subscriptions: make(map[string]func(string, []byte)),
	}
}

// Publish records the message.
func (f *FakeClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Published = append(f.Published, Message{Topic: topic, QoS: qos, Retained: retained, Payload: payload})
	return nil
}

// Subscribe records the handler.
func (f *FakeClient) Subscribe(topic string, qos byte, handle func(topic string, payload []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubscribeError != nil {
		return f.SubscribeError
	}
	f.Subscriptions[topic] = handle
	return nil
}

// IsConnected reports whether the fake is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Disconnect marks the client as disconnected.
func (f *FakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = false
	f.Disconnected = true
}

// Deliver hands payload to the handler subscribed to topic. It reports false
// if nothing is subscribed.
func (f *FakeClient) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	h := f.Subscriptions[topic]
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(topic, payload)
	return true
}

// Messages returns a copy of the published messages.
func (f *FakeClient) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.Published...)
}

// SetConnected changes the connection state.
func (f *FakeClient) SetConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = v
}
