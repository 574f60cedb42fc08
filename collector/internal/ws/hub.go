// Package ws fans collector events out to websocket and SSE subscribers.
package ws

import "sync"

const (
	TopicReadings  = "readings"
	TopicSummaries = "summaries"
)

// DefaultOutboxSize is the number of frames queued per subscriber before it
// is evicted as too slow.
const DefaultOutboxSize = 32

// ValidTopic reports whether topic is served by the feed.
func ValidTopic(topic string) bool {
	return topic == TopicReadings || topic == TopicSummaries
}

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// outbox queues frames for one subscriber and writes them from its own
// goroutine, so a stalled client never blocks the hub loop.
type outbox struct {
	client Subscriber
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func newOutbox(client Subscriber, size int) *outbox {
	o := &outbox{client: client, frames: make(chan []byte, size), done: make(chan struct{})}
	go o.run()
	return o
}

func (o *outbox) run() {
	for {
		select {
		case <-o.done:
			return
		case frame := <-o.frames:
			if err := o.client.Send(frame); err != nil {
				o.stop()
				return
			}
		}
	}
}

// offer queues frame without blocking. It reports false when the outbox is
// full or stopped.
func (o *outbox) offer(frame []byte) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.frames <- frame:
		return true
	default:
		return false
	}
}

func (o *outbox) stopped() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

func (o *outbox) stop() {
	o.once.Do(func() {
		close(o.done)
		go o.client.Close()
	})
}

// Hub manages stream subscriptions by topic.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[Subscriber]*outbox
	outboxSize int
	register   chan subscription
	unreg      chan subscription
	broadcast  chan message
	done       chan struct{}
	closeOnce  sync.Once
}

type message struct {
	topic   string
	payload []byte
}

type subscription struct {
	topic  string
	client Subscriber
	ack    chan struct{}
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithOutboxSize sets the per-subscriber queue length.
func WithOutboxSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.outboxSize = n
		}
	}
}

// NewHub creates an initialized Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[string]map[Subscriber]*outbox),
		outboxSize: DefaultOutboxSize,
		register:   make(chan subscription),
		unreg:      make(chan subscription),
		broadcast:  make(chan message),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for topic, clients := range h.clients {
				for _, box := range clients {
					box.stop()
				}
				delete(h.clients, topic)
			}
			h.mu.Unlock()
			return
		case sub := <-h.register:
			h.mu.Lock()
			if _, ok := h.clients[sub.topic]; !ok {
				h.clients[sub.topic] = make(map[Subscriber]*outbox)
			}
			if _, exists := h.clients[sub.topic][sub.client]; !exists {
				h.clients[sub.topic][sub.client] = newOutbox(sub.client, h.outboxSize)
			}
			h.mu.Unlock()
			close(sub.ack)
		case sub := <-h.unreg:
			h.mu.Lock()
			if clients, ok := h.clients[sub.topic]; ok {
				if box, ok := clients[sub.client]; ok {
					box.stop()
					delete(clients, sub.client)
				}
				if len(clients) == 0 {
					delete(h.clients, sub.topic)
				}
			}
			h.mu.Unlock()
			close(sub.ack)
		case msg := <-h.broadcast:
			h.mu.Lock()
			if clients, ok := h.clients[msg.topic]; ok {
				for c, box := range clients {
					if box.stopped() || !box.offer(msg.payload) {
						box.stop()
						delete(clients, c)
					}
				}
				if len(clients) == 0 {
					delete(h.clients, msg.topic)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Register adds a client to a topic. It returns once the client is subscribed.
func (h *Hub) Register(topic string, client Subscriber) {
	ack := make(chan struct{})
	select {
	case h.register <- subscription{topic: topic, client: client, ack: ack}:
		<-ack
	case <-h.done:
		client.Close()
	}
}

// Unregister removes and closes a client.
func (h *Hub) Unregister(topic string, client Subscriber) {
	ack := make(chan struct{})
	select {
	case h.unreg <- subscription{topic: topic, client: client, ack: ack}:
		<-ack
	case <-h.done:
	}
}

// Broadcast queues payload for every client of topic. Clients whose queue is
// full are evicted. It is a no-op once the hub is closed.
func (h *Hub) Broadcast(topic string, payload []byte) {
	select {
	case h.broadcast <- message{topic: topic, payload: payload}:
	case <-h.done:
	}
}

// Subscribers returns the number of clients on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Close stops the hub and closes every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}
