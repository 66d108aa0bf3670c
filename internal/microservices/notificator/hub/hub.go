package hub

import (
	"context"
	"encoding/json"

	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
)

const (
	clientBuffer    = 32
	broadcastBuffer = 256
)

// Topic is what a connection subscribed to: the kitchen, or one session.
type Topic struct {
	Kitchen   bool
	SessionID string
}

func KitchenTopic() Topic { return Topic{Kitchen: true} }
func SessionTopic(id string) Topic { return Topic{SessionID: id} }
func (t Topic) String() string {
	if t.Kitchen {
		return "kitchen"
	}
	return "session:" + t.SessionID
}

// Client is one subscriber. The hub closes Send when the client is removed.
type Client struct {
	topic Topic
	send  chan []byte
}

func NewClient(topic Topic) *Client {
	return &Client{topic: topic, send: make(chan []byte, clientBuffer)}
}

func (c *Client) Topic() Topic { return c.topic }
func (c *Client) Send() <-chan []byte { return c.send }

type message struct {
	topic Topic
	ev    domain.Event
}

type countReq struct {
	topic Topic
	reply chan int
}

// Hub fans events out to subscribers. All registry state is owned by the
// goroutine running Run; everything else talks to it over channels.
type Hub struct {
	kitchen  map[*Client]struct{}
	sessions map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	count      chan countReq
	done       chan struct{}

	log *logger.Logger
}

func New(lg *logger.Logger) *Hub {
	return &Hub{
		kitchen:    make(map[*Client]struct{}),
		sessions:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, broadcastBuffer),
		count:      make(chan countReq),
		done:       make(chan struct{}),
		log:        lg,
	}
}

// Run serves the registry until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for c := range h.kitchen {
			close(c.send)
		}
		for _, set := range h.sessions {
			for c := range set {
				close(c.send)
			}
		}
		h.kitchen = nil
		h.sessions = nil
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case m := <-h.broadcast:
			h.deliver(m)
		case req := <-h.count:
			req.reply <- len(h.set(req.topic))
		}
	}
}

// Register adds c to its topic. It reports false if the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Subscribers returns how many clients are registered on topic.
func (h *Hub) Subscribers(topic Topic) int {
	req := countReq{topic: topic, reply: make(chan int, 1)}
	select {
	case h.count <- req:
		return <-req.reply
	case <-h.done:
		return 0
	}
}

func (h *Hub) BroadcastToKitchen(ev domain.Event) {
	h.enqueue(message{topic: KitchenTopic(), ev: ev})
}

func (h *Hub) BroadcastToSession(sessionID string, ev domain.Event) {
	h.enqueue(message{topic: SessionTopic(sessionID), ev: ev})
}

// enqueue never blocks. Events that find the queue full are dropped.
func (h *Hub) enqueue(m message) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- m:
	default:
		h.log.Warn("ws_broadcast_dropped", map[string]any{"topic": m.topic.String(), "type": m.ev.Type})
	}
}

func (h *Hub) set(t Topic) map[*Client]struct{} {
	if t.Kitchen {
		return h.kitchen
	}
	return h.sessions[t.SessionID]
}

func (h *Hub) add(c *Client) {
	if c.topic.Kitchen {
		h.kitchen[c] = struct{}{}
	} else {
		set := h.sessions[c.topic.SessionID]
		if set == nil {
			set = make(map[*Client]struct{})
			h.sessions[c.topic.SessionID] = set
		}
		set[c] = struct{}{}
	}
	h.log.Debug("ws_client_registered", map[string]any{"topic": c.topic.String()})
}

func (h *Hub) remove(c *Client) {
	set := h.set(c.topic)
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if !c.topic.Kitchen && len(set) == 0 {
		delete(h.sessions, c.topic.SessionID)
	}
	h.log.Debug("ws_client_unregistered", map[string]any{"topic": c.topic.String()})
}

func (h *Hub) deliver(m message) {
	set := h.set(m.topic)
	if len(set) == 0 {
		return
	}
	b, err := json.Marshal(m.ev)
	if err != nil {
		h.log.Error("ws_encode_event", err, map[string]any{"type": m.ev.Type})
		return
	}
	for c := range set {
		select {
		case c.send <- b:
		default:
			// Slow consumer. Dropping it keeps the others flowing.
			h.log.Warn("ws_client_dropped", map[string]any{"topic": c.topic.String()})
			h.remove(c)
		}
	}
}
