// Package realtime pushes appointment events to WebSocket clients. Clients
// subscribe to topics naming a doctor, a room or a clinic date and receive
// every event touching that schedule.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/events"
)

// TopicAll receives every event.
const TopicAll = "all"

func DoctorTopic(id uuid.UUID) string { return "doctor:" + id.String() }
func RoomTopic(id uuid.UUID) string   { return "room:" + id.String() }
func DateTopic(date string) string    { return "date:" + date }

// ValidTopic reports whether t is TopicAll or a well-formed resource or
// date topic.
func ValidTopic(t string) bool {
	if t == TopicAll {
		return true
	}
	kind, val, ok := strings.Cut(t, ":")
	if !ok || val == "" {
		return false
	}
	switch kind {
	case "doctor", "room":
		_, err := uuid.Parse(val)
		return err == nil
	case "date":
		return len(val) == len("2006-01-02")
	}
	return false
}

// topicsFor lists the topics an event is delivered on.
func topicsFor(e events.Event) []string {
	topics := []string{TopicAll, DoctorTopic(e.DoctorID), DateTopic(e.Date)}
	if e.RoomID != nil {
		topics = append(topics, RoomTopic(*e.RoomID))
	}
	if e.PreviousDate != "" && e.PreviousDate != e.Date {
		topics = append(topics, DateTopic(e.PreviousDate))
	}
	return topics
}

// Message is the frame sent to clients.
type Message struct {
	Topics []string     `json:"topics"`
	Event  events.Event `json:"event"`
}

// ClientMessage is an inbound subscribe or unsubscribe request.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Client is one WebSocket connection.
type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
}

// NewClient builds a client with a buffered send queue.
func NewClient(buffer int) *Client {
	return &Client{ID: uuid.New().String(), Send: make(chan []byte, buffer)}
}

// Hub tracks clients and their topic subscriptions. It implements
// events.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> subscribers
	all     map[*Client]struct{}
	log     zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		log:     logger.With().Str("component", "realtime").Logger(),
	}
}

// Register adds a client and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.subscribeLocked(client, topic)
	}
}

func (h *Hub) subscribeLocked(client *Client, topic string) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) unsubscribeLocked(client *Client, topic string) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Unregister removes a client from every topic and closes its Send channel.
// Calling it twice is safe.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.unsubscribeLocked(client, topic)
	}
	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds valid topics to a registered client and returns the ones
// rejected.
func (h *Hub) Subscribe(client *Client, topics []string) (rejected []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if !ValidTopic(topic) {
			rejected = append(rejected, topic)
			continue
		}
		if _, ok := h.clients[topic][client]; ok {
			continue
		}
		h.subscribeLocked(client, topic)
		client.Topics = append(client.Topics, topic)
	}
	return rejected
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	remove := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		remove[t] = struct{}{}
		h.unsubscribeLocked(client, t)
	}
	remaining := client.Topics[:0]
	for _, t := range client.Topics {
		if _, rm := remove[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// ProcessMessage applies an inbound ClientMessage.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if rejected := h.Subscribe(client, msg.Topics); len(rejected) > 0 {
			h.log.Debug().Str("client_id", client.ID).Strs("topics", rejected).Msg("ignored invalid topics")
		}
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Publish delivers e once to every client subscribed to any of its topics.
// Slow clients whose queue is full miss the event.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	e = events.Stamp(e)
	topics := topicsFor(e)
	data, err := json.Marshal(Message{Topics: topics, Event: e})
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for _, topic := range topics {
		for client := range h.clients[topic] {
			if _, dup := seen[client]; dup {
				continue
			}
			seen[client] = struct{}{}
			select {
			case client.Send <- data:
			default:
				h.log.Warn().Str("client_id", client.ID).Str("event", e.Type).Msg("client queue full, dropping event")
			}
		}
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Close disconnects every client. Their write pumps send a close frame and
// exit.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.all {
		for _, topic := range client.Topics {
			h.unsubscribeLocked(client, topic)
		}
		delete(h.all, client)
		close(client.Send)
	}
}
