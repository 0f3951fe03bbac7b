package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"devpulse/pkg/logger"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// Realtime events published to project topics.
const (
	EventTaskCreated    = "task-created"
	EventTaskUpdated    = "task-updated"
	EventTaskDeleted    = "task-deleted"
	EventProjectUpdated = "project-updated"
)

// ProjectTopic is the broadcast group of one project.
func ProjectTopic(projectID string) string {
	return "project-" + projectID
}

const (
	// SendQueue is how many events may wait for one client before it is dropped.
	SendQueue = 16
	writeWait = 10 * time.Second
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Client is one connected socket. Only the hub goroutine touches topics and send.
type Client struct {
	UserID string
	Conn   Conn
	Mu     sync.Mutex
	topics map[string]bool
	send   chan []byte
}

func NewClient(userID string, conn Conn) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		topics: make(map[string]bool),
		send:   make(chan []byte, SendQueue),
	}
}

// Send writes one message to the socket; it is safe to call concurrently with the hub.
func (c *Client) Send(data []byte) error {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// writeLoop drains the send queue until the hub closes it.
func (c *Client) writeLoop() {
	failed := false
	for payload := range c.send {
		if failed {
			continue
		}
		if err := c.Send(payload); err != nil {
			logger.SystemLogger.Info("Closing websocket client after write error",
				zap.String("user_id", c.UserID), zap.Error(err))
			failed = true
			c.Conn.Close()
		}
	}
}

type Message struct {
	Event string `json:"event"`
	Topic string `json:"topic"`
	Data  any    `json:"data"`
}

type subscription struct {
	client *Client
	topic  string
}

// Hub fans published events out to the clients subscribed to a topic.
// Delivery is at-most-once: when the broadcast buffer is full the event is dropped,
// and a client whose send queue is full is disconnected.
type Hub struct {
	clients    map[*Client]bool
	topics     map[string]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	join       chan subscription
	leave      chan subscription
	broadcast  chan Message
	done       chan struct{}
}

func NewHub(buffer int) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		topics:     make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		join:       make(chan subscription),
		leave:      make(chan subscription),
		broadcast:  make(chan Message, buffer),
		done:       make(chan struct{}),
	}
}

// Run owns all hub state until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return
		case client := <-h.Register:
			if !h.clients[client] {
				h.clients[client] = true
				go client.writeLoop()
			}
		case client := <-h.Unregister:
			h.remove(client)
		case sub := <-h.join:
			if !h.clients[sub.client] {
				continue
			}
			members, ok := h.topics[sub.topic]
			if !ok {
				members = make(map[*Client]bool)
				h.topics[sub.topic] = members
			}
			members[sub.client] = true
			sub.client.topics[sub.topic] = true
		case sub := <-h.leave:
			h.unsubscribe(sub.client, sub.topic)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) deliver(msg Message) {
	members := h.topics[msg.Topic]
	if len(members) == 0 {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.ErrorLogger.Error("Error encoding realtime event", zap.String("event", msg.Event), zap.Error(err))
		return
	}
	for client := range members {
		select {
		case client.send <- payload:
		default:
			logger.SystemLogger.Warn("Dropping slow websocket client",
				zap.String("user_id", client.UserID), zap.String("topic", msg.Topic))
			h.remove(client)
		}
	}
}

func (h *Hub) unsubscribe(client *Client, topic string) {
	if members, ok := h.topics[topic]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(client.topics, topic)
}

func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	for topic := range client.topics {
		h.unsubscribe(client, topic)
	}
	delete(h.clients, client)
	close(client.send)
	client.Conn.Close()
}

// Add registers client unless the hub has stopped.
func (h *Hub) Add(client *Client) {
	select {
	case h.Register <- client:
	case <-h.done:
	}
}

// Remove unregisters client; it returns immediately once the hub has stopped.
func (h *Hub) Remove(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Join(client *Client, topic string) {
	select {
	case h.join <- subscription{client: client, topic: topic}:
	case <-h.done:
	}
}

func (h *Hub) Leave(client *Client, topic string) {
	select {
	case h.leave <- subscription{client: client, topic: topic}:
	case <-h.done:
	}
}

// Publish queues an event for topic without blocking the caller.
func (h *Hub) Publish(topic, event string, data any) {
	select {
	case h.broadcast <- Message{Event: event, Topic: topic, Data: data}:
	default:
		logger.SystemLogger.Warn("Realtime buffer full, dropping event",
			zap.String("topic", topic), zap.String("event", event))
	}
}
