package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	messages  chan []byte
	failWrite bool
	stall     bool
	closeOnce sync.Once
	closed    chan struct{}

	mu       sync.Mutex
	deadline time.Time
}

func newFakeConn() *fakeConn {
	return &fakeConn{messages: make(chan []byte, 64), closed: make(chan struct{})}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	if f.failWrite {
		return errors.New("broken pipe")
	}
	if f.stall {
		<-f.closed
		return errors.New("use of closed connection")
	}
	f.messages <- data
	return nil
}

func (f *fakeConn) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadline = t
	return nil
}

func (f *fakeConn) lastDeadline() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deadline
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func receive(t *testing.T, conn *fakeConn) Message {
	t.Helper()
	select {
	case raw := <-conn.messages:
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return Message{}
	}
}

func startHub(t *testing.T, buffer int) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(buffer)
	go hub.Run(ctx)
	return hub
}

func TestPublishReachesTopicSubscribersOnly(t *testing.T) {
	hub := startHub(t, 8)
	connA, connB := newFakeConn(), newFakeConn()
	a, b := NewClient("u1", connA), NewClient("u2", connB)
	hub.Register <- a
	hub.Register <- b
	hub.Join(a, ProjectTopic("p1"))
	hub.Join(b, ProjectTopic("p2"))

	hub.Publish(ProjectTopic("p1"), EventTaskCreated, map[string]string{"id": "t1"})
	hub.Publish(ProjectTopic("p2"), EventProjectUpdated, map[string]string{"id": "p2"})

	msg := receive(t, connA)
	assert.Equal(t, EventTaskCreated, msg.Event)
	assert.Equal(t, "project-p1", msg.Topic)

	msg = receive(t, connB)
	assert.Equal(t, EventProjectUpdated, msg.Event)
	assert.Empty(t, connA.messages)
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := startHub(t, 8)
	conn := newFakeConn()
	c := NewClient("u1", conn)
	hub.Register <- c
	hub.Join(c, ProjectTopic("p1"))
	hub.Join(c, ProjectTopic("p2"))
	hub.Leave(c, ProjectTopic("p1"))

	hub.Publish(ProjectTopic("p1"), EventTaskUpdated, nil)
	hub.Publish(ProjectTopic("p2"), EventTaskDeleted, nil)

	msg := receive(t, conn)
	assert.Equal(t, EventTaskDeleted, msg.Event)
}

func TestJoinBeforeRegisterIsIgnored(t *testing.T) {
	hub := startHub(t, 8)
	conn := newFakeConn()
	c := NewClient("u1", conn)
	hub.Join(c, ProjectTopic("p1"))
	hub.Register <- c
	hub.Join(c, ProjectTopic("p2"))

	hub.Publish(ProjectTopic("p1"), EventTaskCreated, nil)
	hub.Publish(ProjectTopic("p2"), EventTaskUpdated, nil)

	assert.Equal(t, EventTaskUpdated, receive(t, conn).Event)
}

func TestWriteErrorDropsClient(t *testing.T) {
	hub := startHub(t, 8)
	conn := newFakeConn()
	conn.failWrite = true
	c := NewClient("u1", conn)
	hub.Register <- c
	hub.Join(c, ProjectTopic("p1"))

	hub.Publish(ProjectTopic("p1"), EventTaskCreated, nil)

	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("client was not closed")
	}
}

func TestWritesCarryDeadline(t *testing.T) {
	hub := startHub(t, 8)
	conn := newFakeConn()
	c := NewClient("u1", conn)
	hub.Register <- c
	hub.Join(c, ProjectTopic("p1"))

	before := time.Now()
	hub.Publish(ProjectTopic("p1"), EventTaskCreated, nil)
	receive(t, conn)
	assert.True(t, conn.lastDeadline().After(before))
}

func TestStalledClientDoesNotBlockOthers(t *testing.T) {
	hub := startHub(t, 8)
	stuckConn, fastConn := newFakeConn(), newFakeConn()
	stuckConn.stall = true
	stuck, fast := NewClient("u1", stuckConn), NewClient("u2", fastConn)
	hub.Register <- stuck
	hub.Register <- fast
	hub.Join(stuck, ProjectTopic("p1"))
	hub.Join(fast, ProjectTopic("p1"))

	for i := 0; i < SendQueue+2; i++ {
		hub.Publish(ProjectTopic("p1"), EventTaskUpdated, i)
		assert.Equal(t, EventTaskUpdated, receive(t, fastConn).Event)
	}

	select {
	case <-stuckConn.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("stalled client was not dropped")
	}

	hub.Leave(fast, ProjectTopic("p1"))
	hub.Join(fast, ProjectTopic("p2"))
	hub.Publish(ProjectTopic("p2"), EventProjectUpdated, nil)
	assert.Equal(t, EventProjectUpdated, receive(t, fastConn).Event)
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(1)

	done := make(chan struct{})
	go func() {
		hub.Publish("project-p1", EventTaskCreated, nil)
		hub.Publish("project-p1", EventTaskUpdated, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
	assert.Len(t, hub.broadcast, 1)
}

func TestUnregisterClosesConnection(t *testing.T) {
	hub := startHub(t, 8)
	conn := newFakeConn()
	c := NewClient("u1", conn)
	hub.Register <- c
	hub.Unregister <- c

	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not closed")
	}
}

func TestStoppedHubDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(1)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		c := NewClient("u1", newFakeConn())
		hub.Join(c, ProjectTopic("p1"))
		hub.Leave(c, ProjectTopic("p1"))
		hub.Remove(c)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("calls on a stopped hub blocked")
	}
}
