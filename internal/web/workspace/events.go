package workspace

import (
	"sync"

	"github.com/kozaktomas/site-photos/internal/constants"
	"github.com/kozaktomas/site-photos/internal/photos"
)

// Event types sent to listeners.
const (
	EventNotification   = "notification"
	EventUploadProgress = "upload_progress"
	EventClosed         = "closed"
)

// Event is one message on a workspace's event stream.
type Event struct {
	Type    string       `json:"type"`
	Level   photos.Level `json:"level,omitempty"`
	Message string       `json:"message,omitempty"`
	Data    any          `json:"data,omitempty"`
}

// Broadcaster fans workspace notifications out to stream listeners.
// Listeners with a full buffer miss events.
type Broadcaster struct {
	listeners []chan Event
	closed    bool
	mu        sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// AddListener adds an event listener. On a closed broadcaster the returned
// channel is already closed.
func (b *Broadcaster) AddListener() chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, constants.EventChannelBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *Broadcaster) RemoveListener(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Send sends an event to all listeners.
func (b *Broadcaster) Send(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
		}
	}
}

// Notify implements photos.Notifier.
func (b *Broadcaster) Notify(n photos.Notification) {
	b.Send(Event{Type: EventNotification, Level: n.Level, Message: n.Message})
}

// Progress forwards upload progress to listeners.
func (b *Broadcaster) Progress(p photos.UploadProgress) {
	b.Send(Event{Type: EventUploadProgress, Data: map[string]any{
		"done":      p.Done,
		"total":     p.Total,
		"file_name": p.FileName,
	}})
}

// Listeners returns the number of connected listeners.
func (b *Broadcaster) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close sends a final closed event and disconnects every listener.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, listener := range b.listeners {
		select {
		case listener <- Event{Type: EventClosed}:
		default:
		}
		close(listener)
	}
	b.listeners = nil
}
