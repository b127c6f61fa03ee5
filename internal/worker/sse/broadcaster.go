// Package sse streams interview progress events to browsers.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/ddokterview/ddokterview/pkg/models"
)

// WriteTimeout bounds a single write so a stale connection cannot block publishing.
const WriteTimeout = 2 * time.Second

// Client is one connected subscriber.
type Client struct {
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}
	ID      string
	// SessionID limits delivery to one session; empty receives everything.
	SessionID string
	writeMu   sync.Mutex
}

// Broadcaster fans progress events out to subscribers.
type Broadcaster struct {
	clients map[string]*Client
	mu      sync.RWMutex
	nextID  int
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]*Client),
	}
}

// AddClient registers a subscriber for sessionID ("" for all sessions).
func (b *Broadcaster) AddClient(w http.ResponseWriter, sessionID string) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("client-%d", b.nextID)
	client := &Client{
		ID:        id,
		SessionID: sessionID,
		Writer:    w,
		Flusher:   flusher,
		Done:      make(chan struct{}),
	}
	b.clients[id] = client
	clientCount := len(b.clients)
	b.mu.Unlock()

	log.Debug().
		Str("clientId", id).
		Str("sessionId", sessionID).
		Int("totalClients", clientCount).
		Msg("SSE client connected")

	return client, nil
}

// RemoveClient unregisters a subscriber and closes its Done channel.
func (b *Broadcaster) RemoveClient(client *Client) {
	b.removeClientByID(client.ID)
}

func (b *Broadcaster) removeClientByID(id string) {
	b.mu.Lock()
	client, exists := b.clients[id]
	if exists {
		delete(b.clients, id)
	}
	clientCount := len(b.clients)
	b.mu.Unlock()

	if !exists {
		return
	}
	select {
	case <-client.Done:
	default:
		close(client.Done)
	}

	log.Debug().
		Str("clientId", id).
		Int("totalClients", clientCount).
		Msg("SSE client disconnected")
}

// Publish delivers ev to every subscriber of its session and to unfiltered subscribers.
func (b *Broadcaster) Publish(ev models.ProgressEvent) {
	b.send(ev, func(c *Client) bool {
		return c.SessionID == "" || c.SessionID == ev.SessionID
	})
}

// Broadcast sends data to all connected clients.
func (b *Broadcaster) Broadcast(data interface{}) {
	b.send(data, func(*Client) bool { return true })
}

func (b *Broadcaster) send(data interface{}, match func(*Client) bool) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE data")
		return
	}
	message := []byte(fmt.Sprintf("data: %s\n\n", jsonData))

	b.mu.RLock()
	targets := make([]*Client, 0, len(b.clients))
	for _, client := range b.clients {
		if match(client) {
			targets = append(targets, client)
		}
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	deadClientsCh := make(chan string, len(targets))
	var wg sync.WaitGroup
	for _, client := range targets {
		select {
		case <-client.Done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			b.writeToClient(c, message, deadClientsCh)
		}(client)
	}
	wg.Wait()
	close(deadClientsCh)

	for clientID := range deadClientsCh {
		b.removeClientByID(clientID)
	}
}

func (b *Broadcaster) writeToClient(client *Client, message []byte, deadCh chan<- string) {
	done := make(chan error, 1)
	go func() {
		done <- client.write(message)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Debug().
				Str("clientId", client.ID).
				Err(err).
				Msg("Failed to write to SSE client, marking for removal")
			deadCh <- client.ID
		}
	case <-time.After(WriteTimeout):
		log.Warn().
			Str("clientId", client.ID).
			Dur("timeout", WriteTimeout).
			Msg("SSE write timed out, marking client for removal")
		deadCh <- client.ID
	case <-client.Done:
	}
}

func (c *Client) write(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.Writer.Write(message); err != nil {
		return err
	}
	c.Flusher.Flush()
	return nil
}

// ClientCount returns the number of connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// HandleSSE serves GET /api/events. The optional sessionId query parameter
// restricts the stream to one session.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	client, err := b.AddClient(w, r.URL.Query().Get("sessionId"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer b.RemoveClient(client)

	hello, _ := json.Marshal(map[string]string{"type": "connected", "clientId": client.ID, "sessionId": client.SessionID})
	if err := client.write([]byte(fmt.Sprintf("data: %s\n\n", hello))); err != nil {
		return
	}

	select {
	case <-r.Context().Done():
	case <-client.Done:
	}
}
