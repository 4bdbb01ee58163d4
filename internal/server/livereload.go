package server

import (
	"bufio"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Hub fans build notifications out to browsers over server-sent events.
type Hub struct {
	mu        sync.RWMutex
	nextID    int
	clients   map[int]*client
	closed    bool
	lastBuild string
	heartbeat time.Duration
}

type client struct {
	ch   chan string
	done chan struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: map[int]*client{}, heartbeat: 30 * time.Second}
}

// ServeHTTP streams events to one browser until it disconnects or the hub
// shuts down. The first event carries the current build ID, so a page only
// reloads on a later build.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	c := &client{ch: make(chan string, 8), done: make(chan struct{})}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		http.Error(w, "livereload shutting down", http.StatusServiceUnavailable)
		return
	}
	id := h.nextID
	h.nextID++
	h.clients[id] = c
	current := h.lastBuild
	h.mu.Unlock()
	defer h.remove(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	bw := bufio.NewWriter(w)
	send := func(s string) bool {
		if _, err := bw.WriteString(s); err != nil {
			slog.Debug("livereload write", slog.String("error", err.Error()))
			return false
		}
		if err := bw.Flush(); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(": connected\n\n") {
		return
	}
	if current != "" && !send(event(current)) {
		return
	}

	hb := time.NewTicker(h.heartbeat)
	defer hb.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-c.done:
			return
		case <-hb.C:
			if !send(": ping\n\n") {
				return
			}
		case build := <-c.ch:
			if !send(event(build)) {
				return
			}
		}
	}
}

func event(build string) string {
	return fmt.Sprintf("data: {\"build\":%q}\n\n", build)
}

func (h *Hub) remove(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(c.done)
	}
}

// Broadcast tells every connected browser that build finished. Clients
// that cannot keep up are dropped.
func (h *Hub) Broadcast(build string) {
	h.mu.Lock()
	if h.closed || build == "" || build == h.lastBuild {
		h.mu.Unlock()
		return
	}
	h.lastBuild = build
	ids := make([]int, 0, len(h.clients))
	chans := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		ids = append(ids, id)
		chans = append(chans, c)
	}
	h.mu.Unlock()

	dropped := 0
	for i, c := range chans {
		select {
		case c.ch <- build:
		default:
			dropped++
			h.remove(ids[i])
		}
	}
	slog.Debug("livereload broadcast", slog.String("build", build), slog.Int("clients", len(chans)), slog.Int("dropped", dropped))
}

// Clients returns the number of connected browsers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects all clients and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := h.clients
	h.clients = map[int]*client{}
	h.mu.Unlock()
	for _, c := range clients {
		close(c.done)
	}
}

// Script is the browser client served at /livereload.js.
const Script = `(() => {
  if (window.__SITESMITH_LR__) return;
  window.__SITESMITH_LR__ = true;
  function connect() {
    const es = new EventSource('/livereload');
    let current = null;
    es.onmessage = (e) => {
      try {
        const p = JSON.parse(e.data);
        if (current === null) { current = p.build; return; }
        if (p.build && p.build !== current) { location.reload(); }
      } catch (_) {}
    };
    es.onerror = () => { es.close(); setTimeout(connect, 2000); };
  }
  connect();
})();
`
