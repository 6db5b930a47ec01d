// Package dashboard serves the terminal's derived state over HTTP: JSON
// endpoints for the leaderboard, chart series, summary cards, sidebar
// panes, and price ticker, plus a WebSocket that pushes a combined state
// snapshot to connected browsers on an interval.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"arena-terminal/internal/stream"
	"arena-terminal/internal/view"
	"arena-terminal/internal/ws"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Feeds bundles the view-layer state the dashboard renders. Details is
// keyed by entity id and may be nil when no model metadata was loaded;
// the map is fixed at construction, only the feeds' contents change.
type Feeds struct {
	Ticker      *view.TickerFeed
	Chart       *view.ChartFeed
	Summary     *view.SummaryFeed
	Leaderboard *view.LeaderboardFeed
	Sidebar     *view.SidebarFeed
	Details     map[string]*view.DetailFeed
}

// StateSnapshot is the combined payload pushed to WebSocket clients and
// served at /api/state.
type StateSnapshot struct {
	Status      ws.Status              `json:"status"`
	Leaderboard []view.LeaderboardRow  `json:"leaderboard"`
	Prices      []stream.PriceTick     `json:"prices"`
	SeriesSize  int                    `json:"seriesSize"`
	LastUpdate  string                 `json:"lastUpdate"`
	Positions   []stream.Position      `json:"positions"`
	Trades      []stream.TradeFill     `json:"trades"`
	Chats       []stream.ChatMessage   `json:"chats"`
	GeneratedAt time.Time              `json:"generatedAt"`
}

// Dashboard is the HTTP and WebSocket surface over the view feeds.
type Dashboard struct {
	manager  *ws.Manager
	feeds    Feeds
	server   *http.Server
	upgrader websocket.Upgrader
	interval time.Duration

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// New builds the dashboard server on the given port. Start must be called
// to begin serving.
func New(manager *ws.Manager, feeds Feeds, port int) *Dashboard {
	d := &Dashboard{
		manager:  manager,
		feeds:    feeds,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		interval: 2 * time.Second,
		clients:  make(map[*websocket.Conn]struct{}),
		stop:     make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/state", d.handleState).Methods("GET")
	r.HandleFunc("/api/leaderboard", d.handleLeaderboard).Methods("GET")
	r.HandleFunc("/api/chart", d.handleChart).Methods("GET")
	r.HandleFunc("/api/summary", d.handleSummary).Methods("GET")
	r.HandleFunc("/api/prices", d.handlePrices).Methods("GET")
	r.HandleFunc("/api/sidebar", d.handleSidebar).Methods("GET")
	r.HandleFunc("/api/status", d.handleStatus).Methods("GET")
	r.HandleFunc("/api/models/{id}", d.handleModelDetail).Methods("GET")
	r.HandleFunc("/ws", d.handleWebSocket).Methods("GET")

	d.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return d
}

// Handler exposes the route table, primarily for tests.
func (d *Dashboard) Handler() http.Handler { return d.server.Handler }

// Start begins serving and broadcasting. It returns once the listener is
// spawned; serve errors are logged, not returned.
func (d *Dashboard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return fmt.Errorf("dashboard already running")
	}
	d.running = true

	go d.broadcastLoop()
	go func() {
		log.Info().Str("addr", d.server.Addr).Msg("dashboard listening")
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("dashboard server failed")
		}
	}()
	return nil
}

// Stop shuts the server down and disconnects WebSocket clients.
func (d *Dashboard) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.stop)
	d.mu.Unlock()

	d.clientsMu.Lock()
	for conn := range d.clients {
		conn.Close()
	}
	d.clients = make(map[*websocket.Conn]struct{})
	d.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return d.server.Shutdown(ctx)
}

func (d *Dashboard) snapshot() StateSnapshot {
	snap := d.feeds.Chart.Snapshot()
	ticks := make([]stream.PriceTick, 0)
	for _, sym := range d.feeds.Ticker.Symbols() {
		if t, ok := d.feeds.Ticker.Price(sym); ok {
			ticks = append(ticks, t)
		}
	}
	return StateSnapshot{
		Status:      d.manager.OverallStatus(),
		Leaderboard: d.feeds.Leaderboard.Rows(),
		Prices:      ticks,
		SeriesSize:  len(snap.Points),
		LastUpdate:  snap.LastUpdate,
		Positions:   d.feeds.Sidebar.Positions(),
		Trades:      d.feeds.Sidebar.Trades(),
		Chats:       d.feeds.Sidebar.Chats(),
		GeneratedAt: time.Now().UTC(),
	}
}

func (d *Dashboard) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.snapshot())
}

func (d *Dashboard) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.feeds.Leaderboard.Rows())
}

func (d *Dashboard) handleChart(w http.ResponseWriter, r *http.Request) {
	snap := d.feeds.Chart.Snapshot()
	writeJSON(w, map[string]any{
		"points":      snap.Points,
		"entityNames": snap.EntityNames,
		"lastUpdate":  snap.LastUpdate,
	})
}

func (d *Dashboard) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"latest":     d.feeds.Summary.Latest(),
		"lastUpdate": d.feeds.Summary.LastUpdate(),
	})
}

func (d *Dashboard) handlePrices(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]stream.PriceTick)
	for _, sym := range d.feeds.Ticker.Symbols() {
		if t, ok := d.feeds.Ticker.Price(sym); ok {
			out[sym] = t
		}
	}
	writeJSON(w, map[string]any{
		"prices":     out,
		"lastUpdate": d.feeds.Ticker.LastUpdate(),
	})
}

func (d *Dashboard) handleSidebar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"positions": d.feeds.Sidebar.Positions(),
		"chats":     d.feeds.Sidebar.Chats(),
		"trades":    d.feeds.Sidebar.Trades(),
	})
}

func (d *Dashboard) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":       d.manager.OverallStatus(),
		"openChannels": d.manager.OpenChannels(),
	})
}

func (d *Dashboard) handleModelDetail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	feed, ok := d.feeds.Details[id]
	if !ok {
		http.Error(w, "unknown model", http.StatusNotFound)
		return
	}
	out := map[string]any{
		"entityId": id,
		"history":  feed.History(),
	}
	if latest, ok := feed.Latest(); ok {
		out["latest"] = latest
	}
	writeJSON(w, out)
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("dashboard websocket upgrade failed")
		return
	}

	d.clientsMu.Lock()
	d.clients[conn] = struct{}{}
	n := len(d.clients)
	d.clientsMu.Unlock()
	log.Info().Int("clients", n).Msg("dashboard client connected")

	// Push the current state immediately rather than making the client
	// wait for the next broadcast tick.
	if err := conn.WriteJSON(d.snapshot()); err != nil {
		d.dropClient(conn)
		return
	}

	// Reads are discarded; the socket exists to detect disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				d.dropClient(conn)
				return
			}
		}
	}()
}

func (d *Dashboard) dropClient(conn *websocket.Conn) {
	d.clientsMu.Lock()
	if _, ok := d.clients[conn]; ok {
		delete(d.clients, conn)
		conn.Close()
	}
	d.clientsMu.Unlock()
}

func (d *Dashboard) broadcastLoop() {
	t := time.NewTicker(d.interval)
	defer t.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-t.C:
			d.clientsMu.Lock()
			if len(d.clients) == 0 {
				d.clientsMu.Unlock()
				continue
			}
			conns := make([]*websocket.Conn, 0, len(d.clients))
			for conn := range d.clients {
				conns = append(conns, conn)
			}
			d.clientsMu.Unlock()

			snap := d.snapshot()
			for _, conn := range conns {
				if err := conn.WriteJSON(snap); err != nil {
					d.dropClient(conn)
				}
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("dashboard response encode failed")
	}
}
