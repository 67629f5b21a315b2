package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Akansha-Mulchandani/GAIA/internal/core"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPongWait   = 60 * time.Second
	eventsPingPeriod = (eventsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// EventsHandler relays realtime events from the gateway's broker to browser
// websockets.
type EventsHandler struct {
	subscriber core.EventSubscriber
	logger     *slog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(subscriber core.EventSubscriber, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{subscriber: subscriber, logger: logger}
}

// Stream handles GET /api/events[?simulation_id=N]
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	var (
		events      <-chan *core.Event
		unsubscribe func()
		err         error
	)
	if raw := r.URL.Query().Get("simulation_id"); raw != "" {
		id, convErr := strconv.Atoi(raw)
		if convErr != nil {
			WriteError(w, http.StatusBadRequest, "simulation_id must be an integer")
			return
		}
		events, unsubscribe, err = h.subscriber.SubscribeSimulation(id)
	} else {
		events, unsubscribe, err = h.subscriber.SubscribeAll()
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "subscribe failed")
		return
	}
	defer unsubscribe()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()

	// Reader: only control frames are expected; a read error means the
	// browser went away.
	gone := make(chan struct{})
	_ = ws.SetReadDeadline(time.Now().Add(eventsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(eventsPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(eventsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(eventsWriteWait))
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(eventsWriteWait))
			if err := ws.WriteJSON(ev); err != nil {
				h.logger.Debug("event relay write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
		}
	}
}
