package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kbukum/reactkit/component"
	"github.com/kbukum/reactkit/errors"
	"github.com/kbukum/reactkit/hotstream"
	"github.com/kbukum/reactkit/logger"
	"github.com/kbukum/reactkit/observability"
	"github.com/kbukum/reactkit/resilience"
)

func (g *Gateway) routes() {
	g.engine.GET("/health", g.handleHealth)
	streams := g.engine.Group("/streams")
	streams.GET("", g.handleList)
	streams.GET("/:name", g.handleGet)
	streams.POST("/:name/pause", g.handlePause)
	streams.POST("/:name/resume", g.handleResume)
	streams.POST("/:name/stop", g.handleStop)
	streams.GET("/:name/events", g.handleEvents)
}

// Routes implements component.RouteProvider.
func (g *Gateway) Routes() []component.Route {
	routes := g.engine.Routes()
	out := make([]component.Route, 0, len(routes))
	for _, r := range routes {
		out = append(out, component.Route{Method: r.Method, Path: r.Path, Handler: r.Handler})
	}
	return out
}

func (g *Gateway) handleHealth(c *gin.Context) {
	sh := observability.NewServiceHealth(g.service, g.version)
	if g.registry != nil {
		sh.AddComponents(g.registry.HealthAll(c.Request.Context()))
	}
	status := http.StatusOK
	if sh.Status == observability.HealthStatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, sh)
}

func (g *Gateway) handleList(c *gin.Context) {
	respondOK(c, g.list())
}

func (g *Gateway) handleGet(c *gin.Context) {
	h, err := g.lookup(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, h.Stats())
}

func (g *Gateway) handlePause(c *gin.Context) {
	g.control(c, hotstream.Paused, func(ctl hotstream.Controller) error { return ctl.Pause() })
}

func (g *Gateway) handleResume(c *gin.Context) {
	g.control(c, hotstream.Running, func(ctl hotstream.Controller) error { return ctl.Resume() })
}

func (g *Gateway) control(c *gin.Context, to hotstream.State, apply func(hotstream.Controller) error) {
	h, err := g.lookup(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	ctl, ok := h.(hotstream.Controller)
	if !ok {
		respondError(c, errors.InvalidArgument("stream", fmt.Sprintf("%s is not pausable", h.Name())))
		return
	}
	if err := apply(ctl); err != nil {
		respondError(c, err)
		return
	}
	g.broadcastState(h.Name(), to, nil)
	respondOK(c, h.Stats())
}

func (g *Gateway) handleStop(c *gin.Context) {
	h, err := g.lookup(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	h.Stop()
	select {
	case <-h.Done():
	case <-c.Request.Context().Done():
	case <-time.After(5 * time.Second):
	}
	respondAccepted(c, h.Stats())
}

func (g *Gateway) handleEvents(c *gin.Context) {
	h, err := g.lookup(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	release, err := g.clients.Acquire(c.Request.Context())
	if err != nil {
		if errors.Is(err, resilience.ErrBulkheadFull) || errors.Is(err, resilience.ErrBulkheadTimeout) {
			err = errors.Unavailable("event stream")
		}
		respondError(c, err)
		return
	}
	defer release()

	client := NewClient(clientPattern(h.Name(), uuid.NewString()), h.Name(), g.cfg.ClientBuffer)
	g.ServeSSE(c.Writer, c.Request, client)
}

// ServeSSE streams the client's events on w until the request ends or the
// hub closes the client.
func (g *Gateway) ServeSSE(w http.ResponseWriter, r *http.Request, client *Client) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.log.Error("Streaming not supported", logger.Fields("client_id", client.id))
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Event streams are long-lived; lift the server write deadline.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		g.log.Debug("Could not disable write deadline", logger.Fields("client_id", client.id, logger.FieldError, err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if !g.hub.Register(client) {
		http.Error(w, "gateway is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer g.hub.Unregister(client)

	connected, _ := json.Marshal(ConnectedEvent{ClientID: client.id, Stream: client.stream})
	writeEvent(w, Event{Type: EventTypeConnected, Data: connected})
	flusher.Flush()

	keepAlive := time.NewTicker(g.cfg.KeepAlive)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			g.log.Debug("Client disconnected", logger.Fields("client_id", client.id, "reason", ctx.Err().Error()))
			return

		case ev, ok := <-client.Events():
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()

		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": %s %d\n\n", EventTypeKeepAlive, time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) {
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, ev.Data)
}

func clientPattern(stream, id string) string { return "stream:" + stream + ":" + id }

func (g *Gateway) broadcastState(stream string, state hotstream.State, err error) {
	ev := StateEvent{Stream: stream, State: state.String()}
	if err != nil {
		ev.Error = err.Error()
	}
	data, _ := json.Marshal(ev)
	g.hub.BroadcastToPattern(clientPattern(stream, "*"), Event{Type: EventTypeState, Data: data})
}
