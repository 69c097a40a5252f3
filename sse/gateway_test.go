package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/reactkit/component"
	"github.com/kbukum/reactkit/executor"
	"github.com/kbukum/reactkit/hotstream"
	"github.com/kbukum/reactkit/logger"
	"github.com/kbukum/reactkit/schedule"
	"github.com/kbukum/reactkit/stream"
)

func newGateway(t *testing.T, cfg Config, opts ...Option) *Gateway {
	t.Helper()
	g := NewGateway(cfg, append([]Option{WithLogger(logger.NewNop())}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := g.Stop(ctx); err != nil {
			t.Errorf("gateway stop: %v", err)
		}
	})
	return g
}

func startTicks(t *testing.T, name string, pausable bool) hotstream.Handle {
	t.Helper()
	exec := executor.NewDedicated(name)
	spec, err := schedule.NewFixedRate(5 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	src := stream.Iterate(1, func(v int) int { return v + 1 })
	opts := []hotstream.Option{hotstream.WithName(name), hotstream.WithSchedule(spec), hotstream.WithLogger(logger.NewNop())}

	var h hotstream.Handle
	if pausable {
		h, err = hotstream.StartPausable(src, exec, opts...)
	} else {
		h, err = hotstream.Start(src, exec, opts...)
	}
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		h.Stop()
		<-h.Done()
		_ = exec.Shutdown(context.Background())
	})
	return h
}

func do(t *testing.T, g *Gateway, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, http.NoBody)
	g.Handler().ServeHTTP(w, req)
	return w
}

func decodeStats(t *testing.T, w *httptest.ResponseRecorder) hotstream.Stats {
	t.Helper()
	var body struct {
		Data hotstream.Stats `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return body.Data
}

func TestClient_SendDropsWhenFull(t *testing.T) {
	client := NewClient("stream:ticks:1", "ticks", 2)
	for i := 0; i < 2; i++ {
		if !client.Send(Event{Type: EventTypeElement}) {
			t.Fatalf("send %d should succeed", i)
		}
	}
	if client.Send(Event{Type: EventTypeElement}) {
		t.Error("expected send to fail when the buffer is full")
	}
	if client.Dropped() != 1 {
		t.Errorf("expected 1 drop, got %d", client.Dropped())
	}
}

func TestHub_BroadcastToPattern(t *testing.T) {
	hub := NewHub(logger.NewNop())
	go hub.Run()
	defer hub.Stop()

	ticks := NewClient("stream:ticks:a", "ticks", 4)
	other := NewClient("stream:other:b", "other", 4)
	hub.Register(ticks)
	hub.Register(other)

	hub.BroadcastToPattern("stream:ticks:*", Event{Type: EventTypeElement, Data: []byte("1")})

	select {
	case ev := <-ticks.Events():
		if string(ev.Data) != "1" {
			t.Errorf("expected data 1, got %q", ev.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("matching client got nothing")
	}
	select {
	case ev := <-other.Events():
		t.Errorf("non-matching client got %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}

	hub.Unregister(ticks)
	if _, open := <-ticks.Events(); open {
		t.Error("expected unregistered client to be closed")
	}
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub(logger.NewNop())
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	client := NewClient("stream:ticks:a", "ticks", 1)
	hub.Register(client)
	hub.Stop()
	hub.Stop()

	<-done
	if _, open := <-client.Events(); open {
		t.Error("expected client to be closed on stop")
	}
	if hub.Register(NewClient("late", "ticks", 1)) {
		t.Error("register after stop should fail")
	}
	// Never blocks after stop.
	hub.BroadcastToPattern("*", Event{Type: EventTypeElement})
}

func TestGateway_ListAndGet(t *testing.T) {
	g := newGateway(t, Config{})
	if err := g.Register(startTicks(t, "b-ticks", false)); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(startTicks(t, "a-ticks", true)); err != nil {
		t.Fatal(err)
	}

	w := do(t, g, http.MethodGet, "/streams")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list struct {
		Data []hotstream.Stats `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Data) != 2 || list.Data[0].Name != "a-ticks" || list.Data[1].Name != "b-ticks" {
		t.Errorf("unexpected list %+v", list.Data)
	}

	stats := decodeStats(t, do(t, g, http.MethodGet, "/streams/a-ticks"))
	if !stats.Pausable || stats.State != "running" {
		t.Errorf("unexpected stats %+v", stats)
	}

	if w := do(t, g, http.MethodGet, "/streams/missing"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if err := g.Register(startTicks(t, "a-ticks", false)); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestGateway_PauseResumeStop(t *testing.T) {
	g := newGateway(t, Config{})
	if err := g.Register(startTicks(t, "ticks", true)); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(startTicks(t, "fixed", false)); err != nil {
		t.Fatal(err)
	}

	if s := decodeStats(t, do(t, g, http.MethodPost, "/streams/ticks/pause")); s.State != "paused" {
		t.Errorf("expected paused, got %s", s.State)
	}
	if s := decodeStats(t, do(t, g, http.MethodPost, "/streams/ticks/resume")); s.State != "running" {
		t.Errorf("expected running, got %s", s.State)
	}
	if w := do(t, g, http.MethodPost, "/streams/fixed/pause"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a stream that cannot pause, got %d", w.Code)
	}

	w := do(t, g, http.MethodPost, "/streams/ticks/stop")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if s := decodeStats(t, w); s.State != "stopped" {
		t.Errorf("expected stopped, got %s", s.State)
	}
	if w := do(t, g, http.MethodPost, "/streams/ticks/resume"); w.Code != http.StatusConflict {
		t.Errorf("expected 409 after stop, got %d", w.Code)
	}
}

type sseReader struct {
	scanner *bufio.Scanner
}

func (r *sseReader) next() (typ, data string, ok bool) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			typ = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && typ != "":
			return typ, data, true
		}
	}
	return "", "", false
}

func openEvents(t *testing.T, ctx context.Context, url string) (*http.Response, *sseReader) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp, &sseReader{scanner: bufio.NewScanner(resp.Body)}
}

func TestGateway_EventFeed(t *testing.T) {
	g := newGateway(t, Config{})
	ticks := startTicks(t, "ticks", true).(*hotstream.Pausable[int])
	if err := Publish[int](g, ticks, nil); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	resp, events := openEvents(t, ctx, srv.URL+"/streams/ticks/events")
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}
	typ, data, ok := events.next()
	if !ok || typ != EventTypeConnected || !strings.Contains(data, `"stream":"ticks"`) {
		t.Fatalf("expected connected event, got %q %q", typ, data)
	}

	prev := 0
	for i := 0; i < 3; i++ {
		typ, data, ok := events.next()
		if !ok {
			t.Fatal("event stream ended early")
		}
		if typ != EventTypeElement {
			continue
		}
		var v int
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			t.Fatalf("element %q: %v", data, err)
		}
		if v <= prev {
			t.Errorf("elements out of order: %d after %d", v, prev)
		}
		prev = v
	}
	if prev == 0 {
		t.Error("no elements received")
	}

	ticks.Stop()
	for {
		typ, data, ok := events.next()
		if !ok {
			t.Fatal("no stopped state event")
		}
		if typ == EventTypeState && strings.Contains(data, `"state":"stopped"`) {
			break
		}
	}
}

func TestGateway_ClientLimit(t *testing.T) {
	g := newGateway(t, Config{MaxClients: 1})
	if err := g.Register(startTicks(t, "ticks", false)); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(g.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	first, events := openEvents(t, ctx, srv.URL+"/streams/ticks/events")
	defer first.Body.Close()
	if typ, _, ok := events.next(); !ok || typ != EventTypeConnected {
		t.Fatal("first client did not connect")
	}

	second, err := http.Get(srv.URL + "/streams/ticks/events")
	if err != nil {
		t.Fatal(err)
	}
	second.Body.Close()
	if second.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for a client over the limit, got %d", second.StatusCode)
	}
	if h := g.Health(ctx); h.Status != component.StatusDegraded {
		t.Errorf("expected degraded health while full, got %s", h.Status)
	}
}

func TestGateway_Health(t *testing.T) {
	registry := component.NewRegistry()
	ticks := startTicks(t, "ticks", true)
	if err := registry.Register(hotstream.Component(ticks)); err != nil {
		t.Fatal(err)
	}
	g := newGateway(t, Config{}, WithHealth("reactd", "test", registry))

	w := do(t, g, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"service":"reactd"`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}

	ticks.Stop()
	<-ticks.Done()
	if w := do(t, g, http.MethodGet, "/health"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 once a component is down, got %d", w.Code)
	}
}

func TestGateway_Lifecycle(t *testing.T) {
	g := newGateway(t, Config{Addr: "127.0.0.1:0"})
	ctx := context.Background()
	if err := g.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if g.Addr() == "" {
		t.Fatal("expected a bound address")
	}

	resp, err := http.Get("http://" + g.Addr() + "/streams")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if id := resp.Header.Get(RequestIDHeader); id == "" {
		t.Error("expected a request id header")
	}

	desc := g.Describe()
	if desc.Type != "gateway" || desc.Port == 0 {
		t.Errorf("unexpected description %+v", desc)
	}
	found := false
	for _, r := range g.Routes() {
		if r.Method == http.MethodGet && r.Path == "/streams/:name/events" {
			found = true
		}
	}
	if !found {
		t.Error("events route not reported")
	}
}
