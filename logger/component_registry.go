package logger

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// ComponentRegistry tracks engine components during startup for summary display.
type ComponentRegistry struct {
	mu        sync.Mutex
	startTime time.Time
	executors []ExecutorComponent
	streams   []StreamComponent
	handlers  []HandlerComponent
	apiPrefix string
}

// ExecutorComponent describes a worker pool.
type ExecutorComponent struct {
	Name      string
	Workers   int
	MaxQueued int
}

// StreamComponent describes a hot stream.
type StreamComponent struct {
	Name     string
	Schedule string // "none", "fixed_rate 1s", "cron */5 * * * * * *"
	Policy   string // overflow policy of the default subscriber queue
	Capacity int
}

// HandlerComponent represents an HTTP handler/route.
type HandlerComponent struct {
	Method  string
	Path    string
	Handler string
}

// ComponentRegistryInstance is the global component registry.
var ComponentRegistryInstance = NewComponentRegistry()

// NewComponentRegistry creates a new component registry.
func NewComponentRegistry() *ComponentRegistry {
	return &ComponentRegistry{startTime: time.Now()}
}

// SetAPIPrefix sets the API prefix (for example "/api/v1").
func (r *ComponentRegistry) SetAPIPrefix(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apiPrefix = strings.TrimRight(prefix, "/")
}

// APIPrefix returns the configured API prefix.
func (r *ComponentRegistry) APIPrefix() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.apiPrefix
}

// StartTime returns the registry creation time.
func (r *ComponentRegistry) StartTime() time.Time {
	return r.startTime
}

// RegisterExecutor registers a worker pool.
func (r *ComponentRegistry) RegisterExecutor(name string, workers, maxQueued int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors = append(r.executors, ExecutorComponent{Name: name, Workers: workers, MaxQueued: maxQueued})
}

// RegisterStream registers a hot stream.
func (r *ComponentRegistry) RegisterStream(name, schedule, policy string, capacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streams = append(r.streams, StreamComponent{Name: name, Schedule: schedule, Policy: policy, Capacity: capacity})
}

// RegisterHandler registers an HTTP handler.
func (r *ComponentRegistry) RegisterHandler(method, path, handler string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, HandlerComponent{Method: method, Path: path, Handler: handler})
}

// Executors returns all registered executors.
func (r *ComponentRegistry) Executors() []ExecutorComponent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExecutorComponent(nil), r.executors...)
}

// Streams returns all registered streams.
func (r *ComponentRegistry) Streams() []StreamComponent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StreamComponent(nil), r.streams...)
}

// Handlers returns all registered handlers sorted by path.
func (r *ComponentRegistry) Handlers() []HandlerComponent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]HandlerComponent(nil), r.handlers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// LogSummary writes one line per registered component and the startup duration.
func (r *ComponentRegistry) LogSummary(l *Logger) {
	for _, e := range r.Executors() {
		l.Info("executor", Fields(FieldComponent, e.Name, "workers", e.Workers, "max_queued", e.MaxQueued))
	}
	for _, s := range r.Streams() {
		l.Info("hot stream", Fields(FieldStream, s.Name, FieldSchedule, s.Schedule, FieldPolicy, s.Policy, "capacity", s.Capacity))
	}
	for _, h := range r.Handlers() {
		l.Debug("route", Fields("method", h.Method, "path", r.APIPrefix()+h.Path, "handler", h.Handler))
	}
	l.Info("startup complete", DurationFields("startup", time.Since(r.startTime)))
}
