package logger

import (
	"sort"
	"sync"
)

// Component names the reactkit packages log under when they are not given a
// logger explicitly.
const (
	ComponentReact        = "react"
	ComponentHotStream    = "hotstream"
	ComponentExecutor     = "executor"
	ComponentSSE          = "sse"
	ComponentRegistryName = "registry"
)

// DefaultComponents is what RegisterDefaults seeds when called without names.
var DefaultComponents = []string{
	ComponentReact,
	ComponentHotStream,
	ComponentExecutor,
	ComponentSSE,
	ComponentRegistryName,
}

var named = struct {
	sync.RWMutex
	loggers map[string]*Logger
}{loggers: make(map[string]*Logger)}

// Register stores l under name. Packages that fall back to Get(name) use it
// from then on.
func Register(name string, l *Logger) {
	named.Lock()
	defer named.Unlock()
	named.loggers[name] = l
}

// Get returns the logger registered under name. Unregistered names get the
// global logger tagged with name as its component.
func Get(name string) *Logger {
	named.RLock()
	l, ok := named.loggers[name]
	named.RUnlock()
	if ok {
		return l
	}
	return GetGlobalLogger().WithComponent(name)
}

// RegisterDefaults registers base, tagged with each component name, under
// that name. With no names it seeds DefaultComponents. A nil base means the
// global logger, so call it after Init.
func RegisterDefaults(base *Logger, names ...string) {
	if base == nil {
		base = GetGlobalLogger()
	}
	if len(names) == 0 {
		names = DefaultComponents
	}
	for _, name := range names {
		Register(name, base.WithComponent(name))
	}
}

// Registered returns the registered names in order.
func Registered() []string {
	named.RLock()
	defer named.RUnlock()
	out := make([]string, 0, len(named.loggers))
	for name := range named.loggers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// unregisterAll clears the registry. Tests only.
func unregisterAll() {
	named.Lock()
	defer named.Unlock()
	named.loggers = make(map[string]*Logger)
}
