package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kbukum/reactkit/component"
	"github.com/kbukum/reactkit/logger"
)

// Summary prints what the process started: components grouped by type,
// gateway routes and live health.
type Summary struct {
	serviceName     string
	version         string
	startupDuration time.Duration
	out             io.Writer
}

// NewSummary creates a summary printer writing to stdout.
func NewSummary(serviceName, version string) *Summary {
	return &Summary{serviceName: serviceName, version: version, out: os.Stdout}
}

// SetStartupDuration records the total startup time.
func (s *Summary) SetStartupDuration(d time.Duration) {
	s.startupDuration = d
}

// sections lists component types in display order.
var sections = []struct {
	typ   string
	title string
}{
	{"executor", "⚙️  Executors"},
	{"hotstream", "🔥 Hot streams"},
	{"gateway", "🌐 Gateway"},
}

// DisplaySummary prints the summary, including live health from registry.
func (s *Summary) DisplaySummary(registry *component.Registry, log *logger.Logger) {
	w := s.out
	fmt.Fprintf(w, "\n🚀 %s v%s started in %.2fs\n", s.serviceName, s.version, s.startupDuration.Seconds())

	if registry == nil {
		fmt.Fprintf(w, "   └── No components registered\n\n")
		return
	}

	descs := registry.Describe()
	byType := make(map[string][]component.Description)
	for _, d := range descs {
		byType[d.Type] = append(byType[d.Type], d)
	}
	for _, sec := range sections {
		list := byType[sec.typ]
		if len(list) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", sec.title)
		for i, d := range list {
			details := d.Details
			if d.Port > 0 {
				details = fmt.Sprintf("%s (:%d)", details, d.Port)
			}
			fmt.Fprintf(w, "   %s %s: %s\n", treePrefix(i, len(list)), d.Name, details)
		}
	}

	var routes []component.Route
	for _, c := range registry.All() {
		if rp, ok := c.(component.RouteProvider); ok {
			routes = append(routes, rp.Routes()...)
		}
	}
	if len(routes) > 0 {
		fmt.Fprintf(w, "\n🛣️  Routes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-6s %s\n", treePrefix(i, len(routes)), r.Method, r.Path)
		}
	}

	health := registry.HealthAll(context.Background())
	if len(health) > 0 {
		fmt.Fprintf(w, "\n🏥 Health Check\n")
		healthy := 0
		for i, h := range health {
			msg := ""
			if h.Message != "" {
				msg = " - " + h.Message
			}
			fmt.Fprintf(w, "   %s %s %s: %s%s\n", treePrefix(i, len(health)), healthStatusIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
			if h.Status == component.StatusHealthy {
				healthy++
			}
		}
		if healthy < len(health) && log != nil {
			log.Warn("Some components have issues", logger.Fields("healthy", healthy, "total", len(health)))
		}
	}
	fmt.Fprintln(w)
}

func treePrefix(i, n int) string {
	if i == n-1 {
		return "└──"
	}
	return "├──"
}

func healthStatusIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}
