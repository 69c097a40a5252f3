package sse

// Broadcaster sends events to every client whose id matches a glob pattern.
// Stream feeds depend on it rather than on Hub.
type Broadcaster interface {
	// BroadcastToPattern sends ev to all clients matching pattern, e.g.
	// "stream:ticks:*".
	BroadcastToPattern(pattern string, ev Event)
}
