// Package component defines the lifecycle interface shared by worker pools,
// hot streams and the stream gateway, and a Registry that starts them in
// order and stops them in reverse.
//
// # Interfaces
//
//   - Component: Start/Stop/Health lifecycle
//   - Describable: startup summary descriptions
//   - RouteProvider: HTTP routes for the startup summary
package component
