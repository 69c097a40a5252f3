// Package sse serves hot streams over HTTP.
//
// A Gateway lists the streams registered with it, reports their stats,
// pauses, resumes and stops them, and relays their elements to browsers as
// server-sent events:
//
//	gw := sse.NewGateway(sse.Config{Addr: ":8080", MaxClients: 32})
//	err := sse.Publish(gw, ticks, sse.JSON[int]())
//	err = gw.Start(ctx)
//
// Routes:
//
//	GET  /health
//	GET  /streams
//	GET  /streams/:name
//	POST /streams/:name/pause
//	POST /streams/:name/resume
//	POST /streams/:name/stop
//	GET  /streams/:name/events
//
// Publish subscribes with a drop-oldest queue and a slow client loses events
// rather than stalling others. Concurrent event-stream clients are capped by
// a resilience.Bulkhead; extra clients get 503.
package sse
