// Package ws streams QC results to websocket clients.
//
// The Hub is a sink.Broadcaster: every committed result is queued for every
// connected client. Slow clients lose messages rather than slowing the
// pipeline.
//
// Message Types (Client → Server):
//   - ping: keep-alive, answered with pong
//
// Message Types (Server → Client):
//   - system: sent once on connect
//   - pong: reply to ping
//   - error: unknown request
//   - results: bare JSON QC result objects
//
// Example Usage:
//
//	hub := ws.NewHub(ws.DefaultBuffer, logger, metrics)
//	router.GET("/stream", hub.HandleConnection)
//	sinks = append(sinks, sink.NewBroadcast(hub))
package ws
