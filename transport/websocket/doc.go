// Package websocket pushes live board updates to browsers and other
// watchers of a session.
//
// A single Hub goroutine owns every connection. Clients attach with
// /ws?session=<id> and receive a JSON Message whenever the session's state
// changes. Updates whose board fingerprint and score match the last update
// sent to that session are dropped, so rejected moves and repeated reads do
// not wake up clients.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	hub.ServeWS(w, r, sessionID)
//	hub.BroadcastToSession(sessionID, state)
//
// Broadcasting never blocks the caller. When the hub falls behind, updates
// are dropped and logged, and a client whose send buffer is full is
// disconnected.
package websocket
