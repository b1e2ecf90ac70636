// Package server implements the daemon's status server.
//
// The status server is a small chi router, separate from the captive portal,
// bound to a management address (127.0.0.1:9180 by default):
//
//	GET /healthz   JSON {mode, ssid, connected, address, portal_active, ...}
//	GET /metrics   Prometheus exposition
//	GET /events    websocket stream of connected/disconnected/saved events
//
// /healthz answers 503 while the orchestrator is halted (storage could not be
// mounted) and 200 otherwise.
//
// # TLS
//
// When both a certificate and a key are configured the listener is wrapped
// in TLS 1.2 or later.
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{Addr: ":9180"}, orchestrator, hub)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	supervisor.Add(srv) // Serve blocks until ctx is done
package server
