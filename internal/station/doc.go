// Package station keeps the device joined to one of its saved networks.
//
// The Supervisor has two entry points:
//
//   - Connect makes one pass over the saved networks, starting at the active
//     one, and stops at the first that connects. Each attempt waits up to the
//     connect timeout (10 seconds by default).
//   - HandleReconnection is called on every tick while the link is expected
//     to be up. When the link is down it re-joins the active network, at most
//     once per retry interval. After MaxAttempts retries it gives up on that
//     network and calls Connect(ctx, true), which starts the pass one network
//     further along.
//
// A pass in which every network fails leaves the supervisor in StateExhausted.
// The orchestrator treats that state as the signal to start the captive portal.
//
// # State Machine
//
//	Idle ──Connect──▶ Connecting ──success──▶ Connected
//	                      │                      │ link lost
//	                      │ all failed           ▼
//	                      └──────▶ Exhausted ◀── Retrying (cycle failed)
//
// The supervisor never runs an access point. Before each join it puts the
// radio in pure station mode, tearing down any access point that is up.
package station
