// Package events carries the three notifications the orchestrator emits:
// the station connected, the station disconnected, and a credential was saved.
//
// Each subscription is a Hook, an optional capability. An application sets
// the hooks it cares about on a Notifier; firing a hook nobody set does
// nothing. Hooks are called synchronously on the orchestrator's goroutine,
// once per edge, with no retry.
//
// The Hub is an optional subscriber that relays events to websocket clients
// of the status server:
//
//	hub := events.NewHub()
//	hub.Attach(notifier)
//	go hub.Serve(ctx)
//	mux.Handle("/events", hub)
//
// Feed is the matching client, used by "wifiportal watch".
package events
