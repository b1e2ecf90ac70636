// Package portal implements the captive configuration portal.
//
// While active, the portal runs three things on top of the radio's access
// point:
//
//   - a DNS responder that answers every A query with the access point
//     address, so any hostname a client looks up lands on the portal
//   - an HTTP server with the configuration form (GET /), credential
//     submission (POST /save), a network scan (GET /scan), and a 302 to /
//     for every other path, which is what triggers the "sign in to network"
//     prompt on phones and laptops
//   - an optional mDNS advertisement (see package discovery)
//
// # Threading
//
// Start, Stop and HandleClient belong to a single goroutine, normally the
// orchestrator tick. HTTP handlers never touch the radio or the save
// callback directly; they queue a job which the next HandleClient call runs.
// A successful save schedules a restart RestartDelay later, which a later
// HandleClient call fires.
package portal
