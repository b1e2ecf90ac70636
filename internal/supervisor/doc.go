// Package supervisor runs the daemon's long-lived services under a
// thejerf/suture tree, restarting any that fail with backoff.
//
// Services return suture.ErrDoNotRestart to stop for good; the provisioning
// orchestrator does this when its storage cannot be mounted so that the
// status server can keep reporting the halted state.
package supervisor
