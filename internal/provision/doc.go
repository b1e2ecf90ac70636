// Package provision runs the provisioning state machine.
//
// An Orchestrator owns one credential store, one station supervisor, one
// captive portal and one event notifier. It is always in exactly one mode:
//
//   - ModeProvisioning: the portal is serving and the station is left alone
//   - ModeStationed: a saved network was joined and the link is supervised
//   - ModeHalted: storage could not be mounted and nothing is driven
//
// Begin loads the saved networks and tries them in order; with none saved,
// or none reachable, the portal starts. Tick is called periodically (Run does
// this on a ticker) and either services the portal or tracks the station
// link, firing connect and disconnect notifications on edges and falling
// back to the portal once the supervisor has exhausted every network.
//
// A credential saved through the portal is persisted and the device is
// restarted through the configured Restarter a short delay later, so the
// next Begin connects with it.
package provision
