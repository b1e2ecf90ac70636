// Package radio abstracts the Wi-Fi hardware.
//
// The Driver interface is the small set of radio operations the connection
// supervisor and the captive portal need: switching between station and
// access point modes, joining a network and waiting for the outcome, hosting
// an access point, and scanning.
//
// Two drivers are provided:
//
//   - Simulated keeps everything in memory. Networks are "in range" when added
//     with AddNetwork, and a join succeeds when the password matches. Tests and
//     the run command's --driver=sim mode use it.
//   - NMCLI drives a Linux interface through NetworkManager's nmcli tool.
//
// Scan results carry the security type as an Encryption value whose numeric
// form is what the portal's /scan endpoint reports.
package radio
