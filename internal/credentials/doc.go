// Package credentials owns the ordered list of known Wi-Fi networks.
//
// The list is most-recently-used ordered: position 0 is the network that was
// saved (or re-saved) last. One entry may be marked active; the connection
// supervisor marks each candidate active as it tries it.
//
// # Record Format
//
// The list persists as a flat text record, one credential per line:
//
//	HomeNetwork<TAB>hunter22
//	Office<TAB>correct horse battery
//
// A file written by older firmware may instead hold a single SSID line
// followed by a bare password line. That form is read once and ends parsing.
//
// # Persistence Failures
//
// Save mutates memory first and persists second. If the write fails the
// in-memory change is kept and a fault.PersistenceFailure error is returned,
// so memory and storage can diverge until the next successful Save.
//
// Passwords are stored in clear text.
//
// # Usage Example
//
//	store := credentials.NewStore(credentials.NewDirStorage("/var/lib/wifiportal"), "")
//	store.Load()
//
//	if err := store.Save("HomeNetwork", "hunter22"); err != nil {
//	    log.Printf("save: %v", err)
//	}
//
//	if cred, ok := store.Active(); ok {
//	    fmt.Println(cred.SSID)
//	}
package credentials
