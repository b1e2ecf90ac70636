// Package portalclient drives a captive portal over HTTP from another
// machine, for headless provisioning from the command line.
//
// The machine running the client must be joined to the portal's access
// point. Typical use:
//
//	c := portalclient.NewClientWithURL("http://192.168.4.1")
//	networks, err := c.Scan(ctx)
//	...
//	if err := c.Save(ctx, "HomeNet", "secret123"); err != nil {
//	    fmt.Println(portalclient.ShortMessage(err))
//	}
//	_ = c.WaitGone(ctx, time.Second)
//
// Failed requests are retried with exponential backoff when the failure is
// transient (timeouts, refused connections, 5xx responses). A 400 from
// /save is reported as a rejection and never retried.
package portalclient
