// Package wizard is the interactive terminal front end for provisioning a
// device from another machine.
//
// The wizard walks through four screens: discover portals over mDNS, ask the
// chosen portal to scan, enter the passphrase, save. Network work runs in
// tea.Cmds against the Finder and PortalAPI interfaces, which
// *discovery.Scanner and *portalclient.Client implement.
//
//	saved, err := wizard.Run(ctx, wizard.Options{
//	    Finder: discovery.NewScanner(),
//	    Dial: func(url string) wizard.PortalAPI {
//	        return portalclient.NewClientWithURL(url)
//	    },
//	})
package wizard
