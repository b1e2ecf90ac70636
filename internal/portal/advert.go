package portal

import (
	"strconv"

	"github.com/grandcat/zeroconf"

	"github.com/muurk/wifiportal/internal/discovery"
)

// advertisement is the portal's mDNS registration
type advertisement struct {
	server *zeroconf.Server
}

func advertise(apName, port, version string) (*advertisement, error) {
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, err
	}

	txt := discovery.PortalTXT(apName, version)
	server, err := zeroconf.Register(discovery.InstanceName(apName), discovery.ServiceType, discovery.ServiceDomain, p, txt, nil)
	if err != nil {
		return nil, err
	}
	return &advertisement{server: server}, nil
}

// Shutdown withdraws the registration
func (a *advertisement) Shutdown() {
	a.server.Shutdown()
}
