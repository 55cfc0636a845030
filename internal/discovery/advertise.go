package discovery

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"
)

// Advertisement describes how a running server announces itself.
type Advertisement struct {
	// Instance is the service instance name (default: "gemd on <hostname>")
	Instance string
	// Port is the listening port
	Port int
	// Path is the capsule root advertised in the TXT record
	Path string
	// Version is the server version advertised in the TXT record
	Version string
}

// Advertiser is a registered mDNS service. Call Shutdown to withdraw it.
type Advertiser struct {
	server *zeroconf.Server
}

// Advertise registers the capsule on all multicast-capable interfaces.
func Advertise(ad Advertisement) (*Advertiser, error) {
	instance := ad.Instance
	if instance == "" {
		instance = defaultInstance()
	}

	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, ad.Port, ad.txtRecords(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return &Advertiser{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertiser) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

func (ad Advertisement) txtRecords() []string {
	path := ad.Path
	if path == "" {
		path = "/"
	}
	txt := []string{"path=" + path, "server=gemd"}
	if ad.Version != "" {
		txt = append(txt, "version="+ad.Version)
	}
	return txt
}

func defaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "gemd"
	}
	return "gemd on " + host
}
