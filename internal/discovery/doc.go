// Package discovery advertises and discovers Gemini capsules over mDNS.
//
// A running server registers itself under the "_gemini._tcp" service type
// with TXT records carrying the capsule path and server version. Scanner
// browses the same service type to list capsules on the local network.
//
// # Usage Example
//
//	ad, err := discovery.Advertise(discovery.Advertisement{Port: 1965})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ad.Shutdown()
//
//	capsules, err := discovery.NewScanner().ScanForCapsules(ctx)
//	for _, c := range capsules {
//	    fmt.Println(c.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package discovery
