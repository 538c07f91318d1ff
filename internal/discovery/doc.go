// Package discovery advertises and finds wsecho servers over mDNS.
//
// Servers register the "_wsecho._tcp" service type in the "local." domain
// when discovery is enabled. TXT records carry the server version, whether
// TLS is on and the request path, so a client can build the WebSocket URL
// without further configuration.
//
// # Usage Example
//
//	shutdown, err := discovery.Advertise("wsecho", 8080, map[string]string{
//	    "version": version.Version,
//	    "tls":     "false",
//	})
//	if err != nil {
//	    return err
//	}
//	defer shutdown()
//
//	services, err := discovery.NewScanner().Scan(ctx)
//	for _, svc := range services {
//	    fmt.Println(svc, svc.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Server and client must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
